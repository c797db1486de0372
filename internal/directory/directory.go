// Package directory resolves directory group membership, recursively
// expanding nested groups into a flat member listing.
//
// The resolver walks an abstract Client, so the same traversal serves
// Microsoft Graph (Entra ID) and on-prem Active Directory backends.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a directory object does not exist.
var ErrNotFound = errors.New("directory object not found")

// Kind classifies a directory object.
type Kind int

const (
	KindUnknown Kind = iota
	KindUser
	KindDevice
	KindServicePrincipal
	KindGroup
)

// String returns the kind label used in report output.
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "User"
	case KindDevice:
		return "Device"
	case KindServicePrincipal:
		return "ServicePrincipal"
	case KindGroup:
		return "Group"
	default:
		return "Unknown"
	}
}

// User is a directory user account.
type User struct {
	ID                string
	DisplayName       string
	UserPrincipalName string
}

// Device is a directory-joined or registered machine.
type Device struct {
	ID          string
	DisplayName string
}

// ServicePrincipal is an application identity.
type ServicePrincipal struct {
	ID          string
	DisplayName string
}

// Group is a directory group.
type Group struct {
	ID          string
	DisplayName string
}

// MemberRef is one entry of a group member or device owner listing: the
// object's ID plus the kind its directory discriminant declared.
type MemberRef struct {
	ID   string
	Kind Kind
}

// MemberRecord is one row of the flattened membership output.
//
// UserPrincipalName is set for users only. PrimaryUser is set for devices
// only: the UPNs of the device's user-kind registered owners joined with
// ", ", empty when the device has none.
type MemberRecord struct {
	ID                string
	Name              string
	Kind              Kind
	UserPrincipalName string
	PrimaryUser       string
}

// Client is the directory service the resolver walks. Implementations
// handle authentication, paging, and transport retries; lookups of absent
// objects return ErrNotFound.
type Client interface {
	// GroupByName finds a group by its display name.
	GroupByName(ctx context.Context, name string) (*Group, error)
	// Group fetches one group by ID.
	Group(ctx context.Context, id string) (*Group, error)
	// GroupMembers lists a group's direct members, exhausting all pages.
	GroupMembers(ctx context.Context, groupID string) ([]MemberRef, error)
	// User fetches one user by ID.
	User(ctx context.Context, id string) (*User, error)
	// Device fetches one device by ID.
	Device(ctx context.Context, id string) (*Device, error)
	// ServicePrincipal fetches one service principal by ID.
	ServicePrincipal(ctx context.Context, id string) (*ServicePrincipal, error)
	// DeviceOwners lists a device's registered owners, exhausting all pages.
	DeviceOwners(ctx context.Context, deviceID string) ([]MemberRef, error)
}
