package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ldapSearcher is the slice of *ldap.Conn the client uses, split out so
// tests can fake the directory server.
type ldapSearcher interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(req *ldap.SearchRequest, pageSize uint32) (*ldap.SearchResult, error)
}

const ldapPageSize = 500

// LDAPClient implements Client against on-prem Active Directory. Object
// IDs are distinguished names. Device owners come from the computer
// object's managedBy attribute.
type LDAPClient struct {
	conn    ldapSearcher
	baseDN  string
	closeFn func()
}

// DialLDAP connects and binds to a directory server. serverURL takes the
// ldap:// or ldaps:// form, e.g. ldap://dc01.corp.example.com:389.
// An empty bindDN skips the bind (anonymous access).
func DialLDAP(serverURL, baseDN, bindDN, password string) (*LDAPClient, error) {
	conn, err := ldap.DialURL(serverURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	if bindDN != "" {
		if err := conn.Bind(bindDN, password); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bind as %s: %w", bindDN, err)
		}
	}
	return &LDAPClient{
		conn:    conn,
		baseDN:  baseDN,
		closeFn: func() { conn.Close() },
	}, nil
}

// Close releases the underlying connection.
func (c *LDAPClient) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// kindFromClasses maps AD objectClass values to a Kind. Managed service
// accounts subclass computer, and computer subclasses user, so the checks
// run most-specific first.
func kindFromClasses(classes []string) Kind {
	has := func(name string) bool {
		for _, class := range classes {
			if strings.EqualFold(class, name) {
				return true
			}
		}
		return false
	}

	switch {
	case has("msDS-GroupManagedServiceAccount") || has("msDS-ManagedServiceAccount"):
		return KindServicePrincipal
	case has("computer"):
		return KindDevice
	case has("group"):
		return KindGroup
	case has("user") || has("person") || has("inetOrgPerson"):
		return KindUser
	default:
		return KindUnknown
	}
}

// searchEntry reads one object by DN. Attribute order in attrs is not
// significant.
func (c *LDAPClient) searchEntry(dn string, attrs []string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases,
		1, 0, false, "(objectClass=*)", attrs, nil)
	res, err := c.conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("search %s: %w", dn, err)
	}
	if len(res.Entries) == 0 {
		return nil, ErrNotFound
	}
	return res.Entries[0], nil
}

// entryName prefers displayName over cn; many AD objects only carry cn.
func entryName(entry *ldap.Entry) string {
	if name := entry.GetAttributeValue("displayName"); name != "" {
		return name
	}
	return entry.GetAttributeValue("cn")
}

// GroupByName finds a group by cn or sAMAccountName.
func (c *LDAPClient) GroupByName(ctx context.Context, name string) (*Group, error) {
	escaped := ldap.EscapeFilter(name)
	filter := fmt.Sprintf("(&(objectClass=group)(|(cn=%s)(sAMAccountName=%s)))", escaped, escaped)
	req := ldap.NewSearchRequest(c.baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, 0, false, filter, []string{"cn", "displayName"}, nil)

	res, err := c.conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search group %q: %w", name, err)
	}
	if len(res.Entries) == 0 {
		return nil, ErrNotFound
	}
	entry := res.Entries[0]
	return &Group{ID: entry.DN, DisplayName: entryName(entry)}, nil
}

// Group fetches one group by DN.
func (c *LDAPClient) Group(ctx context.Context, id string) (*Group, error) {
	entry, err := c.searchEntry(id, []string{"cn", "displayName"})
	if err != nil {
		return nil, err
	}
	return &Group{ID: entry.DN, DisplayName: entryName(entry)}, nil
}

// GroupMembers lists direct members via a paged memberOf search, reading
// each member's objectClass to classify it.
func (c *LDAPClient) GroupMembers(ctx context.Context, groupID string) ([]MemberRef, error) {
	filter := fmt.Sprintf("(memberOf=%s)", ldap.EscapeFilter(groupID))
	req := ldap.NewSearchRequest(c.baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, 0, false, filter, []string{"objectClass"}, nil)

	res, err := c.conn.SearchWithPaging(req, ldapPageSize)
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", groupID, err)
	}

	refs := make([]MemberRef, 0, len(res.Entries))
	for _, entry := range res.Entries {
		refs = append(refs, MemberRef{
			ID:   entry.DN,
			Kind: kindFromClasses(entry.GetAttributeValues("objectClass")),
		})
	}
	return refs, nil
}

// User fetches one user by DN. UserPrincipalName falls back to
// sAMAccountName for accounts without a UPN.
func (c *LDAPClient) User(ctx context.Context, id string) (*User, error) {
	entry, err := c.searchEntry(id, []string{"cn", "displayName", "userPrincipalName", "sAMAccountName"})
	if err != nil {
		return nil, err
	}
	upn := entry.GetAttributeValue("userPrincipalName")
	if upn == "" {
		upn = entry.GetAttributeValue("sAMAccountName")
	}
	return &User{ID: entry.DN, DisplayName: entryName(entry), UserPrincipalName: upn}, nil
}

// Device fetches one computer object by DN.
func (c *LDAPClient) Device(ctx context.Context, id string) (*Device, error) {
	entry, err := c.searchEntry(id, []string{"cn", "displayName"})
	if err != nil {
		return nil, err
	}
	return &Device{ID: entry.DN, DisplayName: entryName(entry)}, nil
}

// ServicePrincipal fetches one managed service account by DN.
func (c *LDAPClient) ServicePrincipal(ctx context.Context, id string) (*ServicePrincipal, error) {
	entry, err := c.searchEntry(id, []string{"cn", "displayName"})
	if err != nil {
		return nil, err
	}
	return &ServicePrincipal{ID: entry.DN, DisplayName: entryName(entry)}, nil
}

// DeviceOwners reads the computer's managedBy attribute and classifies
// the referenced object. AD models a single managing owner.
func (c *LDAPClient) DeviceOwners(ctx context.Context, deviceID string) ([]MemberRef, error) {
	entry, err := c.searchEntry(deviceID, []string{"managedBy"})
	if err != nil {
		return nil, err
	}

	ownerDN := entry.GetAttributeValue("managedBy")
	if ownerDN == "" {
		return nil, nil
	}

	owner, err := c.searchEntry(ownerDN, []string{"objectClass"})
	if err != nil {
		return nil, fmt.Errorf("resolve managedBy %s: %w", ownerDN, err)
	}
	return []MemberRef{{
		ID:   owner.DN,
		Kind: kindFromClasses(owner.GetAttributeValues("objectClass")),
	}}, nil
}
