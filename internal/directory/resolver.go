package directory

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Resolver flattens a group's transitive membership into MemberRecords.
//
// Traversal is depth-first with an explicit frame stack: a nested group's
// own record is emitted before the records of its members. A visited set,
// updated before each member fetch, stops cycles and keeps diamonds from
// expanding twice. The root group itself is never emitted, not even when
// a nested group links back to it.
//
// Member lookups that fail are skipped with a warning so one stale
// reference cannot abort a whole audit; only a failure on the root group
// is fatal.
type Resolver struct {
	client Client
}

// NewResolver creates a resolver over the given directory client.
func NewResolver(client Client) *Resolver {
	return &Resolver{client: client}
}

// frame tracks the expansion of one group: its member listing and the
// cursor of the next member to process.
type frame struct {
	members []MemberRef
	next    int
}

// ResolveByName resolves the group's display name, then its membership.
func (r *Resolver) ResolveByName(ctx context.Context, name string) ([]MemberRecord, error) {
	group, err := r.client.GroupByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up group %q: %w", name, err)
	}
	return r.Resolve(ctx, group.ID)
}

// Resolve returns one record per distinct member reachable from the root
// group. When a member appears more than once, the record from its last
// occurrence wins and the output keeps that position.
func (r *Resolver) Resolve(ctx context.Context, rootID string) ([]MemberRecord, error) {
	if _, err := r.client.Group(ctx, rootID); err != nil {
		return nil, fmt.Errorf("fetch root group %s: %w", rootID, err)
	}

	visited := map[string]bool{rootID: true}
	members, err := r.client.GroupMembers(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("list members of root group %s: %w", rootID, err)
	}

	var records []MemberRecord
	skipped := 0
	stack := []*frame{{members: members}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.members) {
			stack = stack[:len(stack)-1]
			continue
		}
		ref := top.members[top.next]
		top.next++

		switch ref.Kind {
		case KindUser:
			user, err := r.client.User(ctx, ref.ID)
			if err != nil {
				log.Printf("[directory] skipping user %s: %v", ref.ID, err)
				skipped++
				continue
			}
			records = append(records, MemberRecord{
				ID:                user.ID,
				Name:              user.DisplayName,
				Kind:              KindUser,
				UserPrincipalName: user.UserPrincipalName,
			})

		case KindDevice:
			device, err := r.client.Device(ctx, ref.ID)
			if err != nil {
				log.Printf("[directory] skipping device %s: %v", ref.ID, err)
				skipped++
				continue
			}
			records = append(records, MemberRecord{
				ID:          device.ID,
				Name:        device.DisplayName,
				Kind:        KindDevice,
				PrimaryUser: r.primaryUser(ctx, device.ID),
			})

		case KindServicePrincipal:
			sp, err := r.client.ServicePrincipal(ctx, ref.ID)
			if err != nil {
				log.Printf("[directory] skipping service principal %s: %v", ref.ID, err)
				skipped++
				continue
			}
			records = append(records, MemberRecord{
				ID:   sp.ID,
				Name: sp.DisplayName,
				Kind: KindServicePrincipal,
			})

		case KindGroup:
			if ref.ID == rootID {
				continue
			}
			group, err := r.client.Group(ctx, ref.ID)
			if err != nil {
				log.Printf("[directory] skipping group %s: %v", ref.ID, err)
				skipped++
				continue
			}
			records = append(records, MemberRecord{
				ID:   group.ID,
				Name: group.DisplayName,
				Kind: KindGroup,
			})
			if !visited[group.ID] {
				visited[group.ID] = true
				sub, err := r.client.GroupMembers(ctx, group.ID)
				if err != nil {
					log.Printf("[directory] skipping members of group %s: %v", group.ID, err)
					skipped++
					continue
				}
				stack = append(stack, &frame{members: sub})
			}

		default:
			log.Printf("[directory] skipping member %s: unrecognized kind", ref.ID)
			skipped++
		}
	}

	records = dedupLastWins(records)
	if skipped > 0 {
		log.Printf("[directory] resolved %d members of group %s, %d skipped", len(records), rootID, skipped)
	}
	return records, nil
}

// primaryUser joins the UPNs of the device's user-kind registered owners
// in owner listing order. Owner lookup failures degrade to an empty or
// partial value rather than failing the device record.
func (r *Resolver) primaryUser(ctx context.Context, deviceID string) string {
	owners, err := r.client.DeviceOwners(ctx, deviceID)
	if err != nil {
		log.Printf("[directory] owners of device %s unavailable: %v", deviceID, err)
		return ""
	}

	var upns []string
	for _, owner := range owners {
		if owner.Kind != KindUser {
			continue
		}
		user, err := r.client.User(ctx, owner.ID)
		if err != nil {
			log.Printf("[directory] skipping owner %s of device %s: %v", owner.ID, deviceID, err)
			continue
		}
		upns = append(upns, user.UserPrincipalName)
	}
	return strings.Join(upns, ", ")
}

// dedupLastWins keeps one record per ID at the position of its last
// occurrence.
func dedupLastWins(records []MemberRecord) []MemberRecord {
	seen := make(map[string]bool, len(records))
	out := make([]MemberRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if seen[records[i].ID] {
			continue
		}
		seen[records[i].ID] = true
		out = append(out, records[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
