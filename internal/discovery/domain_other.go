//go:build !windows

package discovery

import "context"

// DiscoverDomain returns empty on non-Windows (no AD).
func DiscoverDomain(ctx context.Context) string {
	return ""
}
