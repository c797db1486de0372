//go:build windows

package discovery

import (
	"context"
	"os"
	"strings"

	"github.com/osiriscare/winaudit/internal/pshell"
)

// DiscoverDomain detects the AD domain this machine is joined to.
// Tries USERDNSDOMAIN env var first, then CIM.
func DiscoverDomain(ctx context.Context) string {
	// USERDNSDOMAIN is set at user login on domain-joined machines but
	// not for the SYSTEM account, so fall back to the computer's own
	// domain attribute.
	if d := os.Getenv("USERDNSDOMAIN"); d != "" {
		return strings.ToLower(d)
	}

	out, err := (pshell.Local{}).Run(ctx, "(Get-CimInstance Win32_ComputerSystem).Domain")
	if err == nil {
		domain := strings.TrimSpace(out)
		if domain != "" && !strings.EqualFold(domain, "WORKGROUP") {
			return strings.ToLower(domain)
		}
	}

	return ""
}
