// Package smb probes SMB shares on a host: whether port 445 answers,
// whether the given credentials authenticate, and which shares they
// can actually mount.
package smb

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/hirochachacha/go-smb2"
)

// Credentials authenticate the probe session over NTLM.
type Credentials struct {
	Username string
	Domain   string
	Password string
}

// ShareStatus is the probe outcome for one share.
type ShareStatus struct {
	Name      string
	Mountable bool
	Err       string
}

// ProbeResult describes how far the probe got on a host.
type ProbeResult struct {
	Host          string
	Reachable     bool
	Authenticated bool
	Shares        []ShareStatus
	Err           string
}

// Probe connects to host:445, authenticates, lists shares, and tries
// to mount each one. Administrative plumbing shares (IPC$, PRINT$) are
// skipped. Failures are recorded in the result rather than returned;
// a probe that cannot even reach the host is still a result.
func Probe(ctx context.Context, host string, creds Credentials, timeout time.Duration) *ProbeResult {
	result := &ProbeResult{Host: host}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, "445"))
	if err != nil {
		result.Err = "connection failed: " + err.Error()
		return result
	}
	defer conn.Close()
	result.Reachable = true

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     creds.Username,
			Domain:   creds.Domain,
			Password: creds.Password,
		},
	}

	session, err := d.DialContext(ctx, conn)
	if err != nil {
		result.Err = "auth failed: " + err.Error()
		return result
	}
	defer session.Logoff()
	result.Authenticated = true

	names, err := session.ListSharenames()
	if err != nil {
		result.Err = "list shares failed: " + err.Error()
		return result
	}

	for _, name := range names {
		if skipShare(name) {
			continue
		}
		status := ShareStatus{Name: name}
		fs, err := session.Mount(name)
		if err != nil {
			status.Err = err.Error()
		} else {
			status.Mountable = true
			fs.Umount()
		}
		result.Shares = append(result.Shares, status)
	}

	return result
}

// StatusFor reports the probe outcome for a named share: "ok" when it
// mounted, "denied" when it did not, "" when the probe never saw it.
func (r *ProbeResult) StatusFor(share string) string {
	for _, s := range r.Shares {
		if strings.EqualFold(s.Name, share) {
			if s.Mountable {
				return "ok"
			}
			return "denied"
		}
	}
	return ""
}

func skipShare(name string) bool {
	upper := strings.ToUpper(name)
	return upper == "IPC$" || upper == "PRINT$"
}
