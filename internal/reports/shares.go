package reports

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/smb"
	"github.com/osiriscare/winaudit/internal/wql"
)

// defaultProbeTimeout bounds the SMB connection attempt per host.
const defaultProbeTimeout = 5 * time.Second

// SharesCollector reports SMB shares from Win32_Share joined with the
// per-share ACL from Get-SmbShareAccess. With Probe credentials set it
// additionally connects to the host over SMB and records whether each
// share actually mounts.
type SharesCollector struct {
	Probe        *smb.Credentials
	ProbeTimeout time.Duration
}

func (c *SharesCollector) Name() string { return "shares" }

func (c *SharesCollector) Synopsis() string {
	return "SMB shares with permissions and optional reachability probe"
}

func (c *SharesCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	shares, err := src.WQL.Query(ctx, wql.NamespaceCIMv2,
		"SELECT Name, Path, Description, Type FROM Win32_Share")
	if err != nil {
		return nil, err
	}

	access, err := c.shareAccess(ctx, src)
	if err != nil {
		log.Printf("[shares] share access query failed: %v", err)
	}

	var probe *smb.ProbeResult
	if c.Probe != nil {
		timeout := c.ProbeTimeout
		if timeout == 0 {
			timeout = defaultProbeTimeout
		}
		probe = smb.Probe(ctx, src.Host, *c.Probe, timeout)
		if probe.Err != "" {
			log.Printf("[shares] probe of %s: %s", src.Host, probe.Err)
		}
	}

	rep := report.New(c.Name(), src.Host,
		"Name", "Path", "Type", "Description", "Access", "Probe")
	for _, row := range shares {
		name, _ := row.Str("Name")
		path, _ := row.Str("Path")
		desc, _ := row.Str("Description")
		typeCode, _ := row.Int("Type")

		r := report.Row{
			"Name":        name,
			"Path":        path,
			"Type":        shareTypeName(typeCode),
			"Description": desc,
			"Access":      access[strings.ToLower(name)],
		}
		if probe != nil {
			r["Probe"] = probeStatus(probe, name)
		}
		rep.AddRow(r)
	}
	rep.Sort("Name")
	return rep, nil
}

// IPC$ errors out of Get-SmbShareAccess, hence the SilentlyContinue on
// the inner call.
const shareAccessScript = `$ErrorActionPreference = 'Stop'
$acl = @(Get-SmbShare | ForEach-Object { Get-SmbShareAccess -Name $_.Name -ErrorAction SilentlyContinue } |
    Select-Object Name, AccountName,
        @{n='AccessRight';e={[string]$_.AccessRight}},
        @{n='AccessControlType';e={[string]$_.AccessControlType}})
if ($acl.Count -eq 0) { '[]' } else { ConvertTo-Json -InputObject $acl -Compress -Depth 3 }`

// shareAccess returns the rendered ACL per share, keyed by lowercased
// share name.
func (c *SharesCollector) shareAccess(ctx context.Context, src *report.Source) (map[string]string, error) {
	var decoded []struct {
		Name              string `json:"Name"`
		AccountName       string `json:"AccountName"`
		AccessRight       string `json:"AccessRight"`
		AccessControlType string `json:"AccessControlType"`
	}
	if err := runJSON(ctx, src.Shell, shareAccessScript, &decoded); err != nil {
		return nil, err
	}

	grants := make(map[string][]string)
	for _, d := range decoded {
		if d.Name == "" || d.AccountName == "" {
			continue
		}
		grant := fmt.Sprintf("%s: %s", d.AccountName, d.AccessRight)
		if strings.EqualFold(d.AccessControlType, "Deny") {
			grant += " (Deny)"
		}
		key := strings.ToLower(d.Name)
		grants[key] = append(grants[key], grant)
	}

	access := make(map[string]string, len(grants))
	for name, list := range grants {
		access[name] = strings.Join(list, "; ")
	}
	return access, nil
}

func probeStatus(res *smb.ProbeResult, share string) string {
	switch {
	case !res.Reachable:
		return "unreachable"
	case !res.Authenticated:
		return "auth failed"
	}
	return res.StatusFor(share)
}

// shareTypeName maps Win32_Share.Type; the high bit marks the built-in
// administrative shares.
func shareTypeName(code int64) string {
	switch code {
	case 0:
		return "Disk"
	case 1:
		return "Print"
	case 2:
		return "Device"
	case 3:
		return "IPC"
	case 2147483648:
		return "Disk (admin)"
	case 2147483649:
		return "Print (admin)"
	case 2147483650:
		return "Device (admin)"
	case 2147483651:
		return "IPC (admin)"
	}
	return fmt.Sprintf("%d", code)
}
