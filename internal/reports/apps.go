package reports

import (
	"context"

	"github.com/osiriscare/winaudit/internal/report"
)

// AppsCollector reports installed applications from the Uninstall
// registry keys, covering both the native and the Wow6432Node hives.
// Locally it walks the registry directly; remotely a PowerShell round
// trip does the same walk and returns JSON.
type AppsCollector struct{}

func (c *AppsCollector) Name() string { return "apps" }

func (c *AppsCollector) Synopsis() string {
	return "installed applications from the Uninstall registry keys"
}

type installedApp struct {
	name        string
	version     string
	publisher   string
	installDate string
}

func (c *AppsCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	var (
		apps []installedApp
		err  error
	)
	if src.Remote {
		apps, err = c.collectRemote(ctx, src)
	} else {
		apps, err = localInstalledApps()
	}
	if err != nil {
		return nil, err
	}

	rep := report.New(c.Name(), src.Host, "Name", "Version", "Publisher", "InstallDate")
	for _, a := range apps {
		rep.AddRow(report.Row{
			"Name":        a.name,
			"Version":     a.version,
			"Publisher":   a.publisher,
			"InstallDate": a.installDate,
		})
	}
	rep.Sort("Name")
	return rep, nil
}

// InstallDate is coerced to string in the script because a few
// installers write it as a DWORD instead of yyyymmdd text.
const appsScript = `$ErrorActionPreference = 'Stop'
$paths = 'HKLM:\Software\Microsoft\Windows\CurrentVersion\Uninstall\*',
         'HKLM:\Software\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall\*'
$apps = @(Get-ItemProperty -Path $paths -ErrorAction SilentlyContinue |
    Where-Object { $_.DisplayName } |
    Select-Object DisplayName, DisplayVersion, Publisher, @{n='InstallDate';e={[string]$_.InstallDate}})
if ($apps.Count -eq 0) { '[]' } else { ConvertTo-Json -InputObject $apps -Compress -Depth 2 }`

func (c *AppsCollector) collectRemote(ctx context.Context, src *report.Source) ([]installedApp, error) {
	var decoded []struct {
		DisplayName    string `json:"DisplayName"`
		DisplayVersion string `json:"DisplayVersion"`
		Publisher      string `json:"Publisher"`
		InstallDate    string `json:"InstallDate"`
	}
	if err := runJSON(ctx, src.Shell, appsScript, &decoded); err != nil {
		return nil, err
	}

	apps := make([]installedApp, 0, len(decoded))
	for _, d := range decoded {
		if d.DisplayName == "" {
			continue
		}
		apps = append(apps, installedApp{
			name:        d.DisplayName,
			version:     d.DisplayVersion,
			publisher:   d.Publisher,
			installDate: d.InstallDate,
		})
	}
	return apps, nil
}
