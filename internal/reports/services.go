package reports

import (
	"context"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

// ServicesCollector reports installed Windows services with their state,
// start mode, and logon account. Auto-start services that are not running
// carry a flag.
type ServicesCollector struct{}

func (c *ServicesCollector) Name() string { return "services" }

func (c *ServicesCollector) Synopsis() string {
	return "Windows services with state, start mode, and logon account"
}

func (c *ServicesCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	rows, err := src.WQL.Query(ctx, wql.NamespaceCIMv2,
		"SELECT Name, DisplayName, State, StartMode, StartName, PathName FROM Win32_Service")
	if err != nil {
		return nil, err
	}

	rep := report.New(c.Name(), src.Host,
		"Name", "DisplayName", "State", "StartMode", "LogOnAs", "Path", "Flag")
	for _, row := range rows {
		name, _ := row.Str("Name")
		display, _ := row.Str("DisplayName")
		state, _ := row.Str("State")
		startMode, _ := row.Str("StartMode")
		logOn, _ := row.Str("StartName")
		path, _ := row.Str("PathName")

		flag := ""
		if startMode == "Auto" && state != "Running" {
			flag = "stopped auto-start"
		}

		rep.AddRow(report.Row{
			"Name":        name,
			"DisplayName": display,
			"State":       state,
			"StartMode":   startMode,
			"LogOnAs":     logOn,
			"Path":        path,
			"Flag":        flag,
		})
	}
	rep.Sort("Name")
	return rep, nil
}
