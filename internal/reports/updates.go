package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

// UpdatesCollector reports installed hotfixes from the update history,
// newest first. Win32_QuickFixEngineering stores InstalledOn in several
// formats depending on OS generation, so unparseable dates sort last and
// keep their raw text.
type UpdatesCollector struct{}

func (c *UpdatesCollector) Name() string { return "updates" }

func (c *UpdatesCollector) Synopsis() string {
	return "installed Windows updates and hotfixes, newest first"
}

func (c *UpdatesCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	rows, err := src.WQL.Query(ctx, wql.NamespaceCIMv2,
		"SELECT HotFixID, Description, InstalledOn, InstalledBy FROM Win32_QuickFixEngineering")
	if err != nil {
		return nil, err
	}

	type update struct {
		id, desc, by, rawDate string
		installed             time.Time
		dated                 bool
	}

	updates := make([]update, 0, len(rows))
	for _, row := range rows {
		u := update{}
		u.id, _ = row.Str("HotFixID")
		u.desc, _ = row.Str("Description")
		u.by, _ = row.Str("InstalledBy")
		u.rawDate, _ = row.Str("InstalledOn")
		u.installed, u.dated = row.Time("InstalledOn")
		updates = append(updates, u)
	}

	sort.SliceStable(updates, func(i, j int) bool {
		if updates[i].dated != updates[j].dated {
			return updates[i].dated
		}
		return updates[i].installed.After(updates[j].installed)
	})

	rep := report.New(c.Name(), src.Host,
		"HotFixID", "Description", "InstalledOn", "InstalledBy", "DaysAgo")
	now := time.Now()
	for _, u := range updates {
		installedOn := u.rawDate
		daysAgo := ""
		if u.dated {
			installedOn = u.installed.Format("2006-01-02")
			daysAgo = fmt.Sprintf("%d", int(now.Sub(u.installed).Hours()/24))
		}
		rep.AddRow(report.Row{
			"HotFixID":    u.id,
			"Description": u.desc,
			"InstalledOn": installedOn,
			"InstalledBy": u.by,
			"DaysAgo":     daysAgo,
		})
	}
	return rep, nil
}
