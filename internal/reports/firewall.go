package reports

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

// FirewallCollector reports per-profile firewall state followed by the
// enabled rule set from MSFT_NetFirewallRule. Profile state comes from
// the firewall policy registry keys locally and from
// MSFT_NetFirewallProfile remotely.
type FirewallCollector struct{}

func (c *FirewallCollector) Name() string { return "firewall" }

func (c *FirewallCollector) Synopsis() string {
	return "firewall profile state and enabled rules"
}

// profileState is one firewall profile's on/off switch.
type profileState struct {
	name    string
	enabled bool
}

func (c *FirewallCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	rules, err := src.WQL.Query(ctx, wql.NamespaceStandard,
		"SELECT DisplayName, Direction, Action, Profiles FROM MSFT_NetFirewallRule WHERE Enabled = 1")
	if err != nil {
		return nil, err
	}

	var profiles []profileState
	if src.Remote {
		profiles, err = c.remoteProfileStates(ctx, src)
	} else {
		profiles, err = localProfileStates()
	}
	if err != nil {
		log.Printf("[firewall] profile state unavailable: %v", err)
	}

	rep := report.New(c.Name(), src.Host,
		"Kind", "Name", "Enabled", "Direction", "Action", "Profiles")
	for _, p := range profiles {
		enabled := "no"
		if p.enabled {
			enabled = "yes"
		}
		rep.AddRow(report.Row{
			"Kind":    "Profile",
			"Name":    p.name,
			"Enabled": enabled,
		})
	}

	ruleRows := make([]report.Row, 0, len(rules))
	for _, rule := range rules {
		name, _ := rule.Str("DisplayName")
		direction, _ := rule.Int("Direction")
		action, _ := rule.Int("Action")
		mask, _ := rule.Int("Profiles")
		ruleRows = append(ruleRows, report.Row{
			"Kind":      "Rule",
			"Name":      name,
			"Enabled":   "yes",
			"Direction": directionName(direction),
			"Action":    actionName(action),
			"Profiles":  profilesName(mask),
		})
	}
	sort.SliceStable(ruleRows, func(i, j int) bool {
		return ruleRows[i]["Name"] < ruleRows[j]["Name"]
	})
	for _, row := range ruleRows {
		rep.AddRow(row)
	}
	return rep, nil
}

func (c *FirewallCollector) remoteProfileStates(ctx context.Context, src *report.Source) ([]profileState, error) {
	rows, err := src.WQL.Query(ctx, wql.NamespaceStandard,
		"SELECT Name, Enabled FROM MSFT_NetFirewallProfile")
	if err != nil {
		return nil, err
	}
	states := make([]profileState, 0, len(rows))
	for _, row := range rows {
		name, _ := row.Str("Name")
		enabled, ok := row.Bool("Enabled")
		if !ok {
			n, _ := row.Int("Enabled")
			enabled = n != 0
		}
		states = append(states, profileState{name: name, enabled: enabled})
	}
	return states, nil
}

func directionName(code int64) string {
	switch code {
	case 1:
		return "Inbound"
	case 2:
		return "Outbound"
	}
	return fmt.Sprintf("%d", code)
}

func actionName(code int64) string {
	switch code {
	case 2:
		return "Allow"
	case 3:
		return "AllowBypass"
	case 4:
		return "Block"
	}
	return fmt.Sprintf("%d", code)
}

// profilesName renders the Profiles bitmask. Zero and the all-bits value
// both mean the rule applies everywhere.
func profilesName(mask int64) string {
	if mask == 0 || mask == 0x7fffffff {
		return "Any"
	}
	var names []string
	if mask&1 != 0 {
		names = append(names, "Domain")
	}
	if mask&2 != 0 {
		names = append(names, "Private")
	}
	if mask&4 != 0 {
		names = append(names, "Public")
	}
	if len(names) == 0 {
		return fmt.Sprintf("%d", mask)
	}
	return strings.Join(names, ", ")
}
