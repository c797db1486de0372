// Package reports implements the built-in report collectors: scheduled
// tasks, installed updates, disk capacity, TCP ports, firewall state,
// installed applications, services, processes, host inventory, and SMB
// shares. Every collector produces a flat report.Report and works against
// the local host or, through the plumbing in report.Source, a remote one.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/osiriscare/winaudit/internal/pshell"
	"github.com/osiriscare/winaudit/internal/report"
)

// DefaultRegistry returns a registry holding every built-in collector.
func DefaultRegistry() *report.Registry {
	reg := report.NewRegistry()
	reg.Register(&TasksCollector{})
	reg.Register(&UpdatesCollector{})
	reg.Register(&DisksCollector{})
	reg.Register(&PortsCollector{})
	reg.Register(&FirewallCollector{})
	reg.Register(&AppsCollector{})
	reg.Register(&ServicesCollector{})
	reg.Register(&ProcessesCollector{})
	reg.Register(&HostCollector{})
	reg.Register(&SharesCollector{})
	return reg
}

// runJSON executes a PowerShell script that prints a JSON array and
// decodes it into v. Empty and null output leave v untouched.
func runJSON(ctx context.Context, shell pshell.Runner, script string, v interface{}) error {
	out, err := shell.Run(ctx, script)
	if err != nil {
		return err
	}
	out = strings.TrimSpace(strings.TrimPrefix(out, "\ufeff"))
	if out == "" || out == "[]" || out == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		return fmt.Errorf("unexpected script output: %s", snippet(out, 200))
	}
	return nil
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
