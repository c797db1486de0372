package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

// ProcessesCollector reports the process table. Locally gopsutil supplies
// owner and CPU figures; Win32_Process carries neither through a plain
// query, so remote rows leave User and CPUPct empty.
type ProcessesCollector struct{}

func (c *ProcessesCollector) Name() string { return "processes" }

func (c *ProcessesCollector) Synopsis() string {
	return "running processes with owner, memory, and executable path"
}

type processInfo struct {
	pid, ppid  int64
	name, user string
	cpuPct     string
	rss        uint64
	exe        string
}

func (c *ProcessesCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	var (
		procs []processInfo
		err   error
	)
	if src.Remote {
		procs, err = c.collectWQL(ctx, src)
	} else {
		procs, err = c.collectLocal(ctx)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].pid < procs[j].pid })

	rep := report.New(c.Name(), src.Host,
		"PID", "PPID", "Name", "User", "CPUPct", "MemoryMB", "Path")
	for _, p := range procs {
		rep.AddRow(report.Row{
			"PID":      fmt.Sprintf("%d", p.pid),
			"PPID":     fmt.Sprintf("%d", p.ppid),
			"Name":     p.name,
			"User":     p.user,
			"CPUPct":   p.cpuPct,
			"MemoryMB": mb(p.rss),
			"Path":     p.exe,
		})
	}
	return rep, nil
}

func (c *ProcessesCollector) collectLocal(ctx context.Context) ([]processInfo, error) {
	running, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	procs := make([]processInfo, 0, len(running))
	for _, p := range running {
		info := processInfo{pid: int64(p.Pid)}
		// Per-field failures are normal for protected processes; keep
		// the row with what we could read.
		if name, err := p.NameWithContext(ctx); err == nil {
			info.name = name
		}
		if ppid, err := p.PpidWithContext(ctx); err == nil {
			info.ppid = int64(ppid)
		}
		if user, err := p.UsernameWithContext(ctx); err == nil {
			info.user = user
		}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			info.cpuPct = fmt.Sprintf("%.1f", pct)
		}
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			info.rss = mem.RSS
		}
		if exe, err := p.ExeWithContext(ctx); err == nil {
			info.exe = exe
		}
		procs = append(procs, info)
	}
	return procs, nil
}

func (c *ProcessesCollector) collectWQL(ctx context.Context, src *report.Source) ([]processInfo, error) {
	rows, err := src.WQL.Query(ctx, wql.NamespaceCIMv2,
		"SELECT ProcessId, ParentProcessId, Name, ExecutablePath, WorkingSetSize FROM Win32_Process")
	if err != nil {
		return nil, err
	}

	procs := make([]processInfo, 0, len(rows))
	for _, row := range rows {
		info := processInfo{}
		info.pid, _ = row.Int("ProcessId")
		info.ppid, _ = row.Int("ParentProcessId")
		info.name, _ = row.Str("Name")
		info.exe, _ = row.Str("ExecutablePath")
		if rss, ok := row.Int("WorkingSetSize"); ok && rss > 0 {
			info.rss = uint64(rss)
		}
		procs = append(procs, info)
	}
	return procs, nil
}

func mb(bytes uint64) string {
	return fmt.Sprintf("%.1f", float64(bytes)/(1<<20))
}
