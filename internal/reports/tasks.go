package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

// TasksCollector reports scheduled tasks: state, enablement, run history,
// and the first executable action. Locally it enumerates through the Task
// Scheduler COM service; remotely Get-ScheduledTask and
// Get-ScheduledTaskInfo supply the same fields as JSON.
type TasksCollector struct{}

func (c *TasksCollector) Name() string { return "tasks" }

func (c *TasksCollector) Synopsis() string {
	return "scheduled tasks with state, run history, and actions"
}

type scheduledTask struct {
	name       string
	path       string
	state      string
	enabled    bool
	lastRun    string
	nextRun    string
	lastResult string
	action     string
}

func (c *TasksCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	var (
		tasks []scheduledTask
		err   error
	)
	if src.Remote {
		tasks, err = c.collectRemote(ctx, src)
	} else {
		tasks, err = localScheduledTasks()
	}
	if err != nil {
		return nil, err
	}

	// Path is the full task path and the only unique key; two folders can
	// both hold a task named At1.
	rep := report.New(c.Name(), src.Host,
		"Path", "Name", "State", "Enabled", "LastRun", "NextRun", "LastResult", "Action")
	for _, t := range tasks {
		enabled := "no"
		if t.enabled {
			enabled = "yes"
		}
		rep.AddRow(report.Row{
			"Path":       t.path,
			"Name":       t.name,
			"State":      t.state,
			"Enabled":    enabled,
			"LastRun":    t.lastRun,
			"NextRun":    t.nextRun,
			"LastResult": t.lastResult,
			"Action":     t.action,
		})
	}
	rep.Sort("Path")
	return rep, nil
}

const tasksScript = `$ErrorActionPreference = 'Stop'
$tasks = @(Get-ScheduledTask | ForEach-Object {
    $info = $_ | Get-ScheduledTaskInfo
    $action = ($_.Actions | Where-Object { $_.Execute } |
        ForEach-Object { ("$($_.Execute) $($_.Arguments)").Trim() }) -join '; '
    [pscustomobject]@{
        TaskName       = $_.TaskName
        TaskPath       = $_.TaskPath
        State          = [string]$_.State
        Enabled        = $_.Settings.Enabled
        LastRunTime    = $info.LastRunTime
        NextRunTime    = $info.NextRunTime
        LastTaskResult = $info.LastTaskResult
        Action         = $action
    }
})
if ($tasks.Count -eq 0) { '[]' } else { ConvertTo-Json -InputObject $tasks -Compress -Depth 3 }`

func (c *TasksCollector) collectRemote(ctx context.Context, src *report.Source) ([]scheduledTask, error) {
	var decoded []struct {
		TaskName       string `json:"TaskName"`
		TaskPath       string `json:"TaskPath"`
		State          string `json:"State"`
		Enabled        bool   `json:"Enabled"`
		LastRunTime    string `json:"LastRunTime"`
		NextRunTime    string `json:"NextRunTime"`
		LastTaskResult int64  `json:"LastTaskResult"`
		Action         string `json:"Action"`
	}
	if err := runJSON(ctx, src.Shell, tasksScript, &decoded); err != nil {
		return nil, err
	}

	tasks := make([]scheduledTask, 0, len(decoded))
	for _, d := range decoded {
		t := scheduledTask{
			name:       d.TaskName,
			path:       d.TaskPath + d.TaskName,
			state:      d.State,
			enabled:    d.Enabled,
			lastResult: fmt.Sprintf("%d", d.LastTaskResult),
			action:     d.Action,
		}
		if ts, ok := wql.ParseCIMTime(d.LastRunTime); ok {
			t.lastRun = fmtTaskTime(ts)
		}
		if ts, ok := wql.ParseCIMTime(d.NextRunTime); ok {
			t.nextRun = fmtTaskTime(ts)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// fmtTaskTime renders a run timestamp. The scheduler reports 1899-12-30
// for tasks that never ran.
func fmtTaskTime(t time.Time) string {
	if t.IsZero() || t.Year() < 1970 {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
