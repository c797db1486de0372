//go:build windows

package reports

import (
	"fmt"
	"strings"

	"github.com/amidaware/taskmaster"
)

// localScheduledTasks enumerates every registered task through the Task
// Scheduler service.
func localScheduledTasks() ([]scheduledTask, error) {
	ts, err := taskmaster.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect task scheduler: %w", err)
	}
	defer ts.Disconnect()

	registered, err := ts.GetRegisteredTasks()
	if err != nil {
		return nil, fmt.Errorf("enumerate tasks: %w", err)
	}
	defer registered.Release()

	tasks := make([]scheduledTask, 0, len(registered))
	for _, rt := range registered {
		tasks = append(tasks, scheduledTask{
			name:       rt.Name,
			path:       rt.Path,
			state:      taskStateName(rt.State),
			enabled:    rt.Enabled,
			lastRun:    fmtTaskTime(rt.LastRunTime),
			nextRun:    fmtTaskTime(rt.NextRunTime),
			lastResult: fmt.Sprintf("%d", rt.LastTaskResult),
			action:     firstExecAction(rt),
		})
	}
	return tasks, nil
}

func taskStateName(state taskmaster.TaskState) string {
	switch state {
	case taskmaster.TASK_STATE_DISABLED:
		return "Disabled"
	case taskmaster.TASK_STATE_QUEUED:
		return "Queued"
	case taskmaster.TASK_STATE_READY:
		return "Ready"
	case taskmaster.TASK_STATE_RUNNING:
		return "Running"
	}
	return "Unknown"
}

// firstExecAction pulls the first executable action; COM handler and
// email actions only report their type.
func firstExecAction(rt taskmaster.RegisteredTask) string {
	for _, action := range rt.Definition.Actions {
		switch a := action.(type) {
		case taskmaster.ExecAction:
			return strings.TrimSpace(a.Path + " " + a.Args)
		case *taskmaster.ExecAction:
			return strings.TrimSpace(a.Path + " " + a.Args)
		}
	}
	if len(rt.Definition.Actions) > 0 {
		return rt.Definition.Actions[0].GetType().String()
	}
	return ""
}
