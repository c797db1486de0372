//go:build !windows

package reports

import "errors"

func localScheduledTasks() ([]scheduledTask, error) {
	return nil, errors.New("task scheduler only reachable on Windows")
}
