package reports

import (
	"context"
	"testing"
	"time"
)

func TestTasksCollectorRemote(t *testing.T) {
	shell := &fakeShell{out: `[
		{"TaskName":"ScheduledDefrag","TaskPath":"\\Microsoft\\Windows\\Defrag\\",
		 "State":"Ready","Enabled":true,
		 "LastRunTime":"/Date(1704207845000)/","NextRunTime":"/Date(1706886245000)/",
		 "LastTaskResult":0,"Action":"defrag.exe C: -defrag"},
		{"TaskName":"Cleanup","TaskPath":"\\Maintenance\\",
		 "State":"Disabled","Enabled":false,
		 "LastRunTime":"/Date(-2208988800000)/","NextRunTime":null,
		 "LastTaskResult":267011,"Action":""}
	]`}

	rep, err := (&TasksCollector{}).Collect(context.Background(), remoteSource(nil, shell))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if rep.Len() != 2 {
		t.Fatalf("got %d rows, want 2", rep.Len())
	}

	cleanup := rep.Rows[0]
	if cleanup["Path"] != `\Maintenance\Cleanup` {
		t.Errorf("Path = %q", cleanup["Path"])
	}
	if cleanup["State"] != "Disabled" || cleanup["Enabled"] != "no" {
		t.Errorf("Cleanup rendered as %v", cleanup)
	}
	// The scheduler's never-ran sentinel renders empty.
	if cleanup["LastRun"] != "" || cleanup["NextRun"] != "" {
		t.Errorf("never-ran task shows %q/%q", cleanup["LastRun"], cleanup["NextRun"])
	}
	if cleanup["LastResult"] != "267011" {
		t.Errorf("LastResult = %q", cleanup["LastResult"])
	}

	defrag := rep.Rows[1]
	if defrag["Path"] != `\Microsoft\Windows\Defrag\ScheduledDefrag` {
		t.Errorf("Path = %q", defrag["Path"])
	}
	if defrag["LastRun"] != "2024-01-02 15:04" {
		t.Errorf("LastRun = %q", defrag["LastRun"])
	}
	if defrag["Action"] != "defrag.exe C: -defrag" {
		t.Errorf("Action = %q", defrag["Action"])
	}
}

func TestFmtTaskTime(t *testing.T) {
	if got := fmtTaskTime(time.Time{}); got != "" {
		t.Errorf("zero time = %q", got)
	}
	if got := fmtTaskTime(time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)); got != "" {
		t.Errorf("sentinel = %q", got)
	}
	if got := fmtTaskTime(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)); got != "2024-05-01 09:30" {
		t.Errorf("formatted = %q", got)
	}
}
