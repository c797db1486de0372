package reports

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

func TestProcessesCollectorRemote(t *testing.T) {
	fq := &fakeQuerier{rows: map[string][]wql.Row{
		"Win32_Process": {
			{"ProcessId": float64(1234), "ParentProcessId": float64(900),
				"Name": "outlook.exe", "ExecutablePath": `C:\Program Files\outlook.exe`,
				"WorkingSetSize": "104857600"},
			{"ProcessId": float64(4), "ParentProcessId": float64(0), "Name": "System"},
		},
	}}

	rep, err := (&ProcessesCollector{}).Collect(context.Background(), remoteSource(fq, nil))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if rep.Len() != 2 {
		t.Fatalf("got %d rows, want 2", rep.Len())
	}

	// Numeric PID order, not string order.
	if rep.Rows[0]["PID"] != "4" || rep.Rows[1]["PID"] != "1234" {
		t.Errorf("order: %s, %s", rep.Rows[0]["PID"], rep.Rows[1]["PID"])
	}

	outlook := rep.Rows[1]
	if outlook["MemoryMB"] != "100.0" {
		t.Errorf("MemoryMB = %q", outlook["MemoryMB"])
	}
	if outlook["User"] != "" || outlook["CPUPct"] != "" {
		t.Errorf("remote rows carry no owner or CPU: %v", outlook)
	}
}

func TestProcessesCollectorLocal(t *testing.T) {
	rep, err := (&ProcessesCollector{}).Collect(context.Background(),
		&report.Source{Host: "localhost"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	self := fmt.Sprintf("%d", os.Getpid())
	for _, row := range rep.Rows {
		if row["PID"] == self {
			return
		}
	}
	t.Errorf("own process %s missing from %d rows", self, rep.Len())
}
