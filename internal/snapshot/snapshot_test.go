package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/osiriscare/winaudit/internal/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "snapshots.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func serviceReport(host string, rows ...report.Row) *report.Report {
	rep := report.New("services", host, "Name", "State")
	rep.CollectedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, row := range rows {
		rep.AddRow(row)
	}
	return rep
}

func TestSaveAndLoad(t *testing.T) {
	store := openTestStore(t)

	rep := serviceReport("ws01",
		report.Row{"Name": "Spooler", "State": "Running"},
		report.Row{"Name": "BITS", "State": "Stopped"},
	)

	runID, err := store.Save(rep)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if runID == "" {
		t.Fatal("expected non-empty run ID")
	}

	loaded, err := store.Load(runID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "services" || loaded.Host != "ws01" {
		t.Fatalf("unexpected metadata: %s/%s", loaded.Name, loaded.Host)
	}
	if len(loaded.Columns) != 2 || loaded.Columns[0] != "Name" {
		t.Fatalf("unexpected columns: %v", loaded.Columns)
	}
	if len(loaded.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(loaded.Rows))
	}
	if loaded.Rows[0]["Name"] != "Spooler" || loaded.Rows[1]["State"] != "Stopped" {
		t.Fatalf("rows did not round-trip: %+v", loaded.Rows)
	}
	if !loaded.CollectedAt.Equal(rep.CollectedAt) {
		t.Fatalf("collected_at did not round-trip: %v != %v", loaded.CollectedAt, rep.CollectedAt)
	}
}

func TestLoadMissingRun(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Load("no-such-run"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestRuns(t *testing.T) {
	store := openTestStore(t)

	first, err := store.Save(serviceReport("ws01", report.Row{"Name": "Spooler", "State": "Running"}))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, err := store.Save(serviceReport("ws01",
		report.Row{"Name": "Spooler", "State": "Running"},
		report.Row{"Name": "BITS", "State": "Stopped"},
	))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Save(serviceReport("ws02", report.Row{"Name": "WinRM", "State": "Running"})); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	runs, err := store.Runs("services", "ws01")
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs for ws01, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Fatal("runs should be listed newest first")
	}
	if runs[0].RowCount != 2 || runs[1].RowCount != 1 {
		t.Fatalf("unexpected row counts: %d, %d", runs[0].RowCount, runs[1].RowCount)
	}

	all, err := store.Runs("services", "")
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs across hosts, got %d", len(all))
	}
}

func TestLastTwo(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Save(serviceReport("ws01", report.Row{"Name": "Spooler", "State": "Running"})); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, _, err := store.LastTwo("services", "ws01"); err == nil {
		t.Fatal("expected error with a single saved run")
	}

	if _, err := store.Save(serviceReport("ws01", report.Row{"Name": "Spooler", "State": "Stopped"})); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	older, newer, err := store.LastTwo("services", "ws01")
	if err != nil {
		t.Fatalf("LastTwo failed: %v", err)
	}
	if older.Rows[0]["State"] != "Running" {
		t.Fatalf("older run should be the first save, got %+v", older.Rows[0])
	}
	if newer.Rows[0]["State"] != "Stopped" {
		t.Fatalf("newer run should be the second save, got %+v", newer.Rows[0])
	}
}

func TestDiff(t *testing.T) {
	older := serviceReport("ws01",
		report.Row{"Name": "Spooler", "State": "Running"},
		report.Row{"Name": "BITS", "State": "Stopped"},
	)
	newer := serviceReport("ws01",
		report.Row{"Name": "Spooler", "State": "Stopped"},
		report.Row{"Name": "WinRM", "State": "Running"},
	)

	changes := Diff(older, newer, "Name")
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(changes), changes)
	}

	if changes[0].Kind != ChangeChanged || changes[0].Key != "Spooler" {
		t.Fatalf("expected Spooler change first, got %+v", changes[0])
	}
	if changes[0].Column != "State" || changes[0].Before != "Running" || changes[0].After != "Stopped" {
		t.Fatalf("unexpected change detail: %+v", changes[0])
	}

	if changes[1].Kind != ChangeAdded || changes[1].Key != "WinRM" {
		t.Fatalf("expected WinRM added second, got %+v", changes[1])
	}
	if changes[1].After == "" {
		t.Fatal("added change should carry the new row")
	}

	if changes[2].Kind != ChangeRemoved || changes[2].Key != "BITS" {
		t.Fatalf("expected BITS removed last, got %+v", changes[2])
	}
}

func TestDiffDefaultKeyColumn(t *testing.T) {
	older := serviceReport("ws01", report.Row{"Name": "Spooler", "State": "Running"})
	newer := serviceReport("ws01", report.Row{"Name": "Spooler", "State": "Running"})

	if changes := Diff(older, newer, ""); len(changes) != 0 {
		t.Fatalf("identical reports should produce no changes, got %+v", changes)
	}
}

func TestDiffWholeRowFallback(t *testing.T) {
	older := serviceReport("ws01", report.Row{"Name": "", "State": "Running"})
	newer := serviceReport("ws01", report.Row{"Name": "", "State": "Running"})

	if changes := Diff(older, newer, "Name"); len(changes) != 0 {
		t.Fatalf("rows with empty keys should match on content, got %+v", changes)
	}

	newer = serviceReport("ws01", report.Row{"Name": "", "State": "Stopped"})
	changes := Diff(older, newer, "Name")
	if len(changes) != 2 {
		t.Fatalf("content change with empty key should read as add+remove, got %+v", changes)
	}
}

func TestToReport(t *testing.T) {
	rep := ToReport("services-diff", "ws01", []Change{
		{Kind: ChangeAdded, Key: "WinRM", After: "Name=WinRM, State=Running"},
	})
	if rep.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", rep.Len())
	}
	if rep.Rows[0]["Change"] != "added" || rep.Rows[0]["Key"] != "WinRM" {
		t.Fatalf("unexpected row: %+v", rep.Rows[0])
	}
}
