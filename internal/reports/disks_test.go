package reports

import (
	"context"
	"testing"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

func TestDisksCollectorRemote(t *testing.T) {
	// WMI hands uint64 sizes back as strings.
	fq := &fakeQuerier{rows: map[string][]wql.Row{
		"Win32_LogicalDisk": {
			{"DeviceID": "C:", "VolumeName": "System", "FileSystem": "NTFS",
				"Size": "107374182400", "FreeSpace": "5368709120"},
			{"DeviceID": "D:", "VolumeName": "Data", "FileSystem": "NTFS",
				"Size": "214748364800", "FreeSpace": "107374182400"},
		},
	}}

	rep, err := (&DisksCollector{}).Collect(context.Background(), remoteSource(fq, nil))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if rep.Len() != 2 {
		t.Fatalf("got %d rows, want 2", rep.Len())
	}

	c := rep.Rows[0]
	if c["Drive"] != "C:" || c["SizeGB"] != "100.0" || c["FreeGB"] != "5.0" {
		t.Errorf("C: rendered as %v", c)
	}
	if c["UsedPct"] != "95.0" {
		t.Errorf("UsedPct = %q", c["UsedPct"])
	}
	if c["Flag"] != "low space" {
		t.Errorf("expected low space flag on C:, got %q", c["Flag"])
	}

	d := rep.Rows[1]
	if d["UsedPct"] != "50.0" || d["Flag"] != "" {
		t.Errorf("D: rendered as %v", d)
	}
}

func TestDisksCollectorLocal(t *testing.T) {
	rep, err := (&DisksCollector{}).Collect(context.Background(),
		&report.Source{Host: "localhost"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, row := range rep.Rows {
		if row["Drive"] == "" {
			t.Errorf("row without a drive: %v", row)
		}
	}
}

func TestDiskRowZeroSize(t *testing.T) {
	row := diskRow("X:", "", "NTFS", 0, 0)
	if _, ok := row["UsedPct"]; ok {
		t.Error("zero-size volume should not report UsedPct")
	}
	if row["Flag"] != "" {
		t.Errorf("zero-size volume flagged: %q", row["Flag"])
	}
}

func TestGB(t *testing.T) {
	if got := gb(1 << 30); got != "1.0" {
		t.Errorf("gb(1GiB) = %q", got)
	}
	if got := gb(0); got != "0.0" {
		t.Errorf("gb(0) = %q", got)
	}
}
