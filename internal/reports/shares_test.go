package reports

import (
	"context"
	"testing"

	"github.com/osiriscare/winaudit/internal/smb"
	"github.com/osiriscare/winaudit/internal/wql"
)

func TestSharesCollectorRemote(t *testing.T) {
	fq := &fakeQuerier{rows: map[string][]wql.Row{
		"Win32_Share": {
			{"Name": "Backup", "Path": `D:\Backup`, "Description": "Nightly backups",
				"Type": float64(0)},
			{"Name": "C$", "Path": `C:\`, "Description": "Default share",
				"Type": float64(2147483648)},
			{"Name": "IPC$", "Path": "", "Description": "Remote IPC",
				"Type": float64(2147483651)},
		},
	}}
	shell := &fakeShell{out: `[
		{"Name":"Backup","AccountName":"Everyone","AccessRight":"Read","AccessControlType":"Allow"},
		{"Name":"Backup","AccountName":"CONTOSO\\Operators","AccessRight":"Full","AccessControlType":"Allow"},
		{"Name":"Backup","AccountName":"CONTOSO\\Temps","AccessRight":"Full","AccessControlType":"Deny"}
	]`}

	rep, err := (&SharesCollector{}).Collect(context.Background(), remoteSource(fq, shell))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if rep.Len() != 3 {
		t.Fatalf("got %d rows, want 3", rep.Len())
	}

	backup := rep.Rows[0]
	if backup["Name"] != "Backup" || backup["Type"] != "Disk" {
		t.Errorf("backup row: %v", backup)
	}
	want := `Everyone: Read; CONTOSO\Operators: Full; CONTOSO\Temps: Full (Deny)`
	if backup["Access"] != want {
		t.Errorf("Access = %q, want %q", backup["Access"], want)
	}

	admin := rep.Rows[1]
	if admin["Type"] != "Disk (admin)" || admin["Access"] != "" {
		t.Errorf("C$ row: %v", admin)
	}
	if rep.Rows[2]["Type"] != "IPC (admin)" {
		t.Errorf("IPC$ type = %q", rep.Rows[2]["Type"])
	}

	// No probe credentials, no probe column.
	if backup["Probe"] != "" {
		t.Errorf("unexpected probe status %q", backup["Probe"])
	}
}

func TestSharesCollectorAccessFailureKeepsShares(t *testing.T) {
	fq := &fakeQuerier{rows: map[string][]wql.Row{
		"Win32_Share": {
			{"Name": "Backup", "Path": `D:\Backup`, "Type": float64(0)},
		},
	}}
	shell := &fakeShell{out: "Get-SmbShareAccess : Access is denied."}

	rep, err := (&SharesCollector{}).Collect(context.Background(), remoteSource(fq, shell))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if rep.Len() != 1 || rep.Rows[0]["Access"] != "" {
		t.Errorf("share enumeration should survive an ACL failure: %v", rep.Rows)
	}
}

func TestProbeStatus(t *testing.T) {
	unreachable := &smb.ProbeResult{Host: "ws01"}
	if got := probeStatus(unreachable, "Backup"); got != "unreachable" {
		t.Errorf("unreachable = %q", got)
	}

	badAuth := &smb.ProbeResult{Host: "ws01", Reachable: true}
	if got := probeStatus(badAuth, "Backup"); got != "auth failed" {
		t.Errorf("bad auth = %q", got)
	}

	ok := &smb.ProbeResult{
		Host: "ws01", Reachable: true, Authenticated: true,
		Shares: []smb.ShareStatus{
			{Name: "Backup", Mountable: true},
			{Name: "Secrets", Mountable: false, Err: "access denied"},
		},
	}
	if got := probeStatus(ok, "Backup"); got != "ok" {
		t.Errorf("mountable = %q", got)
	}
	if got := probeStatus(ok, "Secrets"); got != "denied" {
		t.Errorf("denied = %q", got)
	}
	if got := probeStatus(ok, "Missing"); got != "" {
		t.Errorf("unknown share = %q", got)
	}
}

func TestShareTypeName(t *testing.T) {
	tests := []struct {
		code int64
		want string
	}{
		{0, "Disk"},
		{1, "Print"},
		{3, "IPC"},
		{2147483648, "Disk (admin)"},
		{2147483651, "IPC (admin)"},
		{42, "42"},
	}
	for _, tt := range tests {
		if got := shareTypeName(tt.code); got != tt.want {
			t.Errorf("shareTypeName(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
