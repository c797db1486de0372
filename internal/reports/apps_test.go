package reports

import (
	"context"
	"strings"
	"testing"
)

func TestAppsCollectorRemote(t *testing.T) {
	shell := &fakeShell{out: `[
		{"DisplayName":"Zip Utility","DisplayVersion":"24.01","Publisher":"Example Corp","InstallDate":"20240102"},
		{"DisplayName":"Agent","DisplayVersion":"2.1.0","Publisher":"OsirisCare","InstallDate":""},
		{"DisplayName":"","DisplayVersion":"1.0","Publisher":"Stub","InstallDate":""}
	]`}

	rep, err := (&AppsCollector{}).Collect(context.Background(), remoteSource(nil, shell))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	// Entries without a DisplayName are dropped.
	if rep.Len() != 2 {
		t.Fatalf("got %d rows, want 2", rep.Len())
	}
	if rep.Rows[0]["Name"] != "Agent" || rep.Rows[1]["Name"] != "Zip Utility" {
		t.Errorf("order: %s, %s", rep.Rows[0]["Name"], rep.Rows[1]["Name"])
	}
	if rep.Rows[1]["Version"] != "24.01" || rep.Rows[1]["InstallDate"] != "20240102" {
		t.Errorf("Zip Utility rendered as %v", rep.Rows[1])
	}

	// Both hives are on the walk.
	if !strings.Contains(shell.script, "Wow6432Node") {
		t.Error("script does not cover the Wow6432Node hive")
	}
}

func TestAppsCollectorRemoteScriptError(t *testing.T) {
	shell := &fakeShell{out: "The term 'Get-ItemProperty' is not recognized"}

	_, err := (&AppsCollector{}).Collect(context.Background(), remoteSource(nil, shell))
	if err == nil {
		t.Fatal("expected an error for non-JSON output")
	}
}
