package wql

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedRunner returns a canned stdout and records the script it ran.
type scriptedRunner struct {
	out    string
	err    error
	script string
}

func (r *scriptedRunner) Run(ctx context.Context, script string) (string, error) {
	r.script = script
	return r.out, r.err
}

func TestRemoteQuery(t *testing.T) {
	runner := &scriptedRunner{
		out: `[{"Name":"Spooler","State":"Running","ProcessId":1234},{"Name":"W32Time","State":"Stopped","ProcessId":0}]`,
	}
	q := NewRemote(runner)

	rows, err := q.Query(context.Background(), NamespaceCIMv2,
		"SELECT Name, State, ProcessId FROM Win32_Service")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	if name, _ := rows[0].Str("Name"); name != "Spooler" {
		t.Errorf("Name = %q", name)
	}
	if pid, ok := rows[0].Int("ProcessId"); !ok || pid != 1234 {
		t.Errorf("ProcessId = %d, ok=%v", pid, ok)
	}

	if !strings.Contains(runner.script, "Get-CimInstance -Namespace 'root\\CIMV2'") {
		t.Errorf("script missing namespace: %s", runner.script)
	}
	if !strings.Contains(runner.script, "Select-Object Name, State, ProcessId") {
		t.Errorf("script missing column trim: %s", runner.script)
	}
}

func TestRemoteQuerySingleObject(t *testing.T) {
	// ConvertTo-Json collapses one-row results to a bare object on old hosts.
	runner := &scriptedRunner{out: `{"Name":"Spooler","State":"Running"}`}

	rows, err := NewRemote(runner).Query(context.Background(), NamespaceCIMv2,
		"SELECT Name, State FROM Win32_Service WHERE Name = 'Spooler'")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if name, _ := rows[0].Str("Name"); name != "Spooler" {
		t.Errorf("Name = %q", name)
	}
}

func TestRemoteQueryEmpty(t *testing.T) {
	for _, out := range []string{"", "[]", "null"} {
		runner := &scriptedRunner{out: out}
		rows, err := NewRemote(runner).Query(context.Background(), NamespaceCIMv2,
			"SELECT Name FROM Win32_Service")
		if err != nil {
			t.Fatalf("Query(%q): %v", out, err)
		}
		if len(rows) != 0 {
			t.Errorf("Query(%q) = %d rows, want 0", out, len(rows))
		}
	}
}

func TestRemoteQueryRunnerError(t *testing.T) {
	wantErr := errors.New("transport down")
	runner := &scriptedRunner{err: wantErr}

	_, err := NewRemote(runner).Query(context.Background(), NamespaceCIMv2,
		"SELECT Name FROM Win32_Service")
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
}

func TestRemoteQueryBadOutput(t *testing.T) {
	runner := &scriptedRunner{out: "Access is denied."}

	_, err := NewRemote(runner).Query(context.Background(), NamespaceCIMv2,
		"SELECT Name FROM Win32_Service")
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSelectColumns(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"SELECT Name, State FROM Win32_Service", []string{"Name", "State"}},
		{"SELECT * FROM Win32_Service", nil},
		{"select HotFixID from Win32_QuickFixEngineering", []string{"HotFixID"}},
		{"not a query", nil},
	}

	for _, tt := range tests {
		got := selectColumns(tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("selectColumns(%q) = %v, want %v", tt.query, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("selectColumns(%q)[%d] = %q, want %q", tt.query, i, got[i], tt.want[i])
			}
		}
	}
}

func TestPSQuote(t *testing.T) {
	if got := psQuote(`root\CIMV2`); got != `'root\CIMV2'` {
		t.Errorf("psQuote = %s", got)
	}
	if got := psQuote("WHERE Name = 'x'"); got != "'WHERE Name = ''x'''" {
		t.Errorf("psQuote with quotes = %s", got)
	}
}
