package report

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubCollector struct {
	name string
	rows int
	err  error
	wait time.Duration
}

func (c *stubCollector) Name() string     { return c.name }
func (c *stubCollector) Synopsis() string { return "stub" }

func (c *stubCollector) Collect(ctx context.Context, src *Source) (*Report, error) {
	if c.wait > 0 {
		time.Sleep(c.wait)
	}
	if c.err != nil {
		return nil, c.err
	}
	rep := New(c.name, src.Host, "Value")
	for i := 0; i < c.rows; i++ {
		rep.AddRow(Row{"Value": c.name})
	}
	return rep, nil
}

func TestRegistryRunAllOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubCollector{name: "alpha", rows: 1, wait: 20 * time.Millisecond})
	reg.Register(&stubCollector{name: "beta", err: errors.New("boom")})
	reg.Register(&stubCollector{name: "gamma", rows: 3})

	results := reg.RunAll(context.Background(), &Source{Host: "test-host"})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	// Registration order must survive the concurrent fan-out.
	wantOrder := []string{"alpha", "beta", "gamma"}
	for i, want := range wantOrder {
		if results[i].Collector != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].Collector, want)
		}
	}

	if results[1].Err == nil {
		t.Error("expected error from beta")
	}
	if results[2].Report == nil || results[2].Report.Len() != 3 {
		t.Error("gamma report missing rows")
	}
	if results[0].Report.Host != "test-host" {
		t.Errorf("host = %s", results[0].Report.Host)
	}
}

func TestRegistryReRegisterKeepsPosition(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubCollector{name: "alpha"})
	reg.Register(&stubCollector{name: "beta"})
	reg.Register(&stubCollector{name: "alpha", rows: 5})

	names := reg.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("names = %v", names)
	}

	c, ok := reg.Get("alpha")
	if !ok {
		t.Fatal("alpha not registered")
	}
	if c.(*stubCollector).rows != 5 {
		t.Error("re-registration did not replace collector")
	}
}

func TestReportSort(t *testing.T) {
	rep := New("services", "host", "Name", "State")
	rep.AddRow(Row{"Name": "wuauserv", "State": "Stopped"})
	rep.AddRow(Row{"Name": "BITS", "State": "Running"})
	rep.AddRow(Row{"Name": "Spooler", "State": "Running"})

	rep.Sort("Name")

	want := []string{"BITS", "Spooler", "wuauserv"}
	for i, name := range want {
		if rep.Rows[i]["Name"] != name {
			t.Errorf("row %d = %s, want %s", i, rep.Rows[i]["Name"], name)
		}
	}
}

func TestHostname(t *testing.T) {
	if Hostname() == "" {
		t.Error("Hostname returned empty string")
	}
}
