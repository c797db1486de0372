package reports

import (
	"context"
	"testing"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

func TestPortsCollectorRemote(t *testing.T) {
	fq := &fakeQuerier{rows: map[string][]wql.Row{
		"MSFT_NetTCPConnection": {
			{"LocalAddress": "10.0.0.5", "LocalPort": float64(49712),
				"RemoteAddress": "10.0.0.9", "RemotePort": float64(443),
				"State": float64(5), "OwningProcess": float64(1234)},
			{"LocalAddress": "0.0.0.0", "LocalPort": float64(135),
				"RemoteAddress": "0.0.0.0", "RemotePort": float64(0),
				"State": float64(2), "OwningProcess": float64(900)},
			{"LocalAddress": "10.0.0.5", "LocalPort": float64(50001),
				"RemoteAddress": "10.0.0.9", "RemotePort": float64(445),
				"State": float64(11), "OwningProcess": float64(4)},
		},
		"Win32_Process": {
			{"ProcessId": float64(900), "Name": "svchost.exe"},
			{"ProcessId": float64(1234), "Name": "outlook.exe"},
		},
	}}

	rep, err := (&PortsCollector{}).Collect(context.Background(), remoteSource(fq, nil))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	// The TimeWait connection drops out.
	if rep.Len() != 2 {
		t.Fatalf("got %d rows, want 2", rep.Len())
	}

	listener := rep.Rows[0]
	if listener["State"] != "Listen" || listener["LocalPort"] != "135" {
		t.Errorf("first row should be the listener: %v", listener)
	}
	if listener["Process"] != "svchost.exe" {
		t.Errorf("listener process = %q", listener["Process"])
	}
	if listener["RemoteAddress"] != "" || listener["RemotePort"] != "" {
		t.Errorf("listener should have no remote endpoint: %v", listener)
	}

	established := rep.Rows[1]
	if established["State"] != "Established" || established["RemotePort"] != "443" {
		t.Errorf("established row: %v", established)
	}
	if established["Process"] != "outlook.exe" {
		t.Errorf("established process = %q", established["Process"])
	}
}

func TestPortsCollectorLocal(t *testing.T) {
	_, err := (&PortsCollector{}).Collect(context.Background(),
		&report.Source{Host: "localhost"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
}

func TestCanonicalTCPState(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"LISTEN", "Listen"},
		{"ESTABLISHED", "Established"},
		{"ESTAB", "Established"},
		{"TIME_WAIT", ""},
		{"CLOSE_WAIT", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := canonicalTCPState(tt.in); got != tt.want {
			t.Errorf("canonicalTCPState(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMSFTTCPState(t *testing.T) {
	tests := []struct {
		code int64
		want string
	}{
		{2, "Listen"},
		{5, "Established"},
		{11, "TimeWait"},
		{12, "DeleteTCB"},
		{99, "State99"},
	}
	for _, tt := range tests {
		if got := msftTCPState(tt.code); got != tt.want {
			t.Errorf("msftTCPState(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
