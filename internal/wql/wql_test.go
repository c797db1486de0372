package wql

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestRowGetters(t *testing.T) {
	row := Row{
		"StringProp": "value",
		"BoolProp":   true,
		"IntProp":    int32(42),
		"Int64Prop":  int64(100),
		"Uint32Prop": uint32(200),
		"JSONNumber": float64(8080),
		"StrNumber":  "53687091200",
		"NullProp":   nil,
	}

	if val, ok := row.Str("StringProp"); !ok || val != "value" {
		t.Errorf("Str = %q, ok=%v", val, ok)
	}
	if _, ok := row.Str("Missing"); ok {
		t.Error("expected ok=false for missing string")
	}
	if _, ok := row.Str("NullProp"); ok {
		t.Error("expected ok=false for null value")
	}

	if val, ok := row.Bool("BoolProp"); !ok || !val {
		t.Errorf("Bool = %v, ok=%v", val, ok)
	}

	if val, ok := row.Int("IntProp"); !ok || val != 42 {
		t.Errorf("Int(int32) = %d, ok=%v", val, ok)
	}
	if val, ok := row.Int("Int64Prop"); !ok || val != 100 {
		t.Errorf("Int(int64) = %d, ok=%v", val, ok)
	}
	if val, ok := row.Int("Uint32Prop"); !ok || val != 200 {
		t.Errorf("Int(uint32) = %d, ok=%v", val, ok)
	}
	if val, ok := row.Int("JSONNumber"); !ok || val != 8080 {
		t.Errorf("Int(float64) = %d, ok=%v", val, ok)
	}
	if val, ok := row.Int("StrNumber"); !ok || val != 53687091200 {
		t.Errorf("Int(string) = %d, ok=%v", val, ok)
	}
	if _, ok := row.Int("StringProp"); ok {
		t.Error("expected ok=false for non-numeric string")
	}
}

func TestParseCIMTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{
			name:  "dmtf with offset",
			input: "20240102150405.000000+060",
			want:  time.Date(2024, 1, 2, 15, 4, 5, 0, time.FixedZone("", 3600)),
			ok:    true,
		},
		{
			name:  "dmtf negative offset",
			input: "20240102150405.000000-300",
			want:  time.Date(2024, 1, 2, 15, 4, 5, 0, time.FixedZone("", -5*3600)),
			ok:    true,
		},
		{
			name:  "dmtf unknown offset",
			input: "20240102150405.000000+***",
			want:  time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "json epoch",
			input: "/Date(1704207845000)/",
			want:  time.UnixMilli(1704207845000).UTC(),
			ok:    true,
		},
		{
			name:  "short us date",
			input: "1/2/2024",
			want:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "iso date",
			input: "2024-01-02",
			want:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{name: "garbage", input: "not a date", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCIMTime(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRowTime(t *testing.T) {
	row := Row{"InstalledOn": "1/2/2024", "Junk": "nope"}

	if ts, ok := row.Time("InstalledOn"); !ok || ts.Year() != 2024 {
		t.Errorf("Time = %v, ok=%v", ts, ok)
	}
	if _, ok := row.Time("Junk"); ok {
		t.Error("expected ok=false for unparseable date")
	}
	if _, ok := row.Time("Missing"); ok {
		t.Error("expected ok=false for missing property")
	}
}

func TestLocalQueryOnNonWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping non-Windows test on Windows")
	}

	_, err := Local{}.Query(context.Background(), NamespaceCIMv2, "SELECT * FROM Win32_ComputerSystem")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}
