package pshell

import (
	"encoding/base64"
	"testing"
)

func TestEncode(t *testing.T) {
	// "dir" as UTF-16LE base64 is the canonical -EncodedCommand example.
	if got := Encode("dir"); got != "ZABpAHIA" {
		t.Errorf("Encode(dir) = %q, want ZABpAHIA", got)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	script := "Get-CimInstance Win32_OperatingSystem | ConvertTo-Json"
	raw, err := base64.StdEncoding.DecodeString(Encode(script))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 2*len(script) {
		t.Fatalf("encoded length = %d, want %d", len(raw), 2*len(script))
	}
	for i := 0; i < len(script); i++ {
		if raw[2*i] != script[i] {
			t.Fatalf("byte %d = %#x, want %#x", 2*i, raw[2*i], script[i])
		}
		if raw[2*i+1] != 0 {
			t.Fatalf("high byte %d = %#x, want 0", 2*i+1, raw[2*i+1])
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	if got := Encode(""); got != "" {
		t.Errorf("Encode(\"\") = %q, want empty", got)
	}
}
