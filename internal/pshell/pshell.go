// Package pshell runs PowerShell scripts on the local host or through a
// pluggable remote transport.
package pshell

import (
	"context"
	"encoding/base64"
)

// Runner executes a PowerShell script and returns its stdout.
type Runner interface {
	Run(ctx context.Context, script string) (string, error)
}

// Local runs scripts with the host's own powershell.exe. It only works on
// Windows; elsewhere Run returns an error.
type Local struct{}

// Run executes the script via -EncodedCommand and returns trimmed stdout.
func (Local) Run(ctx context.Context, script string) (string, error) {
	return runLocal(ctx, script)
}

// Encode converts a script to the UTF-16LE base64 form PowerShell's
// -EncodedCommand parameter expects.
func Encode(script string) string {
	utf16 := make([]byte, len(script)*2)
	for i, c := range []byte(script) {
		utf16[i*2] = c
		utf16[i*2+1] = 0
	}
	return base64.StdEncoding.EncodeToString(utf16)
}
