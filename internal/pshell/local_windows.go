//go:build windows

package pshell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func runLocal(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "powershell.exe",
		"-NoProfile", "-NonInteractive", "-EncodedCommand", Encode(script))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("powershell: %w: %s", err, msg)
		}
		return "", fmt.Errorf("powershell: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
