//go:build !windows

package pshell

import (
	"context"
	"fmt"
)

func runLocal(ctx context.Context, script string) (string, error) {
	return "", fmt.Errorf("local PowerShell only supported on Windows")
}
