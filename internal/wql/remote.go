package wql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/osiriscare/winaudit/internal/pshell"
)

// Remote executes WQL on another host by wrapping Get-CimInstance in a
// PowerShell round trip over any Runner transport.
type Remote struct {
	shell pshell.Runner
}

// NewRemote returns a Querier backed by the given shell runner.
func NewRemote(shell pshell.Runner) *Remote {
	return &Remote{shell: shell}
}

// Query ships the WQL to the target and decodes the JSON rows it prints.
func (r *Remote) Query(ctx context.Context, namespace, query string) ([]Row, error) {
	out, err := r.shell.Run(ctx, buildCimScript(namespace, query))
	if err != nil {
		return nil, fmt.Errorf("remote query: %w", err)
	}
	rows, err := decodeRows(out)
	if err != nil {
		return nil, fmt.Errorf("decode remote query output: %w", err)
	}
	return rows, nil
}

// buildCimScript produces PowerShell that runs one WQL query and prints
// the rows as compact JSON. Output is trimmed to the selected columns so
// CIM metadata stays off the wire.
func buildCimScript(namespace, query string) string {
	var b strings.Builder
	b.WriteString("$ErrorActionPreference = 'Stop'\n")
	fmt.Fprintf(&b, "$rows = @(Get-CimInstance -Namespace %s -Query %s)\n",
		psQuote(namespace), psQuote(query))
	if cols := selectColumns(query); len(cols) > 0 {
		fmt.Fprintf(&b, "$rows = @($rows | Select-Object %s)\n", strings.Join(cols, ", "))
	} else {
		b.WriteString("$rows = @($rows | Select-Object -Property * -ExcludeProperty Cim*, PSComputerName)\n")
	}
	b.WriteString("if ($rows.Count -eq 0) { '[]' } else { ConvertTo-Json -InputObject $rows -Compress -Depth 4 }\n")
	return b.String()
}

// selectColumns pulls the explicit column list out of a WQL statement.
// Returns nil for SELECT *.
func selectColumns(query string) []string {
	upper := strings.ToUpper(query)
	end := strings.Index(upper, " FROM ")
	if !strings.HasPrefix(upper, "SELECT ") || end < 0 {
		return nil
	}
	list := query[len("SELECT "):end]
	if strings.TrimSpace(list) == "*" {
		return nil
	}
	var cols []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// psQuote single-quotes a string for PowerShell, doubling embedded quotes.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// decodeRows tolerates both shapes ConvertTo-Json emits: an array of
// objects, or a bare object when a single row came back.
func decodeRows(raw string) ([]Row, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if raw == "" || raw == "[]" || raw == "null" {
		return nil, nil
	}

	var rows []Row
	if err := json.Unmarshal([]byte(raw), &rows); err == nil {
		return rows, nil
	}

	var single Row
	if err := json.Unmarshal([]byte(raw), &single); err != nil {
		return nil, fmt.Errorf("unexpected output: %s", truncate(raw, 200))
	}
	return []Row{single}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
