// Package export renders reports as CSV, JSON, or aligned text tables.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/osiriscare/winaudit/internal/report"
)

const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatTable = "table"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatTable, FormatCSV, FormatJSON}
}

// Write renders the report to w in the given format.
func Write(w io.Writer, rep *report.Report, format string) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rep)
	case FormatJSON:
		return WriteJSON(w, rep)
	case FormatTable, "":
		return WriteTable(w, rep)
	default:
		return fmt.Errorf("unknown format %q (supported: table, csv, json)", format)
	}
}

// WriteFile renders the report to path, creating parent directories as
// needed. An empty path writes to stdout.
func WriteFile(rep *report.Report, format, path string) error {
	if path == "" {
		return Write(os.Stdout, rep, format)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()

	buf := bufio.NewWriterSize(file, 64*1024)
	if err := Write(buf, rep, format); err != nil {
		return err
	}
	return buf.Flush()
}

// WriteCSV writes a header row of the report columns followed by one
// record per row. Cells missing from a row are written empty.
func WriteCSV(w io.Writer, rep *report.Report) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(rep.Columns); err != nil {
		return err
	}

	record := make([]string, len(rep.Columns))
	for _, row := range rep.Rows {
		for i, col := range rep.Columns {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the full report envelope as indented JSON.
func WriteJSON(w io.Writer, rep *report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteTable writes an aligned text table with a header row and a
// dashed underline.
func WriteTable(w io.Writer, rep *report.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	for i, col := range rep.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)

	for i, col := range rep.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, underline(len(col)))
	}
	fmt.Fprintln(tw)

	for _, row := range rep.Rows {
		for i, col := range rep.Columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, row[col])
		}
		fmt.Fprintln(tw)
	}

	return tw.Flush()
}

func underline(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

// Summary returns a one-line confirmation for a rendered report. Color
// is stripped automatically when stdout is not a terminal.
func Summary(rep *report.Report) string {
	return fmt.Sprintf("%s %s: %d rows from %s",
		color.GreenString("✓"), rep.Name, len(rep.Rows), rep.Host)
}
