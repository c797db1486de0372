package snapshot

import (
	"fmt"
	"strings"

	"github.com/osiriscare/winaudit/internal/report"
)

const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
	ChangeChanged = "changed"
)

// Change is one difference between two runs of the same report.
type Change struct {
	Kind   string
	Key    string
	Column string // set for changed cells only
	Before string
	After  string
}

// Diff compares two runs of a report. Rows are matched by keyColumn;
// an empty keyColumn uses the report's first column. Rows whose key is
// empty fall back to the whole row as the key. When several rows share
// a key the last one wins.
//
// Added and changed rows come out in the newer report's order, removed
// rows in the older report's order.
func Diff(older, newer *report.Report, keyColumn string) []Change {
	if keyColumn == "" && len(newer.Columns) > 0 {
		keyColumn = newer.Columns[0]
	}

	oldIndex := indexRows(older, keyColumn)
	newIndex := indexRows(newer, keyColumn)

	var changes []Change

	seen := make(map[string]bool)
	for _, row := range newer.Rows {
		key := rowKey(row, keyColumn, newer.Columns)
		if seen[key] {
			continue
		}
		seen[key] = true

		oldRow, existed := oldIndex[key]
		if !existed {
			changes = append(changes, Change{
				Kind:  ChangeAdded,
				Key:   key,
				After: renderRow(newIndex[key], newer.Columns),
			})
			continue
		}
		for _, col := range newer.Columns {
			if oldRow[col] != newIndex[key][col] {
				changes = append(changes, Change{
					Kind:   ChangeChanged,
					Key:    key,
					Column: col,
					Before: oldRow[col],
					After:  newIndex[key][col],
				})
			}
		}
	}

	seen = make(map[string]bool)
	for _, row := range older.Rows {
		key := rowKey(row, keyColumn, older.Columns)
		if seen[key] {
			continue
		}
		seen[key] = true

		if _, stillThere := newIndex[key]; !stillThere {
			changes = append(changes, Change{
				Kind:   ChangeRemoved,
				Key:    key,
				Before: renderRow(oldIndex[key], older.Columns),
			})
		}
	}

	return changes
}

// ToReport renders a change list as a report so it can reuse the
// normal output formats.
func ToReport(name, host string, changes []Change) *report.Report {
	rep := report.New(name, host, "Change", "Key", "Column", "Before", "After")
	for _, c := range changes {
		rep.AddRow(report.Row{
			"Change": c.Kind,
			"Key":    c.Key,
			"Column": c.Column,
			"Before": c.Before,
			"After":  c.After,
		})
	}
	return rep
}

func indexRows(rep *report.Report, keyColumn string) map[string]report.Row {
	index := make(map[string]report.Row, len(rep.Rows))
	for _, row := range rep.Rows {
		index[rowKey(row, keyColumn, rep.Columns)] = row
	}
	return index
}

func rowKey(row report.Row, keyColumn string, columns []string) string {
	if key := row[keyColumn]; key != "" {
		return key
	}
	return renderRow(row, columns)
}

func renderRow(row report.Row, columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		if row[col] == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", col, row[col]))
	}
	return strings.Join(parts, ", ")
}
