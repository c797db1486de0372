// Package wql executes WQL queries against the local WMI service or a
// remote Windows host.
//
// Local queries go through COM/OLE and require a Windows host; elsewhere
// they fail with ErrUnsupported. Remote queries wrap Get-CimInstance in a
// PowerShell round trip so any pshell.Runner transport works.
package wql

import (
	"context"
	"errors"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Namespaces used by the collectors.
const (
	NamespaceCIMv2    = `root\CIMV2`
	NamespaceStandard = `root\StandardCimv2`
)

// ErrUnsupported is returned for local queries on non-Windows hosts.
var ErrUnsupported = errors.New("WQL queries only supported on Windows")

// Row represents a single CIM instance as a map of property names to values.
type Row map[string]interface{}

// Querier executes WQL queries.
type Querier interface {
	Query(ctx context.Context, namespace, query string) ([]Row, error)
}

// Str extracts a string property.
func (r Row) Str(name string) (string, bool) {
	val, ok := r[name]
	if !ok || val == nil {
		return "", false
	}
	sval, ok := val.(string)
	return sval, ok
}

// Int extracts an integer property. It accepts the integer widths COM
// variants produce, the float64 that PowerShell JSON numbers decode to,
// and the decimal strings WMI hands back for CIM uint64 properties.
func (r Row) Int(name string) (int64, bool) {
	val, ok := r[name]
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Bool extracts a boolean property.
func (r Row) Bool(name string) (bool, bool) {
	val, ok := r[name]
	if !ok {
		return false, false
	}
	bval, ok := val.(bool)
	return bval, ok
}

// Time extracts and parses a datetime property.
func (r Row) Time(name string) (time.Time, bool) {
	s, ok := r.Str(name)
	if !ok {
		return time.Time{}, false
	}
	return ParseCIMTime(s)
}

// Local queries the host's own WMI service.
type Local struct{}

// Query executes one WQL query in the given namespace.
func (Local) Query(ctx context.Context, namespace, query string) ([]Row, error) {
	if runtime.GOOS != "windows" {
		return nil, ErrUnsupported
	}
	return queryLocal(ctx, namespace, query)
}

var jsonDateRe = regexp.MustCompile(`^/Date\((-?\d+)\)/$`)

// ParseCIMTime parses the datetime shapes WMI and PowerShell emit: DMTF
// (20240102150405.000000+060), the JSON epoch ConvertTo-Json produces
// (/Date(1704207845000)/), and the short US formats the update history
// stores InstalledOn in.
func ParseCIMTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := jsonDateRe.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	}

	if t, ok := parseDMTF(s); ok {
		return t, true
	}

	formats := []string{
		"1/2/2006",      // M/D/YYYY
		"01/02/2006",    // MM/DD/YYYY
		"2006-01-02",    // YYYY-MM-DD
		"1/2/2006 0:00", // with time
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// parseDMTF handles the CIM_DATETIME format yyyymmddHHMMSS.ffffff+UUU
// where UUU is the offset from UTC in minutes (or *** when unknown).
func parseDMTF(s string) (time.Time, bool) {
	if len(s) < 14 {
		return time.Time{}, false
	}
	base, err := time.Parse("20060102150405", s[:14])
	if err != nil {
		return time.Time{}, false
	}

	rest := s[14:]
	if i := strings.IndexAny(rest, "+-"); i >= 0 {
		if min, err := strconv.Atoi(rest[i+1:]); err == nil {
			offset := min * 60
			if rest[i] == '-' {
				offset = -offset
			}
			base = time.Date(base.Year(), base.Month(), base.Day(),
				base.Hour(), base.Minute(), base.Second(), 0, time.FixedZone("", offset))
		}
	}

	return base, true
}
