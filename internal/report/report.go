// Package report defines the tabular report model and the collector
// registry that runs report collectors against a target host.
package report

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/osiriscare/winaudit/internal/pshell"
	"github.com/osiriscare/winaudit/internal/wql"
)

// Row is one report line, keyed by column name. Missing columns render
// as empty cells.
type Row map[string]string

// Report is the flattened output of one collector run.
type Report struct {
	Name        string    `json:"report"`
	Host        string    `json:"host"`
	CollectedAt time.Time `json:"collected_at"`
	Columns     []string  `json:"columns"`
	Rows        []Row     `json:"rows"`
}

// New creates an empty report with a fixed column order.
func New(name, host string, columns ...string) *Report {
	return &Report{
		Name:        name,
		Host:        host,
		CollectedAt: time.Now().UTC(),
		Columns:     columns,
	}
}

// AddRow appends a row.
func (r *Report) AddRow(row Row) {
	r.Rows = append(r.Rows, row)
}

// Len returns the row count.
func (r *Report) Len() int {
	return len(r.Rows)
}

// Sort orders rows by the given column, ascending, keeping equal rows in
// their original order.
func (r *Report) Sort(column string) {
	sort.SliceStable(r.Rows, func(i, j int) bool {
		return r.Rows[i][column] < r.Rows[j][column]
	})
}

// Source carries the query plumbing a collector needs for one target.
// Remote selects the PowerShell-backed paths; otherwise collectors may
// use local OS facilities directly.
type Source struct {
	Host   string
	Remote bool
	WQL    wql.Querier
	Shell  pshell.Runner
}

// Collector produces one report from a source.
type Collector interface {
	Name() string
	Synopsis() string
	Collect(ctx context.Context, src *Source) (*Report, error)
}

// Result pairs a collector's report with its error for concurrent runs.
type Result struct {
	Collector string
	Report    *Report
	Err       error
	Elapsed   time.Duration
}

// Registry manages the available collectors.
type Registry struct {
	collectors map[string]Collector
	order      []string
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: make(map[string]Collector)}
}

// Register adds a collector. Re-registering a name replaces the collector
// but keeps its original position.
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collectors[c.Name()]; !ok {
		r.order = append(r.order, c.Name())
	}
	r.collectors[c.Name()] = c
}

// Get returns a collector by name.
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[name]
	return c, ok
}

// Names lists registered collectors in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// RunAll executes every registered collector concurrently against src and
// returns results in registration order.
func (r *Registry) RunAll(ctx context.Context, src *Source) []Result {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	collectors := make([]Collector, 0, len(names))
	for _, name := range names {
		collectors = append(collectors, r.collectors[name])
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	resultChan := make(chan Result, len(collectors))

	for _, c := range collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			start := time.Now()
			rep, err := c.Collect(ctx, src)
			resultChan <- Result{
				Collector: c.Name(),
				Report:    rep,
				Err:       err,
				Elapsed:   time.Since(start),
			}
		}(c)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	byName := make(map[string]Result, len(collectors))
	for res := range resultChan {
		byName[res.Collector] = res
	}

	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, byName[name])
	}
	return results
}

// Hostname labels local reports; falls back when the OS call fails.
func Hostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
