// Package metrics exports operation counters in Prometheus text format.
// Both the coordinator and each participant expose /_metrics built on the
// same low-level writers; the coordinator additionally keeps a Registry of
// named counters for transfer-level bookkeeping.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/mnohosten/transferd/pkg/concurrent"
)

// WriteCounter writes a single counter metric in Prometheus exposition
// format: HELP/TYPE comment lines followed by the sample.
func WriteCounter(w io.Writer, namespace, name, help string, value uint64) error {
	metric := namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", metric, help, metric, metric, value)
	return err
}

// WriteGauge writes a single gauge metric.
func WriteGauge(w io.Writer, namespace, name, help string, value float64) error {
	metric := namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", metric, help, metric, metric, value)
	return err
}

// WriteUptime writes the standard uptime_seconds gauge measured from since.
func WriteUptime(w io.Writer, namespace string, since time.Time) error {
	return WriteGauge(w, namespace, "uptime_seconds", "process uptime in seconds", time.Since(since).Seconds())
}

// Registry is a small set of named counters a service registers once at
// startup and increments from its handlers; WriteMetrics renders all of
// them sorted by name. It exists so the coordinator's transfer
// bookkeeping (started/committed/aborted/critical/retries) doesn't need a
// bespoke struct field per counter.
type Registry struct {
	mu        sync.Mutex
	namespace string
	startTime time.Time
	counters  map[string]*concurrent.Counter
	help      map[string]string
	order     []string
}

// NewRegistry creates an empty Registry under namespace.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace: namespace,
		startTime: time.Now(),
		counters:  make(map[string]*concurrent.Counter),
		help:      make(map[string]string),
	}
}

// Counter returns the named counter, registering it with help text on
// first use.
func (r *Registry) Counter(name, help string) *concurrent.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counters[name]
	if !ok {
		c = concurrent.NewCounter()
		r.counters[name] = c
		r.help[name] = help
		r.order = append(r.order, name)
	}
	return c
}

// WriteMetrics renders the uptime gauge followed by every registered
// counter, sorted by name for a stable scrape output.
func (r *Registry) WriteMetrics(w io.Writer) error {
	if err := WriteUptime(w, r.namespace, r.startTime); err != nil {
		return err
	}

	r.mu.Lock()
	names := append([]string(nil), r.order...)
	r.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		r.mu.Lock()
		c := r.counters[name]
		help := r.help[name]
		r.mu.Unlock()

		if err := WriteCounter(w, r.namespace, name, help, c.Load()); err != nil {
			return err
		}
	}
	return nil
}
