package statsd

import (
	"strconv"
	"sync"
	"time"
)

// Recorder is an in-memory Sink that keeps every emitted metric. Used by tests and by the
// one-shot CLI, which has no agent to talk to.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Metric{Name: name, Value: strconv.FormatInt(value, 10), Kind: "c", Tags: cleanTags(tags)})
}

func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Metric{Name: name, Value: formatFloat(value), Kind: "g", Tags: cleanTags(tags)})
}

func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Metric{Name: name, Value: formatFloat(float64(value) / float64(time.Millisecond)), Kind: "ms", Tags: cleanTags(tags)})
}

func (r *Recorder) add(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

// Metrics returns a snapshot of everything recorded so far.
func (r *Recorder) Metrics() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Metric(nil), r.metrics...)
}

// Named returns the recorded metrics with the given name.
func (r *Recorder) Named(name string) []Metric {
	var out []Metric
	for _, m := range r.Metrics() {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
