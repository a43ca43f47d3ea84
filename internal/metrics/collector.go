// Package metrics is a small Prometheus-compatible collector. It renders the
// text exposition format directly.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide registry.
var Collector = NewRegistry()

// Registry holds counters, gauges and histograms keyed by name and labels.
type Registry struct {
	counters   sync.Map // series key -> *Counter
	gauges     sync.Map // series key -> *Gauge
	histograms sync.Map // series key -> *Histogram
	startTime  time.Time
}

func NewRegistry() *Registry {
	return &Registry{startTime: time.Now()}
}

// Uptime returns how long the registry has existed.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startTime)
}

// desc identifies one series.
type desc struct {
	name   string
	help   string
	labels string
}

func (d desc) key() string { return d.name + "{" + d.labels + "}" }

func (d desc) describe() desc { return d }

// Counter only goes up.
type Counter struct {
	desc
	value atomic.Int64
}

func (c *Counter) Inc() { c.value.Add(1) }

func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge holds the latest value set.
type Gauge struct {
	desc
	value atomic.Int64
}

func (g *Gauge) Set(v int64) { g.value.Store(v) }

func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	desc
	bounds []float64

	mu     sync.Mutex
	counts []int64
	count  int64
	sum    float64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

// Counter returns the counter for name and labels, creating it on first use.
func (r *Registry) Counter(name, help, labels string) *Counter {
	d := desc{name, help, labels}
	v, _ := r.counters.LoadOrStore(d.key(), &Counter{desc: d})
	return v.(*Counter)
}

// Gauge returns the gauge for name and labels, creating it on first use.
func (r *Registry) Gauge(name, help, labels string) *Gauge {
	d := desc{name, help, labels}
	v, _ := r.gauges.LoadOrStore(d.key(), &Gauge{desc: d})
	return v.(*Gauge)
}

// Histogram returns the histogram for name and labels. Buckets are only used
// when the histogram is created.
func (r *Registry) Histogram(name, help, labels string, buckets []float64) *Histogram {
	d := desc{name, help, labels}
	if v, ok := r.histograms.Load(d.key()); ok {
		return v.(*Histogram)
	}
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)
	v, _ := r.histograms.LoadOrStore(d.key(), &Histogram{desc: d, bounds: bounds, counts: make([]int64, len(bounds))})
	return v.(*Histogram)
}

// Handler serves Render over HTTP.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, r.Render())
	}
}

// Render returns every series in the text exposition format, sorted by name
// and labels, with one HELP/TYPE header per metric name.
func (r *Registry) Render() string {
	var sb strings.Builder

	writeHeader(&sb, "captionbot_uptime_seconds", "Time since start in seconds", "gauge")
	fmt.Fprintf(&sb, "captionbot_uptime_seconds %d\n", int64(r.Uptime().Seconds()))

	last := ""
	for _, c := range sorted[*Counter](&r.counters) {
		last = header(&sb, last, c.desc, "counter")
		fmt.Fprintf(&sb, "%s %d\n", series(c.name, c.labels), c.Value())
	}

	last = ""
	for _, g := range sorted[*Gauge](&r.gauges) {
		last = header(&sb, last, g.desc, "gauge")
		fmt.Fprintf(&sb, "%s %d\n", series(g.name, g.labels), g.Value())
	}

	last = ""
	for _, h := range sorted[*Histogram](&r.histograms) {
		last = header(&sb, last, h.desc, "histogram")
		h.mu.Lock()
		for i, le := range h.bounds {
			if math.IsInf(le, 1) {
				continue
			}
			fmt.Fprintf(&sb, "%s %d\n", series(h.name+"_bucket", joinLabels(h.labels, fmt.Sprintf(`le="%g"`, le))), h.counts[i])
		}
		fmt.Fprintf(&sb, "%s %d\n", series(h.name+"_bucket", joinLabels(h.labels, `le="+Inf"`)), h.count)
		fmt.Fprintf(&sb, "%s %d\n", series(h.name+"_count", h.labels), h.count)
		fmt.Fprintf(&sb, "%s %f\n", series(h.name+"_sum", h.labels), h.sum)
		h.mu.Unlock()
	}
	return sb.String()
}

func sorted[T interface{ describe() desc }](m *sync.Map) []T {
	var out []T
	m.Range(func(_, v any) bool {
		out = append(out, v.(T))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].describe(), out[j].describe()
		return a.name+a.labels < b.name+b.labels
	})
	return out
}

// header writes HELP/TYPE when d starts a new metric name and returns the
// name to compare against next.
func header(sb *strings.Builder, last string, d desc, typ string) string {
	if d.name != last {
		writeHeader(sb, d.name, d.help, typ)
	}
	return d.name
}

func writeHeader(sb *strings.Builder, name, help, typ string) {
	fmt.Fprintf(sb, "# HELP %s %s\n", name, help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", name, typ)
}

func series(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

func joinLabels(a, b string) string {
	if a == "" {
		return b
	}
	return a + "," + b
}

var (
	PhotosCaptioned = Collector.Counter("captionbot_photos_captioned_total", "Captioned replies published", "")
	PipelineRuns    = Collector.Counter("captionbot_pipeline_runs_total", "Captioning pipeline invocations", "")
	DuplicatesSkip  = Collector.Counter("captionbot_duplicates_skipped_total", "Photos skipped because a reply already exists", "")
	Muted           = Collector.Gauge("captionbot_muted", "1 while the bot is muted", "")

	RenderLatency = Collector.Histogram("captionbot_render_latency_seconds", "Caption render latency in seconds", "",
		[]float64{0.5, 1, 2, 5, 10, 30, 60})
)

// Event returns the counter for events of the given kind.
func Event(kind string) *Counter {
	return Collector.Counter("captionbot_events_total", "Events received by kind", label("kind", kind))
}

// Failure returns the counter for failures at the given pipeline stage.
func Failure(stage string) *Counter {
	return Collector.Counter("captionbot_failures_total", "Failures by stage", label("stage", stage))
}

// Command returns the counter for executed commands with the given name.
func Command(name string) *Counter {
	return Collector.Counter("captionbot_commands_total", "Commands executed by name", label("command", name))
}

func label(k, v string) string {
	return k + `="` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(v) + `"`
}
