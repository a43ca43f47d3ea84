package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRender_CountersGaugesHistograms(t *testing.T) {
	c := NewRegistry()
	for i := 0; i < 3; i++ {
		c.Counter("test_events_total", "Events", `kind="new_post"`).Inc()
	}
	c.Counter("test_events_total", "Events", `kind="direct_message"`).Inc()
	c.Gauge("test_muted", "Muted", "").Set(1)
	h := c.Histogram("test_latency_seconds", "Latency", "", []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(10)

	out := c.Render()
	for _, want := range []string{
		"# TYPE test_events_total counter",
		`test_events_total{kind="direct_message"} 1`,
		`test_events_total{kind="new_post"} 3`,
		"test_muted 1",
		`test_latency_seconds_bucket{le="1"} 1`,
		`test_latency_seconds_bucket{le="5"} 2`,
		`test_latency_seconds_bucket{le="+Inf"} 3`,
		"test_latency_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if n := strings.Count(out, "# HELP test_events_total"); n != 1 {
		t.Errorf("HELP for test_events_total written %d times", n)
	}
	if strings.Index(out, `kind="direct_message"`) > strings.Index(out, `kind="new_post"`) {
		t.Error("series should be sorted by labels")
	}
}

func TestCounterReuse(t *testing.T) {
	c := NewRegistry()
	a := c.Counter("x_total", "x", "")
	b := c.Counter("x_total", "x", "")
	if a != b {
		t.Fatal("same name and labels should return the same counter")
	}
}

func TestHistogramKeepsFirstBuckets(t *testing.T) {
	c := NewRegistry()
	buckets := []float64{5, 1}
	h := c.Histogram("b_seconds", "b", "", buckets)
	if c.Histogram("b_seconds", "b", "", []float64{100}) != h {
		t.Fatal("same name and labels should return the same histogram")
	}
	if buckets[0] != 5 {
		t.Error("caller's bucket slice was reordered")
	}
	h.Observe(2)
	out := c.Render()
	for _, want := range []string{`b_seconds_bucket{le="1"} 0`, `b_seconds_bucket{le="5"} 1`, `b_seconds_bucket{le="+Inf"} 1`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, `le="100"`) {
		t.Error("buckets passed after creation must be ignored")
	}
}

func TestLabelEscaping(t *testing.T) {
	if got := label("stage", `a"b`); got != `stage="a\"b"` {
		t.Errorf("label = %s", got)
	}
}

func TestHandler(t *testing.T) {
	c := NewRegistry()
	c.Counter("h_total", "h", "").Inc()
	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "h_total 1") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
