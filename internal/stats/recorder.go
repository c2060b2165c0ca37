// Package stats aggregates request outcomes for run summaries.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/wirehttp/wirehttp/pkg/protocol"
)

const (
	minLatency = int64(time.Microsecond)
	maxLatency = int64(60 * time.Second)
)

// Recorder collects latencies in an HDR histogram together with status and
// error counts. It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	started   time.Time
	total     int64
	errors    int64
	statuses  map[int]int64
	errKinds  map[string]int64
	bytesRead int64
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		hist:     hdrhistogram.New(minLatency, maxLatency, 3),
		started:  time.Now(),
		statuses: make(map[int]int64),
		errKinds: make(map[string]int64),
	}
}

// Record adds one request outcome. A nil err with a 4xx or 5xx response is
// counted as an error as well.
func (r *Recorder) Record(resp *protocol.Response, err error, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	r.hist.RecordValue(clamp(int64(latency)))

	if err != nil {
		r.errors++
		r.errKinds[protocol.KindOf(err).String()]++
		return
	}

	r.statuses[resp.StatusCode]++
	r.bytesRead += int64(len(resp.Body))
	if resp.IsClientError() || resp.IsServerError() {
		r.errors++
	}
}

func clamp(v int64) int64 {
	if v < minLatency {
		return minLatency
	}
	if v > maxLatency {
		return maxLatency
	}
	return v
}

// Snapshot is a point-in-time view of the recorder.
type Snapshot struct {
	TotalRequests int64
	TotalErrors   int64
	ErrorRate     float64 // percent
	BytesRead     int64
	Elapsed       time.Duration
	AvgLatency    time.Duration
	P50Latency    time.Duration
	P95Latency    time.Duration
	P99Latency    time.Duration
	MaxLatency    time.Duration
	Statuses      map[int]int64
	ErrorKinds    map[string]int64
}

// RPS returns the average request rate over the elapsed time.
func (s Snapshot) RPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.TotalRequests) / s.Elapsed.Seconds()
}

// Snapshot returns the current totals and percentiles.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		TotalRequests: r.total,
		TotalErrors:   r.errors,
		BytesRead:     r.bytesRead,
		Elapsed:       time.Since(r.started),
		Statuses:      make(map[int]int64, len(r.statuses)),
		ErrorKinds:    make(map[string]int64, len(r.errKinds)),
	}
	for k, v := range r.statuses {
		s.Statuses[k] = v
	}
	for k, v := range r.errKinds {
		s.ErrorKinds[k] = v
	}

	if r.total == 0 {
		return s
	}

	s.ErrorRate = float64(r.errors) / float64(r.total) * 100
	s.AvgLatency = time.Duration(r.hist.Mean())
	s.P50Latency = time.Duration(r.hist.ValueAtQuantile(50))
	s.P95Latency = time.Duration(r.hist.ValueAtQuantile(95))
	s.P99Latency = time.Duration(r.hist.ValueAtQuantile(99))
	s.MaxLatency = time.Duration(r.hist.Max())

	return s
}

// Reset clears all collected data.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hist.Reset()
	r.started = time.Now()
	r.total = 0
	r.errors = 0
	r.bytesRead = 0
	r.statuses = make(map[int]int64)
	r.errKinds = make(map[string]int64)
}

// Summary renders the snapshot as a single key=value line prefixed with
// SUMMARY:, suitable for logs.
func (s Snapshot) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SUMMARY: requests=%d errors=%d error_rate=%.2f%% rps=%.1f avg=%s p50=%s p95=%s p99=%s max=%s",
		s.TotalRequests, s.TotalErrors, s.ErrorRate, s.RPS(),
		round(s.AvgLatency), round(s.P50Latency), round(s.P95Latency), round(s.P99Latency), round(s.MaxLatency))

	codes := make([]int, 0, len(s.Statuses))
	for code := range s.Statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(&b, " status_%d=%d", code, s.Statuses[code])
	}

	kinds := make([]string, 0, len(s.ErrorKinds))
	for kind := range s.ErrorKinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(&b, " err_%s=%d", kind, s.ErrorKinds[kind])
	}

	return b.String()
}

// ParseSummary splits a SUMMARY line back into ordered key/value pairs. Text
// before the SUMMARY: marker is ignored.
func ParseSummary(line string) ([][2]string, bool) {
	idx := strings.Index(line, "SUMMARY:")
	if idx < 0 {
		return nil, false
	}

	var pairs [][2]string
	for _, part := range strings.Fields(line[idx+len("SUMMARY:"):]) {
		k, v, ok := strings.Cut(part, "=")
		if ok {
			pairs = append(pairs, [2]string{k, v})
		}
	}
	return pairs, true
}

func round(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond)
	default:
		return d.Round(time.Microsecond)
	}
}
