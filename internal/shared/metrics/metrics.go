// Package metrics keeps process-local counters for documents and ingestions
// and renders them in the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	ingestions = newCounterVec("docflow_ingestions_total",
		"Ingestion status transitions by resulting status", "status")

	documentOps = newCounterVec("docflow_document_operations_total",
		"Document operations by name and outcome", "op", "outcome")

	backgroundErrors atomic.Uint64
	pending          atomic.Int64

	// Trigger-to-terminal latency in milliseconds. The default delays put a
	// healthy ingestion at about five seconds.
	ingestionDuration = newHistogram([]float64{1000, 2500, 5000, 7500, 10000, 30000, 60000})
)

func IncIngestionTriggered() { ingestions.inc("queued") }
func IncIngestionCompleted() { ingestions.inc("completed") }
func IncIngestionFailed()    { ingestions.inc("failed") }

// IncIngestionBackgroundError counts scheduled writes that could not be applied.
func IncIngestionBackgroundError() { backgroundErrors.Add(1) }

// AddIngestionPending moves the scheduled-ingestions gauge by delta.
func AddIngestionPending(delta int64) { pending.Add(delta) }

// ObserveIngestionDurationMs records how long an ingestion took to settle.
func ObserveIngestionDurationMs(ms float64) { ingestionDuration.observe(max(ms, 0)) }

// ObserveDocumentOp counts one document operation. kind is "ok" on success
// and the error kind otherwise.
func ObserveDocumentOp(op, kind string) {
	if kind == "" {
		kind = "ok"
	}
	documentOps.inc(op, kind)
}

// Handler serves Render on GET /metrics.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(Render()))
	}
}

// Render writes every series in exposition format.
func Render() string {
	var b strings.Builder
	ingestions.write(&b)
	documentOps.write(&b)
	writeHeader(&b, "docflow_ingestion_background_errors_total", "Scheduled ingestion writes that failed", "counter")
	fmt.Fprintf(&b, "docflow_ingestion_background_errors_total %d\n", backgroundErrors.Load())
	writeHeader(&b, "docflow_ingestions_pending", "Ingestions scheduled and not yet settled", "gauge")
	fmt.Fprintf(&b, "docflow_ingestions_pending %d\n", pending.Load())
	ingestionDuration.write(&b, "docflow_ingestion_duration_ms", "Ingestion trigger to terminal status in milliseconds")
	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

type counterVec struct {
	name   string
	help   string
	labels []string

	mu     sync.Mutex
	values map[string]uint64
}

func newCounterVec(name, help string, labels ...string) *counterVec {
	return &counterVec{name: name, help: help, labels: labels, values: make(map[string]uint64)}
}

func (v *counterVec) inc(labelValues ...string) {
	pairs := make([]string, len(v.labels))
	for i, l := range v.labels {
		val := ""
		if i < len(labelValues) {
			val = labelValues[i]
		}
		pairs[i] = l + "=" + strconv.Quote(val)
	}
	key := "{" + strings.Join(pairs, ",") + "}"

	v.mu.Lock()
	v.values[key]++
	v.mu.Unlock()
}

func (v *counterVec) get(key string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.values[key]
}

func (v *counterVec) write(b *strings.Builder) {
	v.mu.Lock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	snapshot := make(map[string]uint64, len(keys))
	for _, k := range keys {
		snapshot[k] = v.values[k]
	}
	v.mu.Unlock()

	sort.Strings(keys)
	writeHeader(b, v.name, v.help, "counter")
	for _, k := range keys {
		fmt.Fprintf(b, "%s%s %d\n", v.name, k, snapshot[k])
	}
}

type histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64
	sum    float64
	total  uint64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{bounds: bounds, counts: make([]uint64, len(bounds))}
}

// observe files value under the first bound it fits; write accumulates.
func (h *histogram) observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total++
	h.sum += value
	if i := sort.SearchFloat64s(h.bounds, value); i < len(h.bounds) {
		h.counts[i]++
	}
}

func (h *histogram) cumulative() ([]uint64, float64, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]uint64, len(h.counts))
	var running uint64
	for i, c := range h.counts {
		running += c
		out[i] = running
	}
	return out, h.sum, h.total
}

func (h *histogram) write(b *strings.Builder, name, help string) {
	counts, sum, total := h.cumulative()
	writeHeader(b, name, help, "histogram")
	for i, bound := range h.bounds {
		fmt.Fprintf(b, "%s_bucket{le=%q} %d\n", name, strconv.FormatFloat(bound, 'g', -1, 64), counts[i])
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", name, total)
	fmt.Fprintf(b, "%s_sum %s\n%s_count %d\n", name, strconv.FormatFloat(sum, 'g', -1, 64), name, total)
}
