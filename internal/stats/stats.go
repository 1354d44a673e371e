// Package stats keeps the orchestrator's process-local counters. The same
// increments feed the Prometheus collectors so /metrics and the stats
// endpoint never disagree.
package stats

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/meshychat/meshy/internal/metrics"
)

// Stats accumulates monotonic pipeline counters for one process.
type Stats struct {
	startedAt time.Time

	messagesSaved        atomic.Int64
	requestsSent         atomic.Int64
	translationsReceived atomic.Int64
	errors               atomic.Int64
	poolFullRejections   atomic.Int64
	processingMsTotal    atomic.Int64
}

// Snapshot is a point-in-time view of the counters, shaped for the stats
// endpoint.
type Snapshot struct {
	MessagesSaved        int64   `json:"messagesSaved"`
	RequestsSent         int64   `json:"requestsSent"`
	TranslationsReceived int64   `json:"translationsReceived"`
	Errors               int64   `json:"errors"`
	PoolFullRejections   int64   `json:"poolFullRejections"`
	AvgProcessingTimeMs  float64 `json:"avgProcessingTime"`
	UptimeSeconds        float64 `json:"uptimeSeconds"`
	MemoryUsageMB        float64 `json:"memoryUsageMB"`
}

func New() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) IncMessagesSaved() {
	s.messagesSaved.Add(1)
	metrics.MessagesSavedTotal.Inc()
}

func (s *Stats) IncRequestsSent() {
	s.requestsSent.Add(1)
	metrics.TranslationRequestsTotal.Inc()
}

// ObserveTranslation records one completed translation and the time it took
// from dispatch to completion.
func (s *Stats) ObserveTranslation(d time.Duration) {
	s.translationsReceived.Add(1)
	s.processingMsTotal.Add(d.Milliseconds())
	metrics.TranslationsReceivedTotal.Inc()
	metrics.TranslationDuration.Observe(d.Seconds())
}

func (s *Stats) IncErrors() {
	s.errors.Add(1)
	metrics.TranslationErrorsTotal.Inc()
}

func (s *Stats) IncPoolFullRejections() {
	s.poolFullRejections.Add(1)
	metrics.PoolFullRejectionsTotal.Inc()
}

func (s *Stats) Snapshot() Snapshot {
	received := s.translationsReceived.Load()
	var avg float64
	if received > 0 {
		avg = float64(s.processingMsTotal.Load()) / float64(received)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Snapshot{
		MessagesSaved:        s.messagesSaved.Load(),
		RequestsSent:         s.requestsSent.Load(),
		TranslationsReceived: received,
		Errors:               s.errors.Load(),
		PoolFullRejections:   s.poolFullRejections.Load(),
		AvgProcessingTimeMs:  avg,
		UptimeSeconds:        time.Since(s.startedAt).Seconds(),
		MemoryUsageMB:        float64(mem.Alloc) / 1024 / 1024,
	}
}
