package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshy_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meshy_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	MessagesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshy_messages_saved_total",
		Help: "Messages persisted by the orchestrator",
	})

	TranslationRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshy_translation_requests_total",
		Help: "Translation requests dispatched to workers",
	})

	TranslationsReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshy_translations_received_total",
		Help: "Completed translations received from workers",
	})

	TranslationErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshy_translation_errors_total",
		Help: "Pipeline errors across translation and audio processing",
	})

	PoolFullRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshy_pool_full_rejections_total",
		Help: "Dispatches rejected because no worker was available",
	})

	TranslationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meshy_translation_duration_seconds",
		Help:    "Time from dispatch to completed translation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	TranslationCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshy_translation_cache_lookups_total",
		Help: "Translation cache lookups by result",
	}, []string{"result"})

	AudioJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshy_audio_jobs_total",
		Help: "Audio processing jobs by outcome",
	}, []string{"status"})

	WorkersConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meshy_workers_connected",
		Help: "Workers currently attached to the bus",
	}, []string{"kind"})

	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meshy_ws_clients_connected",
		Help: "Client websocket connections currently open",
	})
)
