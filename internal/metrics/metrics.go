// Package metrics exposes Prometheus counters for the intake engine.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesentry_executions_total",
			Help: "Total number of executions by terminal status",
		},
		[]string{"configuration", "status"},
	)

	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filesentry_execution_duration_seconds",
			Help:    "Time spent running one configuration check",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"configuration"},
	)

	FilesDiscoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesentry_files_discovered_total",
			Help: "Total number of newly discovered files",
		},
		[]string{"configuration"},
	)

	FilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesentry_files_processed_total",
			Help: "Total number of files fetched and checksummed",
		},
		[]string{"configuration"},
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesentry_retries_total",
			Help: "Total number of retried remote calls",
		},
		[]string{"configuration"},
	)

	ActiveConfigurations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filesentry_active_configurations",
			Help: "Number of active configurations in the scheduler cache",
		},
	)

	ScheduledFiresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filesentry_scheduled_fires_total",
			Help: "Total number of cron fire times the scheduler dispatched",
		},
	)
)

// RecordExecution records the terminal outcome of one execution.
func RecordExecution(configurationID, status string, duration time.Duration) {
	ExecutionsTotal.WithLabelValues(configurationID, status).Inc()
	ExecutionDuration.WithLabelValues(configurationID).Observe(duration.Seconds())
}

// Serve runs the /metrics listener until the context is cancelled.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("Metrics listener starting")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
