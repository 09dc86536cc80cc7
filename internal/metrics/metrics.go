package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"IssueTriage/internal/domain"
)

// Metrics holds the pipeline counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// PostsTotal counts posts by terminal outcome
	PostsTotal *prometheus.CounterVec
	// ValidationsTotal counts schema checks by result
	ValidationsTotal *prometheus.CounterVec
	// RateLimitWaits counts calls that had to wait for a limiter slot
	RateLimitWaits prometheus.Counter
	// RateLimitRetries counts calls retried after a rate-limit rejection
	RateLimitRetries prometheus.Counter
}

// New registers all counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PostsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "issuetriage_posts_total",
				Help: "Total number of posts by outcome",
			},
			[]string{"outcome"},
		),
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "issuetriage_validations_total",
				Help: "Total number of schema validations by result",
			},
			[]string{"result"},
		),
		RateLimitWaits: factory.NewCounter(prometheus.CounterOpts{
			Name: "issuetriage_ratelimit_waits_total",
			Help: "Total number of completion calls delayed by the rate limiter",
		}),
		RateLimitRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "issuetriage_ratelimit_retries_total",
			Help: "Total number of completion calls retried after a rate-limit error",
		}),
	}
}

// PostOutcome records the terminal state of one post.
func (m *Metrics) PostOutcome(outcome domain.PostOutcome) {
	m.PostsTotal.WithLabelValues(string(outcome)).Inc()
}

// Validation records one schema check.
func (m *Metrics) Validation(ok bool) {
	result := "invalid"
	if ok {
		result = "valid"
	}
	m.ValidationsTotal.WithLabelValues(result).Inc()
}

// OnWait is a ratelimit.Options hook.
func (m *Metrics) OnWait(time.Duration) { m.RateLimitWaits.Inc() }

// OnRetry is a ratelimit.Options hook.
func (m *Metrics) OnRetry(error) { m.RateLimitRetries.Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("metrics listening", "addr", addr)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
