// Package observability implements the scheduling core's operational
// surface (spec §7): a structured per-fire event sink built on
// zerolog, a bounded-retry wrapper for Transient errors, Prometheus
// counters/histograms, and a chi-routed health endpoint.
package observability

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
)

// EventSink records one structured event per job fire, skip, or
// failure (fields job, started_at, duration_ms, outcome, and error
// when the fire carried one), kept deliberately separate from the
// general-purpose logrus logger used elsewhere in this module.
type EventSink struct {
	log zerolog.Logger
}

// NewEventSink builds an EventSink writing structured JSON lines to w.
func NewEventSink(w io.Writer) *EventSink {
	return &EventSink{log: zerolog.New(w).With().Timestamp().Logger()}
}

// Observe implements scheduler.Observer, writing scheduler.Event as
// one structured log line. Failed fires are logged at error level,
// except a Cancelled one, which stays at info level. The health
// endpoint's counters are fed separately, by Health.Record.
func (s *EventSink) Observe(ev scheduler.Event) {
	entry := s.log.Info()
	if ev.Outcome == scheduler.OutcomeError && !coreerrors.IsCancelled(ev.Err) {
		entry = s.log.Error()
	}
	entry.
		Str("job", ev.Job).
		Time("started_at", ev.StartedAt).
		Dur("duration_ms", ev.Duration).
		Str("outcome", string(ev.Outcome))
	if ev.Err != nil {
		entry = entry.AnErr("error", ev.Err)
	}
	entry.Msg("job fire")
}

// Health aggregates rolling fire outcomes into a healthy/degraded
// verdict for the /health endpoint, plus the last error seen from
// each of the two subsystems a job fire can fail in (spec §7:
// "last-error details for the scheduler and the store").
type Health struct {
	mu sync.Mutex
	// window bounds how many of the most recent outcomes are
	// considered; older ones roll off.
	window           []bool
	size             int
	lastSchedulerErr error
	lastStoreErr     error
}

// NewHealth returns a Health tracker considering the most recent
// windowSize fire outcomes (0 selects a default of 50).
func NewHealth(windowSize int) *Health {
	if windowSize <= 0 {
		windowSize = 50
	}
	return &Health{size: windowSize}
}

// Record folds one scheduler.Event's outcome into the rolling window,
// and, on error, attributes it to the store or the scheduler so the
// health endpoint can report which subsystem last failed. A Transient
// error (internal/coreerrors) is recorded as the store's last error;
// any other error is recorded as the scheduler's.
func (h *Health) Record(ev scheduler.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ok := ev.Outcome != scheduler.OutcomeError
	h.window = append(h.window, ok)
	if len(h.window) > h.size {
		h.window = h.window[len(h.window)-h.size:]
	}
	if ev.Err != nil {
		if coreerrors.IsTransient(ev.Err) {
			h.lastStoreErr = ev.Err
		} else {
			h.lastSchedulerErr = ev.Err
		}
	}
}

// Status returns "degraded" if any of the rolling window's outcomes
// were errors, "healthy" otherwise (spec §7: "healthy when all
// counters are zero, degraded otherwise").
func (h *Health) Status() (status string, okCount, failCount int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	okCount, failCount = 0, 0
	for _, ok := range h.window {
		if ok {
			okCount++
		} else {
			failCount++
		}
	}
	if failCount > 0 {
		return "degraded", okCount, failCount
	}
	return "healthy", okCount, failCount
}

// LastErrors returns the last error recorded against the scheduler
// and the store, respectively (either may be nil).
func (h *Health) LastErrors() (schedulerErr, storeErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSchedulerErr, h.lastStoreErr
}

// Router returns a chi router exposing GET /health.
func (h *Health) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.handleHealth)
	return r
}

type healthBody struct {
	Status         string `json:"status"`
	OK             int    `json:"ok"`
	Fail           int    `json:"fail"`
	SchedulerError string `json:"scheduler_error,omitempty"`
	StoreError     string `json:"store_error,omitempty"`
}

func (h *Health) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, ok, fail := h.Status()
	schedErr, storeErr := h.LastErrors()
	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	body := healthBody{Status: status, OK: ok, Fail: fail}
	if schedErr != nil {
		body.SchedulerError = schedErr.Error()
	}
	if storeErr != nil {
		body.StoreError = storeErr.Error()
	}
	_ = json.NewEncoder(w).Encode(body)
}

// Metrics holds the Prometheus collectors the core exposes, grounded
// on the teacher's infrastructure/metrics package shape.
type Metrics struct {
	JobFiresTotal    *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	JobsInFlight     prometheus.Gauge
	RetentionDeleted *prometheus.CounterVec
}

// NewMetrics registers the core's collectors against registerer (pass
// prometheus.DefaultRegisterer in production, a fresh registry in
// tests).
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobFiresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_core_job_fires_total",
			Help: "Total job fires by job name and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduling_core_job_duration_seconds",
			Help:    "Job callback duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduling_core_jobs_in_flight",
			Help: "Number of job callbacks currently executing.",
		}),
		RetentionDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_core_retention_rows_deleted_total",
			Help: "Rows deleted by the retention sweeper, by table.",
		}, []string{"table"}),
	}
	registerer.MustRegister(m.JobFiresTotal, m.JobDuration, m.JobsInFlight, m.RetentionDeleted)
	return m
}

// Observe implements scheduler.Observer, recording fire counts and
// durations.
func (m *Metrics) Observe(ev scheduler.Event) {
	m.JobFiresTotal.WithLabelValues(ev.Job, string(ev.Outcome)).Inc()
	if ev.Outcome != scheduler.OutcomeSkippedOverlap {
		m.JobDuration.WithLabelValues(ev.Job).Observe(ev.Duration.Seconds())
	}
}

// MetricsHandler exposes the standard Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RetryConfig configures exponential backoff, grounded on the
// teacher's infrastructure/resilience.RetryConfig.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

// DefaultRetryConfig implements spec §7's "exponential backoff 1s→60s,
// ≤5 attempts".
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Retry runs fn up to cfg.MaxAttempts times with exponential backoff,
// but only retries errors coreerrors classifies as Transient — any
// other error returns immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !coreerrors.IsTransient(err) {
			return err
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(addJitter(delay, cfg.Jitter)):
			}
			delay = nextDelay(delay, cfg)
		}
	}
	return lastErr
}

func nextDelay(current time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.Multiplier)
	if next > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return next
}

func addJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	return d + time.Duration(rand.Float64()*delta*2-delta)
}
