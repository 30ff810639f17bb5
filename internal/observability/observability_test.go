package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
)

func TestEventSinkWritesOneJSONLinePerFire(t *testing.T) {
	var buf bytes.Buffer
	sink := NewEventSink(&buf)
	sink.Observe(scheduler.Event{Job: "checkin_u1", StartedAt: time.Now(), Duration: 5 * time.Millisecond, Outcome: scheduler.OutcomeOK})
	require.Contains(t, buf.String(), `"job":"checkin_u1"`)
	require.Contains(t, buf.String(), `"outcome":"ok"`)
}

func TestHealthReportsDegradedWhenWindowHasFailures(t *testing.T) {
	h := NewHealth(10)
	for i := 0; i < 3; i++ {
		h.Record(scheduler.Event{Outcome: scheduler.OutcomeOK})
	}
	for i := 0; i < 5; i++ {
		h.Record(scheduler.Event{Outcome: scheduler.OutcomeError})
	}
	status, ok, fail := h.Status()
	require.Equal(t, "degraded", status)
	require.Equal(t, 3, ok)
	require.Equal(t, 5, fail)
}

func TestHealthReportsHealthyByDefault(t *testing.T) {
	h := NewHealth(10)
	status, _, _ := h.Status()
	require.Equal(t, "healthy", status)
}

func TestHealthRouterServesHealthEndpoint(t *testing.T) {
	h := NewHealth(5)
	h.Record(scheduler.Event{Outcome: scheduler.OutcomeOK})
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestMetricsObserveIncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Observe(scheduler.Event{Job: "srs_morning_batch", Duration: 10 * time.Millisecond, Outcome: scheduler.OutcomeOK})

	mf, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mf)
}

func TestRetryStopsImmediatelyOnNonTransientError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return errors.New("permanent failure")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryRetriesTransientErrorsUpToMaxAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2, Jitter: 0}
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return coreerrors.NewTransient(errors.New("db unavailable"))
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2, Jitter: 0}
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return coreerrors.NewTransient(errors.New("db unavailable"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}
