package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"service":"insight"`)

	buf.Reset()
	logger, err = NewLogger(LogConfig{}, &buf)
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "msg=kept")

	_, err = NewLogger(LogConfig{Level: "loud"}, nil)
	assert.ErrorContains(t, err, "invalid log level")
	_, err = NewLogger(LogConfig{Format: "xml"}, nil)
	assert.ErrorContains(t, err, "invalid log format")
}

func TestTraceMiddleware(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(traceHeader, "trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "trace-1", seen)
	assert.Equal(t, "trace-1", rr.Header().Get(traceHeader))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(traceHeader))
}

func TestTraceIDContextHelpers(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
	assert.Equal(t, "abc123", TraceIDFromContext(ContextWithTraceID(context.Background(), "abc123")))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "ok")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Contains(t, buf.String(), `"status":202`)
	assert.Contains(t, buf.String(), `"bytes":2`)
}

func TestMetrics_Middleware(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/reports/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/reports/"+id, nil))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/v1/reports/{id}", "404")), 0)
}

func TestMetrics_Domain(t *testing.T) {
	m := NewMetrics()
	m.ObserveQuery("ok")
	m.ObserveQuery("ok")
	m.ObserveStage("execute", 20*time.Millisecond)
	m.AddScriptSteps(150)
	m.SetDatasetRows(42)

	assert.InDelta(t, 2, testutil.ToFloat64(m.queriesTotal.WithLabelValues("ok")), 0)
	assert.InDelta(t, 150, testutil.ToFloat64(m.scriptStepsTotal), 0)
	assert.InDelta(t, 42, testutil.ToFloat64(m.datasetRows), 0)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rr.Body.String(), "insight_query_stage_duration_seconds_bucket"))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.ObserveQuery("ok")
		nilMetrics.ObserveStage("x", time.Second)
		nilMetrics.AddScriptSteps(1)
		nilMetrics.SetDatasetRows(1)
	})
}
