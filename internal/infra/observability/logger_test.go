package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bankimport/fints-firefly-go/internal/infra/observability"
)

func serve(t *testing.T, logger *zap.Logger, path string, status int) {
	t.Helper()
	h := observability.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
}

func TestRequestLogger_SkipsHealthyProbes(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	serve(t, logger, "/healthz", http.StatusOK)
	if logs.Len() != 0 {
		t.Fatalf("expected no log lines for a healthy probe, got %d", logs.Len())
	}

	serve(t, logger, "/healthz", http.StatusInternalServerError)
	if logs.Len() != 1 {
		t.Fatalf("expected a failing probe to be logged, got %d lines", logs.Len())
	}
	if logs.All()[0].Level != zap.ErrorLevel {
		t.Errorf("expected error level for a 5xx, got %s", logs.All()[0].Level)
	}
}

func TestRequestLogger_RecordsRequestFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	serve(t, logger, "/v1/import", http.StatusOK)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/v1/import" {
		t.Errorf("expected path field, got %v", fields["path"])
	}
	if fields["status"] != int64(http.StatusOK) {
		t.Errorf("expected status field, got %v", fields["status"])
	}
}
