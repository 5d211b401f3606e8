package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newHealthTestServer(pingers ...Pinger) *Server {
	return &Server{
		cfg:     &Config{},
		log:     slog.Default(),
		pingers: pingers,
	}
}

func TestHandleHealth_AlwaysOK(t *testing.T) {
	t.Parallel()

	s := newHealthTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestHandleReady_NoPingers(t *testing.T) {
	t.Parallel()

	s := newHealthTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 in liveness-only mode, got %d", w.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Error("expected ready=true with no pingers")
	}
}

func TestHandleReady_AllHealthy(t *testing.T) {
	t.Parallel()

	s := newHealthTestServer(
		NewNamedPinger("qdrant", func(context.Context) error { return nil }),
		NewNamedPinger("ollama", func(context.Context) error { return nil }),
	)
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready || len(resp.Checks) != 2 {
		t.Errorf("want ready with 2 checks, got %+v", resp)
	}
}

func TestHandleReady_OneUnhealthy(t *testing.T) {
	t.Parallel()

	s := newHealthTestServer(
		NewNamedPinger("qdrant", func(context.Context) error { return nil }),
		NewNamedPinger("ollama", func(context.Context) error { return fmt.Errorf("connection refused") }),
	)
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready {
		t.Error("expected ready=false")
	}
	if resp.Checks[0].OK != true || resp.Checks[1].OK != false {
		t.Errorf("per-check results wrong: %+v", resp.Checks)
	}
	if resp.Checks[1].Error == "" {
		t.Error("failing check should carry an error message")
	}
}
