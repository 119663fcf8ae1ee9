package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-gateway/pkg/config"
)

func TestHealthHandler_Health_WithoutStats(t *testing.T) {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	handler := NewHealthHandler(cfg, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
	if response.Connections != nil {
		t.Error("expected nil connections when no stats provider is given")
	}
}

func TestHealthHandler_Health_WithConnectionManager(t *testing.T) {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:     5,
		MaxConnections: 10,
		PoolMaxConns:   10,
		PoolMinConns:   1,
	}, zap.NewNop())
	defer connMgr.Close()

	handler := NewHealthHandler(cfg, connMgr, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Connections == nil {
		t.Fatal("expected connection stats")
	}
	if response.Connections.MaxConnections != 10 {
		t.Errorf("expected max connections 10, got %d", response.Connections.MaxConnections)
	}
	if response.Connections.TTLMinutes != 5 {
		t.Errorf("expected TTL 5, got %d", response.Connections.TTLMinutes)
	}
	if response.Connections.TotalConnections != 0 {
		t.Errorf("expected no open pools, got %d", response.Connections.TotalConnections)
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{Version: "1.2.3", Env: "production"}
	handler := NewHealthHandler(cfg, nil, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response PingResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Version != "1.2.3" {
		t.Errorf("expected version '1.2.3', got '%s'", response.Version)
	}
	if response.Service != "ekaya-gateway" {
		t.Errorf("expected service 'ekaya-gateway', got '%s'", response.Service)
	}
	if response.Environment != "production" {
		t.Errorf("expected environment 'production', got '%s'", response.Environment)
	}
	if response.GoVersion != runtime.Version() {
		t.Errorf("expected go version %s, got %s", runtime.Version(), response.GoVersion)
	}
}

func TestHealthHandler_RejectsOtherMethods(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, nil, zap.NewNop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
