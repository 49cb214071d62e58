package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/internal/config"
	"github.com/healthgraph/radar/internal/platform/auth"
	"github.com/healthgraph/radar/internal/platform/events"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	a := &app{
		cfg: &config.Config{
			Env:                "development",
			JWTSecret:          "test-secret",
			TokenTTL:           time.Hour,
			CORSOrigins:        []string{"*"},
			AuthRateLimitRPS:   1,
			AuthRateLimitBurst: 10,
			MetricsEnabled:     true,
			SyntheticSeed:      42,
		},
		logger:    zerolog.Nop(),
		registry:  prometheus.NewRegistry(),
		publisher: events.Nop{},
		cache:     auth.NopSessionCache{},
	}
	a.buildServices()
	return a
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RegistersRoutes(t *testing.T) {
	e := newTestApp(t).router()

	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	want := []string{
		"GET /metrics",
		"GET /api/health",
		"GET /api/health/db",
		"POST /api/auth/login",
		"POST /api/auth/register",
		"POST /api/auth/logout",
		"POST /api/auth/refresh",
		"GET /api/auth/me",
		"GET /api/dashboard/metrics",
		"GET /api/dashboard/alerts",
		"GET /api/dashboard/systems-status",
		"GET /api/dashboard/quick-actions",
		"GET /api/dashboard/heatmap-data",
		"GET /api/dashboard/trends",
		"GET /api/dashboard/observations",
		"POST /api/dashboard/observations",
		"GET /api/patients",
		"POST /api/patients",
		"GET /api/patients/search",
		"GET /api/patients/:id",
		"PUT /api/patients/:id",
		"GET /api/patients/:id/timeline",
		"GET /api/patients/:id/recommendations",
		"GET /api/patients/:id/records",
		"POST /api/patients/:id/records",
		"GET /api/issues",
		"POST /api/issues",
		"GET /api/issues/metrics",
		"GET /api/issues/wizards",
		"GET /api/issues/history",
		"GET /api/issues/:id",
		"POST /api/issues/:id/start",
		"POST /api/issues/:id/resolve",
		"GET /api/integrations/systems",
		"POST /api/integrations/systems",
		"GET /api/integrations/systems/:id",
		"POST /api/integrations/systems/:id/test",
		"POST /api/integrations/systems/:id/sync",
		"GET /api/integrations/overview",
		"GET /api/integrations/logs",
		"GET /api/integrations/mapping",
		"GET /api/analytics/trends",
		"GET /api/analytics/departments",
		"GET /api/analytics/roi",
		"GET /api/analytics/reports",
		"POST /api/analytics/reports/:id/generate",
		"GET /api/analytics/kpis",
		"GET /api/analytics/charts/data-quality",
	}
	for _, route := range want {
		if !have[route] {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestRouter_Health(t *testing.T) {
	e := newTestApp(t).router()

	rec := serve(e, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status  string `json:"status"`
			Service string `json:"service"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data.Status != "healthy" || body.Data.Service != "healthgraph-radar" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	e := newTestApp(t).router()

	for _, target := range []string{"/api/patients", "/api/issues", "/api/dashboard/metrics", "/api/analytics/kpis", "/api/auth/me"} {
		rec := serve(e, http.MethodGet, target, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"authentication_error"`) {
			t.Errorf("%s: unexpected body %s", target, rec.Body.String())
		}
	}
}

func TestRouter_LoginValidatesBeforeTouchingStore(t *testing.T) {
	e := newTestApp(t).router()

	rec := serve(e, http.MethodPost, "/api/auth/login", `{"username":"","password":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	e := newTestApp(t).router()

	serve(e, http.MethodGet, "/api/health", "")
	rec := serve(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	out := rec.Body.String()
	for _, name := range []string{"radar_http_requests_total", "go_goroutines"} {
		if !strings.Contains(out, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	a := newTestApp(t)
	a.cfg.MetricsEnabled = false
	e := a.router()

	for _, r := range e.Routes() {
		if r.Path == "/metrics" {
			t.Fatal("metrics route registered while disabled")
		}
	}
}
