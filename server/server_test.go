package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/runemaster/component"
	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/logger"
)

func TestConfig_ApplyDefaultsAndValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Port != 8080 || cfg.MaxBodySize != "1MB" || cfg.WriteTimeout != 300 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	for _, bad := range []Config{{Port: -1}, {Port: 70000}, {ReadTimeout: -1}, {WriteTimeout: -1}, {IdleTimeout: -1}} {
		if err := bad.Validate(); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}

func TestServer_StartStop(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Host: "127.0.0.1", Port: 0}
	cfg.ApplyDefaults()
	cfg.Port = 0

	s := New(cfg, logger.Nop())
	checker := func(context.Context) []component.Health {
		return []component.Health{{Name: "graphstore", Status: component.StatusDegraded}}
	}
	s.ApplyDefaults("runemaster", checker)
	s.GinEngine().GET("/ping", func(c *gin.Context) { RespondOK(c, "pong") })

	c := NewComponent(s)
	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Fatalf("health before start = %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = c.Stop(ctx) }()
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Fatalf("health after start = %s", h.Status)
	}

	base := fmt.Sprintf("http://%s", s.Addr())
	resp, err := http.Get(base + "/ping")
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != `{"data":"pong"}` {
		t.Fatalf("GET /ping = %d %s", resp.StatusCode, body)
	}

	resp, err = http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var health struct {
		Status string `json:"status"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health.Status != "degraded" {
		t.Fatalf("GET /health = %d %s", resp.StatusCode, health.Status)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestHealth_Unhealthy(t *testing.T) {
	s := New(Config{}, logger.Nop())
	s.RegisterDefaultEndpoints("runemaster", func(context.Context) []component.Health {
		return []component.Health{
			{Name: "storage", Status: component.StatusDegraded},
			{Name: "graphstore", Status: component.StatusUnhealthy, Message: "ping failed"},
		}
	})
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   errors.ErrorCode
	}{
		{"app error", errors.UnknownPipeline("p1"), http.StatusNotFound, errors.ErrCodeNotFound},
		{"wrapped app error", fmt.Errorf("load: %w", errors.MissingAttribute("p1_q", "query")), http.StatusBadRequest, errors.ErrCodeMissingAttribute},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, errors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			RespondWithError(c, tt.err)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			var body errors.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Fatalf("code = %s, want %s", body.Error.Code, tt.code)
			}
		})
	}
}
