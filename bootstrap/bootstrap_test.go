package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/runemaster/component"
	"github.com/kbukum/runemaster/config"
	"github.com/kbukum/runemaster/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	health   component.Health
	events   *[]string
}

func (m *mockComponent) Name() string { return m.name }

func (m *mockComponent) Start(context.Context) error {
	m.record("start:" + m.name)
	return m.startErr
}

func (m *mockComponent) Stop(context.Context) error {
	m.record("stop:" + m.name)
	return nil
}

func (m *mockComponent) Health(context.Context) component.Health {
	if m.health.Status == "" {
		return component.Health{Name: m.name, Status: component.StatusHealthy}
	}
	return m.health
}

func (m *mockComponent) record(e string) {
	if m.events != nil {
		*m.events = append(*m.events, e)
	}
}

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "runemaster", Version: "1.0.0"}}
	app, err := NewApp(cfg, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "runemaster" || app.Version != "1.0.0" {
		t.Fatalf("unexpected identity %s %s", app.Name, app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Fatalf("defaults not applied: %+v", app.Cfg.ServiceConfig)
	}
	if app.gracefulTimeout != DefaultGracefulTimeout {
		t.Fatalf("graceful timeout = %s", app.gracefulTimeout)
	}
	if app.Components == nil || app.Logger == nil {
		t.Fatal("registry and logger must be set")
	}
}

func TestNewApp_Validation(t *testing.T) {
	if _, err := NewApp(&testConfig{}); err == nil {
		t.Fatal("expected error for missing name")
	}
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "x", Environment: "moon"}}
	if _, err := NewApp(cfg); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app := newTestApp(t, WithGracefulTimeout(3*time.Second))
	if app.gracefulTimeout != 3*time.Second {
		t.Fatalf("graceful timeout = %s", app.gracefulTimeout)
	}
}

func TestRegisterComponentDuplicate(t *testing.T) {
	app := newTestApp(t)
	if err := app.RegisterComponent(&mockComponent{name: "storage"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := app.RegisterComponent(&mockComponent{name: "storage"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestRunTask_Lifecycle(t *testing.T) {
	var events []string
	app := newTestApp(t)
	for _, name := range []string{"storage", "graphstore"} {
		if err := app.RegisterComponent(&mockComponent{name: name, events: &events}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	hook := func(name string) Hook {
		return func(context.Context) error {
			events = append(events, name)
			return nil
		}
	}
	app.OnStart(hook("onStart"))
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		events = append(events, "configure:"+a.Cfg.Name)
		return nil
	})
	app.OnReady(hook("onReady"))
	app.OnStop(hook("onStop"))

	err := app.RunTask(context.Background(), func(context.Context) error {
		events = append(events, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask() error = %v", err)
	}
	want := []string{
		"start:storage", "start:graphstore",
		"onStart", "configure:runemaster", "onReady",
		"task",
		"onStop", "stop:graphstore", "stop:storage",
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestRunTask_TaskErrorStillStops(t *testing.T) {
	var events []string
	app := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "storage", events: &events})

	boom := fmt.Errorf("boom")
	err := app.RunTask(context.Background(), func(context.Context) error { return boom })
	if err != boom {
		t.Fatalf("RunTask() error = %v, want boom", err)
	}
	if diff := cmp.Diff([]string{"start:storage", "stop:storage"}, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestRunTask_CanceledContext(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.RunTask(ctx, func(ctx context.Context) error { return ctx.Err() })
	if err != context.Canceled {
		t.Fatalf("RunTask() error = %v", err)
	}
}

func TestStartupFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(a *App[*testConfig], events *[]string)
		wantErr string
		want    []string
	}{
		{
			name: "component start",
			setup: func(a *App[*testConfig], events *[]string) {
				_ = a.RegisterComponent(&mockComponent{name: "storage", events: events})
				_ = a.RegisterComponent(&mockComponent{name: "database", events: events, startErr: fmt.Errorf("no file")})
			},
			wantErr: "initialization failed",
			want:    []string{"start:storage", "start:database", "stop:storage"},
		},
		{
			name: "configure",
			setup: func(a *App[*testConfig], events *[]string) {
				_ = a.RegisterComponent(&mockComponent{name: "storage", events: events})
				a.OnConfigure(func(context.Context, *App[*testConfig]) error { return fmt.Errorf("bad driver") })
			},
			wantErr: "configuration failed",
			want:    []string{"start:storage", "stop:storage"},
		},
		{
			name: "onStart hook",
			setup: func(a *App[*testConfig], events *[]string) {
				a.OnStart(func(context.Context) error { return fmt.Errorf("nope") })
				a.OnConfigure(func(context.Context, *App[*testConfig]) error {
					*events = append(*events, "configure")
					return nil
				})
			},
			wantErr: "onStart hook failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []string
			app := newTestApp(t)
			tt.setup(app, &events)

			ran := false
			err := app.RunTask(context.Background(), func(context.Context) error {
				ran = true
				return nil
			})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("RunTask() error = %v, want %q", err, tt.wantErr)
			}
			if ran {
				t.Fatal("task ran after failed startup")
			}
			if diff := cmp.Diff(tt.want, events); diff != "" {
				t.Fatalf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name   string
		health []component.Health
		want   string
	}{
		{name: "empty"},
		{name: "healthy", health: []component.Health{{Name: "storage", Status: component.StatusHealthy}}},
		{name: "degraded", health: []component.Health{{Name: "redis", Status: component.StatusDegraded}}, want: "redis=degraded"},
		{
			name:   "unhealthy with message",
			health: []component.Health{{Name: "database", Status: component.StatusUnhealthy, Message: "ping failed"}},
			want:   "database=unhealthy(ping failed)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			for _, h := range tt.health {
				_ = app.RegisterComponent(&mockComponent{name: h.Name, health: h})
			}
			err := app.ReadyCheck(context.Background())
			if tt.want == "" {
				if err != nil {
					t.Fatalf("ReadyCheck() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("ReadyCheck() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRun_StopsOnContextDone(t *testing.T) {
	var events []string
	app := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "http-server", events: &events})

	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error {
		cancel()
		return nil
	})
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"start:http-server", "stop:http-server"}, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}
