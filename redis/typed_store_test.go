package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	apperrors "github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/component"
	"github.com/kbukum/runemaster/logger"
)

type testState struct {
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	client, err := New(Config{Enabled: true, Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mini
}

func TestTypedStore_SaveAndLoad(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	want := testState{Count: 5, Tags: []string{"a", "b"}}
	if err := store.Save(ctx, "k1", &want, 0); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestTypedStore_LoadMissing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")

	got, err := store.Load(context.Background(), "nonexistent")
	if err != nil || got != nil {
		t.Fatalf("Load() = %+v, %v; want nil, nil", got, err)
	}
}

func TestTypedStore_LoadMany(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	for i, k := range []string{"a", "b", "c"} {
		s := testState{Count: i}
		if err := store.Save(ctx, k, &s, 0); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.LoadMany(ctx, []string{"c", "missing", "a"})
	if err != nil {
		t.Fatalf("LoadMany() error = %v", err)
	}
	want := []testState{{Count: 2}, {Count: 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadMany() mismatch (-want +got):\n%s", diff)
	}
}

func TestTypedStore_Create(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	first := testState{Count: 1}
	ok, err := store.Create(ctx, "k", &first)
	if err != nil || !ok {
		t.Fatalf("first Create() = %v, %v", ok, err)
	}
	second := testState{Count: 2}
	ok, err = store.Create(ctx, "k", &second)
	if err != nil || ok {
		t.Fatalf("second Create() = %v, %v; want false", ok, err)
	}
	got, _ := store.Load(ctx, "k")
	if got.Count != 1 {
		t.Errorf("Create overwrote existing value: %+v", got)
	}
}

func TestTypedStore_ExistsAndDelete(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	s := testState{Count: 1}
	_ = store.Save(ctx, "k1", &s, 0)
	if ok, _ := store.Exists(ctx, "k1"); !ok {
		t.Fatal("Exists() = false after Save")
	}
	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := store.Exists(ctx, "k1"); ok {
		t.Fatal("Exists() = true after Delete")
	}
}

func TestTypedStore_TTL(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	s := testState{Count: 1}
	if err := store.Save(ctx, "k1", &s, 2*time.Second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	mini.FastForward(3 * time.Second)

	got, err := store.Load(ctx, "k1")
	if err != nil || got != nil {
		t.Fatalf("Load() after TTL = %+v, %v; want nil, nil", got, err)
	}
}

func TestTypedStore_KeyPrefix(t *testing.T) {
	client, mini := newTestClient(t)
	ctx := context.Background()
	s := testState{Count: 42}

	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"myprefix", "k1", "myprefix:k1"},
		{"", "bare-key", "bare-key"},
	}
	for _, tt := range tests {
		store := NewTypedStore[testState](client, tt.prefix)
		if got := store.Key(tt.key); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.key, got, tt.want)
		}
		_ = store.Save(ctx, tt.key, &s, 0)
		if !mini.Exists(tt.want) {
			t.Errorf("key %q not written", tt.want)
		}
	}
}

func TestFromRedis(t *testing.T) {
	client, mini := newTestClient(t)
	ctx := context.Background()

	_, err := client.Get(ctx, "missing")
	if got := FromRedis(err, "task", "missing"); got.Code != apperrors.ErrCodeNotFound {
		t.Errorf("FromRedis(nil reply) = %s, want NOT_FOUND", got.Code)
	}

	mini.Close()
	err = client.Ping(ctx)
	if got := FromRedis(err, "task", ""); got == nil || !got.Retryable {
		t.Errorf("FromRedis(closed server) = %v, want retryable error", got)
	}
	if FromRedis(nil, "task", "") != nil {
		t.Error("FromRedis(nil) should be nil")
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	mini := miniredis.RunT(t)
	ctx := context.Background()
	c := NewComponent(Config{Enabled: true, Addr: mini.Addr()}, logger.Nop())

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("Health before start = %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("Health after start = %s (%s)", h.Status, h.Message)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestComponent_Disabled(t *testing.T) {
	c := NewComponent(Config{}, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if c.Client() != nil {
		t.Error("disabled component should not create a client")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"defaults", Config{Enabled: true}, false},
		{"bad timeout", Config{Enabled: true, DialTimeout: "later"}, true},
		{"negative db", Config{Enabled: true, DB: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
