package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kbukum/runemaster/component"
	apperrors "github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/storage"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestUploadDownload(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)

	if err := s.Upload(ctx, "p1/p1_load/a.csv", strings.NewReader("a\n1\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rc, err := s.Download(ctx, "p1/p1_load/a.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "a\n1\n" {
		t.Errorf("unexpected content %q", data)
	}

	// overwrite
	if err := s.Upload(ctx, "p1/p1_load/a.csv", strings.NewReader("b\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(s.BasePath(), "p1", "p1_load", "a.csv"))
	if string(raw) != "b\n" {
		t.Errorf("expected overwritten content, got %q", raw)
	}
}

func TestDownloadMissing(t *testing.T) {
	_, err := newStorage(t).Download(context.Background(), "nope/x.csv")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRejectsEscapingPaths(t *testing.T) {
	s := newStorage(t)
	if err := s.Upload(context.Background(), "../escape.csv", bytes.NewReader(nil)); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestExistsDelete(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	_ = s.Upload(ctx, "p/t/f.csv", strings.NewReader("x"))

	ok, err := s.Exists(ctx, "p/t/f.csv")
	if err != nil || !ok {
		t.Fatalf("expected file to exist, got %v %v", ok, err)
	}
	if ok, _ := s.Exists(ctx, "p/t"); ok {
		t.Error("directories are not objects")
	}
	if err := s.Delete(ctx, "p/t/f.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Delete(ctx, "p/t/f.csv"); err != nil {
		t.Errorf("deleting a missing file should succeed, got %v", err)
	}
	if ok, _ := s.Exists(ctx, "p/t/f.csv"); ok {
		t.Error("expected file to be gone")
	}
}

func TestEnsureNamespace(t *testing.T) {
	s := newStorage(t)
	if err := s.EnsureNamespace(context.Background(), "p1/p1_load"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(filepath.Join(s.BasePath(), "p1", "p1_load"))
	if err != nil || !info.IsDir() {
		t.Errorf("expected directory, got %v %v", info, err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	for _, p := range []string{"p1/b/x.csv", "p1/a/x.csv", "p10/a/x.csv", "p2/a/y.csv"} {
		if err := s.Upload(ctx, p, strings.NewReader("1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	files, err := s.List(ctx, "p1/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0].Path != "p1/a/x.csv" || files[1].Path != "p1/b/x.csv" {
		t.Errorf("unexpected listing %+v", files)
	}
	if files[0].ContentType == "" || files[0].Size != 1 {
		t.Errorf("expected metadata, got %+v", files[0])
	}

	all, _ := s.List(ctx, "")
	if len(all) != 4 {
		t.Errorf("expected 4 files, got %d", len(all))
	}
}

func TestURL(t *testing.T) {
	s := newStorage(t)
	u, err := s.URL(context.Background(), "p/t/f.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/p/t/f.csv") {
		t.Errorf("unexpected url %q", u)
	}
}

func TestFactoryRegistered(t *testing.T) {
	dir := t.TempDir()
	st, err := storage.New(context.Background(), storage.Config{Provider: storage.ProviderLocal, BasePath: dir}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.(storage.Namespacer); !ok {
		t.Error("expected local storage to implement Namespacer")
	}
}

func TestComponentLifecycle(t *testing.T) {
	ctx := context.Background()
	c := storage.NewComponent(storage.Config{Provider: storage.ProviderLocal, BasePath: t.TempDir()}, nil)

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy after start, got %+v", h)
	}
	if d := c.Describe(); !strings.Contains(d.Details, "provider=local") {
		t.Errorf("unexpected description %+v", d)
	}
	if err := c.Stop(ctx); err != nil || c.Storage() != nil {
		t.Errorf("expected storage released, got %v", err)
	}
	if !slices.Contains(storage.Providers(), storage.ProviderLocal) {
		t.Errorf("expected local provider registered, got %v", storage.Providers())
	}
}
