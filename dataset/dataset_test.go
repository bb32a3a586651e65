package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/storage/local"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := local.NewStorage(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return New(backend), dir
}

func TestWriteRead(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)

	if err := s.Write(ctx, "p1", "p1_load", "a.csv", []byte("a\n1\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Read(ctx, "p1", "p1_load", "a.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "a\n1\n" {
		t.Errorf("unexpected content %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "p1", "p1_load", "a.csv")); err != nil {
		t.Errorf("expected blob at pipeline/task/file: %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Read(context.Background(), "p1", "p1_load", "a.csv")
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestInvalidSegments(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	tests := []struct{ p, task, file string }{
		{"", "t", "f"},
		{"p", "..", "f"},
		{"p", "t", "a/b.csv"},
		{"p", "t", ""},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%q/%q/%q", tc.p, tc.task, tc.file), func(t *testing.T) {
			err := s.Write(ctx, tc.p, tc.task, tc.file, nil)
			if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestEnsureNamespace(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)
	if err := s.EnsureNamespace(ctx, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.EnsureTaskNamespace(ctx, "p1", "p1_load"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dir, "p1", "p1_load")); err != nil || !info.IsDir() {
		t.Errorf("expected task directory, got %v", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_ = s.Write(ctx, "p1", "p1_a", "a.csv", []byte("1"))
	_ = s.Write(ctx, "p1", "p1_b", "a.csv", []byte("2"))
	_ = s.Write(ctx, "p10", "p10_a", "a.csv", []byte("3"))

	files, err := s.List(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 blobs under p1, got %+v", files)
	}
	if files[0].Path != "p1/p1_a/a.csv" {
		t.Errorf("unexpected first path %q", files[0].Path)
	}
}

func TestConcurrentWritesSameKey(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Write(ctx, "p1", "p1_t", "out.csv", []byte(fmt.Sprintf("v%02d", i))); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Read(ctx, "p1", "p1_t", "out.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != 'v' {
		t.Errorf("expected one complete write to win, got %q", got)
	}
}
