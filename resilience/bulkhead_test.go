package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBulkhead_BoundsConcurrency(t *testing.T) {
	b := NewBulkhead("test", 2)

	var inFlight, peak int32
	fns := make([]func() error, 6)
	for i := range fns {
		fns[i] = func() error {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil
		}
	}

	for i, err := range b.Go(context.Background(), fns...) {
		if err != nil {
			t.Errorf("fn %d: unexpected error %v", i, err)
		}
	}
	if peak > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", peak)
	}
	if b.InUse() != 0 {
		t.Errorf("expected all slots released, got %d in use", b.InUse())
	}
}

func TestBulkhead_GoKeepsErrorPositions(t *testing.T) {
	b := NewBulkhead("test", 1)
	boom := errors.New("boom")

	errs := b.Go(context.Background(),
		func() error { return nil },
		func() error { return boom },
	)
	if errs[0] != nil || !errors.Is(errs[1], boom) {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestBulkhead_TryExecuteRejectsWhenFull(t *testing.T) {
	b := NewBulkhead("test", 1)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.TryExecute(func() error { return nil }); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Execute(ctx, func() error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}

	close(release)
	<-done
}

func TestNewBulkhead_MinimumOneSlot(t *testing.T) {
	b := NewBulkhead("test", 0)
	if b.MaxConcurrent() != 1 {
		t.Errorf("expected 1 slot, got %d", b.MaxConcurrent())
	}
	if b.Name() != "test" {
		t.Errorf("expected name test, got %q", b.Name())
	}
}
