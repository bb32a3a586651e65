package resilience

import (
	"context"
	"errors"
	"sync"
)

// ErrBulkheadFull is returned by TryExecute when every slot is taken.
var ErrBulkheadFull = errors.New("bulkhead is full")

// Bulkhead bounds the number of concurrent calls.
type Bulkhead struct {
	name string
	sem  chan struct{}
}

// NewBulkhead creates a bulkhead with max slots. max below 1 means 1.
func NewBulkhead(name string, max int) *Bulkhead {
	if max < 1 {
		max = 1
	}
	return &Bulkhead{name: name, sem: make(chan struct{}, max)}
}

// Execute waits for a slot, then runs fn. It returns ctx.Err() if the
// context ends first.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()
	return fn()
}

// TryExecute runs fn only if a slot is free right now.
func (b *Bulkhead) TryExecute(fn func() error) error {
	select {
	case b.sem <- struct{}{}:
	default:
		return ErrBulkheadFull
	}
	defer func() { <-b.sem }()
	return fn()
}

// Go runs every fn through the bulkhead on its own goroutine and waits for
// all of them. Each fn's error lands at the same index of the result.
func (b *Bulkhead) Go(ctx context.Context, fns ...func() error) []error {
	errs := make([]error, len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func(i int, fn func() error) {
			defer wg.Done()
			errs[i] = b.Execute(ctx, fn)
		}(i, fn)
	}
	wg.Wait()
	return errs
}

// Name returns the bulkhead name.
func (b *Bulkhead) Name() string { return b.name }

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int { return len(b.sem) }

// MaxConcurrent returns the slot count.
func (b *Bulkhead) MaxConcurrent() int { return cap(b.sem) }
