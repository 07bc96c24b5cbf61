package diagnostics

import (
	"context"
	"sync"
	"sync/atomic"
)

// Backlog retains the newest values up to its capacity. Producers hand values
// to a bounded intake; a full intake counts the value as dropped instead of
// blocking the producer.
type Backlog[T any] struct {
	intake  chan T
	dropped atomic.Uint64
	running atomic.Bool

	mu    sync.Mutex
	slots []T
	head  int
	count int
}

func NewBacklog[T any](capacity, intake int) *Backlog[T] {
	capacity = max(capacity, 1)
	if intake < 1 {
		intake = capacity
	}
	return &Backlog[T]{
		intake: make(chan T, intake),
		slots:  make([]T, capacity),
	}
}

// Run moves values from the intake into the backlog until ctx is done.
// Only the first call starts a drainer.
func (b *Backlog[T]) Run(ctx context.Context) {
	if b == nil || !b.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case value := <-b.intake:
				b.store(value)
			}
		}
	}()
}

// Push offers value to the intake.
func (b *Backlog[T]) Push(value T) {
	if b == nil {
		return
	}
	select {
	case b.intake <- value:
	default:
		b.dropped.Add(1)
	}
}

func (b *Backlog[T]) store(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tail := (b.head + b.count) % len(b.slots)
	b.slots[tail] = value
	if b.count == len(b.slots) {
		b.head = (b.head + 1) % len(b.slots)
		return
	}
	b.count++
}

// Recent returns up to limit of the newest values, oldest first. A limit of
// zero or less returns everything retained.
func (b *Backlog[T]) Recent(limit int) []T {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, n)
	skip := b.count - n
	for i := range out {
		out[i] = b.slots[(b.head+skip+i)%len(b.slots)]
	}
	return out
}

// Dropped counts values refused by a full intake.
func (b *Backlog[T]) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
