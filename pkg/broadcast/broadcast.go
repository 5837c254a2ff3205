package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
)

// Broadcaster fans published values out to every active Subscription.
// All methods are safe for concurrent use.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	ring   []T
	head   uint64        // sequence number of the next value to publish
	wake   chan struct{} // closed and replaced on every publish
	done   chan struct{}
	closed bool
}

// New creates a broadcaster retaining the last capacity published values.
// A minimum capacity of 1 is enforced; a zero-length ring would make every
// unread value a lag.
func New[T any](capacity int) *Broadcaster[T] {
	return &Broadcaster[T]{
		ring: make([]T, max(capacity, 1)),
		wake: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Publish appends a value to the ring and wakes all waiting subscriptions.
// It never blocks on slow consumers and succeeds even with zero
// subscribers. It returns ErrClosed only after Close.
func (b *Broadcaster[T]) Publish(v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.ring[b.head%uint64(len(b.ring))] = v
	b.head++

	close(b.wake)
	b.wake = make(chan struct{})
	return nil
}

// Subscribe returns a new independent cursor positioned at the current
// head: it observes values published after this call, never before. The
// subscription is closed automatically when ctx is cancelled.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) *Subscription[T] {
	b.mu.Lock()
	sub := &Subscription[T]{b: b, next: b.head}
	if b.closed {
		sub.closed.Store(true)
	}
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-b.done:
			}
		}()
	}

	return sub
}

// Close shuts the broadcaster down and wakes all blocked subscriptions.
// Buffered values remain readable until each cursor drains them. Close is
// idempotent.
func (b *Broadcaster[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	close(b.done)
	close(b.wake)
	b.wake = make(chan struct{})
	return nil
}

// Subscription is a single consumer's cursor into a Broadcaster's ring.
// Recv must not be called concurrently from multiple goroutines on the
// same subscription; create one subscription per consumer instead.
type Subscription[T any] struct {
	b      *Broadcaster[T]
	next   uint64
	closed atomic.Bool
}

// Recv blocks until the next value is available and returns it. It returns
// a *LagError when the cursor fell behind the ring (the cursor is advanced
// to the oldest retained value first), ctx.Err() on context cancellation,
// and ErrClosed once the subscription or the drained broadcaster is
// closed.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T

	for {
		if s.closed.Load() {
			return zero, ErrClosed
		}

		b := s.b
		b.mu.Lock()

		capacity := uint64(len(b.ring))
		var oldest uint64
		if b.head > capacity {
			oldest = b.head - capacity
		}

		switch {
		case s.next < oldest:
			missed := oldest - s.next
			s.next = oldest
			b.mu.Unlock()
			return zero, &LagError{Missed: missed}

		case s.next < b.head:
			v := b.ring[s.next%capacity]
			s.next++
			b.mu.Unlock()
			return v, nil

		case b.closed:
			b.mu.Unlock()
			return zero, ErrClosed
		}

		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close marks the cursor closed. Subsequent Recv calls return ErrClosed.
// Close is idempotent and safe to call from any goroutine.
func (s *Subscription[T]) Close() error {
	s.closed.Store(true)
	return nil
}
