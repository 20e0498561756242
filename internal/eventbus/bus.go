// Package eventbus provides an ordered publish/subscribe bus with a single
// dispatcher goroutine.
//
// Handlers run one at a time on the dispatcher, in publish order, so state owned
// by handlers needs no further locking against other handlers of the same bus.
// Publish never blocks: events are queued and the dispatcher is woken.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handler receives published events on the dispatcher goroutine.
type Handler[T any] func(T)

type subscriber[T any] struct {
	id     uint64
	fn     Handler[T]
	closed atomic.Bool
}

// Bus fans events out to its subscribers.
type Bus[T any] struct {
	mu      sync.Mutex
	pending []T
	subs    []*subscriber[T]
	nextID  uint64

	wake chan struct{}
	done chan struct{}
}

// New creates a new Bus. Call Run to start dispatching.
func New[T any]() *Bus[T] {
	return &Bus[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run dispatches queued events until ctx is done.
func (b *Bus[T]) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
			b.drain(ctx)
		}
	}
}

// Done is closed once Run has returned.
func (b *Bus[T]) Done() <-chan struct{} {
	return b.done
}

func (b *Bus[T]) drain(ctx context.Context) {
	for ctx.Err() == nil {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.pending[0]
		var zero T
		b.pending[0] = zero
		b.pending = b.pending[1:]
		subs := make([]*subscriber[T], len(b.subs))
		copy(subs, b.subs)
		b.mu.Unlock()

		for _, s := range subs {
			if !s.closed.Load() {
				s.fn(ev)
			}
		}
	}
}

// Publish queues ev for delivery to every current subscriber.
func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	b.pending = append(b.pending, ev)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is idempotent; events dispatched after it returns are not delivered.
func (b *Bus[T]) Subscribe(fn Handler[T]) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	s := &subscriber[T]{id: b.nextID, fn: fn}
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.closed.Store(true)
			b.remove(s.id)
		})
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
