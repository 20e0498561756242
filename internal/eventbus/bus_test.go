package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu  sync.Mutex
	got []int
}

func (r *recorder) add(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, v)
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.got))
	copy(out, r.got)
	return out
}

func startBus(t *testing.T) *Bus[int] {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	b := New[int]()
	go b.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-b.Done()
	})
	return b
}

func TestBusDeliversInPublishOrder(t *testing.T) {
	b := startBus(t)
	rec := &recorder{}
	b.Subscribe(rec.add)

	for i := 1; i <= 100; i++ {
		b.Publish(i)
	}

	require.Eventually(t, func() bool { return len(rec.values()) == 100 }, time.Second, 5*time.Millisecond)
	got := rec.values()
	for i, v := range got {
		assert.Equal(t, i+1, v)
	}
}

func TestBusPublishFromHandlerDoesNotBlock(t *testing.T) {
	b := startBus(t)
	rec := &recorder{}
	b.Subscribe(func(v int) {
		rec.add(v)
		if v < 5 {
			b.Publish(v + 1)
		}
	})

	b.Publish(1)

	require.Eventually(t, func() bool { return len(rec.values()) == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.values())
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	b := startBus(t)
	first := &recorder{}
	second := &recorder{}
	unsubscribe := b.Subscribe(first.add)
	b.Subscribe(second.add)

	b.Publish(1)
	require.Eventually(t, func() bool { return len(second.values()) == 1 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(2)
	require.Eventually(t, func() bool { return len(second.values()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, first.values())
}

func TestBusUnsubscribeInsideHandler(t *testing.T) {
	b := startBus(t)
	rec := &recorder{}
	var unsubscribe func()
	unsubscribe = b.Subscribe(func(v int) {
		rec.add(v)
		unsubscribe()
	})

	b.Publish(1)
	b.Publish(2)

	tail := &recorder{}
	b.Subscribe(tail.add)
	b.Publish(3)
	require.Eventually(t, func() bool { return len(tail.values()) > 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, rec.values())
}

func TestBusRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := New[int]()
	go b.Run(ctx)
	cancel()

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("bus did not stop")
	}
}
