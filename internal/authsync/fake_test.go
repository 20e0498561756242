package authsync

import (
	"context"
	"sync"

	"github.com/csbedford/picklematch/internal/domain"
	"github.com/csbedford/picklematch/internal/identity"
)

// fakeClient is an in-memory identity.Client with gates for controlling when
// restore and lookups resolve.
type fakeClient struct {
	mu sync.Mutex

	restoreSession *domain.Session
	restoreErr     error
	restoreGate    chan struct{}

	subs         map[int]func(*domain.Session)
	nextSub      int
	unsubscribes int

	records     map[string]*domain.Profile
	lookupErrs  map[string]error
	lookupGates map[string]chan struct{}
	lookups     []string
}

var _ identity.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		subs:        make(map[int]func(*domain.Session)),
		records:     make(map[string]*domain.Profile),
		lookupErrs:  make(map[string]error),
		lookupGates: make(map[string]chan struct{}),
	}
}

func (f *fakeClient) RestoreSession(ctx context.Context) (*domain.Session, error) {
	f.mu.Lock()
	gate := f.restoreGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restoreSession.Clone(), f.restoreErr
}

func (f *fakeClient) Subscribe(onChange func(*domain.Session)) identity.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	id := f.nextSub
	f.subs[id] = onChange
	var once sync.Once
	return identity.SubscriptionFunc(func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			f.unsubscribes++
		})
	})
}

func (f *fakeClient) LookupUserRecord(ctx context.Context, userID string) (*domain.Profile, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, userID)
	gate := f.lookupGates[userID]
	f.mu.Unlock()
	if gate != nil {
		// Gated lookups ignore cancellation so tests can deliver late results.
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookupErrs[userID]; err != nil {
		return nil, err
	}
	return f.records[userID].Clone(), nil
}

// push delivers sess to every subscriber, the way a provider would.
func (f *fakeClient) push(sess *domain.Session) {
	f.mu.Lock()
	subs := make([]func(*domain.Session), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(sess.Clone())
	}
}

func (f *fakeClient) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeClient) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribes
}

func (f *fakeClient) lookupCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lookups))
	copy(out, f.lookups)
	return out
}

func (f *fakeClient) gateLookup(userID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.lookupGates[userID] = ch
	return ch
}
