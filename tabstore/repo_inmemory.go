package tabstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

type tab struct {
	values   map[string]string
	lastSeen time.Time
}

// InMemoryRepo is a thread-safe in-memory implementation of Store. Tabs idle
// for longer than ttl are dropped on access, and writes sweep the whole map
// at most once per ttl.
type InMemoryRepo struct {
	mu        sync.Mutex
	tabs      map[string]*tab
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

var _ Store = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory tab store. A zero ttl disables expiry.
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	return &InMemoryRepo{
		tabs: make(map[string]*tab),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (r *InMemoryRepo) Get(_ context.Context, tabID, key string) (string, error) {
	if err := validate(tabID, key); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.lookup(tabID)
	if t == nil {
		return "", ErrNotFound
	}
	v, ok := t.values[key]
	if !ok {
		return "", ErrNotFound
	}
	t.lastSeen = r.now()
	return v, nil
}

func (r *InMemoryRepo) Set(_ context.Context, tabID, key, value string) error {
	if err := validate(tabID, key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.maybeSweep()
	t := r.lookup(tabID)
	if t == nil {
		t = &tab{values: make(map[string]string)}
		r.tabs[tabID] = t
	}
	t.values[key] = value
	t.lastSeen = r.now()
	return nil
}

func (r *InMemoryRepo) Take(_ context.Context, tabID, key string) (string, error) {
	if err := validate(tabID, key); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.lookup(tabID)
	if t == nil {
		return "", ErrNotFound
	}
	v, ok := t.values[key]
	if !ok {
		return "", ErrNotFound
	}
	delete(t.values, key)
	return v, nil
}

func (r *InMemoryRepo) Swap(_ context.Context, tabID, key, old, value string) (bool, error) {
	if err := validate(tabID, key); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.lookup(tabID)
	if t == nil {
		return false, nil
	}
	if cur, ok := t.values[key]; !ok || cur != old {
		return false, nil
	}
	t.values[key] = value
	t.lastSeen = r.now()
	return true, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, tabID string, keys ...string) error {
	if tabID == "" {
		return errors.New("tabID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t := r.lookup(tabID); t != nil {
		for _, k := range keys {
			delete(t.values, k)
		}
	}
	return nil
}

func (r *InMemoryRepo) Clear(_ context.Context, tabID string) error {
	if tabID == "" {
		return errors.New("tabID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tabs, tabID)
	return nil
}

// lookup returns the live tab or nil, evicting it if it has gone idle.
// Callers hold r.mu.
func (r *InMemoryRepo) lookup(tabID string) *tab {
	t, ok := r.tabs[tabID]
	if !ok {
		return nil
	}
	if r.ttl > 0 && r.now().Sub(t.lastSeen) > r.ttl {
		delete(r.tabs, tabID)
		return nil
	}
	return t
}

// Len returns the number of tabs held, idle or not.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// Sweep drops every idle tab and returns how many were dropped.
func (r *InMemoryRepo) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweep()
}

// maybeSweep runs sweep when a ttl has passed since the last one. Callers hold r.mu.
func (r *InMemoryRepo) maybeSweep() {
	if r.ttl <= 0 || r.now().Sub(r.lastSweep) < r.ttl {
		return
	}
	r.sweep()
}

// sweep evicts idle tabs. Callers hold r.mu.
func (r *InMemoryRepo) sweep() int {
	now := r.now()
	r.lastSweep = now
	if r.ttl <= 0 {
		return 0
	}
	dropped := 0
	for id, t := range r.tabs {
		if now.Sub(t.lastSeen) > r.ttl {
			delete(r.tabs, id)
			dropped++
		}
	}
	return dropped
}

func validate(tabID, key string) error {
	if tabID == "" {
		return errors.New("tabID cannot be empty")
	}
	if key == "" {
		return errors.New("key cannot be empty")
	}
	return nil
}
