package dedupe

import (
	"context"
	"sync"
	"time"
)

// MemoryDeduper is a single-process Deduper with per-id expiry.
type MemoryDeduper struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]time.Time // id -> expiry
	clock func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Compile-time interface check.
var _ Deduper = (*MemoryDeduper)(nil)

// NewMemoryDeduper creates a deduper remembering ids for ttl.
// janitorEvery > 0 starts a goroutine evicting expired ids; stop it with Close.
func NewMemoryDeduper(ttl, janitorEvery time.Duration) *MemoryDeduper {
	m := &MemoryDeduper{
		ttl:    ttl,
		items:  make(map[string]time.Time, 1024),
		clock:  time.Now,
		stopCh: make(chan struct{}),
	}
	if janitorEvery > 0 {
		go m.janitor(janitorEvery)
	}
	return m
}

// Seen implements Deduper.
func (m *MemoryDeduper) Seen(_ context.Context, id string) (bool, error) {
	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if exp, ok := m.items[id]; ok && exp.After(now) {
		return true, nil
	}
	m.items[id] = now.Add(m.ttl)
	return false, nil
}

// Forget implements Deduper.
func (m *MemoryDeduper) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of tracked ids, expired or not.
func (m *MemoryDeduper) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryDeduper) evict() {
	now := m.clock()
	m.mu.Lock()
	for k, exp := range m.items {
		if !exp.After(now) {
			delete(m.items, k)
		}
	}
	m.mu.Unlock()
}

func (m *MemoryDeduper) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.evict()
		}
	}
}

// Close stops the janitor. Safe to call more than once.
func (m *MemoryDeduper) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
