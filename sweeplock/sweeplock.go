// Package sweeplock provides leases that let several checkout instances
// share one store without all of them polling the gateway on every tick.
// Losing a lease only skips a sweep; confirmations stay idempotent either way.
package sweeplock

import (
	"context"
	"sync"
	"time"
)

// Locker grants short, expiring leases by key.
type Locker interface {
	// Acquire returns true when the caller now holds key for ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release gives key back early. Releasing a lease held by someone else
	// is a no-op.
	Release(ctx context.Context, key string) error
}

// Memory is a process-local Locker, useful in tests and single-instance
// deployments.
type Memory struct {
	mu     sync.Mutex
	leases map[string]time.Time
	now    func() time.Time
}

// compile-time interface check
var _ Locker = (*Memory)(nil)

// NewMemory creates an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{
		leases: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Acquire implements Locker.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.now()
	if until, ok := m.leases[key]; ok && t.Before(until) {
		return false, nil
	}
	m.leases[key] = t.Add(ttl)
	return true, nil
}

// Release implements Locker.
func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, key)
	return nil
}
