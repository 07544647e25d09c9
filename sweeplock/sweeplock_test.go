package sweeplock

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAcquireExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.Acquire(ctx, "sweep", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first Acquire = %v, %v; want true, nil", ok, err)
	}
	ok, err = m.Acquire(ctx, "sweep", time.Minute)
	if err != nil || ok {
		t.Fatalf("second Acquire = %v, %v; want false, nil", ok, err)
	}
	ok, _ = m.Acquire(ctx, "other", time.Minute)
	if !ok {
		t.Fatal("independent key should be free")
	}
}

func TestMemoryRelease(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, _ = m.Acquire(ctx, "sweep", time.Minute)
	if err := m.Release(ctx, "sweep"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	ok, _ := m.Acquire(ctx, "sweep", time.Minute)
	if !ok {
		t.Fatal("expected lease to be free after Release")
	}
}

func TestMemoryLeaseExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_, _ = m.Acquire(ctx, "sweep", 10*time.Second)
	clock = clock.Add(11 * time.Second)

	ok, _ := m.Acquire(ctx, "sweep", 10*time.Second)
	if !ok {
		t.Fatal("expected expired lease to be reacquired")
	}
}
