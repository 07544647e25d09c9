package sqlite_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"

	"github.com/xraph/checkout"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/store"
	"github.com/xraph/checkout/store/sqlite"
	"github.com/xraph/checkout/store/storetest"
)

// newStore opens a migrated store on a file in t's temp dir. A single
// connection keeps the foreign_keys pragma in force for every statement.
func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	sdb := sqlitedriver.New()
	dsn := "file:" + filepath.Join(t.TempDir(), "checkout.db") + "?_pragma=busy_timeout(5000)"
	if err := sdb.Open(ctx, dsn, driver.WithPoolSize(1)); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close()
		t.Fatalf("grove open: %v", err)
	}

	s := sqlite.New(db)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t) })
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := newStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestTimestampsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	o := storetest.NewPendingOrder(t, s)
	paidAt := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	if won, err := s.SetOrderPaid(ctx, o.ID, "ref-ts", paidAt); err != nil || !won {
		t.Fatalf("SetOrderPaid = %v, %v", won, err)
	}
	got, err := s.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.PaidAt == nil || !got.PaidAt.Equal(paidAt) {
		t.Fatalf("PaidAt = %v, want %v", got.PaidAt, paidAt)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not scanned")
	}
	if got.FulfilledAt != nil {
		t.Fatalf("FulfilledAt = %v, want nil", got.FulfilledAt)
	}
}

func TestResolveUserConcurrentFirstContact(t *testing.T) {
	s := newStore(t)
	c := checkout.New(s,
		checkout.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		checkout.WithSweepInterval(0),
	)

	const n = 16
	ids := make([]id.UserID, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := c.ResolveUser(context.Background(), 99, "racer")
			errs[i] = err
			if u != nil {
				ids[i] = u.ID
			}
		}()
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("ResolveUser[%d]: %v", i, errs[i])
		}
		if ids[i].String() != ids[0].String() {
			t.Fatalf("ResolveUser[%d] = %s, want %s", i, ids[i], ids[0])
		}
	}
	got, err := s.GetUserByPrincipal(context.Background(), 99)
	if err != nil || got.ID.String() != ids[0].String() {
		t.Fatalf("GetUserByPrincipal = %v, %v", got, err)
	}
}
