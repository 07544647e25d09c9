package memory

import (
	"testing"

	"github.com/xraph/checkout/store"
	"github.com/xraph/checkout/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
