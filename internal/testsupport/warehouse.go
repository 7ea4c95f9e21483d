package testsupport

import (
	"context"
	"testing"

	"reelshelf/internal/config"
	"reelshelf/internal/warehouse"
)

// MustOpenStore opens the warehouse described by cfg and closes it when the
// test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *warehouse.Store {
	t.Helper()

	store, err := warehouse.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("warehouse.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
