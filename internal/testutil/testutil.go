// Package testutil provides shared test helpers for setting up record
// stores and memory banks on temporary storage.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/halvard/munin/internal/membank"
	"github.com/halvard/munin/internal/recordstore"
	"github.com/halvard/munin/internal/schema"
	"github.com/halvard/munin/internal/semindex"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStore creates a record store on a temporary SQLite database that is
// automatically cleaned up.
func TestStore(t *testing.T) *recordstore.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "munin-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := recordstore.Open(dbFile.Name(), Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestBank creates a fully wired bank: temp record store, in-memory vector
// index with the deterministic local embedder, builtin schemas registered
// and synced.
func TestBank(t *testing.T, opts ...membank.Option) *membank.Bank {
	t.Helper()
	logger := Logger()
	store := TestStore(t)

	idx, err := semindex.New(semindex.Config{Embedder: semindex.NewLocalEmbedder(64)}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	registry := schema.NewRegistry()
	if err := schema.RegisterBuiltins(registry); err != nil {
		t.Fatal(err)
	}

	opts = append([]membank.Option{membank.WithLogger(logger)}, opts...)
	bank := membank.New(store, idx, registry, opts...)
	if err := bank.SyncSchemas(context.Background()); err != nil {
		t.Fatal(err)
	}
	return bank
}
