package loanstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandleReusesStore(t *testing.T) {
	h := NewHandle(tempPath(t), basicSchema, Options{IsTesting: true})
	defer h.Close()

	db1 := must(h.DB(ctx))
	db2 := must(h.DB(ctx))
	if db1 != db2 {
		t.Fatalf("DB() returned %p and %p, wanted the same store", db1, db2)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := h.DB(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("DB(cancelled) = %v, wanted %v", err, context.Canceled)
	}

	ensure(h.Close())
	ensure(h.Close())
}

func TestHandleCachesFailure(t *testing.T) {
	h := NewHandle(filepath.Join(t.TempDir(), "missing", "store.db"), basicSchema, Options{IsTesting: true})

	_, err1 := h.DB(ctx)
	_, err2 := h.DB(ctx)
	if !errors.Is(err1, ErrStoreUnavailable) {
		t.Fatalf("DB() = %v, wanted %v", err1, ErrStoreUnavailable)
	}
	if err1 != err2 {
		t.Fatalf("DB() returned %v then %v, wanted the cached error", err1, err2)
	}
	ensure(h.Close())
}

func TestCollector(t *testing.T) {
	db := setup(t, basicSchema)
	ensure(db.Write(ctx, func(tx *Tx) error {
		return Put(tx, &Account{ID: "a1", Email: "foo@example.com"})
	}))

	c := NewCollector(db, "loanbook")
	// two counters, then rows and index rows per collection
	deepEqual(t, testutil.CollectAndCount(c), 2+2*len(basicSchema.Collections()))

	reg := prometheus.NewPedanticRegistry()
	ensure(reg.Register(c))
	deepEqual(t, testutil.CollectAndCount(c, "loanbook_store_rows"), 2)
}
