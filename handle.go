package loanstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handle is the process-wide store handle. The first DB call opens the store,
// every later call gets the same result, including a failed open.
type Handle struct {
	open   func() (*DB, error)
	opened atomic.Pointer[DB]
}

func NewHandle(path string, schema *Schema, opt Options) *Handle {
	h := &Handle{}
	h.open = sync.OnceValues(func() (*DB, error) {
		db, err := Open(path, schema, opt)
		if err != nil {
			return nil, err
		}
		h.opened.Store(db)
		return db, nil
	})
	return h
}

func (h *Handle) DB(ctx context.Context) (*DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.open()
}

// Close closes the store if it was opened.
func (h *Handle) Close() error {
	if db := h.opened.Swap(nil); db != nil {
		return db.Close()
	}
	return nil
}
