package loanstore

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.etcd.io/bbolt"
)

type Tx struct {
	db         *DB
	btx        *bbolt.Tx
	written    bool
	reindexing bool
}

func (db *DB) newTx(btx *bbolt.Tx) *Tx {
	return &Tx{
		db:  db,
		btx: btx,
	}
}

func (tx *Tx) DB() *DB {
	return tx.db
}

func (tx *Tx) Schema() *Schema {
	return tx.db.schema
}

func (tx *Tx) IsWritable() bool {
	return tx.btx.Writable()
}

// Tx runs f inside a Bolt transaction. A writable transaction commits when f
// returns nil and rolls back otherwise. Panics inside f become errors.
func (db *DB) Tx(ctx context.Context, writable bool, f func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var funcErr error
	run := func(btx *bbolt.Tx) error {
		funcErr = safelyCall(f, db.newTx(btx))
		return funcErr
	}
	var err error
	if writable {
		db.WriteCount.Add(1)
		err = db.bdb.Update(run)
	} else {
		db.ReadCount.Add(1)
		err = db.bdb.View(run)
	}
	if err != nil && funcErr == nil {
		return storeErr("commit", err)
	}
	return err
}

func (db *DB) Read(ctx context.Context, f func(tx *Tx) error) error {
	return db.Tx(ctx, false, f)
}

func (db *DB) Write(ctx context.Context, f func(tx *Tx) error) error {
	return db.Tx(ctx, true, f)
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = recoveredErr(p)
		}
	}()
	return fn(tx)
}

// recoveredErr keeps our own errors matchable and turns Bolt failures raised
// by must/ensure into ErrStoreUnavailable.
func recoveredErr(p any) error {
	e, ok := p.(error)
	if !ok {
		return panicked{p, string(debug.Stack())}
	}
	for _, known := range []error{ErrStoreUnavailable, ErrInvalidCollection, ErrInvalidIndex, ErrConstraintViolation, ErrEmptyKey, ErrReadOnlyTx} {
		if errors.Is(e, known) {
			return e
		}
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, e)
}

func (tx *Tx) requireWritable() error {
	if !tx.btx.Writable() {
		return ErrReadOnlyTx
	}
	return nil
}

func (tx *Tx) markWritten() {
	tx.written = true
}
