package loanstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

type DB struct {
	bdb     *bbolt.DB
	schema  *Schema
	logger  *slog.Logger
	verbose bool
	strict  bool

	collStates    []*collectionState
	storedVersion uint64

	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64
}

type Options struct {
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	Timeout   time.Duration
	MmapSize  int
}

const defaultOpenTimeout = 10 * time.Second

// Open opens or creates the store at path and brings it up to the schema's
// version. Any failure is an ErrStoreUnavailable.
func Open(path string, schema *Schema, opt Options) (*DB, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = defaultOpenTimeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, storeErr("open "+path, err)
	}

	db := &DB{
		bdb:        bdb,
		schema:     schema,
		logger:     logger,
		verbose:    opt.Verbose,
		strict:     opt.IsTesting,
		collStates: make([]*collectionState, len(schema.collections)),
	}

	err = db.Write(context.Background(), func(tx *Tx) error {
		return db.upgrade(tx, time.Now())
	})
	if err != nil {
		bdb.Close()
		if !errors.Is(err, ErrStoreUnavailable) {
			err = storeErr("upgrade", err)
		}
		logger.Error("store: open failed", "path", path, "err", err)
		return nil, err
	}

	return db, nil
}

func (db *DB) Bolt() *bbolt.DB {
	return db.bdb
}

func (db *DB) Schema() *Schema {
	return db.schema
}

func (db *DB) Logger() *slog.Logger {
	return db.logger
}

func (db *DB) Path() string {
	return db.bdb.Path()
}

// StoredVersion is the schema version the store was at before Open upgraded it.
func (db *DB) StoredVersion() uint64 {
	return db.storedVersion
}

func (db *DB) Close() error {
	err := db.bdb.Close()
	if err != nil {
		return fmt.Errorf("store: closing: %w", err)
	}
	return nil
}

func (db *DB) logVerbose(msg string, args ...any) {
	if db.verbose {
		db.logger.Debug(msg, args...)
	}
}
