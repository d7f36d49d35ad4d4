package loanstore

import (
	"context"
	"fmt"
	"reflect"
)

func SGetRaw(tx *Tx, sk *SKey) []byte {
	buck := nonNil(tx.btx.Bucket(sk.mp.buck.Raw()))
	return cloneBytes(buck.Get(sk.keyBytes))
}

func SPutRaw(tx *Tx, sk *SKey, raw []byte) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	buck := nonNil(tx.btx.Bucket(sk.mp.buck.Raw()))
	tx.markWritten()
	if err := buck.Put(sk.keyBytes, raw); err != nil {
		return storeErr("SPut "+sk.String(), err)
	}
	tx.db.logVerbose("db: SPUT", "key", sk.String(), "bytes", len(raw))
	return nil
}

func SDelete(tx *Tx, sk *SKey) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	buck := nonNil(tx.btx.Bucket(sk.mp.buck.Raw()))
	tx.markWritten()
	if err := buck.Delete(sk.keyBytes); err != nil {
		return storeErr("SDelete "+sk.String(), err)
	}
	return nil
}

// SGet decodes the value stored under sk into v and reports whether it was set.
func SGet[T any](tx *Tx, sk *SKey, v *T) (bool, error) {
	raw := SGetRaw(tx, sk)
	if raw == nil {
		return false, nil
	}
	err := sk.valueEnc.DecodeValue(raw, reflect.ValueOf(v))
	if err != nil {
		return false, fmt.Errorf("SGet %v: %w", sk, err)
	}
	return true, nil
}

func SPut[T any](tx *Tx, sk *SKey, v *T) error {
	return SPutRaw(tx, sk, sk.valueEnc.EncodeValue(nil, reflect.ValueOf(v)))
}

// Get reads one row by collection name and primary key; nil when absent.
func (db *DB) Get(ctx context.Context, collection, id string) (any, error) {
	coll, err := db.schema.CollectionNamed(collection)
	if err != nil {
		return nil, err
	}
	var row any
	err = db.Read(ctx, func(tx *Tx) error {
		row, _, err = tx.Get(coll, id)
		return err
	})
	return row, err
}

func (db *DB) GetAll(ctx context.Context, collection string) ([]any, error) {
	coll, err := db.schema.CollectionNamed(collection)
	if err != nil {
		return nil, err
	}
	var rows []any
	err = db.Read(ctx, func(tx *Tx) error {
		rows, err = tx.GetAll(coll)
		return err
	})
	return rows, err
}

// Put upserts row by its primary key and returns it.
func (db *DB) Put(ctx context.Context, collection string, row any) (any, error) {
	coll, err := db.schema.CollectionNamed(collection)
	if err != nil {
		return nil, err
	}
	err = db.Write(ctx, func(tx *Tx) error {
		_, err := tx.Put(coll, row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Delete removes one row by primary key. It never cascades.
func (db *DB) Delete(ctx context.Context, collection, id string) error {
	coll, err := db.schema.CollectionNamed(collection)
	if err != nil {
		return err
	}
	return db.Write(ctx, func(tx *Tx) error {
		_, err := tx.Delete(coll, id)
		return err
	})
}

func (db *DB) QueryByField(ctx context.Context, collection, field, value string) ([]any, error) {
	return db.QueryByCompoundKey(ctx, collection, []string{field}, []string{value})
}

func (db *DB) QueryByCompoundKey(ctx context.Context, collection string, fields, values []string) ([]any, error) {
	coll, err := db.schema.CollectionNamed(collection)
	if err != nil {
		return nil, err
	}
	idx, err := coll.IndexOn(fields...)
	if err != nil {
		return nil, err
	}
	var rows []any
	err = db.Read(ctx, func(tx *Tx) error {
		rows, err = tx.QueryIndex(idx, values...)
		return err
	})
	return rows, err
}

func (db *DB) QueryByTenant(ctx context.Context, collection, companyID string) ([]any, error) {
	return db.QueryByField(ctx, collection, TenantField, companyID)
}
