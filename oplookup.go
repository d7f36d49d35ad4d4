package loanstore

import (
	"bytes"
	"fmt"
)

// TenantField is the field every tenant-scoped collection indexes.
const TenantField = "companyId"

// lookupKeys returns primary keys of rows whose index values equal vals, or
// with prefix set, whose single index value starts with vals[0]. Keys come
// in index order and are safe to keep after the transaction.
func (tx *Tx) lookupKeys(idx *Index, vals tuple, prefix bool) ([][]byte, error) {
	if prefix && (len(idx.fields) != 1 || len(vals) != 1) {
		return nil, fmt.Errorf("%w: prefix lookup needs a single-field index, %s has %v", ErrInvalidIndex, idx.FullName(), idx.fields)
	}
	if len(vals) != len(idx.fields) {
		return nil, fmt.Errorf("%w: %s has fields %v, got %d values", ErrInvalidIndex, idx.FullName(), idx.fields, len(vals))
	}
	if !prefix {
		for _, v := range vals {
			if len(v) == 0 {
				return nil, nil
			}
		}
	}

	idxBuck := idx.bucketIn(idx.coll.rootBucketIn(tx.btx))

	if idx.isUnique && !prefix {
		v := idxBuck.Get(vals.encode(nil))
		if v == nil {
			return nil, nil
		}
		return [][]byte{cloneBytes(v)}, nil
	}

	var keys [][]byte
	rawPrefix := vals.rawPrefix()
	c := idxBuck.Cursor()
	for k, v := c.Seek(rawPrefix); k != nil && bytes.HasPrefix(k, rawPrefix); k, v = c.Next() {
		tup, err := decodeTuple(k)
		if err != nil {
			return nil, collErrf(idx.coll, idx, cloneBytes(k), dataErrf(k, 0, err, "bad index key"), "lookup")
		}
		n := len(vals)
		if !idx.isUnique {
			n++
		}
		// entries with the same concatenated prefix but different splits interleave here
		if len(tup) != n {
			continue
		}
		if prefix {
			if !bytes.HasPrefix(tup[0], vals[0]) {
				continue
			}
		} else if !tup.hasLeading(vals) {
			continue
		}
		if idx.isUnique {
			keys = append(keys, cloneBytes(v))
		} else {
			keys = append(keys, cloneBytes(tup[n-1]))
		}
	}
	return keys, nil
}

func (tx *Tx) rowsForKeys(idx *Index, keys [][]byte) ([]any, error) {
	coll := idx.coll
	rows := make([]any, 0, len(keys))
	for _, key := range keys {
		rowVal, _, err := tx.getRowVal(coll, key)
		if err != nil {
			return nil, err
		}
		if !rowVal.IsValid() {
			tx.db.logger.Warn("store: index entry points to a missing row", "index", idx.FullName(), "id", string(key))
			continue
		}
		rows = append(rows, rowVal.Interface())
	}
	return rows, nil
}

// QueryIndex returns the rows whose index fields equal values exactly.
func (tx *Tx) QueryIndex(idx *Index, values ...string) ([]any, error) {
	idx.requireCollection()
	keys, err := tx.lookupKeys(idx, stringsTuple(values), false)
	if err != nil {
		return nil, err
	}
	rows, err := tx.rowsForKeys(idx, keys)
	tx.db.logVerbose("db: LOOKUP", "index", idx.FullName(), "values", values, "rows", len(rows))
	return rows, err
}

func (tx *Tx) QueryByField(coll *Collection, field, value string) ([]any, error) {
	return tx.QueryByCompoundKey(coll, []string{field}, []string{value})
}

func (tx *Tx) QueryByCompoundKey(coll *Collection, fields, values []string) ([]any, error) {
	idx, err := coll.IndexOn(fields...)
	if err != nil {
		return nil, err
	}
	return tx.QueryIndex(idx, values...)
}

func (tx *Tx) QueryByTenant(coll *Collection, companyID string) ([]any, error) {
	return tx.QueryByField(coll, TenantField, companyID)
}

// QueryByPrefix returns the rows whose single-field index value starts with prefix.
func (tx *Tx) QueryByPrefix(coll *Collection, field, prefix string) ([]any, error) {
	idx, err := coll.IndexOn(field)
	if err != nil {
		return nil, err
	}
	keys, err := tx.lookupKeys(idx, tuple{[]byte(prefix)}, true)
	if err != nil {
		return nil, err
	}
	rows, err := tx.rowsForKeys(idx, keys)
	tx.db.logVerbose("db: LOOKUP.PREFIX", "index", idx.FullName(), "prefix", prefix, "rows", len(rows))
	return rows, err
}

func QueryByField[Row any](tx *Tx, field, value string) ([]*Row, error) {
	return typedQuery[Row](tx.QueryByField(collectionOf[Row](tx), field, value))
}

func QueryByCompoundKey[Row any](tx *Tx, fields, values []string) ([]*Row, error) {
	return typedQuery[Row](tx.QueryByCompoundKey(collectionOf[Row](tx), fields, values))
}

func QueryByTenant[Row any](tx *Tx, companyID string) ([]*Row, error) {
	return typedQuery[Row](tx.QueryByTenant(collectionOf[Row](tx), companyID))
}

func QueryByPrefix[Row any](tx *Tx, field, prefix string) ([]*Row, error) {
	return typedQuery[Row](tx.QueryByPrefix(collectionOf[Row](tx), field, prefix))
}

// Lookup returns the first row matching values on idx, or nil.
func Lookup[Row any](tx *Tx, idx *Index, values ...string) (*Row, error) {
	rows, err := tx.QueryIndex(idx, values...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0].(*Row), nil
}

func typedQuery[Row any](rows []any, err error) ([]*Row, error) {
	if err != nil {
		return nil, err
	}
	return typedRows[Row](rows), nil
}
