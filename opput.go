package loanstore

import (
	"bytes"
	"fmt"
	"reflect"

	"go.etcd.io/bbolt"
)

// Put upserts rows, each into the collection declared for its type.
func Put(tx *Tx, rows ...any) error {
	for _, row := range rows {
		if _, err := tx.Put(tx.collectionByRowPtr(row), row); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) Put(coll *Collection, row any) (ValueMeta, error) {
	rowVal := reflect.ValueOf(row)
	if rowVal.Type() != coll.rowTypePtr {
		return ValueMeta{}, fmt.Errorf("%w: %s stores %v, got %T", ErrInvalidCollection, coll.name, coll.rowTypePtr, row)
	}
	if rowVal.IsNil() {
		return ValueMeta{}, fmt.Errorf("%w: nil %v", ErrInvalidCollection, coll.rowTypePtr)
	}
	return tx.putVal(coll, rowVal)
}

func (tx *Tx) putVal(coll *Collection, rowVal reflect.Value) (ValueMeta, error) {
	if err := tx.requireWritable(); err != nil {
		return ValueMeta{}, err
	}
	id := coll.rowKeyVal(rowVal)
	if id == "" {
		return ValueMeta{}, collErrf(coll, nil, nil, ErrEmptyKey, "put")
	}
	keyRaw := []byte(id)

	collBuck := coll.rootBucketIn(tx.btx)
	dataBuck := coll.dataBucketIn(collBuck)

	ts := tx.db.collState(coll)
	ib := makeIndexBuilder(ts, keyRaw)
	coll.indexer(rowVal.Interface(), &ib)
	ib.finalize()

	oldValueRaw := dataBuck.Get(keyRaw)
	var old value
	if oldValueRaw != nil {
		if err := old.decode(oldValueRaw); err != nil {
			return ValueMeta{}, collErrf(coll, nil, keyRaw, err, "decoding old value")
		}
	}

	for _, ir := range ib.rows {
		if !ir.Index.isUnique {
			continue
		}
		if owner := ir.Index.bucketIn(collBuck).Get(ir.KeyRaw); owner != nil && !bytes.Equal(owner, keyRaw) {
			return ValueMeta{}, collErrf(coll, ir.Index, keyRaw, ErrConstraintViolation, "%v already used by %s", ir.Values, owner)
		}
	}

	newSchemaVer := tx.db.schema.version
	newModCount := old.ModCount

	dataBytes := coll.encodeRowVal(nil, rowVal)
	indexBytes := appendIndexKeys(nil, ib.rows)

	isDataUnchanged := oldValueRaw != nil && bytes.Equal(dataBytes, old.Data)
	isIndexKeySetUnchanged := oldValueRaw != nil && bytes.Equal(indexBytes, old.Index)

	if isDataUnchanged && isIndexKeySetUnchanged && old.SchemaVer == newSchemaVer && !tx.reindexing {
		tx.db.logVerbose("db: PUT.NOOP", "collection", coll.name, "id", id, "m", newModCount)
		return ValueMeta{newSchemaVer, newModCount}, nil
	}
	if !isDataUnchanged {
		newModCount++
	}

	vle := value{
		Flags:     vfDefault,
		SchemaVer: newSchemaVer,
		ModCount:  newModCount,
		Data:      dataBytes,
		Index:     indexBytes,
	}
	tx.markWritten()
	ensure(dataBuck.Put(keyRaw, vle.encode(nil)))

	if tx.db.verbose {
		tx.db.logger.Debug("db: PUT", "collection", coll.name, "id", id, "m", newModCount, "row", loggableRowVal(coll, rowVal))
	}

	if oldValueRaw != nil && !isIndexKeySetUnchanged {
		del := prepareToDeleteIndexEntries(collBuck, ts)
		if err := findRemovedIndexKeys(old.Index, ib.rows, del); err != nil {
			return ValueMeta{}, collErrf(coll, nil, keyRaw, err, "decoding old index keys")
		}
	}

	// put new index entries even if the key set is unchanged, the index may be new
	var idx *Index
	var idxBuck *bbolt.Bucket
	for _, ir := range ib.rows {
		if ir.Index != idx {
			idx = ir.Index
			idxBuck = collBuck.Bucket(idx.buck.Raw())
			if idxBuck == nil {
				panic(fmt.Errorf("%w: missing bucket for index %v", ErrStoreUnavailable, idx.FullName()))
			}
		}
		ensure(idxBuck.Put(ir.KeyRaw, ir.ValueRaw))
	}

	return ValueMeta{newSchemaVer, newModCount}, nil
}
