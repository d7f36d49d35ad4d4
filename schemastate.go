package loanstore

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

func (db *DB) collState(coll *Collection) *collectionState {
	return db.collStates[coll.pos]
}

type collectionState struct {
	Since            uint64                 `msgpack:"s"`
	LastIndexOrdinal uint64                 `msgpack:"li"`
	Indices          map[string]*indexState `msgpack:"i"`
	LastSeen         time.Time              `msgpack:"t"`

	coll             *Collection            `msgpack:"-"`
	isNew            bool                   `msgpack:"-"`
	indexStates      []*indexState          `msgpack:"-"`
	indexStatesByOrd map[uint64]*indexState `msgpack:"-"`
}

func (ts *collectionState) indexOrdinal(idx *Index) uint64 {
	return nonNil(ts.indexStates[idx.pos]).IndexOrdinal
}

func (ts *collectionState) hasPendingIndices() bool {
	for _, is := range ts.indexStates {
		if is != nil && !is.Built {
			return true
		}
	}
	return false
}

type indexState struct {
	name         string   `msgpack:"-"`
	index        *Index   `msgpack:"-"`
	IndexOrdinal uint64   `msgpack:"o"`
	Fields       []string `msgpack:"fl,omitempty"`
	Unique       bool     `msgpack:"u,omitempty"`
	Since        uint64   `msgpack:"s,omitempty"`
	Built        bool     `msgpack:"f"`
}

var collStateKey = []byte("_state")

const collStateEncoding = MsgPack

// upgrade brings the store from its stored version to the schema version, one
// version at a time. Every step only creates what is missing.
func (db *DB) upgrade(tx *Tx, now time.Time) error {
	scm := db.schema
	metaB, err := tx.btx.CreateBucketIfNotExists(metaBucket.Raw())
	if err != nil {
		return storeErr("meta", err)
	}
	stored, err := readStoredVersion(metaB)
	if err != nil {
		return err
	}
	db.storedVersion = stored
	target := scm.version

	if stored > target {
		return fmt.Errorf("%w: store is at version %d, schema declares %d", ErrSchemaTooNew, stored, target)
	}

	from := stored + 1
	if stored == 0 {
		db.logger.Info("store: creating", "version", target)
		from = target
	} else if stored < target {
		db.logger.Info("store: upgrading", "from", stored, "to", target)
	}

	for v := from; v <= target; v++ {
		for _, coll := range scm.collections {
			if coll.since > v {
				continue
			}
			ts, err := db.prepareCollection(tx, coll, v, db.collStates[coll.pos], now)
			if err != nil {
				return err
			}
			db.collStates[coll.pos] = ts
		}
	}
	// Also verifies a store that is already current.
	for _, coll := range scm.collections {
		ts, err := db.prepareCollection(tx, coll, target, db.collStates[coll.pos], now)
		if err != nil {
			return err
		}
		db.collStates[coll.pos] = ts
	}

	for _, mp := range scm.maps {
		if _, err := tx.btx.CreateBucketIfNotExists(mp.buck.Raw()); err != nil {
			return storeErr("map "+mp.name, err)
		}
	}

	for _, ts := range db.collStates {
		if ts.hasPendingIndices() {
			if err := db.backfill(tx, ts); err != nil {
				return err
			}
		}
		for _, name := range ts.undeclaredIndexNames() {
			db.logger.Info("store: retaining undeclared index", "collection", ts.coll.name, "index", name)
		}
	}

	for _, ts := range db.collStates {
		if err := ts.save(tx); err != nil {
			return err
		}
	}

	if stored != target {
		if err := metaB.Put(versionKey, binary.AppendUvarint(nil, target)); err != nil {
			return storeErr("meta", err)
		}
	}
	return nil
}

func readStoredVersion(metaB *bbolt.Bucket) (uint64, error) {
	raw := metaB.Get(versionKey)
	if raw == nil {
		return 0, nil
	}
	d := makeByteDecoder(raw)
	v, err := d.Uvarint()
	if err != nil {
		return 0, fmt.Errorf("%w: bad stored version: %w", ErrStoreUnavailable, err)
	}
	return v, nil
}

func (db *DB) prepareCollection(tx *Tx, coll *Collection, ver uint64, ts *collectionState, now time.Time) (*collectionState, error) {
	rootB := tx.btx.Bucket(coll.buck.Raw())
	if ts == nil {
		ts = new(collectionState)
		if rootB != nil {
			if raw := rootB.Get(collStateKey); raw != nil {
				err := collStateEncoding.DecodeValue(raw, reflect.ValueOf(ts))
				if err != nil {
					return nil, collErrf(coll, nil, nil, err, "failed to decode collection state")
				}
			}
		}
		ts.coll = coll
		if ts.Indices == nil {
			ts.Indices = make(map[string]*indexState)
		}
		ts.indexStates = make([]*indexState, len(coll.indices))
		ts.indexStatesByOrd = make(map[uint64]*indexState)
		for name, is := range ts.Indices {
			is.name = name
			ts.indexStatesByOrd[is.IndexOrdinal] = is
		}
	}

	if rootB == nil {
		var err error
		rootB, err = tx.btx.CreateBucket(coll.buck.Raw())
		if err != nil {
			return nil, storeErr("create "+coll.name, err)
		}
		ts.isNew = true
		ts.Since = ver
		db.logger.Info("store: created collection", "collection", coll.name, "version", ver)
	}
	if _, err := rootB.CreateBucketIfNotExists(dataBucket.Raw()); err != nil {
		return nil, storeErr("create "+coll.name, err)
	}

	for i, idx := range coll.indices {
		if idx.since > ver {
			continue
		}
		is := ts.Indices[idx.name]
		if is == nil {
			ts.LastIndexOrdinal++
			is = &indexState{
				name:         idx.name,
				IndexOrdinal: ts.LastIndexOrdinal,
				Fields:       idx.fields,
				Unique:       idx.isUnique,
				Since:        ver,
				Built:        ts.isNew,
			}
			ts.Indices[idx.name] = is
			ts.indexStatesByOrd[is.IndexOrdinal] = is
			db.logger.Info("store: created index", "index", idx.FullName(), "version", ver, "built", is.Built)
		} else if is.index == nil && len(is.Fields) > 0 && !slices.Equal(is.Fields, idx.fields) {
			db.logger.Warn("store: index fields differ from stored state", "index", idx.FullName(), "stored", is.Fields, "declared", idx.fields)
		}
		if rootB.Bucket(idx.buck.Raw()) == nil {
			if _, err := rootB.CreateBucket(idx.buck.Raw()); err != nil {
				return nil, storeErr("create "+idx.FullName(), err)
			}
			if !ts.isNew && is.Built {
				db.logger.Warn("store: index bucket missing, rebuilding", "index", idx.FullName())
				is.Built = false
			}
		}
		is.index = idx
		ts.indexStates[i] = is
	}

	ts.LastSeen = now
	return ts, nil
}

func (ts *collectionState) undeclaredIndexNames() []string {
	var names []string
	for name, is := range ts.Indices {
		if is.index == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (db *DB) backfill(tx *Tx, ts *collectionState) error {
	coll := ts.coll
	start := time.Now()
	db.logger.Info("store: re-indexing", "collection", coll.name)

	dataB := coll.dataBucketIn(coll.rootBucketIn(tx.btx))
	var keys [][]byte
	err := dataB.ForEach(func(k, _ []byte) error {
		keys = append(keys, cloneBytes(k))
		return nil
	})
	if err != nil {
		return storeErr("re-index "+coll.name, err)
	}

	tx.reindexing = true
	defer func() { tx.reindexing = false }()
	for _, k := range keys {
		rowVal, _, err := tx.getRowVal(coll, k)
		if err != nil {
			return err
		}
		if _, err := tx.putVal(coll, rowVal); err != nil {
			return err
		}
	}

	for _, is := range ts.indexStates {
		if is != nil {
			is.Built = true
		}
	}
	db.logger.Info("store: re-indexed", "collection", coll.name, "rows", len(keys), "ms", time.Since(start).Milliseconds())
	return nil
}

func (ts *collectionState) save(tx *Tx) error {
	rawTS := collStateEncoding.EncodeValue(nil, reflect.ValueOf(ts))
	rootB := ts.coll.rootBucketIn(tx.btx)
	if err := rootB.Put(collStateKey, rawTS); err != nil {
		return storeErr("save state "+ts.coll.name, err)
	}
	return nil
}
