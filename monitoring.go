package loanstore

import (
	"encoding/json"
	"reflect"

	"go.etcd.io/bbolt"
)

type CollectionStats struct {
	Rows      int
	IndexRows int

	DataSize   int
	DataAlloc  int
	IndexSize  int
	IndexAlloc int
}

func (cs *CollectionStats) TotalSize() int {
	return cs.DataSize + cs.IndexSize
}

func (cs *CollectionStats) TotalAlloc() int {
	return cs.DataAlloc + cs.IndexAlloc
}

func (tx *Tx) CollectionStats(coll *Collection) CollectionStats {
	collBuck := coll.rootBucketIn(tx.btx)

	bs := coll.dataBucketIn(collBuck).Stats()
	result := CollectionStats{
		Rows:      bs.KeyN,
		DataSize:  bs.LeafInuse,
		DataAlloc: bs.BranchAlloc + bs.LeafAlloc,
	}

	for _, idx := range coll.indices {
		bs = idx.bucketIn(collBuck).Stats()
		result.IndexRows += bs.KeyN
		result.IndexSize += bs.LeafInuse
		result.IndexAlloc += bs.BranchAlloc + bs.LeafAlloc
	}

	return result
}

// Stats returns per-collection stats keyed by collection name.
func (db *DB) Stats() (map[string]CollectionStats, error) {
	result := make(map[string]CollectionStats, len(db.schema.collections))
	err := db.bdb.View(func(btx *bbolt.Tx) error {
		tx := db.newTx(btx)
		for _, coll := range db.schema.collections {
			result[coll.name] = tx.CollectionStats(coll)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("stats", err)
	}
	return result, nil
}

func loggableRowVal(coll *Collection, rowVal reflect.Value) string {
	if !rowVal.IsValid() {
		return "<none>"
	}
	if coll.suppressContent {
		return "<suppressed>"
	}
	return string(must(json.Marshal(rowVal.Interface())))
}
