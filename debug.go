package loanstore

import (
	"fmt"
	"strings"

	"go.etcd.io/bbolt"
)

type DumpFlags uint64

const (
	DumpCollectionHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats
	DumpIndices
	DumpIndexRows

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

func (tx *Tx) Dump(f DumpFlags) string {
	var buf strings.Builder
	for _, coll := range tx.db.schema.collections {
		tx.dumpCollection(&buf, f, coll)
	}
	return buf.String()
}

func (tx *Tx) dumpCollection(w *strings.Builder, f DumpFlags, coll *Collection) {
	prefix := coll.name
	s := tx.CollectionStats(coll)
	ts := tx.db.collState(coll)

	if f.Contains(DumpCollectionHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d rows, since v%d)\n", prefix, s.Rows, coll.since)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: index_rows = %d, data_size = %d, data_alloc = %d, index_size = %d, index_alloc = %d, total_alloc = %d\n", prefix, s.IndexRows, s.DataSize, s.DataAlloc, s.IndexSize, s.IndexAlloc, s.TotalAlloc())
	}

	rootB := coll.rootBucketIn(tx.btx)

	if f.Contains(DumpRows) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		c := coll.dataBucketIn(rootB).Cursor()
		var rowPos int
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rowPos++
			tx.dumpRow(w, prefix, coll, rowPos, k, v)
		}
	}

	if f.Contains(DumpIndices) {
		for _, idx := range coll.indices {
			tx.dumpIndex(w, prefix, f, idx, ts, rootB)
		}
	}
}

func (tx *Tx) dumpIndex(w *strings.Builder, prefix string, f DumpFlags, idx *Index, ts *collectionState, rootB *bbolt.Bucket) {
	fmt.Fprintln(w, dumpSep2)
	prefix = prefix + ".i." + idx.name
	is := ts.indexStates[idx.pos]

	fmt.Fprintf(w, "%s %v (0x%x)%s\n", prefix, idx.fields, is.IndexOrdinal, map[bool]string{false: " PENDING", true: ""}[is.Built])

	if f.Contains(DumpIndexRows) {
		c := idx.bucketIn(rootB).Cursor()
		var rowPos int
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rowPos++
			tup, err := decodeTuple(k)
			if err != nil {
				fmt.Fprintf(w, "%s.%d: ** ERROR: %v\n", prefix, rowPos, err)
				continue
			}
			if idx.isUnique {
				fmt.Fprintf(w, "%s.%d: %s => %s\n", prefix, rowPos, tup, v)
			} else if n := len(tup); n > 0 {
				fmt.Fprintf(w, "%s.%d: %s => %s\n", prefix, rowPos, tup[:n-1], tup[n-1])
			}
		}
	}
}

func (tx *Tx) dumpRow(w *strings.Builder, prefix string, coll *Collection, rowPos int, k, v []byte) {
	rowVal, rowMeta, err := tx.decodeRowValue(coll, k, v)
	if err != nil {
		fmt.Fprintf(w, "%s.%d = ** ERROR: %v\n", prefix, rowPos, err)
		return
	}
	fmt.Fprintf(w, "%s.%d = (m%d s%d) %s %s\n", prefix, rowPos, rowMeta.ModCount, rowMeta.SchemaVer, k, loggableRowVal(coll, rowVal))
}
