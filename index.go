package loanstore

import (
	"bytes"
	"fmt"
	"sort"
)

type IndexRow struct {
	IndexOrd uint64
	Index    *Index
	Values   []string
	KeyRaw   []byte
	ValueRaw []byte
}

var emptyIndexValue = []byte{}

type IndexBuilder struct {
	ts   *collectionState
	rows indexRows
	key  []byte
}

func makeIndexBuilder(ts *collectionState, keyRaw []byte) IndexBuilder {
	return IndexBuilder{
		ts:  ts,
		key: keyRaw,
	}
}

// Add records an index entry for the row being saved. Entries with an empty
// value in any field are skipped, so absent fields are simply not indexed.
func (b *IndexBuilder) Add(idx *Index, values ...string) {
	if idx.coll != b.ts.coll {
		panic(fmt.Errorf("%s: attempted to add index entry to a row of %s", idx.FullName(), b.ts.coll.name))
	}
	if len(values) != len(idx.fields) {
		panic(fmt.Errorf("%s: got %d values, index has %d fields", idx.FullName(), len(values), len(idx.fields)))
	}
	for _, v := range values {
		if v == "" {
			return
		}
	}

	tup := stringsTuple(values)
	var keyRaw, valueRaw []byte
	if idx.isUnique {
		keyRaw = tup.encode(nil)
		valueRaw = b.key
	} else {
		keyRaw = append(tup, b.key).encode(nil)
		valueRaw = emptyIndexValue
	}

	b.rows = append(b.rows, IndexRow{
		IndexOrd: b.ts.indexOrdinal(idx),
		Index:    idx,
		Values:   values,
		KeyRaw:   keyRaw,
		ValueRaw: valueRaw,
	})
}

func (b *IndexBuilder) finalize() {
	sort.Sort(b.rows)
}

// indexRows sort by ordinal, then key, which is the order index keys are
// stored inside values.
type indexRows []IndexRow

func (a indexRows) Len() int      { return len(a) }
func (a indexRows) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a indexRows) Less(i, j int) bool {
	lo, ro := a[i].IndexOrd, a[j].IndexOrd
	if lo != ro {
		return lo < ro
	}
	return bytes.Compare(a[i].KeyRaw, a[j].KeyRaw) < 0
}
