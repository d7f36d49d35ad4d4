package loanstore

import (
	"fmt"

	"go.etcd.io/bbolt"
)

type Index struct {
	coll       *Collection
	pos        int // index in coll.indices, unstable across code changes
	name       string
	fields     []string
	fieldPaths [][]int
	since      uint64
	buck       bucketName
	isUnique   bool
}

func makeIndexBucketName(name string) bucketName {
	return makeBucketName("i_" + name)
}

// AddIndex declares an index over one or more string fields, named as in the
// row's msgpack tags.
func AddIndex(name string, fields ...string) *Index {
	if len(fields) == 0 {
		panic(fmt.Errorf("index %q needs at least one field", name))
	}
	return &Index{
		name:   name,
		fields: fields,
		buck:   makeIndexBucketName(name),
	}
}

func (idx *Index) requireCollection() {
	if idx.coll == nil {
		panic(fmt.Errorf("index %q was not added to a collection", idx.name))
	}
}

func (idx *Index) Collection() *Collection {
	return idx.coll
}

func (idx *Index) Name() string {
	return idx.name
}

func (idx *Index) FullName() string {
	idx.requireCollection()
	return idx.coll.name + "." + idx.name
}

func (idx *Index) Fields() []string {
	return append([]string(nil), idx.fields...)
}

func (idx *Index) IsUnique() bool {
	return idx.isUnique
}

func (idx *Index) SinceVersion() uint64 {
	return idx.since
}

func (idx *Index) Unique() *Index {
	idx.isUnique = true
	return idx
}

// Since sets the schema version that introduced the index. Defaults to the
// version of its collection.
func (idx *Index) Since(ver uint64) *Index {
	idx.since = ver
	return idx
}

func (idx *Index) coversExactly(fields []string) bool {
	if len(fields) != len(idx.fields) {
		return false
	}
	for i, f := range fields {
		if f != idx.fields[i] {
			return false
		}
	}
	return true
}

func (idx *Index) bucketIn(collRootB *bbolt.Bucket) *bbolt.Bucket {
	return nonNil(collRootB.Bucket(idx.buck.Raw()))
}
