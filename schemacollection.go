package loanstore

import (
	"fmt"
	"reflect"

	"go.etcd.io/bbolt"
)

type Collection struct {
	schema          *Schema
	name            string
	since           uint64
	pos             int // index in schema.collections, unstable across code changes
	buck            bucketName
	rowType         reflect.Type
	rowTypePtr      reflect.Type
	rowInfo         *structInfo
	indices         []*Index
	indicesByName   map[string]*Index
	indexer         func(row any, ib *IndexBuilder)
	migrator        func(row any, oldVer uint64)
	valueEnc        encodingMethod
	suppressContent bool
}

type CollectionBuilder[Row any] struct {
	coll *Collection
}

// DefineCollection declares a collection of Row structs. The first field of Row
// must be an exported string, the primary key.
func DefineCollection[Row any](scm *Schema, name string, f func(b *CollectionBuilder[Row])) *Collection {
	rowPtrType := reflect.TypeFor[*Row]()
	if rowPtrType.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("DefineCollection(%s): Row must be a struct", name))
	}
	coll := &Collection{
		schema:        scm,
		name:          name,
		since:         1,
		buck:          makeBucketName(name),
		rowTypePtr:    rowPtrType,
		rowType:       rowPtrType.Elem(),
		rowInfo:       reflectType(rowPtrType),
		indicesByName: make(map[string]*Index),
		valueEnc:      defaultValueEncoding,
	}
	coll.indexer = coll.fieldIndexer

	if f != nil {
		b := CollectionBuilder[Row]{coll: coll}
		f(&b)
	}

	if coll.since > scm.version {
		panic(fmt.Errorf("collection %s introduced at version %d, schema is at %d", name, coll.since, scm.version))
	}
	for _, idx := range coll.indices {
		if idx.since == 0 {
			idx.since = coll.since
		} else if idx.since < coll.since || idx.since > scm.version {
			panic(fmt.Errorf("index %s introduced at version %d, outside %d..%d", idx.FullName(), idx.since, coll.since, scm.version))
		}
	}
	scm.addCollection(coll)
	return coll
}

// Since sets the schema version that introduced the collection.
func (b *CollectionBuilder[Row]) Since(ver uint64) {
	b.coll.since = ver
}

// Indexer replaces the default indexer, which reads each index's fields
// straight from the row.
func (b *CollectionBuilder[Row]) Indexer(f func(row *Row, ib *IndexBuilder)) {
	b.coll.indexer = func(row any, ib *IndexBuilder) {
		f(row.(*Row), ib)
	}
}

// Migrate is called on rows written under an older schema version as they are read.
func (b *CollectionBuilder[Row]) Migrate(f func(row *Row, oldVer uint64)) {
	b.coll.migrator = func(row any, oldVer uint64) {
		f(row.(*Row), oldVer)
	}
}

func (b *CollectionBuilder[Row]) AddIndex(idx *Index) {
	b.coll.addIndex(idx)
}

func (b *CollectionBuilder[Row]) SuppressContentWhenLogging() {
	b.coll.suppressContent = true
}

func (coll *Collection) addIndex(idx *Index) {
	if idx.coll != nil {
		panic(fmt.Errorf("index %q already belongs to %s", idx.name, idx.coll.name))
	}
	if coll.indicesByName[idx.name] != nil {
		panic(fmt.Errorf("collection %s already has index named %q", coll.name, idx.name))
	}
	idx.fieldPaths = make([][]int, len(idx.fields))
	for i, field := range idx.fields {
		path, ok := coll.rowInfo.fieldPath(field)
		if !ok {
			panic(fmt.Errorf("collection %s: index %s refers to unknown field %q", coll.name, idx.name, field))
		}
		if ft := coll.rowType.FieldByIndex(path).Type; ft.Kind() != reflect.String {
			panic(fmt.Errorf("collection %s: index %s field %q must be a string, got %v", coll.name, idx.name, field, ft))
		}
		idx.fieldPaths[i] = path
	}
	idx.pos = len(coll.indices)
	idx.coll = coll
	coll.indices = append(coll.indices, idx)
	coll.indicesByName[idx.name] = idx
}

func (coll *Collection) fieldIndexer(row any, ib *IndexBuilder) {
	rowVal := reflect.ValueOf(row)
	for _, idx := range coll.indices {
		values := make([]string, len(idx.fieldPaths))
		for i, path := range idx.fieldPaths {
			values[i] = stringField(rowVal, path)
		}
		ib.Add(idx, values...)
	}
}

func (coll *Collection) Name() string {
	return coll.name
}

func (coll *Collection) Since() uint64 {
	return coll.since
}

func (coll *Collection) Indices() []*Index {
	return append([]*Index(nil), coll.indices...)
}

func (coll *Collection) IndexNamed(name string) *Index {
	return coll.indicesByName[name]
}

// IndexOn finds the index declared over exactly these fields, in this order.
func (coll *Collection) IndexOn(fields ...string) (*Index, error) {
	for _, idx := range coll.indices {
		if idx.coversExactly(fields) {
			return idx, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no index on %v", ErrInvalidIndex, coll.name, fields)
}

func (coll *Collection) RowKey(row any) string {
	return coll.rowKeyVal(reflect.ValueOf(row))
}

func (coll *Collection) rowKeyVal(rowVal reflect.Value) string {
	return coll.rowInfo.keyValue(rowVal).String()
}

func (coll *Collection) setRowKeyVal(rowVal reflect.Value, key string) {
	coll.rowInfo.keyValue(rowVal).SetString(key)
}

func (coll *Collection) NewRow() any {
	return reflect.New(coll.rowType).Interface()
}

func (coll *Collection) rootBucketIn(btx *bbolt.Tx) *bbolt.Bucket {
	return nonNil(btx.Bucket(coll.buck.Raw()))
}

func (coll *Collection) dataBucketIn(collRootB *bbolt.Bucket) *bbolt.Bucket {
	return nonNil(collRootB.Bucket(dataBucket.Raw()))
}

func (coll *Collection) encodeRowVal(buf []byte, rowVal reflect.Value) []byte {
	return coll.valueEnc.EncodeValue(buf, rowVal)
}

func (coll *Collection) decodeRow(keyRaw, buf []byte) (reflect.Value, error) {
	rowVal := reflect.New(coll.rowType)
	err := coll.valueEnc.DecodeValue(buf, rowVal)
	if err != nil {
		return rowVal, err
	}
	coll.setRowKeyVal(rowVal, string(keyRaw))
	return rowVal, nil
}
