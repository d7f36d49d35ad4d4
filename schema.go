package loanstore

import (
	"fmt"
	"reflect"
)

var (
	dataBucket = makeBucketName("data")
	metaBucket = makeBucketName("_meta")
	versionKey = []byte("version")
)

type Schema struct {
	version              uint64
	collections          []*Collection
	collectionsByName    map[string]*Collection
	collectionsByRowType map[reflect.Type]*Collection
	maps                 []*KVMap
}

// NewSchema starts a schema declaration at the given version. Versions start
// at 1 and only ever grow.
func NewSchema(version uint64) *Schema {
	if version == 0 || version > maxSchemaVersion {
		panic(fmt.Errorf("invalid schema version %d", version))
	}
	return &Schema{
		version:              version,
		collectionsByName:    make(map[string]*Collection),
		collectionsByRowType: make(map[reflect.Type]*Collection),
	}
}

func (scm *Schema) Version() uint64 {
	return scm.version
}

func (scm *Schema) Collections() []*Collection {
	return append([]*Collection(nil), scm.collections...)
}

func (scm *Schema) CollectionNamed(name string) (*Collection, error) {
	coll := scm.collectionsByName[name]
	if coll == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return coll, nil
}

func (scm *Schema) addCollection(coll *Collection) {
	if scm.collectionsByName[coll.name] != nil {
		panic(fmt.Errorf("duplicate collection %q", coll.name))
	}
	if scm.collectionsByRowType[coll.rowTypePtr] != nil {
		panic(fmt.Errorf("row type %v already used by collection %s", coll.rowTypePtr, scm.collectionsByRowType[coll.rowTypePtr].name))
	}
	for _, mp := range scm.maps {
		if mp.name == coll.name {
			panic(fmt.Errorf("collection %q clashes with a map", coll.name))
		}
	}
	coll.pos = len(scm.collections)
	scm.collections = append(scm.collections, coll)
	scm.collectionsByName[coll.name] = coll
	scm.collectionsByRowType[coll.rowTypePtr] = coll
}

type bucketName []byte

func makeBucketName(name string) bucketName {
	return bucketName(name)
}

func (bn bucketName) String() string {
	return string(bn)
}

func (bn bucketName) Raw() []byte {
	return []byte(bn)
}

type KVMap struct {
	name string
	buck bucketName
}

func AddKVMap(scm *Schema, name string) *KVMap {
	if scm.collectionsByName[name] != nil {
		panic(fmt.Errorf("map %q clashes with a collection", name))
	}
	mp := &KVMap{
		name: name,
		buck: makeBucketName(name),
	}
	scm.maps = append(scm.maps, mp)
	return mp
}

func (mp *KVMap) Name() string {
	return mp.name
}

func AddSingletonKey(mp *KVMap, key string) *SKey {
	sk := &SKey{
		mp:       mp,
		keyBytes: []byte(key),
		valueEnc: defaultValueEncoding,
	}
	return sk
}

type SKey struct {
	mp       *KVMap
	keyBytes []byte
	valueEnc encodingMethod
}

// JSON switches the key to JSON values, for blobs shared with other readers.
func (sk *SKey) JSON() *SKey {
	sk.valueEnc = JSON
	return sk
}

func (sk *SKey) String() string {
	return sk.mp.buck.String() + "." + string(sk.keyBytes)
}

func (sk *SKey) Raw() []byte {
	return sk.keyBytes
}
