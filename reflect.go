package loanstore

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var typeInfoCache sync.Map

type structInfo struct {
	keyField reflect.StructField
	byName   map[string][]int
}

func (si *structInfo) keyValue(rowVal reflect.Value) reflect.Value {
	return rowVal.Elem().FieldByIndex(si.keyField.Index)
}

// fieldPath resolves a field by its msgpack name, falling back to a
// case-insensitive Go field name match.
func (si *structInfo) fieldPath(name string) ([]int, bool) {
	if path, ok := si.byName[name]; ok {
		return path, true
	}
	path, ok := si.byName[strings.ToLower(name)]
	return path, ok
}

func reflectType(typ reflect.Type) *structInfo {
	if v, ok := typeInfoCache.Load(typ); ok {
		return v.(*structInfo)
	}
	info := reflectTypeWithoutCache(typ)
	actual, _ := typeInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func reflectTypeWithoutCache(typ reflect.Type) *structInfo {
	if typ.Kind() != reflect.Ptr {
		panic(fmt.Errorf("%v not a pointer", typ))
	}
	typ = typ.Elem()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("%v not a struct", typ))
	}
	if typ.NumField() == 0 {
		panic(fmt.Errorf("%v is an empty struct", typ))
	}
	keyField := typ.Field(0)
	if !keyField.IsExported() {
		panic(fmt.Errorf("key field %v.%s must be exported", typ, keyField.Name))
	}
	if keyField.Type.Kind() != reflect.String {
		panic(fmt.Errorf("key field %v.%s must be a string, got %v", typ, keyField.Name, keyField.Type))
	}

	info := &structInfo{
		keyField: keyField,
		byName:   make(map[string][]int),
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		info.byName[strings.ToLower(f.Name)] = f.Index
		if tag, _, _ := strings.Cut(f.Tag.Get("msgpack"), ","); tag != "" && tag != "-" {
			info.byName[tag] = f.Index
		}
	}
	return info
}

// stringField returns the string form of a string-kinded field value.
func stringField(rowVal reflect.Value, path []int) string {
	return rowVal.Elem().FieldByIndex(path).String()
}

func (tx *Tx) collectionByRowType(rt reflect.Type) *Collection {
	coll := tx.db.schema.collectionsByRowType[rt]
	if coll == nil {
		panic(fmt.Errorf("%w: no collection defined for row type %v", ErrInvalidCollection, rt))
	}
	return coll
}

func (tx *Tx) collectionByRowPtr(ptr any) *Collection {
	rt := reflect.TypeOf(ptr)
	if rt != nil && rt.Kind() == reflect.Ptr && rt.Elem().Kind() == reflect.Struct {
		return tx.collectionByRowType(rt)
	} else {
		panic(fmt.Errorf("%w: expected pointer to a collection row type, got %v", ErrInvalidCollection, rt))
	}
}
