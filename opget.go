package loanstore

import (
	"reflect"
)

func collectionOf[Row any](tx *Tx) *Collection {
	return tx.collectionByRowType(reflect.TypeFor[*Row]())
}

// Get returns the row with the given primary key, or nil when absent.
func Get[Row any](tx *Tx, id string) (*Row, error) {
	row, _, err := tx.Get(collectionOf[Row](tx), id)
	if row == nil || err != nil {
		return nil, err
	}
	return row.(*Row), nil
}

func Exists[Row any](tx *Tx, id string) bool {
	return tx.Exists(collectionOf[Row](tx), id)
}

func (tx *Tx) Get(coll *Collection, id string) (any, ValueMeta, error) {
	if id == "" {
		return nil, ValueMeta{}, nil
	}
	rowVal, meta, err := tx.getRowVal(coll, []byte(id))
	if tx.db.verbose {
		if rowVal.IsValid() {
			tx.db.logger.Debug("db: GET", "collection", coll.name, "id", id, "m", meta.ModCount, "row", loggableRowVal(coll, rowVal))
		} else {
			tx.db.logger.Debug("db: GET.NOTFOUND", "collection", coll.name, "id", id)
		}
	}
	if err != nil || !rowVal.IsValid() {
		return nil, meta, err
	}
	return rowVal.Interface(), meta, nil
}

func (tx *Tx) GetMeta(coll *Collection, id string) (ValueMeta, error) {
	raw := tx.getRaw(coll, []byte(id))
	if raw == nil {
		return ValueMeta{}, nil
	}
	var vle value
	if err := vle.decode(raw); err != nil {
		return ValueMeta{}, collErrf(coll, nil, []byte(id), err, "decoding value")
	}
	return vle.ValueMeta(), nil
}

func (tx *Tx) Exists(coll *Collection, id string) bool {
	found := id != "" && tx.getRaw(coll, []byte(id)) != nil
	tx.db.logVerbose("db: EXISTS", "collection", coll.name, "id", id, "found", found)
	return found
}

func (tx *Tx) getRaw(coll *Collection, keyRaw []byte) []byte {
	return coll.dataBucketIn(coll.rootBucketIn(tx.btx)).Get(keyRaw)
}

func (tx *Tx) getRowVal(coll *Collection, keyRaw []byte) (reflect.Value, ValueMeta, error) {
	valueRaw := tx.getRaw(coll, keyRaw)
	if valueRaw == nil {
		return reflect.Value{}, ValueMeta{}, nil
	}
	return tx.decodeRowValue(coll, keyRaw, valueRaw)
}

func (tx *Tx) decodeRowValue(coll *Collection, keyRaw, valueRaw []byte) (reflect.Value, ValueMeta, error) {
	var vle value
	if err := vle.decode(valueRaw); err != nil {
		return reflect.Value{}, ValueMeta{}, collErrf(coll, nil, cloneBytes(keyRaw), err, "decoding value")
	}
	rowVal, err := coll.decodeRow(keyRaw, vle.Data)
	if err != nil {
		return reflect.Value{}, ValueMeta{}, collErrf(coll, nil, cloneBytes(keyRaw), err, "decoding row")
	}
	if coll.migrator != nil && vle.SchemaVer < tx.db.schema.version {
		coll.migrator(rowVal.Interface(), vle.SchemaVer)
	}
	return rowVal, vle.ValueMeta(), nil
}

// All returns every row of the collection in primary key order.
func All[Row any](tx *Tx) ([]*Row, error) {
	rows, err := tx.GetAll(collectionOf[Row](tx))
	if err != nil {
		return nil, err
	}
	return typedRows[Row](rows), nil
}

func (tx *Tx) GetAll(coll *Collection) ([]any, error) {
	var rows []any
	c := coll.dataBucketIn(coll.rootBucketIn(tx.btx)).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		rowVal, _, err := tx.decodeRowValue(coll, k, v)
		if err != nil {
			return nil, err
		}
		rows = append(rows, rowVal.Interface())
	}
	tx.db.logVerbose("db: GETALL", "collection", coll.name, "rows", len(rows))
	return rows, nil
}

func Count[Row any](tx *Tx) int {
	return tx.Count(collectionOf[Row](tx))
}

func (tx *Tx) Count(coll *Collection) int {
	return coll.dataBucketIn(coll.rootBucketIn(tx.btx)).Stats().KeyN
}

func typedRows[Row any](rows []any) []*Row {
	result := make([]*Row, len(rows))
	for i, row := range rows {
		result[i] = row.(*Row)
	}
	return result
}
