package loanstore

// DeleteByKey removes the row with the given primary key. Deleting an absent
// row is not an error.
func DeleteByKey[Row any](tx *Tx, id string) (bool, error) {
	return tx.Delete(collectionOf[Row](tx), id)
}

func (tx *Tx) Delete(coll *Collection, id string) (bool, error) {
	if err := tx.requireWritable(); err != nil {
		return false, err
	}
	if id == "" {
		return false, nil
	}
	ok, err := tx.deleteByKeyRaw(coll, []byte(id))
	if tx.db.verbose {
		if ok {
			tx.db.logger.Debug("db: DELETE", "collection", coll.name, "id", id)
		} else {
			tx.db.logger.Debug("db: DELETE.NOOP", "collection", coll.name, "id", id)
		}
	}
	return ok, err
}

// DeleteWhere removes every row whose indexed fields equal values, through the
// index declared on exactly these fields. Returns the number of rows removed.
func (tx *Tx) DeleteWhere(coll *Collection, fields []string, values []string) (int, error) {
	if err := tx.requireWritable(); err != nil {
		return 0, err
	}
	idx, err := coll.IndexOn(fields...)
	if err != nil {
		return 0, err
	}
	keys, err := tx.lookupKeys(idx, stringsTuple(values), false)
	if err != nil {
		return 0, err
	}
	var count int
	for _, key := range keys {
		ok, err := tx.deleteByKeyRaw(coll, key)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	tx.db.logVerbose("db: DELETE.WHERE", "index", idx.FullName(), "values", values, "rows", count)
	return count, nil
}

func (tx *Tx) deleteByKeyRaw(coll *Collection, keyRaw []byte) (bool, error) {
	collBuck := coll.rootBucketIn(tx.btx)
	dataBuck := coll.dataBucketIn(collBuck)
	ts := tx.db.collState(coll)

	v := dataBuck.Get(keyRaw)
	if v == nil {
		return false, nil
	}

	var old value
	if err := old.decode(v); err != nil {
		return false, collErrf(coll, nil, keyRaw, err, "decoding old value")
	}

	tx.markWritten()

	del := prepareToDeleteIndexEntries(collBuck, ts)
	if err := decodeIndexKeys(old.Index, del); err != nil {
		return false, collErrf(coll, nil, keyRaw, err, "decoding index keys")
	}

	ensure(dataBuck.Delete(keyRaw))
	return true, nil
}
