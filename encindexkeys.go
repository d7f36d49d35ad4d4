package loanstore

import (
	"bytes"

	"go.etcd.io/bbolt"
)

func appendIndexKeys(buf []byte, rows []IndexRow) []byte {
	buf = appendUvarint(buf, uint64(len(rows)))
	for _, row := range rows {
		buf = appendUvarint(buf, row.IndexOrd)
		buf = appendVarbytes(buf, row.KeyRaw)
	}
	return buf
}

func decodeIndexKeys(data []byte, f func(ord uint64, key []byte)) error {
	if len(data) == 0 {
		return nil
	}
	d := makeByteDecoder(data)
	n, err := d.Uvarinti()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		ord, err := d.Uvarint()
		if err != nil {
			return err
		}
		key, err := d.VarBytes()
		if err != nil {
			return err
		}
		f(ord, key)
	}
	return nil
}

type indexDiffer struct {
	newRows indexRows
}

func (d *indexDiffer) checkOldKey(oldOrd uint64, oldKey []byte) bool {
	// Look for a new row that's >= old row.
	for len(d.newRows) > 0 {
		newOrd := d.newRows[0].IndexOrd
		if oldOrd < newOrd {
			return false
		} else if oldOrd == newOrd {
			c := bytes.Compare(oldKey, d.newRows[0].KeyRaw)
			if c < 0 {
				return false
			} else if c == 0 {
				return true // found exact match
			}
		}
		d.newRows = d.newRows[1:] // shift to next new row and compare again
	}
	return false // no more new rows, so remaining old rows have been deleted
}

func findRemovedIndexKeys(oldData []byte, newRows indexRows, removed func(ord uint64, key []byte)) error {
	d := indexDiffer{newRows}
	return decodeIndexKeys(oldData, func(ord uint64, key []byte) {
		if !d.checkOldKey(ord, key) {
			removed(ord, key)
		}
	})
}

func prepareToDeleteIndexEntries(collRootB *bbolt.Bucket, ts *collectionState) func(ord uint64, key []byte) {
	var idxOrd uint64
	var idxBuck *bbolt.Bucket

	return func(ord uint64, key []byte) {
		if idxOrd != ord {
			idxOrd = ord
			if is := ts.indexStatesByOrd[ord]; is != nil {
				idxBuck = collRootB.Bucket(makeIndexBucketName(is.name).Raw())
			} else {
				idxBuck = nil
			}
		}
		if idxBuck != nil {
			ensure(idxBuck.Delete(key))
		}
	}
}
