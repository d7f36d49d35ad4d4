package loanstore

import (
	"errors"
	"testing"
)

func TestValueRoundTrip(t *testing.T) {
	vle := value{
		Flags:     vfDefault,
		SchemaVer: 3,
		ModCount:  7,
		Data:      []byte{1, 2, 3},
		Index:     []byte{9, 8},
	}
	raw := vle.encode(nil)

	var decoded value
	ensure(decoded.decode(raw))
	deepEqual(t, decoded, vle)
	deepEqual(t, decoded.ValueMeta(), ValueMeta{SchemaVer: 3, ModCount: 7})
	deepEqual(t, decoded.Flags.ver(), vfVer1)
}

func TestValueChecksum(t *testing.T) {
	vle := value{Flags: vfDefault, SchemaVer: 1, ModCount: 1, Data: []byte("hello world")}
	raw := vle.encode(nil)
	raw[len(raw)-1] ^= 0xFF

	var decoded value
	err := decoded.decode(raw)
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("decode(tampered) = %v, wanted *DataError", err)
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("decode(tampered) = %v, wanted %v", err, ErrStoreUnavailable)
	}
}

func TestValueInvalid(t *testing.T) {
	for _, raw := range [][]byte{
		nil,
		{1, 2, 3},
		{0xFE, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{1, 1, 1, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	} {
		var vle value
		if err := vle.decode(raw); err == nil {
			t.Errorf("** decode(%x) err = nil, wanted error", raw)
		}
	}
}

func TestValueMetaExists(t *testing.T) {
	deepEqual(t, ValueMeta{}.Exists(), false)
	deepEqual(t, ValueMeta{SchemaVer: 1, ModCount: 1}.Exists(), true)
}
