package loanstore

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfSupportedMask = vfVer1
	vfDefault       = vfVer1

	checksumSize     = 8
	minValueSize     = 5 + checksumSize
	maxSchemaVersion = 32768 // just a sanity value, can be increased
)

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

type value struct {
	Flags     valueFlags
	SchemaVer uint64
	ModCount  uint64
	Data      []byte
	Index     []byte
}

// ValueMeta describes the stored version of a row.
type ValueMeta struct {
	SchemaVer uint64
	ModCount  uint64
}

func (vm ValueMeta) Exists() bool {
	return vm.ModCount != 0
}

func (vle value) ValueMeta() ValueMeta {
	return ValueMeta{
		SchemaVer: vle.SchemaVer,
		ModCount:  vle.ModCount,
	}
}

func (vle *value) encode(buf []byte) []byte {
	buf = appendUvarint(buf, uint64(vle.Flags))
	buf = appendUvarint(buf, vle.SchemaVer)
	buf = appendUvarint(buf, vle.ModCount)
	buf = appendUvarint(buf, uint64(len(vle.Data)))
	buf = appendUvarint(buf, uint64(len(vle.Index)))
	buf = binary.BigEndian.AppendUint64(buf, xxhash.Sum64(vle.Data))
	buf = appendRaw(buf, vle.Data)
	buf = appendRaw(buf, vle.Index)
	return buf
}

func (vle *value) decode(data []byte) error {
	if len(data) < minValueSize {
		return dataErrf(data, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}
	d := makeByteDecoder(data)

	v, err := d.Uvarint()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid value: bad flags")
	}
	if (v & ^uint64(vfSupportedMask)) != 0 {
		return dataErrf(data, d.Off(), nil, "invalid value: unsupported flags %x", v)
	}
	vle.Flags = valueFlags(v)

	v, err = d.Uvarint()
	if err != nil || v > maxSchemaVersion {
		return dataErrf(data, d.Off(), err, "invalid value: bad schema version")
	}
	vle.SchemaVer = v

	vle.ModCount, err = d.Uvarint()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid value: bad mod count")
	}

	dataSize, err := d.Uvarinti()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid value: bad data size")
	}
	indexSize, err := d.Uvarinti()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid value: bad index size")
	}
	sum, err := d.Fixed64()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid value: missing checksum")
	}

	if len(d.Buf) != dataSize+indexSize {
		return dataErrf(data, d.Off(), nil, "invalid value: got %d bytes for data+index, expected %d bytes", len(d.Buf), dataSize+indexSize)
	}
	vle.Data = d.Buf[:dataSize]
	vle.Index = d.Buf[dataSize:]

	if actual := xxhash.Sum64(vle.Data); actual != sum {
		return dataErrf(data, d.Off(), nil, "invalid value: checksum mismatch %016x != %016x", actual, sum)
	}
	return nil
}
