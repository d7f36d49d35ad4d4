/*
Package loanstore implements a schema-versioned document store on top of a
key-value store (in this case, on top of Bolt).

We implement:

1. Collections, sets of documents marshaled from a given struct and keyed by a
string primary key (the first struct field).

2. Indices over one or more string fields, unique or not, queried by exact
match on the full field tuple (or by prefix for single-field indices).

3. Maps, exposing raw key-value buckets, and Singleton Keys storing a typed
value for a given key within a map (say, a “flag” value in a “settings” map).

4. Schema versions. Each collection and index records the schema version that
introduced it. Opening an older store runs the missing upgrade steps in order,
creating what is absent and backfilling new indices from existing rows.
Upgrades never delete or retype data.

# Technical Details

**Buckets.**
Each collection gets a root bucket holding a “data” bucket, one “i_<name>”
bucket per index, and a “_state” document. A top-level “_meta” bucket holds the
schema version.

**Index ordinal.**
We assign a unique positive integer ordinal to each index. These values are
never reused.

**Collection states.**
The “_state” document (msgpack) records which indices exist, their ordinals,
fields and whether they have been built.

## Binary encoding

**Index keys** are encoded using a _tuple encoding_: the raw elements followed by
reverse-varint lengths, so that a concatenation of leading elements is a byte
prefix of the key. A non-unique index key is (values..., primary key) with an
empty value; a unique index key is (values...) with the primary key as the value.

**Value**: value header, then encoded data, then encoded index key records.

**Value header**:
1. Flags (uvarint).
2. Schema version (uvarint).
3. Modification count (uvarint).
4. Data size (uvarint).
5. Index size (uvarint).
6. xxhash64 of the data (8 bytes, big endian).

**Value data**: msgpack of the row struct, without the primary key.

**Index key records** (inside a value) record the keys contributed by this row,
so that updates and deletes know which index entries to remove. Format:
1. Number of entries (uvarint).
2. For each entry: index ordinal (uvarint), key length (uvarint), key bytes.
*/
package loanstore
