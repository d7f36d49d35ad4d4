package loanstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreUnavailable means the engine failed to open or an operation failed
	// at the I/O layer (including corrupt data).
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidCollection is a programming error: the collection is not declared.
	ErrInvalidCollection = errors.New("invalid collection")

	// ErrInvalidIndex is a programming error: no index is declared on the fields.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrConstraintViolation is returned when a put clashes with a unique index.
	ErrConstraintViolation = errors.New("constraint violation")

	ErrEmptyKey     = errors.New("empty primary key")
	ErrReadOnlyTx   = errors.New("write in a read-only transaction")
	ErrSchemaTooNew = fmt.Errorf("%w: stored schema version is newer than declared", ErrStoreUnavailable)
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// Is reports corrupt data as an I/O-level failure.
func (e *DataError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

type CollectionError struct {
	Collection string
	Index      string
	Key        []byte
	Msg        string
	Err        error
}

func collErrf(coll *Collection, idx *Index, key []byte, err error, format string, args ...any) error {
	e := &CollectionError{Key: key, Msg: fmt.Sprintf(format, args...), Err: err}
	if coll != nil {
		e.Collection = coll.name
	}
	if idx != nil {
		e.Index = idx.name
	}
	return e
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

func (e *CollectionError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Collection)
	if e.Index != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Index)
	}
	if e.Key != nil {
		buf.WriteByte('/')
		buf.Write(e.Key)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
