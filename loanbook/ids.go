package loanbook

import (
	"github.com/google/uuid"
)

// NewID returns a fresh record identifier. IDs are UUIDv7 strings, so ones
// minted later sort after ones minted earlier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
