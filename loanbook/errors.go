package loanbook

import (
	"errors"
	"fmt"

	"github.com/andreyvit/loanstore"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRecord      = errors.New("invalid record")
	ErrUnknownCompany     = fmt.Errorf("%w: unknown company", loanstore.ErrConstraintViolation)
	ErrInvalidCredentials = errors.New("invalid email or password")
)
