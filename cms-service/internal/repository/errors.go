package repository

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

var (
	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)
	ErrCardNotFound        = fmt.Errorf("card %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
)

var (
	// ErrAccountNotLocked is returned when a write touches an account the
	// unit of work has not locked.
	ErrAccountNotLocked = errors.New("account is not locked by this unit of work")
	ErrUnitClosed       = errors.New("unit of work already committed or rolled back")
)
