package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrOutOfStock      = errors.New("no copies available for this book")
	ErrLimitExceeded   = errors.New("maximum borrowing limit reached")
	ErrAlreadyReturned = errors.New("book already returned")
	ErrForbidden       = errors.New("you do not have permission to perform this action")

	// ErrInventoryInvariant reports a write that would break 0 <= available_copies <= total_copies.
	ErrInventoryInvariant = errors.New("inventory invariant violated")
	// ErrBusy is returned when a row lock could not be taken (lock timeout, deadlock).
	ErrBusy = errors.New("resource is busy, try again")
)

type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s", e.Entity, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity string) error {
	return &NotFoundError{Entity: entity}
}
