package model

import "errors"

var (
	// ErrNotFound indicates the referenced row or reservation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates a state-machine violation, e.g. confirming
	// a cancelled reservation.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInsufficientStock indicates a row-level reserve was asked for more than
	// the available quantity. FEFO flows never return this; they report
	// shortfalls as data instead.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvariantViolation indicates an operation would break a ledger
	// invariant, e.g. transferring more than on-hand.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDuplicateOrder indicates a reservation already exists for the order.
	ErrDuplicateOrder = errors.New("reservation already exists for order")
)
