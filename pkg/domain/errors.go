package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced book, member, loan or user
	// does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrNotAvailable is returned when issuing a book that is already on loan.
	ErrNotAvailable = errors.New("book not available")

	// ErrAlreadyReturned is returned when returning a loan that is closed.
	// The original return date and fine stay as recorded by the first return.
	ErrAlreadyReturned = errors.New("loan already returned")

	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("invalid input")

	// ErrConflict is returned when a store uniqueness rule would be violated
	// (book ISBN, username) or when deleting an entity that still has open
	// loans attached.
	ErrConflict = errors.New("conflict")
)
