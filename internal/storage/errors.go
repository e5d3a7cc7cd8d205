package storage

import "errors"

var (
	// ErrNotFound is returned when a referenced user, event or
	// registration does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateIdentity is returned when a signup collides with an
	// existing email or username.
	ErrDuplicateIdentity = errors.New("identity already taken")
	// ErrAlreadyRegistered is returned when a user already appears, as
	// primary or team member, in a registration for the same event.
	ErrAlreadyRegistered = errors.New("already registered for this event")
)
