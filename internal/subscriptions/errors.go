package subscriptions

import "errors"

// Store errors.
var (
	// ErrAlreadyExists is returned when a subscription for the same
	// (destination, subject) pair is created twice.
	ErrAlreadyExists = errors.New("subscription already exists")
	// ErrNotFound is returned when no subscription matches the pair.
	ErrNotFound = errors.New("subscription not found")
)
