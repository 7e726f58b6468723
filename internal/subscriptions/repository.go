// Package subscriptions provides the durable subscription store and the
// command surface that manages it.
package subscriptions

import (
	"context"

	"github.com/tkazmier/projectwatch/internal/domain"
)

// Repository is the subscription store contract. Mutations are atomic with
// respect to a single subscription: concurrent calls for different
// (destination, subject) pairs never interfere, and AddKnownItems /
// RemoveKnownItems against a subscription deleted mid-flight are harmless
// no-ops rather than errors.
type Repository interface {
	// Create persists a new subscription seeded with initialKnownItems.
	// Returns ErrAlreadyExists if the (destination, subject) pair is taken.
	Create(ctx context.Context, dest domain.Destination, subject string, initialKnownItems []string) (*domain.Subscription, error)

	// Delete removes the matching subscription, reporting whether one existed.
	Delete(ctx context.Context, dest domain.Destination, subject string) (bool, error)

	// ListByDestination returns all subscriptions for a destination.
	ListByDestination(ctx context.Context, dest domain.Destination) ([]domain.Subscription, error)

	// ListDestinations returns the distinct destinations that have at least
	// one subscription. Drives the reconciliation fan-out.
	ListDestinations(ctx context.Context) ([]domain.Destination, error)

	// AddKnownItems adds ids to the subscription's known-item set.
	// Duplicates are absorbed.
	AddKnownItems(ctx context.Context, dest domain.Destination, subject string, ids []string) error

	// RemoveKnownItems removes ids from the subscription's known-item set.
	// Ids not present are ignored.
	RemoveKnownItems(ctx context.Context, dest domain.Destination, subject string, ids []string) error
}
