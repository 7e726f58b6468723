// Package domain contains the core types shared across projectwatch modules.
package domain

import "time"

// DestinationKind tells how a notification reaches its destination.
type DestinationKind string

const (
	// DestinationKindDirect delivers via a direct message to a single recipient.
	DestinationKindDirect DestinationKind = "direct"
	// DestinationKindChannel delivers to a shared channel.
	DestinationKindChannel DestinationKind = "channel"
)

// Valid reports whether the kind is one of the known variants.
func (k DestinationKind) Valid() bool {
	return k == DestinationKindDirect || k == DestinationKindChannel
}

// Destination identifies where notifications for a subscription are delivered.
// Immutable once the subscription is created.
type Destination struct {
	Kind DestinationKind `json:"kind"`
	ID   string          `json:"id"`
}

// DirectDestination builds a direct-message destination for a recipient.
func DirectDestination(recipientID string) Destination {
	return Destination{Kind: DestinationKindDirect, ID: recipientID}
}

// ChannelDestination builds a shared-channel destination.
func ChannelDestination(channelID string) Destination {
	return Destination{Kind: DestinationKindChannel, ID: channelID}
}

// Subscription is the tracked relationship between a destination and a
// subject (an account on the upstream platform). KnownItemIDs holds every
// project id this subscription has already been notified about, or was aware
// of when it was created. At most one subscription exists per
// (destination, subject) pair; KnownItemIDs is mutated only by the
// reconciliation engine.
type Subscription struct {
	ID           string      `json:"id"`
	Destination  Destination `json:"destination"`
	Subject      string      `json:"subject"`
	KnownItemIDs []string    `json:"known_item_ids"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
