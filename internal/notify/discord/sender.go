package discord

import (
	"context"

	"github.com/tkazmier/projectwatch/internal/domain"
	"github.com/tkazmier/projectwatch/internal/notify"
)

// ChannelSender delivers notifications to shared channels.
type ChannelSender struct {
	client *Client
}

// NewChannelSender creates a sender for channel destinations.
func NewChannelSender(client *Client) *ChannelSender {
	return &ChannelSender{client: client}
}

// Kind returns the destination kind this sender serves.
func (s *ChannelSender) Kind() domain.DestinationKind {
	return domain.DestinationKindChannel
}

// Send posts the notification to the destination channel.
func (s *ChannelSender) Send(ctx context.Context, notification notify.Notification) error {
	return s.client.SendChannelMessage(ctx, notification.Destination.ID, notification.Body)
}

// DirectSender delivers notifications as direct messages.
type DirectSender struct {
	client *Client
}

// NewDirectSender creates a sender for direct destinations.
func NewDirectSender(client *Client) *DirectSender {
	return &DirectSender{client: client}
}

// Kind returns the destination kind this sender serves.
func (s *DirectSender) Kind() domain.DestinationKind {
	return domain.DestinationKindDirect
}

// Send delivers the notification to the recipient's DM channel.
func (s *DirectSender) Send(ctx context.Context, notification notify.Notification) error {
	return s.client.SendDirectMessage(ctx, notification.Destination.ID, notification.Body)
}
