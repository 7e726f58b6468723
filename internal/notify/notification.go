// Package notify delivers new-project notifications to chat destinations.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tkazmier/projectwatch/internal/domain"
)

// Notification is a rendered message bound for a destination.
type Notification struct {
	Destination domain.Destination
	Body        string
}

// Sender delivers notifications for one destination kind.
type Sender interface {
	Kind() domain.DestinationKind
	Send(ctx context.Context, notification Notification) error
}

// Dispatcher routes a notification to the sender registered for the
// destination's kind.
type Dispatcher struct {
	renderer *Renderer
	senders  map[domain.DestinationKind]Sender
}

// NewDispatcher creates a dispatcher with the given senders.
func NewDispatcher(renderer *Renderer, senders ...Sender) *Dispatcher {
	senderMap := make(map[domain.DestinationKind]Sender)
	for _, s := range senders {
		senderMap[s.Kind()] = s
	}
	return &Dispatcher{
		renderer: renderer,
		senders:  senderMap,
	}
}

// Notify renders the message for (subject, item) and delivers it to dest.
// The rendered content is fully deterministic given its inputs.
func (d *Dispatcher) Notify(ctx context.Context, dest domain.Destination, subject string, item domain.Project) error {
	sender, ok := d.senders[dest.Kind]
	if !ok {
		return fmt.Errorf("no sender for destination kind %q", dest.Kind)
	}

	body, err := d.renderer.Render(subject, item)
	if err != nil {
		return fmt.Errorf("render notification: %w", err)
	}

	if err := sender.Send(ctx, Notification{Destination: dest, Body: body}); err != nil {
		return fmt.Errorf("send to %s %s: %w", dest.Kind, dest.ID, err)
	}

	slog.Debug("notification delivered",
		"destination_kind", dest.Kind,
		"destination_id", dest.ID,
		"subject", subject,
		"item_id", item.ID,
	)
	return nil
}
