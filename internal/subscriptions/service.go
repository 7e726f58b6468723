package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tkazmier/projectwatch/internal/domain"
)

var subjectFolder = cases.Fold()

// NormalizeSubject canonicalizes a username so that the same account
// subscribed with different casing maps to one subscription. Scratch
// usernames are case-insensitive.
func NormalizeSubject(subject string) string {
	return subjectFolder.String(strings.TrimSpace(subject))
}

// Gateway is the slice of the upstream client the service needs to seed a
// new subscription with the subject's current projects.
type Gateway interface {
	UserProjects(ctx context.Context, subject string) ([]domain.Project, error)
}

// Service implements the subscription command surface: subscribe,
// unsubscribe and list. The reconciliation engine talks to the Repository
// directly; the service never touches known-item sets after creation.
type Service struct {
	repo    Repository
	gateway Gateway
}

// NewService creates a new subscriptions service.
func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{repo: repo, gateway: gateway}
}

// Subscribe registers a subject for a destination. The subscription is
// seeded with a snapshot of the subject's current project ids, so items that
// already exist at subscribe time never trigger notifications. If the
// snapshot fetch fails nothing is created.
func (s *Service) Subscribe(ctx context.Context, dest domain.Destination, subject string) (*domain.Subscription, error) {
	subject = NormalizeSubject(subject)

	projects, err := s.gateway.UserProjects(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("snapshot current projects: %w", err)
	}

	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}

	sub, err := s.repo.Create(ctx, dest, subject, ids)
	if err != nil {
		return nil, err
	}

	slog.Info("subscription created",
		"destination_kind", dest.Kind,
		"destination_id", dest.ID,
		"subject", subject,
		"seeded_items", len(ids),
	)
	return sub, nil
}

// Unsubscribe removes the subscription for the pair. Returns ErrNotFound if
// the pair is not tracked.
func (s *Service) Unsubscribe(ctx context.Context, dest domain.Destination, subject string) error {
	subject = NormalizeSubject(subject)

	existed, err := s.repo.Delete(ctx, dest, subject)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}

	slog.Info("subscription removed",
		"destination_kind", dest.Kind,
		"destination_id", dest.ID,
		"subject", subject,
	)
	return nil
}

// List returns the subjects tracked for a destination, empty when none.
func (s *Service) List(ctx context.Context, dest domain.Destination) ([]string, error) {
	subs, err := s.repo.ListByDestination(ctx, dest)
	if err != nil {
		return nil, err
	}

	subjects := make([]string, 0, len(subs))
	for _, sub := range subs {
		subjects = append(subjects, sub.Subject)
	}
	return subjects, nil
}
