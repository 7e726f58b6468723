// Package postgres provides the PostgreSQL implementation of the
// subscriptions repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tkazmier/projectwatch/internal/domain"
	"github.com/tkazmier/projectwatch/internal/subscriptions"
)

const uniqueViolation = "23505"

// Repository implements subscriptions.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create persists a new subscription seeded with initialKnownItems.
func (r *Repository) Create(ctx context.Context, dest domain.Destination, subject string, initialKnownItems []string) (*domain.Subscription, error) {
	if initialKnownItems == nil {
		initialKnownItems = []string{}
	}

	query := `
		INSERT INTO subscriptions (destination_kind, destination_id, subject, known_item_ids)
		VALUES ($1, $2, $3, $4)
		RETURNING id, known_item_ids, created_at, updated_at
	`
	sub := domain.Subscription{
		Destination: dest,
		Subject:     subject,
	}
	err := r.db.QueryRow(ctx, query, dest.Kind, dest.ID, subject, initialKnownItems).
		Scan(&sub.ID, &sub.KnownItemIDs, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, subscriptions.ErrAlreadyExists
		}
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return &sub, nil
}

// Delete removes the matching subscription, reporting whether one existed.
func (r *Repository) Delete(ctx context.Context, dest domain.Destination, subject string) (bool, error) {
	query := `
		DELETE FROM subscriptions
		WHERE destination_kind = $1 AND destination_id = $2 AND subject = $3
	`
	result, err := r.db.Exec(ctx, query, dest.Kind, dest.ID, subject)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListByDestination returns all subscriptions for a destination.
func (r *Repository) ListByDestination(ctx context.Context, dest domain.Destination) ([]domain.Subscription, error) {
	query := `
		SELECT id, destination_kind, destination_id, subject, known_item_ids, created_at, updated_at
		FROM subscriptions
		WHERE destination_kind = $1 AND destination_id = $2
		ORDER BY subject
	`
	rows, err := r.db.Query(ctx, query, dest.Kind, dest.ID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// ListDestinations returns the distinct destinations with a subscription.
func (r *Repository) ListDestinations(ctx context.Context) ([]domain.Destination, error) {
	query := `
		SELECT DISTINCT destination_kind, destination_id
		FROM subscriptions
		ORDER BY destination_kind, destination_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	defer rows.Close()

	dests := make([]domain.Destination, 0)
	for rows.Next() {
		var d domain.Destination
		if err := rows.Scan(&d.Kind, &d.ID); err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}
		dests = append(dests, d)
	}
	return dests, rows.Err()
}

// AddKnownItems adds ids to the known set with set semantics. Updating a
// subscription deleted mid-cycle affects zero rows, which is fine.
func (r *Repository) AddKnownItems(ctx context.Context, dest domain.Destination, subject string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE subscriptions
		SET known_item_ids = (
			SELECT coalesce(array_agg(DISTINCT e), '{}')
			FROM unnest(known_item_ids || $4::text[]) AS e
		), updated_at = NOW()
		WHERE destination_kind = $1 AND destination_id = $2 AND subject = $3
	`
	if _, err := r.db.Exec(ctx, query, dest.Kind, dest.ID, subject, ids); err != nil {
		return fmt.Errorf("add known items: %w", err)
	}
	return nil
}

// RemoveKnownItems removes ids from the known set; absent ids are ignored.
func (r *Repository) RemoveKnownItems(ctx context.Context, dest domain.Destination, subject string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE subscriptions
		SET known_item_ids = (
			SELECT coalesce(array_agg(e), '{}')
			FROM unnest(known_item_ids) AS e
			WHERE NOT (e = ANY($4::text[]))
		), updated_at = NOW()
		WHERE destination_kind = $1 AND destination_id = $2 AND subject = $3
	`
	if _, err := r.db.Exec(ctx, query, dest.Kind, dest.ID, subject, ids); err != nil {
		return fmt.Errorf("remove known items: %w", err)
	}
	return nil
}

func scanSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	subs := make([]domain.Subscription, 0)
	for rows.Next() {
		var sub domain.Subscription
		err := rows.Scan(
			&sub.ID,
			&sub.Destination.Kind,
			&sub.Destination.ID,
			&sub.Subject,
			&sub.KnownItemIDs,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
