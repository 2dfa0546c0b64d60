package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/support-engine/internal/domain"
)

// SubscriptionRepository is the slice of the billing store the expiry
// reminder sweep consumes.
type SubscriptionRepository interface {
	// FindExpiringUnreminded selects active subscriptions expiring before
	// cutoff that have not yet been warned.
	FindExpiringUnreminded(ctx context.Context, cutoff time.Time) ([]domain.Subscription, error)
	MarkExpiryReminderSent(ctx context.Context, id string) error
}

type subscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository builds repository.
func NewSubscriptionRepository(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepository{pool: pool}
}

func (r *subscriptionRepository) FindExpiringUnreminded(ctx context.Context, cutoff time.Time) ([]domain.Subscription, error) {
	const query = `
        SELECT id, user_id, plan, expires_at, active_flag, expiry_reminder_sent
        FROM subscriptions
        WHERE active_flag = TRUE AND expiry_reminder_sent = FALSE AND expires_at > NOW() AND expires_at < $1
        ORDER BY expires_at ASC`
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.Plan,
			&sub.ExpiresAt,
			&sub.Active,
			&sub.ExpiryReminderSent,
		); err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func (r *subscriptionRepository) MarkExpiryReminderSent(ctx context.Context, id string) error {
	const query = `UPDATE subscriptions SET expiry_reminder_sent = TRUE WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
