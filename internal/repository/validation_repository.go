package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/support-engine/internal/domain"
)

// ValidationRepository is the slice of the profile validation store the
// reminder sweep consumes.
type ValidationRepository interface {
	// FindPendingStale selects pending validations submitted before cutoff
	// whose last reminder, if any, is also older than cutoff.
	FindPendingStale(ctx context.Context, cutoff time.Time) ([]domain.Validation, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

type validationRepository struct {
	pool *pgxpool.Pool
}

// NewValidationRepository builds repository.
func NewValidationRepository(pool *pgxpool.Pool) ValidationRepository {
	return &validationRepository{pool: pool}
}

func (r *validationRepository) FindPendingStale(ctx context.Context, cutoff time.Time) ([]domain.Validation, error) {
	const query = `
        SELECT id, doctor_id, status, submitted_at, last_reminded_at
        FROM doctor_validations
        WHERE status=$1 AND submitted_at < $2
          AND (last_reminded_at IS NULL OR last_reminded_at < $2)
        ORDER BY submitted_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.ValidationStatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Validation
	for rows.Next() {
		var validation domain.Validation
		if err := rows.Scan(
			&validation.ID,
			&validation.DoctorID,
			&validation.Status,
			&validation.SubmittedAt,
			&validation.LastRemindedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, validation)
	}
	return result, rows.Err()
}

func (r *validationRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE doctor_validations SET last_reminded_at=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
