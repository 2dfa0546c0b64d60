package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/support-engine/internal/domain"
)

// AppointmentRepository is the slice of the booking store the reminder sweep
// consumes.
type AppointmentRepository interface {
	// FindUpcomingUnreminded selects confirmed appointments scheduled inside
	// [from, to) that have not yet had a reminder sent.
	FindUpcomingUnreminded(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) error
}

type appointmentRepository struct {
	pool *pgxpool.Pool
}

// NewAppointmentRepository builds repository.
func NewAppointmentRepository(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepository{pool: pool}
}

func (r *appointmentRepository) FindUpcomingUnreminded(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	const query = `
        SELECT id, patient_id, doctor_id, scheduled_at, status, reminder_sent
        FROM appointments
        WHERE status=$1 AND reminder_sent = FALSE AND scheduled_at >= $2 AND scheduled_at < $3
        ORDER BY scheduled_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.AppointmentStatusConfirmed, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Appointment
	for rows.Next() {
		var appt domain.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.PatientID,
			&appt.DoctorID,
			&appt.ScheduledAt,
			&appt.Status,
			&appt.ReminderSent,
		); err != nil {
			return nil, err
		}
		result = append(result, appt)
	}
	return result, rows.Err()
}

func (r *appointmentRepository) MarkReminderSent(ctx context.Context, id string) error {
	const query = `UPDATE appointments SET reminder_sent = TRUE WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
