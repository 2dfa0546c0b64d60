package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/support-engine/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID     *string
	AssignedAdminID *string
	Categories      []domain.TicketCategory
	Statuses        []domain.TicketStatus
	Priorities      []domain.TicketPriority
	EscalatedOnly   bool
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)

	// CountActiveByAdmin returns the number of tickets in an active status
	// per candidate admin. Admins without active tickets map to zero.
	CountActiveByAdmin(ctx context.Context, adminIDs []string) (map[string]int, error)

	// FindForEscalation selects sweep candidates: the given priority, an
	// active unresolved status, created before cutoff, not yet escalated.
	FindForEscalation(ctx context.Context, priority domain.TicketPriority, cutoff time.Time) ([]domain.Ticket, error)

	// FindResolvedBefore selects resolved tickets whose resolution is older
	// than cutoff, for the auto-close sweep.
	FindResolvedBefore(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error)

	// CountActiveCreatedBefore counts unresolved tickets of the priority
	// created before cutoff; the stats surface derives overdue counts from it.
	CountActiveCreatedBefore(ctx context.Context, priority domain.TicketPriority, cutoff time.Time) (int, error)

	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
	CountByPriority(ctx context.Context) (map[domain.TicketPriority]int, error)
	CountEscalated(ctx context.Context) (int, error)
	CountUnassigned(ctx context.Context) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, requester_user_id, assigned_admin_id, category, priority, status,
               subject, resolution, escalated, reminder_sent, created_at, updated_at, resolved_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, requester_user_id, assigned_admin_id, category, priority, status, subject, resolution, escalated, reminder_sent, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.RequesterID,
		ticket.AssignedAdminID,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.Subject,
		ticket.Resolution,
		ticket.Escalated,
		ticket.ReminderSent,
		ticket.ResolvedAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assigned_admin_id=$1, category=$2, priority=$3, status=$4, subject=$5,
            resolution=$6, escalated=$7, reminder_sent=$8, resolved_at=$9, updated_at=NOW()
        WHERE id=$10`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.AssignedAdminID,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.Subject,
		ticket.Resolution,
		ticket.Escalated,
		ticket.ReminderSent,
		ticket.ResolvedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	idx := 1

	addCondition := func(clause string, value any) {
		conditions = append(conditions, fmt.Sprintf(clause, idx))
		args = append(args, value)
		idx++
	}

	if filter.RequesterID != nil {
		addCondition("requester_user_id=$%d", *filter.RequesterID)
	}
	if filter.AssignedAdminID != nil {
		addCondition("assigned_admin_id=$%d", *filter.AssignedAdminID)
	}
	if len(filter.Categories) > 0 {
		addCondition("category = ANY($%d)", filter.Categories)
	}
	if len(filter.Statuses) > 0 {
		addCondition("status = ANY($%d)", filter.Statuses)
	}
	if len(filter.Priorities) > 0 {
		addCondition("priority = ANY($%d)", filter.Priorities)
	}
	if filter.EscalatedOnly {
		conditions = append(conditions, "escalated = TRUE")
	}
	if filter.CreatedFrom != nil {
		addCondition("created_at >= $%d", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		addCondition("created_at <= $%d", *filter.CreatedTo)
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM tickets WHERE " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT `+ticketColumns+` FROM tickets WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, idx, idx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets, err := collectTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) CountActiveByAdmin(ctx context.Context, adminIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(adminIDs))
	for _, id := range adminIDs {
		counts[id] = 0
	}
	if len(adminIDs) == 0 {
		return counts, nil
	}

	const query = `
        SELECT assigned_admin_id, COUNT(*)
        FROM tickets
        WHERE assigned_admin_id = ANY($1) AND status = ANY($2)
        GROUP BY assigned_admin_id`
	rows, err := r.pool.Query(ctx, query, adminIDs, domain.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var adminID string
		var count int
		if err := rows.Scan(&adminID, &count); err != nil {
			return nil, err
		}
		counts[adminID] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) FindForEscalation(ctx context.Context, priority domain.TicketPriority, cutoff time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE priority=$1
          AND status = ANY($2)
          AND resolved_at IS NULL
          AND escalated = FALSE
          AND created_at < $3
        ORDER BY created_at ASC`
	sweepStatuses := []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusAssigned}
	rows, err := r.pool.Query(ctx, query, priority, sweepStatuses, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (r *ticketRepository) FindResolvedBefore(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE status=$1 AND resolved_at IS NOT NULL AND resolved_at < $2
        ORDER BY resolved_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusResolved, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (r *ticketRepository) CountActiveCreatedBefore(ctx context.Context, priority domain.TicketPriority, cutoff time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE priority=$1 AND status = ANY($2) AND created_at < $3`
	var count int
	err := r.pool.QueryRow(ctx, query, priority, domain.ActiveStatuses, cutoff).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM tickets GROUP BY status`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) CountByPriority(ctx context.Context) (map[domain.TicketPriority]int, error) {
	const query = `SELECT priority, COUNT(*) FROM tickets GROUP BY priority`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketPriority]int)
	for rows.Next() {
		var priority domain.TicketPriority
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		counts[priority] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) CountEscalated(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE escalated = TRUE AND status <> $1`
	var count int
	err := r.pool.QueryRow(ctx, query, domain.TicketStatusClosed).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountUnassigned(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE assigned_admin_id IS NULL AND status = ANY($1)`
	var count int
	err := r.pool.QueryRow(ctx, query, domain.ActiveStatuses).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.RequesterID,
		&ticket.AssignedAdminID,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Subject,
		&ticket.Resolution,
		&ticket.Escalated,
		&ticket.ReminderSent,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	)
}

func collectTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
