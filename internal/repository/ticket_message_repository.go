package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/support-engine/internal/domain"
)

// TicketMessageRepository manages ticket thread messages.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, author_id, author_role, body, internal)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.AuthorID,
		msg.AuthorRole,
		msg.Body,
		msg.Internal,
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return err
	}

	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		att.TicketMessageID = msg.ID
		const attQuery = `
            INSERT INTO message_attachments (ticket_message_id, storage_key, file_name, mime_type, size_bytes)
            VALUES ($1,$2,$3,$4,$5)
            RETURNING id, created_at`
		if err := r.pool.QueryRow(ctx, attQuery,
			att.TicketMessageID,
			att.StorageKey,
			att.FileName,
			att.MimeType,
			att.SizeBytes,
		).Scan(&att.ID, &att.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, author_id, author_role, body, internal, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.AuthorID,
			&msg.AuthorRole,
			&msg.Body,
			&msg.Internal,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		attachments, err := r.listAttachments(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Attachments = attachments
	}
	return result, nil
}

func (r *ticketMessageRepository) listAttachments(ctx context.Context, messageID string) ([]domain.AttachmentReference, error) {
	const query = `
        SELECT id, ticket_message_id, storage_key, file_name, mime_type, size_bytes, created_at
        FROM message_attachments WHERE ticket_message_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AttachmentReference
	for rows.Next() {
		var att domain.AttachmentReference
		if err := rows.Scan(
			&att.ID,
			&att.TicketMessageID,
			&att.StorageKey,
			&att.FileName,
			&att.MimeType,
			&att.SizeBytes,
			&att.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}
