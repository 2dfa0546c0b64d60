package domain

import "time"

// MessageAuthorRole indicates who authored a thread message.
type MessageAuthorRole string

const (
	AuthorRoleUser   MessageAuthorRole = "USER"
	AuthorRoleAdmin  MessageAuthorRole = "ADMIN"
	AuthorRoleSystem MessageAuthorRole = "SYSTEM"
)

// TicketMessage captures communications in a ticket thread. Immutable once created.
type TicketMessage struct {
	ID          string
	TicketID    string
	AuthorID    *string
	AuthorRole  MessageAuthorRole
	Body        string
	Internal    bool
	Attachments []AttachmentReference
	CreatedAt   time.Time
}

// AttachmentReference stores metadata for ticket message attachments.
type AttachmentReference struct {
	ID              string
	TicketMessageID string
	StorageKey      string
	FileName        string
	MimeType        string
	SizeBytes       int64
	CreatedAt       time.Time
}
