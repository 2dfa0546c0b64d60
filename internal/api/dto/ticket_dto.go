package dto

import (
	"time"

	"github.com/medbook/support-engine/internal/domain"
	"github.com/medbook/support-engine/internal/observability"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Attachments []AttachmentRequest   `json:"attachments"`
}

// UpdateTicketRequest carries admin edits; absent fields stay untouched.
type UpdateTicketRequest struct {
	Category   *domain.TicketCategory `json:"category"`
	Priority   *domain.TicketPriority `json:"priority"`
	Subject    *string                `json:"subject"`
	Resolution *string                `json:"resolution"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status     domain.TicketStatus `json:"status"`
	Resolution string              `json:"resolution"`
}

// AssignTicketRequest payload. Empty admin_id requests auto-selection.
type AssignTicketRequest struct {
	AdminID string `json:"admin_id"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body        string              `json:"body"`
	Internal    bool                `json:"internal"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                `json:"id"`
	ExternalKey     string                `json:"external_key"`
	RequesterID     string                `json:"requester_id"`
	AssignedAdminID *string               `json:"assigned_admin_id"`
	Category        domain.TicketCategory `json:"category"`
	Priority        domain.TicketPriority `json:"priority"`
	Status          domain.TicketStatus   `json:"status"`
	Subject         string                `json:"subject"`
	Escalated       bool                  `json:"escalated"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info with the message thread.
type TicketDetailResponse struct {
	ID              string                  `json:"id"`
	ExternalKey     string                  `json:"external_key"`
	RequesterID     string                  `json:"requester_id"`
	AssignedAdminID *string                 `json:"assigned_admin_id"`
	Category        domain.TicketCategory   `json:"category"`
	Priority        domain.TicketPriority   `json:"priority"`
	Status          domain.TicketStatus     `json:"status"`
	Subject         string                  `json:"subject"`
	Resolution      *string                 `json:"resolution"`
	Escalated       bool                    `json:"escalated"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	ResolvedAt      *time.Time              `json:"resolved_at"`
	Messages        []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID          string                   `json:"id"`
	AuthorID    *string                  `json:"author_id"`
	AuthorRole  domain.MessageAuthorRole `json:"author_role"`
	Body        string                   `json:"body"`
	Internal    bool                     `json:"internal"`
	Attachments []AttachmentResponse     `json:"attachments"`
	CreatedAt   time.Time                `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// TicketListResponse is a paged listing.
type TicketListResponse struct {
	Items []TicketSummary `json:"items"`
	Total int             `json:"total"`
}

// TicketStatsResponse is the admin dashboard surface.
type TicketStatsResponse struct {
	ByStatus   map[domain.TicketStatus]int            `json:"by_status"`
	ByPriority map[domain.TicketPriority]int          `json:"by_priority"`
	Escalated  int                                    `json:"escalated"`
	Unassigned int                                    `json:"unassigned"`
	Overdue    int                                    `json:"overdue"`
	Sweeps     map[string]observability.SweepCounters `json:"sweeps,omitempty"`
}

// SweepResponse reports a manually triggered sweep.
type SweepResponse struct {
	Checked    int    `json:"checked"`
	Changed    int    `json:"changed"`
	Errors     int    `json:"errors"`
	DurationMs int64  `json:"duration_ms"`
	Job        string `json:"job"`
}
