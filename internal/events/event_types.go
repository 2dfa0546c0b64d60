package events

import (
	"time"

	"github.com/medbook/support-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketAutoClosed    EventType = "ticket_auto_closed"
)

// Actor encapsulates actor metadata for an event. A nil UserID means the
// system itself (a sweep) performed the action.
type Actor struct {
	UserID *string     `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
	System bool        `json:"system,omitempty"`
}

// SystemActor marks a sweep-originated event.
func SystemActor() Actor {
	return Actor{System: true}
}

// UserActor marks a caller-originated event.
func UserActor(userID string, role domain.Role) Actor {
	return Actor{UserID: &userID, Role: role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	RequesterID string                `json:"requester_id"`
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Subject     string                `json:"subject"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	RequesterID     string  `json:"requester_id"`
	AssignedAdminID *string `json:"assigned_admin_id,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	RequesterID     string              `json:"requester_id"`
	AssignedAdminID *string             `json:"assigned_admin_id,omitempty"`
	OldStatus       domain.TicketStatus `json:"old_status"`
	NewStatus       domain.TicketStatus `json:"new_status"`
	Comment         string              `json:"comment,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	RequesterID     string                   `json:"requester_id"`
	AssignedAdminID *string                  `json:"assigned_admin_id,omitempty"`
	MessageID       string                   `json:"message_id"`
	AuthorRole      domain.MessageAuthorRole `json:"author_role"`
	Internal        bool                     `json:"internal"`
	BodyPreview     string                   `json:"body_preview"`
	Reopened        bool                     `json:"reopened"`
}

// TicketEscalatedPayload payload. RoleAlert is set for urgent tickets at the
// priority ceiling, where the sweep alerts the whole admin role instead of
// promoting further.
type TicketEscalatedPayload struct {
	RequesterID     string                `json:"requester_id"`
	AssignedAdminID *string               `json:"assigned_admin_id,omitempty"`
	OldPriority     domain.TicketPriority `json:"old_priority"`
	NewPriority     domain.TicketPriority `json:"new_priority"`
	RoleAlert       bool                  `json:"role_alert"`
}

// TicketAutoClosedPayload payload.
type TicketAutoClosedPayload struct {
	RequesterID string    `json:"requester_id"`
	ResolvedAt  time.Time `json:"resolved_at"`
}
