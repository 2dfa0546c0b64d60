// Package lifecycle holds the pure ticket lifecycle rules: the status
// transition table and the SLA/escalation rule table. No I/O happens here.
package lifecycle

import (
	"time"

	"github.com/medbook/support-engine/internal/domain"
	apperrors "github.com/medbook/support-engine/pkg/util"
)

// allowedTransitions is the source of truth for status changes.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusAssigned:   {domain.TicketStatusInProgress, domain.TicketStatusOpen, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusOpen, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusOpen},
	domain.TicketStatusClosed:     {domain.TicketStatusOpen},
}

// CanTransition reports whether current -> target appears in the table.
func CanTransition(current, target domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == target {
			return true
		}
	}
	return false
}

// Apply moves the ticket to target, updating lifecycle bookkeeping fields.
// A transition to RESOLVED stamps ResolvedAt. A transition to OPEN is a
// reopening: it clears ResolvedAt and Escalated and resets ReminderSent, so
// the reopened ticket starts a fresh lifecycle for SLA and escalation.
// Illegal transitions fail with INVALID_TRANSITION and leave the ticket
// untouched.
func Apply(ticket *domain.Ticket, target domain.TicketStatus, now time.Time) error {
	if !domain.ValidStatus(target) {
		return apperrors.NewValidationError("unknown ticket status", map[string]any{"status": target})
	}
	if !CanTransition(ticket.Status, target) {
		return apperrors.NewInvalidTransition(string(ticket.Status), string(target))
	}

	switch target {
	case domain.TicketStatusResolved:
		resolvedAt := now
		ticket.ResolvedAt = &resolvedAt
	case domain.TicketStatusOpen:
		ticket.ResolvedAt = nil
		ticket.Escalated = false
		ticket.ReminderSent = false
		ticket.Resolution = nil
		ticket.AssignedAdminID = nil
	case domain.TicketStatusClosed:
		// closed tickets carry no assignee; the invariant couples a non-null
		// assignee to ASSIGNED, IN_PROGRESS and RESOLVED only
		ticket.AssignedAdminID = nil
	}

	ticket.Status = target
	ticket.UpdatedAt = now
	return nil
}

// ShouldReopenOnMessage reports whether a new message from author implicitly
// reopens a ticket in the given status. Only non-staff messages reopen, and
// only from CLOSED or IN_PROGRESS; an ASSIGNED ticket stays assigned.
func ShouldReopenOnMessage(status domain.TicketStatus, author domain.MessageAuthorRole) bool {
	if author != domain.AuthorRoleUser {
		return false
	}
	return status == domain.TicketStatusClosed || status == domain.TicketStatusInProgress
}
