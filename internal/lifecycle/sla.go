package lifecycle

import (
	"time"

	"github.com/medbook/support-engine/internal/domain"
)

// Rule carries both the SLA window and the escalation step for one priority.
// The two concerns share a single table: the hour threshold that breaches the
// SLA is also the age at which the sweep promotes the ticket.
type Rule struct {
	Hours      int
	EscalateTo domain.TicketPriority
}

// Rules is keyed by priority. URGENT is the ceiling and has no promotion
// target; tickets stuck there are handled by the role alert instead.
var Rules = map[domain.TicketPriority]Rule{
	domain.TicketPriorityUrgent: {Hours: 1},
	domain.TicketPriorityHigh:   {Hours: 4, EscalateTo: domain.TicketPriorityUrgent},
	domain.TicketPriorityMedium: {Hours: 24, EscalateTo: domain.TicketPriorityHigh},
	domain.TicketPriorityLow:    {Hours: 72, EscalateTo: domain.TicketPriorityMedium},
}

// EscalationOrder is the sweep iteration order over promotable priorities.
var EscalationOrder = []domain.TicketPriority{
	domain.TicketPriorityLow,
	domain.TicketPriorityMedium,
	domain.TicketPriorityHigh,
}

// UrgentAlertAfter is the age past which an urgent ticket triggers a
// role-wide alert to all admins.
const UrgentAlertAfter = 2 * time.Hour

// Threshold returns the SLA (and escalation) window for a priority.
func Threshold(priority domain.TicketPriority) time.Duration {
	return time.Duration(Rules[priority].Hours) * time.Hour
}

// EscalationTarget returns the promotion target for a priority, if any.
func EscalationTarget(priority domain.TicketPriority) (domain.TicketPriority, bool) {
	rule, ok := Rules[priority]
	if !ok || rule.EscalateTo == "" {
		return "", false
	}
	return rule.EscalateTo, true
}

// Deadline is the timestamp by which the ticket is expected to be resolved.
func Deadline(ticket *domain.Ticket) time.Time {
	return ticket.CreatedAt.Add(Threshold(ticket.Priority))
}

// IsOverdue reports whether the ticket has breached its SLA deadline. A
// resolved or closed ticket is never overdue, regardless of elapsed time.
func IsOverdue(ticket *domain.Ticket, now time.Time) bool {
	if ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed {
		return false
	}
	return now.After(Deadline(ticket))
}
