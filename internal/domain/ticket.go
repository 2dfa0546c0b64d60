package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// TicketCategory routes tickets to eligible support roles.
type TicketCategory string

const (
	TicketCategoryTechnical TicketCategory = "TECHNICAL"
	TicketCategoryBilling   TicketCategory = "BILLING"
	TicketCategoryAccount   TicketCategory = "ACCOUNT"
	TicketCategoryGeneral   TicketCategory = "GENERAL"
)

// ActiveStatuses are the statuses counted toward an admin's workload.
var ActiveStatuses = []TicketStatus{TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	ExternalKey     string
	RequesterID     string
	AssignedAdminID *string
	Category        TicketCategory
	Priority        TicketPriority
	Status          TicketStatus
	Subject         string
	Resolution      *string
	Escalated       bool
	ReminderSent    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
}

// IsActive reports whether the ticket counts toward assignment workload.
func (t *Ticket) IsActive() bool {
	for _, s := range ActiveStatuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known ticket status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known ticket priority.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known ticket category.
func ValidCategory(c TicketCategory) bool {
	switch c {
	case TicketCategoryTechnical, TicketCategoryBilling, TicketCategoryAccount, TicketCategoryGeneral:
		return true
	}
	return false
}
