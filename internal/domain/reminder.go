package domain

import "time"

// AppointmentStatus enumerates booking states the reminder sweep cares about.
type AppointmentStatus string

const (
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
)

// Appointment is the slice of a booking the reminder sweep reads and flags.
type Appointment struct {
	ID           string
	PatientID    string
	DoctorID     string
	ScheduledAt  time.Time
	Status       AppointmentStatus
	ReminderSent bool
}

// Subscription is the slice of a plan subscription the expiry sweep reads.
type Subscription struct {
	ID                 string
	UserID             string
	Plan               string
	ExpiresAt          time.Time
	Active             bool
	ExpiryReminderSent bool
}

// ValidationStatus enumerates doctor profile validation states.
type ValidationStatus string

const (
	ValidationStatusPending  ValidationStatus = "PENDING"
	ValidationStatusApproved ValidationStatus = "APPROVED"
	ValidationStatusRejected ValidationStatus = "REJECTED"
)

// Validation is a pending doctor profile validation awaiting admin review.
type Validation struct {
	ID             string
	DoctorID       string
	Status         ValidationStatus
	SubmittedAt    time.Time
	LastRemindedAt *time.Time
}
