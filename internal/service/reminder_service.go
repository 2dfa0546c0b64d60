package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medbook/support-engine/internal/audit"
	"github.com/medbook/support-engine/internal/domain"
	"github.com/medbook/support-engine/internal/notify"
	"github.com/medbook/support-engine/internal/repository"
)

const (
	appointmentReminderWindow  = 24 * time.Hour
	subscriptionReminderWindow = 72 * time.Hour
	validationReminderAfter    = 48 * time.Hour
)

// ReminderService runs the adjacent reminder sweeps: upcoming appointments,
// expiring subscriptions and stale doctor validations. Like the ticket
// sweeps, eligibility derives from persisted flags so re-runs and restarts
// are safe.
type ReminderService struct {
	appointments  repository.AppointmentRepository
	subscriptions repository.SubscriptionRepository
	validations   repository.ValidationRepository
	dispatcher    notify.Dispatcher
	auditSink     audit.Sink
	logger        *zap.Logger
}

// ReminderResult reports one reminder sweep run.
type ReminderResult struct {
	Checked  int
	Notified int
	Errors   int
	Duration time.Duration
}

// NewReminderService constructs the service.
func NewReminderService(appointments repository.AppointmentRepository, subscriptions repository.SubscriptionRepository, validations repository.ValidationRepository, dispatcher notify.Dispatcher, auditSink audit.Sink, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		appointments:  appointments,
		subscriptions: subscriptions,
		validations:   validations,
		dispatcher:    dispatcher,
		auditSink:     auditSink,
		logger:        logger,
	}
}

// RunAppointmentSweep reminds patients and doctors of appointments starting
// within the next 24 hours.
func (s *ReminderService) RunAppointmentSweep(ctx context.Context, now time.Time) (ReminderResult, error) {
	started := time.Now()
	result := ReminderResult{}

	appointments, err := s.appointments.FindUpcomingUnreminded(ctx, now, now.Add(appointmentReminderWindow))
	if err != nil {
		s.logger.Error("appointment reminder query failed", zap.Error(err))
		result.Errors++
		result.Duration = time.Since(started)
		return result, nil
	}

	for _, appt := range appointments {
		result.Checked++
		variables := map[string]any{
			"appointment_id": appt.ID,
			"scheduled_at":   appt.ScheduledAt,
		}
		if err := s.dispatcher.SendToUser(ctx, appt.PatientID, notify.TypeAppointmentReminder, nil, variables); err != nil {
			s.logger.Warn("appointment reminder dispatch failed",
				zap.String("appointment_id", appt.ID), zap.Error(err))
		}
		if err := s.dispatcher.SendToUser(ctx, appt.DoctorID, notify.TypeAppointmentReminder, nil, variables); err != nil {
			s.logger.Warn("appointment reminder dispatch failed",
				zap.String("appointment_id", appt.ID), zap.Error(err))
		}
		// the flag, not the send, is the idempotency guard
		if err := s.appointments.MarkReminderSent(ctx, appt.ID); err != nil {
			s.logger.Error("appointment reminder flag update failed",
				zap.String("appointment_id", appt.ID), zap.Error(err))
			result.Errors++
			continue
		}
		s.recordAudit(ctx, "appointment.reminder", appt.ID)
		result.Notified++
	}

	result.Duration = time.Since(started)
	s.logSweep("appointment reminder sweep finished", result)
	return result, nil
}

// RunSubscriptionSweep warns owners of subscriptions expiring within three
// days.
func (s *ReminderService) RunSubscriptionSweep(ctx context.Context, now time.Time) (ReminderResult, error) {
	started := time.Now()
	result := ReminderResult{}

	subscriptions, err := s.subscriptions.FindExpiringUnreminded(ctx, now.Add(subscriptionReminderWindow))
	if err != nil {
		s.logger.Error("subscription reminder query failed", zap.Error(err))
		result.Errors++
		result.Duration = time.Since(started)
		return result, nil
	}

	for _, sub := range subscriptions {
		result.Checked++
		if err := s.dispatcher.SendToUser(ctx, sub.UserID, notify.TypeSubscriptionExpiry, nil, map[string]any{
			"subscription_id": sub.ID,
			"plan":            sub.Plan,
			"expires_at":      sub.ExpiresAt,
		}); err != nil {
			s.logger.Warn("subscription reminder dispatch failed",
				zap.String("subscription_id", sub.ID), zap.Error(err))
		}
		if err := s.subscriptions.MarkExpiryReminderSent(ctx, sub.ID); err != nil {
			s.logger.Error("subscription reminder flag update failed",
				zap.String("subscription_id", sub.ID), zap.Error(err))
			result.Errors++
			continue
		}
		s.recordAudit(ctx, "subscription.expiry_reminder", sub.ID)
		result.Notified++
	}

	result.Duration = time.Since(started)
	s.logSweep("subscription reminder sweep finished", result)
	return result, nil
}

// RunValidationSweep alerts admins about doctor validations pending longer
// than 48 hours. A validation becomes eligible again 48 hours after its last
// reminder.
func (s *ReminderService) RunValidationSweep(ctx context.Context, now time.Time) (ReminderResult, error) {
	started := time.Now()
	result := ReminderResult{}

	validations, err := s.validations.FindPendingStale(ctx, now.Add(-validationReminderAfter))
	if err != nil {
		s.logger.Error("validation reminder query failed", zap.Error(err))
		result.Errors++
		result.Duration = time.Since(started)
		return result, nil
	}

	for _, validation := range validations {
		result.Checked++
		if err := s.dispatcher.SendToRole(ctx, domain.RoleAdmin, notify.TypeValidationPending, map[string]any{
			"validation_id": validation.ID,
			"doctor_id":     validation.DoctorID,
			"submitted_at":  validation.SubmittedAt,
		}); err != nil {
			s.logger.Warn("validation reminder dispatch failed",
				zap.String("validation_id", validation.ID), zap.Error(err))
		}
		if err := s.validations.MarkReminded(ctx, validation.ID, now); err != nil {
			s.logger.Error("validation reminder flag update failed",
				zap.String("validation_id", validation.ID), zap.Error(err))
			result.Errors++
			continue
		}
		s.recordAudit(ctx, "validation.reminder", validation.ID)
		result.Notified++
	}

	result.Duration = time.Since(started)
	s.logSweep("validation reminder sweep finished", result)
	return result, nil
}

func (s *ReminderService) recordAudit(ctx context.Context, action, resourceID string) {
	if s.auditSink == nil {
		return
	}
	resource := "reminder"
	_ = s.auditSink.Record(ctx, nil, action, resource, resourceID, nil)
}

func (s *ReminderService) logSweep(msg string, result ReminderResult) {
	s.logger.Info(msg,
		zap.Int("checked", result.Checked),
		zap.Int("notified", result.Notified),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", result.Duration))
}
