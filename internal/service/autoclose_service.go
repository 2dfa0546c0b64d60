package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medbook/support-engine/internal/audit"
	"github.com/medbook/support-engine/internal/domain"
	"github.com/medbook/support-engine/internal/events"
	"github.com/medbook/support-engine/internal/lifecycle"
	"github.com/medbook/support-engine/internal/repository"
)

// DefaultInactivityWindow is how long a resolved ticket may sit untouched
// before the sweep closes it.
const DefaultInactivityWindow = 48 * time.Hour

// AutoCloseSweeper closes resolved tickets that stayed inactive past the
// window and asks the requester for feedback.
type AutoCloseSweeper struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	dispatcher events.Dispatcher
	auditSink  audit.Sink
	logger     *zap.Logger
}

// CloseResult reports one sweep run.
type CloseResult struct {
	Checked  int
	Closed   int
	Errors   int
	Duration time.Duration
}

// NewAutoCloseSweeper constructs the sweeper.
func NewAutoCloseSweeper(tickets repository.TicketRepository, messages repository.TicketMessageRepository, dispatcher events.Dispatcher, auditSink audit.Sink, logger *zap.Logger) *AutoCloseSweeper {
	return &AutoCloseSweeper{
		tickets:    tickets,
		messages:   messages,
		dispatcher: dispatcher,
		auditSink:  auditSink,
		logger:     logger,
	}
}

// RunSweep closes every resolved ticket whose resolvedAt is older than the
// inactivity window. Idempotent without extra flags: a closed ticket is not
// reselected, so each eligible ticket is closed and notified exactly once.
// Per-ticket failures are logged and do not abort the run.
func (s *AutoCloseSweeper) RunSweep(ctx context.Context, now time.Time, inactivity time.Duration) (CloseResult, error) {
	if inactivity <= 0 {
		inactivity = DefaultInactivityWindow
	}
	started := time.Now()
	result := CloseResult{}

	candidates, err := s.tickets.FindResolvedBefore(ctx, now.Add(-inactivity))
	if err != nil {
		s.logger.Error("auto-close candidate query failed", zap.Error(err))
		result.Errors++
		result.Duration = time.Since(started)
		return result, nil
	}

	for i := range candidates {
		ticket := &candidates[i]
		result.Checked++
		if err := s.closeTicket(ctx, ticket, now); err != nil {
			s.logger.Error("auto close failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			result.Errors++
			continue
		}
		result.Closed++
	}

	result.Duration = time.Since(started)
	s.logger.Info("auto-close sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("closed", result.Closed),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (s *AutoCloseSweeper) closeTicket(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	resolvedAt := ticket.ResolvedAt
	if err := lifecycle.Apply(ticket, domain.TicketStatusClosed, now); err != nil {
		return err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return err
	}

	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		AuthorRole: domain.AuthorRoleSystem,
		Body:       "Ticket closed automatically due to inactivity after resolution.",
		Internal:   true,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Warn("system message append failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	if s.dispatcher != nil {
		payload := events.TicketAutoClosedPayload{RequesterID: ticket.RequesterID}
		if resolvedAt != nil {
			payload.ResolvedAt = *resolvedAt
		}
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketAutoClosed,
			TicketID:  ticket.ID,
			Actor:     events.SystemActor(),
			Timestamp: time.Now(),
			Payload:   payload,
		})
	}
	if s.auditSink != nil {
		_ = s.auditSink.Record(ctx, nil, "ticket.auto_close", "ticket", ticket.ID, nil)
	}
	return nil
}
