package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medbook/support-engine/internal/audit"
	"github.com/medbook/support-engine/internal/domain"
	"github.com/medbook/support-engine/internal/events"
	"github.com/medbook/support-engine/internal/lifecycle"
	"github.com/medbook/support-engine/internal/repository"
)

// EscalationEngine sweeps aging tickets and promotes their priority along
// the escalation chain. Urgent tickets past their alert window get a
// role-wide admin alert instead of a promotion.
type EscalationEngine struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	dispatcher events.Dispatcher
	auditSink  audit.Sink
	logger     *zap.Logger
}

// EscalationResult reports one sweep run.
type EscalationResult struct {
	Checked   int
	Escalated int
	Alerted   int
	Errors    int
	Duration  time.Duration
}

// NewEscalationEngine constructs the engine.
func NewEscalationEngine(tickets repository.TicketRepository, messages repository.TicketMessageRepository, dispatcher events.Dispatcher, auditSink audit.Sink, logger *zap.Logger) *EscalationEngine {
	return &EscalationEngine{
		tickets:    tickets,
		messages:   messages,
		dispatcher: dispatcher,
		auditSink:  auditSink,
		logger:     logger,
	}
}

// RunSweep executes one escalation pass. Eligibility derives entirely from
// persisted state (the escalated flag and timestamps), so re-running against
// unchanged data is a no-op and the sweep survives restarts. A ticket is
// escalated at most once per sweep call even when its age satisfies several
// thresholds. Per-ticket failures are logged and do not abort the run.
func (e *EscalationEngine) RunSweep(ctx context.Context, now time.Time) (EscalationResult, error) {
	started := time.Now()
	result := EscalationResult{}
	touched := map[string]bool{}

	for _, priority := range lifecycle.EscalationOrder {
		target, ok := lifecycle.EscalationTarget(priority)
		if !ok {
			continue
		}
		cutoff := now.Add(-lifecycle.Threshold(priority))
		candidates, err := e.tickets.FindForEscalation(ctx, priority, cutoff)
		if err != nil {
			e.logger.Error("escalation candidate query failed",
				zap.String("priority", string(priority)), zap.Error(err))
			result.Errors++
			continue
		}

		for i := range candidates {
			ticket := &candidates[i]
			result.Checked++
			if touched[ticket.ID] {
				continue
			}
			touched[ticket.ID] = true
			if err := e.escalateTicket(ctx, ticket, target, now); err != nil {
				e.logger.Error("ticket escalation failed",
					zap.String("ticket_id", ticket.ID), zap.Error(err))
				result.Errors++
				continue
			}
			result.Escalated++
		}
	}

	alerted, alertErrors := e.alertUrgent(ctx, now, touched)
	result.Alerted = alerted
	result.Errors += alertErrors
	result.Duration = time.Since(started)

	e.logger.Info("escalation sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("escalated", result.Escalated),
		zap.Int("alerted", result.Alerted),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (e *EscalationEngine) escalateTicket(ctx context.Context, ticket *domain.Ticket, target domain.TicketPriority, now time.Time) error {
	oldPriority := ticket.Priority
	ticket.Priority = target
	ticket.Escalated = true
	ticket.UpdatedAt = now
	if err := e.tickets.Update(ctx, ticket); err != nil {
		return err
	}

	note := fmt.Sprintf("Priority escalated from %s to %s after exceeding the %dh response window.",
		oldPriority, target, lifecycle.Rules[oldPriority].Hours)
	e.appendSystemMessage(ctx, ticket.ID, note)

	e.publish(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: ticket.ID,
		Actor:    events.SystemActor(),
		Payload: events.TicketEscalatedPayload{
			RequesterID:     ticket.RequesterID,
			AssignedAdminID: ticket.AssignedAdminID,
			OldPriority:     oldPriority,
			NewPriority:     target,
		},
	})
	e.recordAudit(ctx, "ticket.escalate", ticket.ID, map[string]any{
		"old_priority": oldPriority,
		"new_priority": target,
	})
	return nil
}

// alertUrgent marks long-open urgent tickets escalated and raises a
// role-wide alert. Urgent is the priority ceiling; there is nothing left to
// promote.
func (e *EscalationEngine) alertUrgent(ctx context.Context, now time.Time, touched map[string]bool) (int, int) {
	cutoff := now.Add(-lifecycle.UrgentAlertAfter)
	candidates, err := e.tickets.FindForEscalation(ctx, domain.TicketPriorityUrgent, cutoff)
	if err != nil {
		e.logger.Error("urgent alert candidate query failed", zap.Error(err))
		return 0, 1
	}

	alerted := 0
	failures := 0
	for i := range candidates {
		ticket := &candidates[i]
		if touched[ticket.ID] {
			continue
		}
		touched[ticket.ID] = true

		ticket.Escalated = true
		ticket.UpdatedAt = now
		if err := e.tickets.Update(ctx, ticket); err != nil {
			e.logger.Error("urgent alert flag update failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			failures++
			continue
		}

		e.appendSystemMessage(ctx, ticket.ID,
			"Urgent ticket unresolved past the alert window; all admins have been notified.")
		e.publish(ctx, events.Event{
			Type:     events.EventTicketEscalated,
			TicketID: ticket.ID,
			Actor:    events.SystemActor(),
			Payload: events.TicketEscalatedPayload{
				RequesterID:     ticket.RequesterID,
				AssignedAdminID: ticket.AssignedAdminID,
				OldPriority:     domain.TicketPriorityUrgent,
				NewPriority:     domain.TicketPriorityUrgent,
				RoleAlert:       true,
			},
		})
		e.recordAudit(ctx, "ticket.urgent_alert", ticket.ID, nil)
		alerted++
	}
	return alerted, failures
}

func (e *EscalationEngine) appendSystemMessage(ctx context.Context, ticketID, body string) {
	msg := &domain.TicketMessage{
		TicketID:   ticketID,
		AuthorRole: domain.AuthorRoleSystem,
		Body:       body,
		Internal:   true,
	}
	if err := e.messages.Create(ctx, msg); err != nil {
		e.logger.Warn("system message append failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (e *EscalationEngine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = e.dispatcher.Publish(ctx, event)
}

func (e *EscalationEngine) recordAudit(ctx context.Context, action, ticketID string, details map[string]any) {
	if e.auditSink == nil {
		return
	}
	_ = e.auditSink.Record(ctx, nil, action, "ticket", ticketID, details)
}
