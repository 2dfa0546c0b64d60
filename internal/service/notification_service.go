package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/medbook/support-engine/internal/domain"
	"github.com/medbook/support-engine/internal/events"
	"github.com/medbook/support-engine/internal/notify"
)

// NotificationService routes domain events to the notification dispatcher.
// Dispatch is fire-and-forget: a failed send is logged and never rolls back
// the mutation that triggered it.
type NotificationService struct {
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher notify.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to the event bus.
func (n *NotificationService) RegisterHandlers(bus events.Dispatcher) {
	if bus == nil {
		return
	}
	bus.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	bus.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	bus.Subscribe(events.EventTicketStatusChanged, n.handleStatusChanged)
	bus.Subscribe(events.EventTicketMessageAdded, n.handleMessageAdded)
	bus.Subscribe(events.EventTicketEscalated, n.handleEscalated)
	bus.Subscribe(events.EventTicketAutoClosed, n.handleAutoClosed)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	n.sendToUser(ctx, payload.RequesterID, notify.TypeTicketCreated, map[string]any{
		"ticket_id": event.TicketID,
		"subject":   payload.Subject,
	})
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok || payload.AssignedAdminID == nil {
		return nil
	}
	n.sendToUser(ctx, *payload.AssignedAdminID, notify.TypeTicketAssigned, map[string]any{
		"ticket_id": event.TicketID,
	})
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	n.sendToUser(ctx, payload.RequesterID, notify.TypeTicketStatusChanged, map[string]any{
		"ticket_id":  event.TicketID,
		"old_status": payload.OldStatus,
		"new_status": payload.NewStatus,
	})
	return nil
}

// handleMessageAdded notifies the counterparty of a new public message.
func (n *NotificationService) handleMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok || payload.Internal {
		return nil
	}
	variables := map[string]any{
		"ticket_id": event.TicketID,
		"preview":   payload.BodyPreview,
	}
	if payload.AuthorRole == domain.AuthorRoleAdmin {
		n.sendToUser(ctx, payload.RequesterID, notify.TypeTicketMessageAdded, variables)
	} else if payload.AssignedAdminID != nil {
		n.sendToUser(ctx, *payload.AssignedAdminID, notify.TypeTicketMessageAdded, variables)
	}
	return nil
}

func (n *NotificationService) handleEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		return nil
	}
	variables := map[string]any{
		"ticket_id":    event.TicketID,
		"old_priority": payload.OldPriority,
		"new_priority": payload.NewPriority,
	}
	if payload.RoleAlert {
		if err := n.dispatcher.SendToRole(ctx, domain.RoleAdmin, notify.TypeTicketEscalated, variables); err != nil {
			n.logger.Warn("role alert dispatch failed",
				zap.String("ticket_id", event.TicketID), zap.Error(err))
		}
		return nil
	}
	if payload.AssignedAdminID != nil {
		n.sendToUser(ctx, *payload.AssignedAdminID, notify.TypeTicketEscalated, variables)
	}
	return nil
}

func (n *NotificationService) handleAutoClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAutoClosedPayload)
	if !ok {
		return nil
	}
	n.sendToUser(ctx, payload.RequesterID, notify.TypeTicketAutoClosed, map[string]any{
		"ticket_id":        event.TicketID,
		"feedback_request": true,
	})
	return nil
}

func (n *NotificationService) sendToUser(ctx context.Context, userID string, notifType notify.Type, variables map[string]any) {
	if err := n.dispatcher.SendToUser(ctx, userID, notifType, nil, variables); err != nil {
		n.logger.Warn("notification dispatch failed",
			zap.String("user_id", userID),
			zap.String("type", string(notifType)),
			zap.Error(err))
	}
}
