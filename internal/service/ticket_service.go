package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/medbook/support-engine/internal/audit"
	"github.com/medbook/support-engine/internal/domain"
	"github.com/medbook/support-engine/internal/events"
	"github.com/medbook/support-engine/internal/lifecycle"
	"github.com/medbook/support-engine/internal/repository"
	apperrors "github.com/medbook/support-engine/pkg/util"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	users      repository.UserRepository
	selector   *AssignmentSelector
	dispatcher events.Dispatcher
	auditSink  audit.Sink
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	UserRepo    repository.UserRepository
	Selector    *AssignmentSelector
	Dispatcher  events.Dispatcher
	AuditSink   audit.Sink
	Logger      *zap.Logger
	Now         func() time.Time
}

// TicketCreateInput describes ticket creation payload. Description becomes
// the first message of the thread.
type TicketCreateInput struct {
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
	Subject     string
	Description string
	Attachments []MessageAttachmentInput
}

// TicketUpdateInput describes admin edits to ticket fields.
type TicketUpdateInput struct {
	Category   *domain.TicketCategory
	Priority   *domain.TicketPriority
	Subject    *string
	Resolution *string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	Categories    []domain.TicketCategory
	EscalatedOnly bool
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

// MessageAttachmentInput defines attachment metadata.
type MessageAttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// TicketStats aggregates the admin stats surface.
type TicketStats struct {
	ByStatus   map[domain.TicketStatus]int
	ByPriority map[domain.TicketPriority]int
	Escalated  int
	Unassigned int
	Overdue    int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		users:      deps.UserRepo,
		selector:   deps.Selector,
		dispatcher: deps.Dispatcher,
		auditSink:  deps.AuditSink,
		logger:     deps.Logger,
		now:        now,
	}
}

// CreateTicket creates a ticket, appends the implicit first message, and
// attempts auto-assignment. When no eligible admin exists the ticket stays
// OPEN and unassigned; creation never fails for lack of an assignee.
func (s *TicketService) CreateTicket(ctx context.Context, requester *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if !domain.ValidCategory(input.Category) {
		return nil, apperrors.NewValidationError("unknown ticket category", map[string]any{"category": input.Category})
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(input.Priority) {
		return nil, apperrors.NewValidationError("unknown ticket priority", map[string]any{"priority": input.Priority})
	}
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if subject == "" || description == "" {
		return nil, apperrors.NewValidationError("subject and description required", nil)
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		RequesterID: requester.ID,
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      domain.TicketStatusOpen,
		Subject:     subject,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	firstMessage := &domain.TicketMessage{
		TicketID:    ticket.ID,
		AuthorID:    &requester.ID,
		AuthorRole:  domain.AuthorRoleUser,
		Body:        description,
		Attachments: attachmentRecords(input.Attachments),
	}
	if err := s.messages.Create(ctx, firstMessage); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.UserActor(requester.ID, requester.Role),
		Payload: events.TicketCreatedPayload{
			RequesterID: ticket.RequesterID,
			Category:    ticket.Category,
			Priority:    ticket.Priority,
			Subject:     ticket.Subject,
		},
	})
	s.recordAudit(ctx, &requester.ID, "ticket.create", ticket.ID, map[string]any{
		"category": ticket.Category,
		"priority": ticket.Priority,
	})

	if err := s.autoAssign(ctx, ticket); err != nil {
		// the ticket exists and is open; assignment failure is not fatal
		s.logger.Warn("auto assignment failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return ticket, nil
}

func (s *TicketService) autoAssign(ctx context.Context, ticket *domain.Ticket) error {
	admin, err := s.selector.SelectAdmin(ctx, ticket.Category)
	if err != nil {
		return err
	}
	if admin == nil {
		return nil
	}

	if err := lifecycle.Apply(ticket, domain.TicketStatusAssigned, s.now()); err != nil {
		return err
	}
	ticket.AssignedAdminID = &admin.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    events.SystemActor(),
		Payload: events.TicketAssignedPayload{
			RequesterID:     ticket.RequesterID,
			AssignedAdminID: ticket.AssignedAdminID,
		},
	})
	s.recordAudit(ctx, nil, "ticket.auto_assign", ticket.ID, map[string]any{
		"assigned_admin_id": admin.ID,
	})
	return nil
}

// GetTicket fetches a ticket with its thread, enforcing ownership for
// non-support callers and hiding internal notes from them.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorizeRead(actor, ticket); err != nil {
		return nil, nil, err
	}

	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if !domain.IsSupportRole(actor.Role) {
		msgs = filterInternal(msgs)
	}
	return ticket, msgs, nil
}

// ListTickets returns a page of tickets. Non-support callers only ever see
// their own.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, int, error) {
	repoFilter := repository.TicketFilter{
		Statuses:      filter.Statuses,
		Priorities:    filter.Priorities,
		Categories:    filter.Categories,
		EscalatedOnly: filter.EscalatedOnly,
		CreatedFrom:   filter.CreatedFrom,
		CreatedTo:     filter.CreatedTo,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	}
	if !domain.IsSupportRole(actor.Role) {
		requesterID := actor.ID
		repoFilter.RequesterID = &requesterID
	}
	tickets, total, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return tickets, total, nil
}

// AddMessage appends a message to a ticket thread. A non-admin message on a
// CLOSED or IN_PROGRESS ticket implicitly reopens it first; an ASSIGNED
// ticket stays assigned.
func (s *TicketService) AddMessage(ctx context.Context, actor *domain.User, ticketID, body string, internal bool, attachments []MessageAttachmentInput) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(actor, ticket); err != nil {
		return nil, err
	}

	authorRole := domain.AuthorRoleUser
	if domain.IsSupportRole(actor.Role) {
		authorRole = domain.AuthorRoleAdmin
	}
	if internal && authorRole != domain.AuthorRoleAdmin {
		return nil, apperrors.NewForbidden("internal notes are admin only")
	}

	reopened := false
	if lifecycle.ShouldReopenOnMessage(ticket.Status, authorRole) {
		oldStatus := ticket.Status
		if err := lifecycle.Apply(ticket, domain.TicketStatusOpen, s.now()); err != nil {
			return nil, err
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
		reopened = true
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    events.UserActor(actor.ID, actor.Role),
			Payload: events.TicketStatusChangedPayload{
				RequesterID: ticket.RequesterID,
				OldStatus:   oldStatus,
				NewStatus:   ticket.Status,
				Comment:     "reopened by new message",
			},
		})
		s.recordAudit(ctx, &actor.ID, "ticket.reopen", ticket.ID, map[string]any{
			"old_status": oldStatus,
		})
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		AuthorID:    &actor.ID,
		AuthorRole:  authorRole,
		Body:        body,
		Internal:    internal,
		Attachments: attachmentRecords(attachments),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    events.UserActor(actor.ID, actor.Role),
		Payload: events.TicketMessageAddedPayload{
			RequesterID:     ticket.RequesterID,
			AssignedAdminID: ticket.AssignedAdminID,
			MessageID:       msg.ID,
			AuthorRole:      authorRole,
			Internal:        internal,
			BodyPreview:     stringPreview(body, 120),
			Reopened:        reopened,
		},
	})
	s.recordAudit(ctx, &actor.ID, "ticket.message", ticket.ID, map[string]any{
		"message_id": msg.ID,
		"internal":   internal,
	})
	return msg, nil
}

// UpdateTicket applies admin edits to mutable ticket fields.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if input.Category != nil {
		if !domain.ValidCategory(*input.Category) {
			return nil, apperrors.NewValidationError("unknown ticket category", map[string]any{"category": *input.Category})
		}
		changes["category"] = *input.Category
		ticket.Category = *input.Category
	}
	if input.Priority != nil {
		if !domain.ValidPriority(*input.Priority) {
			return nil, apperrors.NewValidationError("unknown ticket priority", map[string]any{"priority": *input.Priority})
		}
		changes["priority"] = *input.Priority
		ticket.Priority = *input.Priority
	}
	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		if subject == "" {
			return nil, apperrors.NewValidationError("subject cannot be empty", nil)
		}
		changes["subject"] = subject
		ticket.Subject = subject
	}
	if input.Resolution != nil {
		resolution := strings.TrimSpace(*input.Resolution)
		changes["resolution"] = resolution
		ticket.Resolution = &resolution
	}
	if len(changes) == 0 {
		return ticket, nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAudit(ctx, &actor.ID, "ticket.update", ticket.ID, changes)
	return ticket, nil
}

// UpdateStatus moves the ticket through the state machine. Resolving may
// carry a resolution text.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus, resolution string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	if err := lifecycle.Apply(ticket, newStatus, s.now()); err != nil {
		return nil, err
	}
	if newStatus == domain.TicketStatusResolved {
		if resolution = strings.TrimSpace(resolution); resolution != "" {
			ticket.Resolution = &resolution
		}
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.UserActor(actor.ID, actor.Role),
		Payload: events.TicketStatusChangedPayload{
			RequesterID:     ticket.RequesterID,
			AssignedAdminID: ticket.AssignedAdminID,
			OldStatus:       oldStatus,
			NewStatus:       newStatus,
		},
	})
	s.recordAudit(ctx, &actor.ID, "ticket.status", ticket.ID, map[string]any{
		"old_status": oldStatus,
		"new_status": newStatus,
	})
	return ticket, nil
}

// AssignTicket assigns the ticket to a specific admin, or auto-selects one
// when adminID is empty.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, adminID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("cannot assign a closed ticket", map[string]any{"ticket_id": ticket.ID})
	}

	var assignee *domain.User
	if adminID == "" {
		assignee, err = s.selector.SelectAdmin(ctx, ticket.Category)
		if err != nil {
			return nil, err
		}
		if assignee == nil {
			return nil, apperrors.NewConflict("no eligible admin available", map[string]any{"category": ticket.Category})
		}
	} else {
		assignee, err = s.users.GetByID(ctx, adminID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("admin", map[string]any{"admin_id": adminID})
			}
			return nil, apperrors.MapError(err)
		}
		if !assignee.Active || !domain.IsSupportRole(assignee.Role) {
			return nil, apperrors.NewConflict("assignee is not an active support admin", map[string]any{"admin_id": adminID})
		}
		if !domain.RoleEligibleFor(assignee.Role, ticket.Category) && assignee.Role != domain.RoleSuperAdmin {
			return nil, apperrors.NewConflict("assignee not eligible for category", map[string]any{
				"admin_id": adminID,
				"category": ticket.Category,
			})
		}
	}

	if ticket.Status == domain.TicketStatusOpen {
		if err := lifecycle.Apply(ticket, domain.TicketStatusAssigned, s.now()); err != nil {
			return nil, err
		}
	}
	ticket.AssignedAdminID = &assignee.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    events.UserActor(actor.ID, actor.Role),
		Payload: events.TicketAssignedPayload{
			RequesterID:     ticket.RequesterID,
			AssignedAdminID: ticket.AssignedAdminID,
		},
	})
	s.recordAudit(ctx, &actor.ID, "ticket.assign", ticket.ID, map[string]any{
		"assigned_admin_id": assignee.ID,
	})
	return ticket, nil
}

// Stats aggregates the admin dashboard counters. Overdue counts are derived
// from the SLA rule table over active tickets.
func (s *TicketService) Stats(ctx context.Context) (*TicketStats, error) {
	byStatus, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byPriority, err := s.tickets.CountByPriority(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	escalated, err := s.tickets.CountEscalated(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	unassigned, err := s.tickets.CountUnassigned(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	overdue := 0
	for priority := range lifecycle.Rules {
		count, err := s.tickets.CountActiveCreatedBefore(ctx, priority, now.Add(-lifecycle.Threshold(priority)))
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		overdue += count
	}

	return &TicketStats{
		ByStatus:   byStatus,
		ByPriority: byPriority,
		Escalated:  escalated,
		Unassigned: unassigned,
		Overdue:    overdue,
	}, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) authorizeRead(actor *domain.User, ticket *domain.Ticket) error {
	if domain.IsSupportRole(actor.Role) {
		return nil
	}
	if ticket.RequesterID != actor.ID {
		return apperrors.NewForbidden("access denied")
	}
	return nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketService) recordAudit(ctx context.Context, actorID *string, action, ticketID string, details map[string]any) {
	if s.auditSink == nil {
		return
	}
	// audit failure is logged by the sink and never fails the operation
	_ = s.auditSink.Record(ctx, actorID, action, "ticket", ticketID, details)
}

func filterInternal(msgs []domain.TicketMessage) []domain.TicketMessage {
	filtered := make([]domain.TicketMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Internal {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}

func attachmentRecords(inputs []MessageAttachmentInput) []domain.AttachmentReference {
	if len(inputs) == 0 {
		return nil
	}
	records := make([]domain.AttachmentReference, 0, len(inputs))
	for _, input := range inputs {
		records = append(records, domain.AttachmentReference{
			StorageKey: input.StorageKey,
			FileName:   input.FileName,
			MimeType:   input.MimeType,
			SizeBytes:  input.SizeBytes,
		})
	}
	return records
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
