package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/medbook/support-engine/internal/domain"
	"github.com/medbook/support-engine/internal/events"
	"github.com/medbook/support-engine/internal/notify"
	"github.com/medbook/support-engine/internal/repository"
)

// fakeTicketRepo is an in-memory TicketRepository mirroring the store's
// query semantics closely enough for service tests.
type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
	order   []string

	failUpdateFor map[string]error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:       make(map[string]*domain.Ticket),
		failUpdateFor: make(map[string]error),
	}
}

func (f *fakeTicketRepo) seed(ticket domain.Ticket) *domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ticket.ID == "" {
		f.seq++
		ticket.ID = fmt.Sprintf("ticket-%d", f.seq)
	}
	copied := ticket
	f.tickets[copied.ID] = &copied
	f.order = append(f.order, copied.ID)
	return &copied
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", f.seq)
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	f.tickets[ticket.ID] = &copied
	f.order = append(f.order, ticket.ID)
	return nil
}

func (f *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failUpdateFor[ticket.ID]; ok {
		return err
	}
	if _, ok := f.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *ticket
	f.tickets[ticket.ID] = &copied
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, id := range f.order {
		ticket := f.tickets[id]
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if filter.EscalatedOnly && !ticket.Escalated {
			continue
		}
		result = append(result, *ticket)
	}
	return result, len(result), nil
}

func (f *fakeTicketRepo) CountActiveByAdmin(_ context.Context, adminIDs []string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int, len(adminIDs))
	for _, id := range adminIDs {
		counts[id] = 0
	}
	for _, ticket := range f.tickets {
		if ticket.AssignedAdminID == nil || !ticket.IsActive() {
			continue
		}
		if _, ok := counts[*ticket.AssignedAdminID]; ok {
			counts[*ticket.AssignedAdminID]++
		}
	}
	return counts, nil
}

func (f *fakeTicketRepo) FindForEscalation(_ context.Context, priority domain.TicketPriority, cutoff time.Time) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, id := range f.order {
		ticket := f.tickets[id]
		if ticket.Priority != priority || ticket.Escalated || ticket.ResolvedAt != nil {
			continue
		}
		if ticket.Status != domain.TicketStatusOpen && ticket.Status != domain.TicketStatusAssigned {
			continue
		}
		if !ticket.CreatedAt.Before(cutoff) {
			continue
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (f *fakeTicketRepo) FindResolvedBefore(_ context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, id := range f.order {
		ticket := f.tickets[id]
		if ticket.Status != domain.TicketStatusResolved || ticket.ResolvedAt == nil {
			continue
		}
		if !ticket.ResolvedAt.Before(cutoff) {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func (f *fakeTicketRepo) CountActiveCreatedBefore(_ context.Context, priority domain.TicketPriority, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, ticket := range f.tickets {
		if ticket.Priority == priority && ticket.IsActive() && ticket.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (f *fakeTicketRepo) CountByStatus(_ context.Context) (map[domain.TicketStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.TicketStatus]int)
	for _, ticket := range f.tickets {
		counts[ticket.Status]++
	}
	return counts, nil
}

func (f *fakeTicketRepo) CountByPriority(_ context.Context) (map[domain.TicketPriority]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.TicketPriority]int)
	for _, ticket := range f.tickets {
		counts[ticket.Priority]++
	}
	return counts, nil
}

func (f *fakeTicketRepo) CountEscalated(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, ticket := range f.tickets {
		if ticket.Escalated && ticket.Status != domain.TicketStatusClosed {
			count++
		}
	}
	return count, nil
}

func (f *fakeTicketRepo) CountUnassigned(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, ticket := range f.tickets {
		if ticket.AssignedAdminID == nil && ticket.IsActive() {
			count++
		}
	}
	return count, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// fakeMessageRepo records ticket thread messages.
type fakeMessageRepo struct {
	mu       sync.Mutex
	seq      int
	messages []domain.TicketMessage
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (f *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	msg.ID = fmt.Sprintf("msg-%d", f.seq)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.TicketMessage
	for _, msg := range f.messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (f *fakeMessageRepo) byTicket(ticketID string) []domain.TicketMessage {
	msgs, _ := f.ListByTicket(context.Background(), ticketID)
	return msgs
}

// fakeUserRepo holds platform accounts.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for i := range users {
		user := users[i]
		repo.users[user.ID] = &user
	}
	return repo
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) ListActiveByRoles(_ context.Context, roles []domain.Role) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.User
	for _, user := range f.users {
		if !user.Active {
			continue
		}
		for _, role := range roles {
			if user.Role == role {
				result = append(result, *user)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// eventRecorder captures published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{}
}

func (r *eventRecorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Subscribe(events.EventType, events.EventHandler) {}

func (r *eventRecorder) ofType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []events.Event
	for _, event := range r.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

// notifyRecorder captures notification sends.
type notifySend struct {
	UserID    string
	Role      domain.Role
	Type      notify.Type
	Variables map[string]any
}

type notifyRecorder struct {
	mu    sync.Mutex
	sends []notifySend
}

func newNotifyRecorder() *notifyRecorder {
	return &notifyRecorder{}
}

func (r *notifyRecorder) SendToUser(_ context.Context, userID string, notifType notify.Type, _ []notify.Channel, variables map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, notifySend{UserID: userID, Type: notifType, Variables: variables})
	return nil
}

func (r *notifyRecorder) SendToRole(_ context.Context, role domain.Role, notifType notify.Type, variables map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, notifySend{Role: role, Type: notifType, Variables: variables})
	return nil
}

func (r *notifyRecorder) toUser(userID string) []notifySend {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []notifySend
	for _, send := range r.sends {
		if send.UserID == userID {
			result = append(result, send)
		}
	}
	return result
}

func (r *notifyRecorder) toRole(role domain.Role) []notifySend {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []notifySend
	for _, send := range r.sends {
		if send.Role == role {
			result = append(result, send)
		}
	}
	return result
}

// fakeAppointmentRepo backs the appointment reminder sweep.
type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[string]*domain.Appointment
}

func newFakeAppointmentRepo(appointments ...domain.Appointment) *fakeAppointmentRepo {
	repo := &fakeAppointmentRepo{appointments: make(map[string]*domain.Appointment)}
	for i := range appointments {
		appt := appointments[i]
		repo.appointments[appt.ID] = &appt
	}
	return repo
}

func (f *fakeAppointmentRepo) FindUpcomingUnreminded(_ context.Context, from, to time.Time) ([]domain.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Appointment
	for _, appt := range f.appointments {
		if appt.Status != domain.AppointmentStatusConfirmed || appt.ReminderSent {
			continue
		}
		if appt.ScheduledAt.Before(from) || !appt.ScheduledAt.Before(to) {
			continue
		}
		result = append(result, *appt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeAppointmentRepo) MarkReminderSent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appointments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	appt.ReminderSent = true
	return nil
}

// fakeSubscriptionRepo backs the expiry reminder sweep.
type fakeSubscriptionRepo struct {
	mu            sync.Mutex
	subscriptions map[string]*domain.Subscription
}

func newFakeSubscriptionRepo(subscriptions ...domain.Subscription) *fakeSubscriptionRepo {
	repo := &fakeSubscriptionRepo{subscriptions: make(map[string]*domain.Subscription)}
	for i := range subscriptions {
		sub := subscriptions[i]
		repo.subscriptions[sub.ID] = &sub
	}
	return repo
}

func (f *fakeSubscriptionRepo) FindExpiringUnreminded(_ context.Context, cutoff time.Time) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var result []domain.Subscription
	for _, sub := range f.subscriptions {
		if !sub.Active || sub.ExpiryReminderSent {
			continue
		}
		if !sub.ExpiresAt.After(now) || !sub.ExpiresAt.Before(cutoff) {
			continue
		}
		result = append(result, *sub)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeSubscriptionRepo) MarkExpiryReminderSent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscriptions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	sub.ExpiryReminderSent = true
	return nil
}

// fakeValidationRepo backs the validation reminder sweep.
type fakeValidationRepo struct {
	mu          sync.Mutex
	validations map[string]*domain.Validation
}

func newFakeValidationRepo(validations ...domain.Validation) *fakeValidationRepo {
	repo := &fakeValidationRepo{validations: make(map[string]*domain.Validation)}
	for i := range validations {
		validation := validations[i]
		repo.validations[validation.ID] = &validation
	}
	return repo
}

func (f *fakeValidationRepo) FindPendingStale(_ context.Context, cutoff time.Time) ([]domain.Validation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Validation
	for _, validation := range f.validations {
		if validation.Status != domain.ValidationStatusPending {
			continue
		}
		if !validation.SubmittedAt.Before(cutoff) {
			continue
		}
		if validation.LastRemindedAt != nil && !validation.LastRemindedAt.Before(cutoff) {
			continue
		}
		result = append(result, *validation)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeValidationRepo) MarkReminded(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	validation, ok := f.validations[id]
	if !ok {
		return pgx.ErrNoRows
	}
	remindedAt := at
	validation.LastRemindedAt = &remindedAt
	return nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
