package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/support-engine/internal/audit"
	"github.com/medbook/support-engine/internal/domain"
	"github.com/medbook/support-engine/internal/events"
)

type escalationFixture struct {
	engine   *EscalationEngine
	tickets  *fakeTicketRepo
	messages *fakeMessageRepo
	bus      *eventRecorder
	now      time.Time
}

func newEscalationFixture(t *testing.T) *escalationFixture {
	t.Helper()
	tickets := newFakeTicketRepo()
	messages := newFakeMessageRepo()
	bus := newEventRecorder()
	return &escalationFixture{
		engine:   NewEscalationEngine(tickets, messages, bus, audit.NopSink{}, testLogger()),
		tickets:  tickets,
		messages: messages,
		bus:      bus,
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func (fx *escalationFixture) seedAged(priority domain.TicketPriority, age time.Duration, status domain.TicketStatus) *domain.Ticket {
	return fx.tickets.seed(domain.Ticket{
		RequesterID: "patient-1",
		Category:    domain.TicketCategoryGeneral,
		Priority:    priority,
		Status:      status,
		Subject:     "aging ticket",
		CreatedAt:   fx.now.Add(-age),
	})
}

func TestSweepEscalatesLowPastWindow(t *testing.T) {
	fx := newEscalationFixture(t)
	seeded := fx.seedAged(domain.TicketPriorityLow, 73*time.Hour, domain.TicketStatusOpen)
	// a younger low ticket stays put
	fresh := fx.seedAged(domain.TicketPriorityLow, time.Hour, domain.TicketStatusOpen)

	result, err := fx.engine.RunSweep(context.Background(), fx.now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)
	assert.Zero(t, result.Errors)

	stored, _ := fx.tickets.GetByID(context.Background(), seeded.ID)
	assert.Equal(t, domain.TicketPriorityMedium, stored.Priority)
	assert.True(t, stored.Escalated)
	// the status is untouched by escalation
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)

	untouched, _ := fx.tickets.GetByID(context.Background(), fresh.ID)
	assert.Equal(t, domain.TicketPriorityLow, untouched.Priority)
	assert.False(t, untouched.Escalated)

	// the sweep leaves an internal system note on the thread
	msgs := fx.messages.byTicket(seeded.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.AuthorRoleSystem, msgs[0].AuthorRole)
	assert.True(t, msgs[0].Internal)

	escalations := fx.bus.ofType(events.EventTicketEscalated)
	require.Len(t, escalations, 1)
	payload := escalations[0].Payload.(events.TicketEscalatedPayload)
	assert.Equal(t, domain.TicketPriorityLow, payload.OldPriority)
	assert.Equal(t, domain.TicketPriorityMedium, payload.NewPriority)
	assert.False(t, payload.RoleAlert)
}

func TestSweepEscalatesHighToUrgent(t *testing.T) {
	fx := newEscalationFixture(t)
	seeded := fx.seedAged(domain.TicketPriorityHigh, 5*time.Hour, domain.TicketStatusOpen)

	result, err := fx.engine.RunSweep(context.Background(), fx.now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)
	// the fresh promotion is not also role-alerted in the same sweep
	assert.Zero(t, result.Alerted)

	stored, _ := fx.tickets.GetByID(context.Background(), seeded.ID)
	assert.Equal(t, domain.TicketPriorityUrgent, stored.Priority)
	assert.True(t, stored.Escalated)

	escalations := fx.bus.ofType(events.EventTicketEscalated)
	require.Len(t, escalations, 1)
	payload := escalations[0].Payload.(events.TicketEscalatedPayload)
	assert.Equal(t, domain.TicketPriorityHigh, payload.OldPriority)
	assert.Equal(t, domain.TicketPriorityUrgent, payload.NewPriority)
	assert.False(t, payload.RoleAlert)
}

func TestSweepEscalatesAtMostOneStep(t *testing.T) {
	fx := newEscalationFixture(t)
	// old enough to satisfy both the low and medium thresholds
	seeded := fx.seedAged(domain.TicketPriorityLow, 200*time.Hour, domain.TicketStatusAssigned)

	result, err := fx.engine.RunSweep(context.Background(), fx.now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)

	stored, _ := fx.tickets.GetByID(context.Background(), seeded.ID)
	assert.Equal(t, domain.TicketPriorityMedium, stored.Priority)
	assert.Len(t, fx.bus.ofType(events.EventTicketEscalated), 1)
}

func TestSweepIsIdempotent(t *testing.T) {
	fx := newEscalationFixture(t)
	fx.seedAged(domain.TicketPriorityMedium, 30*time.Hour, domain.TicketStatusOpen)

	first, err := fx.engine.RunSweep(context.Background(), fx.now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Escalated)

	// the escalated flag keeps the promoted ticket out of the next sweep
	second, err := fx.engine.RunSweep(context.Background(), fx.now)
	require.NoError(t, err)
	assert.Zero(t, second.Escalated)
	assert.Zero(t, second.Alerted)
	assert.Len(t, fx.bus.ofType(events.EventTicketEscalated), 1)
}

func TestSweepSkipsResolvedAndClosed(t *testing.T) {
	fx := newEscalationFixture(t)
	resolvedAt := fx.now.Add(-time.Hour)
	fx.tickets.seed(domain.Ticket{
		RequesterID: "patient-1",
		Category:    domain.TicketCategoryGeneral,
		Priority:    domain.TicketPriorityLow,
		Status:      domain.TicketStatusResolved,
		Subject:     "aging ticket",
		CreatedAt:   fx.now.Add(-100 * time.Hour),
		ResolvedAt:  &resolvedAt,
	})
	fx.seedAged(domain.TicketPriorityLow, 100*time.Hour, domain.TicketStatusClosed)

	result, err := fx.engine.RunSweep(context.Background(), fx.now)
	require.NoError(t, err)
	assert.Zero(t, result.Escalated)
	assert.Zero(t, result.Alerted)
}

func TestSweepAlertsUrgentPastAlertWindow(t *testing.T) {
	fx := newEscalationFixture(t)
	seeded := fx.seedAged(domain.TicketPriorityUrgent, 3*time.Hour, domain.TicketStatusAssigned)

	result, err := fx.engine.RunSweep(context.Background(), fx.now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Alerted)
	assert.Zero(t, result.Escalated)

	stored, _ := fx.tickets.GetByID(context.Background(), seeded.ID)
	// urgent is the ceiling: flagged, not promoted
	assert.Equal(t, domain.TicketPriorityUrgent, stored.Priority)
	assert.True(t, stored.Escalated)

	escalations := fx.bus.ofType(events.EventTicketEscalated)
	require.Len(t, escalations, 1)
	payload := escalations[0].Payload.(events.TicketEscalatedPayload)
	assert.True(t, payload.RoleAlert)
	assert.Equal(t, domain.TicketPriorityUrgent, payload.NewPriority)
}

func TestSweepUrgentInsideAlertWindowUntouched(t *testing.T) {
	fx := newEscalationFixture(t)
	seeded := fx.seedAged(domain.TicketPriorityUrgent, 90*time.Minute, domain.TicketStatusOpen)

	result, err := fx.engine.RunSweep(context.Background(), fx.now)
	require.NoError(t, err)
	assert.Zero(t, result.Alerted)

	stored, _ := fx.tickets.GetByID(context.Background(), seeded.ID)
	assert.False(t, stored.Escalated)
}

func TestSweepIsolatesPerTicketFailures(t *testing.T) {
	fx := newEscalationFixture(t)
	broken := fx.seedAged(domain.TicketPriorityMedium, 30*time.Hour, domain.TicketStatusOpen)
	healthy := fx.seedAged(domain.TicketPriorityMedium, 30*time.Hour, domain.TicketStatusOpen)
	fx.tickets.failUpdateFor[broken.ID] = assert.AnError

	result, err := fx.engine.RunSweep(context.Background(), fx.now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)
	assert.Equal(t, 1, result.Errors)

	stored, _ := fx.tickets.GetByID(context.Background(), healthy.ID)
	assert.True(t, stored.Escalated)
}
