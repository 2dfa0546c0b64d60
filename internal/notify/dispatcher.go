// Package notify is the hand-off boundary to external notification delivery.
// The engine publishes envelopes to redis channels; delivery workers
// (email, SMS, websocket) consume them out of process.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medbook/support-engine/internal/domain"
)

// Type enumerates notification templates the core emits.
type Type string

const (
	TypeTicketCreated       Type = "ticket_created"
	TypeTicketAssigned      Type = "ticket_assigned"
	TypeTicketStatusChanged Type = "ticket_status_changed"
	TypeTicketMessageAdded  Type = "ticket_message_added"
	TypeTicketEscalated     Type = "ticket_escalated"
	TypeTicketAutoClosed    Type = "ticket_auto_closed"
	TypeAppointmentReminder Type = "appointment_reminder"
	TypeSubscriptionExpiry  Type = "subscription_expiry"
	TypeValidationPending   Type = "validation_pending"
)

// Channel enumerates delivery channels.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelWebsocket Channel = "websocket"
)

// DefaultChannels is used when the caller has no channel preference.
var DefaultChannels = []Channel{ChannelEmail, ChannelWebsocket}

// Dispatcher fans out an event to one user or an entire role.
type Dispatcher interface {
	SendToUser(ctx context.Context, userID string, notifType Type, channels []Channel, variables map[string]any) error
	SendToRole(ctx context.Context, role domain.Role, notifType Type, variables map[string]any) error
}

// Envelope is the JSON payload published for delivery workers.
type Envelope struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Role      domain.Role    `json:"role,omitempty"`
	Channels  []Channel      `json:"channels"`
	Variables map[string]any `json:"variables"`
	CreatedAt time.Time      `json:"created_at"`
}

// RedisDispatcher publishes envelopes to redis pub/sub channels
// (notify:user:<id> and notify:role:<role>).
type RedisDispatcher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisDispatcher builds a dispatcher over the shared redis client.
func NewRedisDispatcher(client *redis.Client, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{client: client, logger: logger}
}

// SendToUser publishes a notification addressed to one user.
func (d *RedisDispatcher) SendToUser(ctx context.Context, userID string, notifType Type, channels []Channel, variables map[string]any) error {
	if len(channels) == 0 {
		channels = DefaultChannels
	}
	envelope := Envelope{
		ID:        uuid.NewString(),
		Type:      notifType,
		UserID:    userID,
		Channels:  channels,
		Variables: variables,
		CreatedAt: time.Now(),
	}
	return d.publish(ctx, "notify:user:"+userID, envelope)
}

// SendToRole publishes a notification addressed to every holder of a role.
func (d *RedisDispatcher) SendToRole(ctx context.Context, role domain.Role, notifType Type, variables map[string]any) error {
	envelope := Envelope{
		ID:        uuid.NewString(),
		Type:      notifType,
		Role:      role,
		Channels:  DefaultChannels,
		Variables: variables,
		CreatedAt: time.Now(),
	}
	return d.publish(ctx, "notify:role:"+string(role), envelope)
}

func (d *RedisDispatcher) publish(ctx context.Context, channel string, envelope Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	if err := d.client.Publish(ctx, channel, payload).Err(); err != nil {
		d.logger.Warn("notification publish failed",
			zap.String("channel", channel),
			zap.String("type", string(envelope.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
