// Package notify delivers user notifications over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChannelPrefix is the Redis channel prefix for per-user notification streams
const ChannelPrefix = "ledger:notifications:"

// message is the wire form published to Redis
type message struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Severity  string            `json:"severity"`
	SourceTag string            `json:"source_tag"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	SentAt    time.Time         `json:"sent_at"`
}

// RedisNotifier publishes notifications to per-recipient Redis channels,
// skipping recipients who opted out.
type RedisNotifier struct {
	client      *redis.Client
	preferences shared.NotificationPreferences
	logger      *zap.Logger
}

// NewRedisNotifier creates a new RedisNotifier
func NewRedisNotifier(client *redis.Client, preferences shared.NotificationPreferences, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, preferences: preferences, logger: logger}
}

// Notify publishes the notification to every willing recipient. Delivery
// failures for individual recipients are logged, not propagated.
func (n *RedisNotifier) Notify(ctx context.Context, notification shared.Notification) error {
	payload, err := json.Marshal(message{
		Title:     notification.Title,
		Body:      notification.Body,
		Severity:  string(notification.Severity),
		SourceTag: notification.SourceTag,
		Metadata:  notification.Metadata,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	for _, recipient := range notification.Recipients {
		wants, err := n.preferences.WantsNotifications(ctx, recipient)
		if err != nil {
			n.logger.Warn("failed to resolve notification preference",
				zap.String("recipient", recipient.String()), zap.Error(err))
			continue
		}
		if !wants {
			continue
		}
		if err := n.client.Publish(ctx, channelFor(recipient), payload).Err(); err != nil {
			n.logger.Warn("failed to publish notification",
				zap.String("recipient", recipient.String()), zap.Error(err))
		}
	}
	return nil
}

func channelFor(userID uuid.UUID) string {
	return ChannelPrefix + userID.String()
}

var _ shared.Notifier = (*RedisNotifier)(nil)

// AllowAllPreferences is a NotificationPreferences that never filters.
// Used until a real identity collaborator is wired in.
type AllowAllPreferences struct{}

// WantsNotifications always reports true
func (AllowAllPreferences) WantsNotifications(ctx context.Context, userID uuid.UUID) (bool, error) {
	return true, nil
}

var _ shared.NotificationPreferences = AllowAllPreferences{}
