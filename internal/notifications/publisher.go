package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/google/uuid"
)

const defaultPublishTimeout = 10 * time.Second

type publisher interface {
	Publish(context.Context, *pubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// PubSubNotifier publishes payout notices to a Pub/Sub topic for the mailer.
type PubSubNotifier struct {
	pub     publisher
	logg    *logger.Logger
	timeout time.Duration
	newID   func() string
}

// NewPubSubNotifier wraps a topic publisher. Notices for one project are
// delivered in publish order.
func NewPubSubNotifier(p *pubsub.Publisher, logg *logger.Logger) (*PubSubNotifier, error) {
	if p == nil {
		return nil, errors.New("notification publisher required")
	}
	p.EnableMessageOrdering = true
	return newPubSubNotifier(&gcpPublisher{Publisher: p}, logg)
}

func newPubSubNotifier(pub publisher, logg *logger.Logger) (*PubSubNotifier, error) {
	if pub == nil {
		return nil, errors.New("notification publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &PubSubNotifier{
		pub:     pub,
		logg:    logg,
		timeout: defaultPublishTimeout,
		newID:   uuid.NewString,
	}, nil
}

// NotifyPayoutConfirmed publishes the notice and waits for the server ack.
func (n *PubSubNotifier) NotifyPayoutConfirmed(ctx context.Context, notice PayoutNotice) error {
	msg, err := n.buildMessage(notice)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	result := n.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	serverID, err := result.Get(publishCtx)
	if err != nil {
		// a failed ordered publish pauses its key until resumed
		n.pub.ResumePublish(msg.OrderingKey)
		return fmt.Errorf("publish payout notice: %w", err)
	}

	n.logg.Info(n.logg.WithFields(ctx, map[string]any{
		"project_id": notice.ProjectID.String(),
		"message_id": serverID,
		"event_id":   msg.Attributes["event_id"],
	}), "payout notice published")
	return nil
}

func (n *PubSubNotifier) buildMessage(notice PayoutNotice) (*pubsub.Message, error) {
	data, err := json.Marshal(notice)
	if err != nil {
		return nil, fmt.Errorf("encode payout notice: %w", err)
	}
	env := envelope{
		Version:    envelopeVersion,
		EventID:    n.newID(),
		EventType:  EventPayoutConfirmed,
		OccurredAt: notice.ConfirmedAt.UTC(),
		Data:       data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return &pubsub.Message{
		Data:        body,
		OrderingKey: notice.ProjectID.String(),
		Attributes: map[string]string{
			"event_id":   env.EventID,
			"event_type": EventPayoutConfirmed,
			"project_id": notice.ProjectID.String(),
		},
	}, nil
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*pubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

// LogNotifier records payout notices in the service log. Used when no
// Pub/Sub project is configured.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) NotifyPayoutConfirmed(ctx context.Context, notice PayoutNotice) error {
	if n == nil || n.logg == nil {
		return errors.New("log notifier not configured")
	}
	n.logg.Info(n.logg.WithFields(ctx, map[string]any{
		"project_id":    notice.ProjectID.String(),
		"creator_email": notice.Creator.Email,
		"amount":        notice.Amount.String(),
	}), "payout confirmed notice")
	return nil
}
