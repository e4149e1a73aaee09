package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/tamwill-backend/internal/users"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/google/uuid"
)

type fakePublisher struct {
	messages []*pubsub.Message
	result   publishResult
	resumed  []string
}

func (f *fakePublisher) ResumePublish(orderingKey string) {
	f.resumed = append(f.resumed, orderingKey)
}

func (f *fakePublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return f.result
}

type fakePublishResult struct {
	id  string
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return f.id, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func sampleNotice() PayoutNotice {
	return PayoutNotice{
		ProjectID:    uuid.MustParse("7d6b3f8e-2c1a-4b43-9d3e-1f2a3b4c5d6e"),
		ProjectTitle: "Community garden",
		Creator:      users.Contact{Name: "Ana", Email: "ana@example.test"},
		Amount:       money.FromCents(10000),
		Destination:  "ACC123",
		ConfirmedAt:  time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
	}
}

func TestNotifyPayoutConfirmedPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{result: fakePublishResult{id: "msg-1"}}
	notifier, err := newPubSubNotifier(pub, testLogger())
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	notifier.newID = func() string { return "evt-1" }

	if err := notifier.NotifyPayoutConfirmed(context.Background(), sampleNotice()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Attributes["event_type"] != EventPayoutConfirmed || msg.Attributes["event_id"] != "evt-1" {
		t.Fatalf("unexpected attributes: %v", msg.Attributes)
	}
	if msg.OrderingKey != sampleNotice().ProjectID.String() {
		t.Fatalf("expected project ordering key, got %q", msg.OrderingKey)
	}
	if len(pub.resumed) != 0 {
		t.Fatalf("unexpected resume on success: %v", pub.resumed)
	}

	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var notice PayoutNotice
	if err := json.Unmarshal(env.Data, &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if notice.Amount != money.FromCents(10000) || notice.Destination != "ACC123" {
		t.Fatalf("unexpected notice: %+v", notice)
	}
	if env.Version != envelopeVersion {
		t.Fatalf("unexpected version %d", env.Version)
	}
}

func TestNotifyPayoutConfirmedSurfacesPublishError(t *testing.T) {
	pub := &fakePublisher{result: fakePublishResult{err: errors.New("unavailable")}}
	notifier, err := newPubSubNotifier(pub, testLogger())
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := notifier.NotifyPayoutConfirmed(context.Background(), sampleNotice()); err == nil {
		t.Fatal("expected publish error")
	}
	if len(pub.resumed) != 1 || pub.resumed[0] != sampleNotice().ProjectID.String() {
		t.Fatalf("expected ordering key resumed after failure, got %v", pub.resumed)
	}
}

func TestNewPubSubNotifierRequiresPublisher(t *testing.T) {
	if _, err := NewPubSubNotifier(nil, testLogger()); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(testLogger()).NotifyPayoutConfirmed(context.Background(), sampleNotice()); err != nil {
		t.Fatalf("log notify: %v", err)
	}
	var missing *LogNotifier
	if err := missing.NotifyPayoutConfirmed(context.Background(), sampleNotice()); err == nil {
		t.Fatal("expected error from nil notifier")
	}
}
