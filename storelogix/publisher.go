package storelogix

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PublisherEvent struct {
	Name      string            `json:"name,omitempty"`
	Id        string            `json:"id,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Value     string            `json:"value,omitempty"`

	// The event type that generated this event.
	EventType EventType `json:"-"`
	// Source is the bus event the publisher event was built from.
	Source StoreEvent `json:"-"`
}

// The Publisher describes a service or similar target implementation that
// wishes to receive and process analytics-style events generated by the store
// and ledger systems.
//
// Each Publisher may choose to process or ignore each event as it sees fit. It
// may also choose to buffer events for batch processing at its discretion.
//
// Implementations must handle any errors or retries internally, callers will
// not repeat calls in case of errors. Publishers run on the event bus delivery
// goroutine and must not block for long periods.
type Publisher interface {
	// Send is called when there are one or more events generated.
	Send(ctx context.Context, logger *zap.Logger, events []*PublisherEvent)
}

// publisherBridge subscribes to every bus event and fans each one out to the
// publisher chain as an analytics-style event.
type publisherBridge struct {
	logger     *zap.Logger
	publishers []Publisher
}

func (b *publisherBridge) onEvent(evt StoreEvent) {
	if len(b.publishers) == 0 {
		return
	}

	out := &PublisherEvent{
		Name:      evt.EventType().String(),
		Id:        uuid.NewString(),
		Timestamp: time.Now().Unix(),
		EventType: evt.EventType(),
		Source:    evt,
	}
	if data, err := json.Marshal(evt); err == nil {
		out.Value = string(data)
	}

	events := []*PublisherEvent{out}
	for _, publisher := range b.publishers {
		publisher.Send(context.Background(), b.logger, events)
	}
}
