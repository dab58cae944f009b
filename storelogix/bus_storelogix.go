package storelogix

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type busCommandKind uint

const (
	busCommandPublish busCommandKind = iota
	busCommandSubscribe
	busCommandUnsubscribe
	busCommandFlush
)

type busSubscriber struct {
	id       Subscription
	interest map[EventType]bool // nil means all types
	fn       OnEvent
}

type busCommand struct {
	kind busCommandKind
	evt  StoreEvent
	sub  *busSubscriber
	id   Subscription
	done chan struct{}
}

// EventBusImpl implements the EventBus interface with a single delivery
// goroutine fed by a command channel. Calls arriving from any goroutine are
// marshaled into the channel, which preserves causal ordering between a
// Subscribe call and events published afterwards.
type EventBusImpl struct {
	config *BusConfig
	logger *zap.Logger

	commands chan busCommand
	nextID   atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
	stopped   chan struct{}
}

// NewEventBus creates a new instance of the EventBus implementation and starts
// its delivery goroutine.
func NewEventBus(config *BusConfig, logger *zap.Logger) *EventBusImpl {
	if config == nil {
		config = &BusConfig{}
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	bus := &EventBusImpl{
		config:   config,
		logger:   logger,
		commands: make(chan busCommand, queueSize),
		stopped:  make(chan struct{}),
	}
	go bus.run()
	return bus
}

// GetType provides the runtime type of the system.
func (b *EventBusImpl) GetType() SystemType {
	return SystemTypeEventBus
}

// GetConfig returns the configuration type of the system.
func (b *EventBusImpl) GetConfig() any {
	return b.config
}

func (b *EventBusImpl) run() {
	defer close(b.stopped)

	// Subscriber insertion order determines delivery order for each publish.
	subscribers := make([]*busSubscriber, 0, 8)

	for cmd := range b.commands {
		switch cmd.kind {
		case busCommandPublish:
			eventType := cmd.evt.EventType()
			for _, sub := range subscribers {
				if sub.interest != nil && !sub.interest[eventType] {
					continue
				}
				sub.fn(cmd.evt)
			}

		case busCommandSubscribe:
			subscribers = append(subscribers, cmd.sub)

		case busCommandUnsubscribe:
			for i, sub := range subscribers {
				if sub.id == cmd.id {
					subscribers = append(subscribers[:i], subscribers[i+1:]...)
					break
				}
			}

		case busCommandFlush:
			close(cmd.done)
		}
	}
}

func (b *EventBusImpl) send(cmd busCommand) (ok bool) {
	if b.closed.Load() {
		return false
	}
	// The closed check and the send race against Close; recover absorbs the
	// send-on-closed-channel panic from that narrow window and reports the
	// command as dropped so callers like Flush do not wait on it.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	b.commands <- cmd
	return true
}

// Subscribe registers fn for the given event types.
func (b *EventBusImpl) Subscribe(types []EventType, fn OnEvent) Subscription {
	id := Subscription(b.nextID.Add(1))

	var interest map[EventType]bool
	if len(types) > 0 {
		interest = make(map[EventType]bool, len(types))
		for _, t := range types {
			interest[t] = true
		}
	}

	b.send(busCommand{
		kind: busCommandSubscribe,
		sub:  &busSubscriber{id: id, interest: interest, fn: fn},
	})
	return id
}

// Unsubscribe removes a subscriber.
func (b *EventBusImpl) Unsubscribe(sub Subscription) {
	b.send(busCommand{kind: busCommandUnsubscribe, id: sub})
}

// Publish enqueues an event for ordered delivery.
func (b *EventBusImpl) Publish(evt StoreEvent) {
	if evt == nil {
		return
	}
	if !b.send(busCommand{kind: busCommandPublish, evt: evt}) && b.logger != nil {
		b.logger.Debug("event dropped after bus close", zap.String("event", evt.EventType().String()))
	}
}

// Flush blocks until every event published before the call has been delivered.
func (b *EventBusImpl) Flush() {
	done := make(chan struct{})
	if !b.send(busCommand{kind: busCommandFlush, done: done}) {
		return
	}
	<-done
}

// Close flushes pending events and stops the delivery goroutine.
func (b *EventBusImpl) Close() {
	b.closeOnce.Do(func() {
		b.Flush()
		b.closed.Store(true)
		close(b.commands)
		<-b.stopped
	})
}
