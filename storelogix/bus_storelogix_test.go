package storelogix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewEventBus(nil, zap.NewNop())
	defer bus.Close()

	collector := &eventCollector{}
	bus.Subscribe(nil, collector.onEvent)

	bus.Publish(CurrencyBalanceChanged{CurrencyID: "coin", Balance: 1, Delta: 1})
	bus.Publish(CurrencyBalanceChanged{CurrencyID: "coin", Balance: 2, Delta: 1})
	bus.Publish(GoodEquipped{GoodID: "hat"})
	bus.Flush()

	events := collector.all()
	require.Len(t, events, 3)
	assert.Equal(t, int64(1), events[0].(CurrencyBalanceChanged).Balance)
	assert.Equal(t, int64(2), events[1].(CurrencyBalanceChanged).Balance)
	assert.Equal(t, EventTypeGoodEquipped, events[2].EventType())
}

func TestBusInterestFilter(t *testing.T) {
	bus := NewEventBus(nil, zap.NewNop())
	defer bus.Close()

	collector := &eventCollector{}
	bus.Subscribe([]EventType{EventTypeGoodEquipped}, collector.onEvent)

	bus.Publish(CurrencyBalanceChanged{CurrencyID: "coin"})
	bus.Publish(GoodEquipped{GoodID: "hat"})
	bus.Publish(GoodUnequipped{GoodID: "hat"})
	bus.Flush()

	events := collector.all()
	require.Len(t, events, 1)
	assert.Equal(t, "hat", events[0].(GoodEquipped).GoodID)
}

func TestBusCausalSubscribe(t *testing.T) {
	bus := NewEventBus(nil, zap.NewNop())
	defer bus.Close()

	// An event published before the subscription is never delivered to it.
	bus.Publish(GoodEquipped{GoodID: "early"})

	collector := &eventCollector{}
	bus.Subscribe(nil, collector.onEvent)
	bus.Publish(GoodEquipped{GoodID: "late"})
	bus.Flush()

	events := collector.all()
	require.Len(t, events, 1)
	assert.Equal(t, "late", events[0].(GoodEquipped).GoodID)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(nil, zap.NewNop())
	defer bus.Close()

	collector := &eventCollector{}
	sub := bus.Subscribe(nil, collector.onEvent)

	bus.Publish(GoodEquipped{GoodID: "hat"})
	bus.Unsubscribe(sub)
	bus.Publish(GoodUnequipped{GoodID: "hat"})
	bus.Flush()

	events := collector.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeGoodEquipped, events[0].EventType())
}

func TestBusFlushDuringCloseDoesNotBlock(t *testing.T) {
	bus := NewEventBus(nil, zap.NewNop())

	// Emulate the shutdown window where the command channel is already closed
	// but the closed flag is not yet visible to a concurrent caller.
	close(bus.commands)
	<-bus.stopped

	done := make(chan struct{})
	go func() {
		bus.Flush()
		bus.Publish(GoodEquipped{GoodID: "hat"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush blocked on a dropped command")
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewEventBus(nil, zap.NewNop())

	collector := &eventCollector{}
	bus.Subscribe(nil, collector.onEvent)
	bus.Publish(GoodEquipped{GoodID: "hat"})
	bus.Close()

	// Close drains what was queued; later publishes are dropped quietly.
	bus.Publish(GoodUnequipped{GoodID: "hat"})
	bus.Close()

	events := collector.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeGoodEquipped, events[0].EventType())
}
