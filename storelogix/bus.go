package storelogix

// The EventType identifies each event variant the bus can carry. The set is
// closed: systems only publish the types declared here.
type EventType uint

const (
	EventTypeUnknown EventType = iota
	EventTypeBillingSupported
	EventTypeBillingNotSupported
	EventTypeCurrencyBalanceChanged
	EventTypeGoodBalanceChanged
	EventTypeGoodEquipped
	EventTypeGoodUnequipped
	EventTypeGoodUpgrade
	EventTypeNonConsumableGranted
	EventTypeNonConsumableRevoked
	EventTypeMarketPurchaseStarted
	EventTypeMarketPurchase
	EventTypeMarketPurchaseCancelled
	EventTypeMarketRefund
	EventTypeItemPurchased
	EventTypeRestoreStarted
	EventTypeRestoreFinished
	EventTypeMarketItemsRefreshed
	EventTypeUnexpectedStoreError
)

func (t EventType) String() string {
	switch t {
	case EventTypeBillingSupported:
		return "billing_supported"
	case EventTypeBillingNotSupported:
		return "billing_not_supported"
	case EventTypeCurrencyBalanceChanged:
		return "currency_balance_changed"
	case EventTypeGoodBalanceChanged:
		return "good_balance_changed"
	case EventTypeGoodEquipped:
		return "good_equipped"
	case EventTypeGoodUnequipped:
		return "good_unequipped"
	case EventTypeGoodUpgrade:
		return "good_upgrade"
	case EventTypeNonConsumableGranted:
		return "non_consumable_granted"
	case EventTypeNonConsumableRevoked:
		return "non_consumable_revoked"
	case EventTypeMarketPurchaseStarted:
		return "market_purchase_started"
	case EventTypeMarketPurchase:
		return "market_purchase"
	case EventTypeMarketPurchaseCancelled:
		return "market_purchase_cancelled"
	case EventTypeMarketRefund:
		return "market_refund"
	case EventTypeItemPurchased:
		return "item_purchased"
	case EventTypeRestoreStarted:
		return "restore_started"
	case EventTypeRestoreFinished:
		return "restore_finished"
	case EventTypeMarketItemsRefreshed:
		return "market_items_refreshed"
	case EventTypeUnexpectedStoreError:
		return "unexpected_store_error"
	default:
		return "unknown"
	}
}

// A StoreEvent is a notification emitted by the ledger or the store system.
type StoreEvent interface {
	EventType() EventType
}

type BillingSupported struct{}

func (BillingSupported) EventType() EventType { return EventTypeBillingSupported }

type BillingNotSupported struct {
	Reason string
}

func (BillingNotSupported) EventType() EventType { return EventTypeBillingNotSupported }

// CurrencyBalanceChanged fires after an effective change to a currency balance.
// Delta is the signed change; clamped no-ops never fire.
type CurrencyBalanceChanged struct {
	CurrencyID string
	Balance    int64
	Delta      int64
}

func (CurrencyBalanceChanged) EventType() EventType { return EventTypeCurrencyBalanceChanged }

// GoodBalanceChanged fires after an effective change to a good's balance.
type GoodBalanceChanged struct {
	GoodID  string
	Balance int64
	Delta   int64
}

func (GoodBalanceChanged) EventType() EventType { return EventTypeGoodBalanceChanged }

type GoodEquipped struct {
	GoodID string
}

func (GoodEquipped) EventType() EventType { return EventTypeGoodEquipped }

type GoodUnequipped struct {
	GoodID string
}

func (GoodUnequipped) EventType() EventType { return EventTypeGoodUnequipped }

// GoodUpgrade fires when the assigned upgrade for a good changes. UpgradeID is
// empty when the upgrade chain was removed.
type GoodUpgrade struct {
	GoodID    string
	UpgradeID string
}

func (GoodUpgrade) EventType() EventType { return EventTypeGoodUpgrade }

type NonConsumableGranted struct {
	ItemID string
}

func (NonConsumableGranted) EventType() EventType { return EventTypeNonConsumableGranted }

type NonConsumableRevoked struct {
	ItemID string
}

func (NonConsumableRevoked) EventType() EventType { return EventTypeNonConsumableRevoked }

type MarketPurchaseStarted struct {
	ItemID string
}

func (MarketPurchaseStarted) EventType() EventType { return EventTypeMarketPurchaseStarted }

// MarketPurchase fires exactly once per logical market purchase that was
// delivered to the ledger. Duplicate provider callbacks do not re-fire it.
type MarketPurchase struct {
	ItemID  string
	Token   string
	Payload string
}

func (MarketPurchase) EventType() EventType { return EventTypeMarketPurchase }

type MarketPurchaseCancelled struct {
	ItemID string
}

func (MarketPurchaseCancelled) EventType() EventType { return EventTypeMarketPurchaseCancelled }

// MarketRefund fires for every refunded purchase record, regardless of the
// friendly-refunds policy.
type MarketRefund struct {
	ItemID string
}

func (MarketRefund) EventType() EventType { return EventTypeMarketRefund }

// ItemPurchased fires after a successful purchase paid in virtual items.
type ItemPurchased struct {
	ItemID string
}

func (ItemPurchased) EventType() EventType { return EventTypeItemPurchased }

type RestoreStarted struct{}

func (RestoreStarted) EventType() EventType { return EventTypeRestoreStarted }

// RestoreFinished reports the outcome of a restore pass. Succeeded is true even
// when the provider failed mid-restore: accumulated progress is kept.
type RestoreFinished struct {
	Succeeded bool
	Restored  int
}

func (RestoreFinished) EventType() EventType { return EventTypeRestoreFinished }

type MarketItemsRefreshed struct {
	Updated int
}

func (MarketItemsRefreshed) EventType() EventType { return EventTypeMarketItemsRefreshed }

// UnexpectedStoreError surfaces recoverable failures (catalog misses on provider
// callbacks, provider errors) to observers. The engine never crashes on these.
type UnexpectedStoreError struct {
	Message string
}

func (UnexpectedStoreError) EventType() EventType { return EventTypeUnexpectedStoreError }

// OnEvent is a subscriber callback. It runs on the bus delivery goroutine and
// must not block for long periods.
type OnEvent func(evt StoreEvent)

// A Subscription identifies a registered subscriber for later removal.
type Subscription uint64

// The EventBus decouples the store and ledger systems from observers. All
// publish, subscribe and unsubscribe calls are marshaled onto a single delivery
// goroutine and processed in the order received, so a subscriber registered
// before a publish is guaranteed to see that event.
type EventBus interface {
	System

	// Subscribe registers fn for the given event types. An empty type list
	// subscribes to every event.
	Subscribe(types []EventType, fn OnEvent) Subscription

	// Unsubscribe removes a subscriber. Unknown subscriptions are ignored.
	Unsubscribe(sub Subscription)

	// Publish enqueues an event for delivery to all matching subscribers in
	// subscriber insertion order.
	Publish(evt StoreEvent)

	// Flush blocks until every event published before the call has been
	// delivered.
	Flush()

	// Close flushes and stops the delivery goroutine. Publish becomes a no-op.
	Close()
}

// BusConfig is the data definition for the EventBus type.
type BusConfig struct {
	QueueSize int `json:"queue_size,omitempty"` // pending event capacity, default 256
}
