package storelogix

import "context"

// The StoreState tracks the billing session lifecycle.
type StoreState uint

const (
	// StoreStateUninitialized means no billing session exists. Setup moves the
	// system out of this state; a failed setup moves it back, so setup is
	// always retryable.
	StoreStateUninitialized StoreState = iota
	// StoreStateSettingUp means a setup call is in flight.
	StoreStateSettingUp
	// StoreStateReady means billing operations may be issued.
	StoreStateReady
)

func (s StoreState) String() string {
	switch s {
	case StoreStateSettingUp:
		return "setting_up"
	case StoreStateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// The AsyncOperation identifies which billing operation currently holds the
// single operation token. Operations never queue: a request made while the
// token is held fails fast with ErrAsyncOperationConflict.
type AsyncOperation uint

const (
	OpNone AsyncOperation = iota
	OpSetup
	OpPurchase
	OpRestore
	OpRefresh
)

func (o AsyncOperation) String() string {
	switch o {
	case OpSetup:
		return "setup"
	case OpPurchase:
		return "purchase"
	case OpRestore:
		return "restore"
	case OpRefresh:
		return "refresh"
	default:
		return "none"
	}
}

// StoreConfig is the data definition for the StoreSystem type.
type StoreConfig struct {
	// FriendlyRefunds keeps delivered items in the ledger when a purchase is
	// refunded. The MarketRefund event still fires.
	FriendlyRefunds bool `json:"friendly_refunds,omitempty"`

	// ReconcileSchedule is an optional cron expression. When set, a restore
	// pass runs on the schedule to reconcile the ledger with the provider's
	// owned-purchase listing.
	ReconcileSchedule string `json:"reconcile_schedule,omitempty"`

	// RestorePageLimit bounds how many provider pages one restore pass walks,
	// guarding against a cursor loop. Default 100.
	RestorePageLimit int `json:"restore_page_limit,omitempty"`
}

// The StoreSystem is the purchase transaction engine. It drives the billing
// provider, classifies the purchase records the provider reports, delivers
// their catalog items through the ledger and publishes the outcome on the
// event bus. All state lives in the ledger; the engine itself only tracks the
// session lifecycle and the operation token.
type StoreSystem interface {
	System

	// SetStorelogix sets the owning context object on the system.
	SetStorelogix(sl Storelogix)

	// SetBillingProvider installs the platform billing integration.
	SetBillingProvider(provider BillingProvider)

	// Setup establishes the billing session. On first ever success it also
	// runs a restore pass to pick up purchases made on other devices.
	Setup(ctx context.Context) error

	// BuyWithMarket starts the platform purchase flow for a market-priced item
	// and processes the resulting purchase record. The payload is round-tripped
	// through the provider.
	BuyWithMarket(ctx context.Context, itemID, payload string) error

	// BuyWithVirtualItem purchases an item priced in another virtual item and
	// returns the purchased item's resulting balance. Fails with
	// ErrInsufficientFunds before any mutation when the payer balance is short.
	BuyWithVirtualItem(itemID string) (int64, error)

	// RestoreTransactions walks the provider's owned-purchase listing and
	// reconciles the ledger with it.
	RestoreTransactions(ctx context.Context) error

	// RefreshMarketItemDetails fetches provider store-front metadata for all
	// market-priced items and merges it into the catalog. Returns the number
	// of items updated.
	RefreshMarketItemDetails(ctx context.Context) (int, error)

	// List returns every catalog item, ordered by id.
	List() []*CatalogItem

	// State returns the current billing session state.
	State() StoreState

	// Close stops the reconciliation schedule if one is running.
	Close() error
}
