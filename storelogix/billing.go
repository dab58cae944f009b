package storelogix

import "context"

// The PurchaseState classifies a purchase record reported by the provider.
type PurchaseState uint

const (
	PurchaseStatePurchased PurchaseState = iota
	PurchaseStateCancelled
	PurchaseStateRefunded
)

// A PurchaseRecord is the provider's view of one purchase. Records are
// transient: created by the adapter, consumed once by the store system, then
// discarded. The ledger balance is the engine's only durable state.
//
// Adapters report revoked entitlements (and "already owned" responses for
// products the user holds) as ordinary Purchased or Refunded records; the store
// system classifies duplicates and revocations against the ledger itself.
type PurchaseRecord struct {
	ProductID string
	Token     string
	Payload   string // developer payload round-tripped through the provider
	State     PurchaseState
}

// A RestorePage is one page of the provider's owned-purchase listing.
type RestorePage struct {
	Records []*PurchaseRecord
	HasMore bool
	Cursor  string // opaque continuation cursor, valid only when HasMore
}

// ProductMetadata carries provider-reported store-front details for a product.
type ProductMetadata struct {
	ProductID   string
	Price       string
	Title       string
	Description string
}

// The BillingProvider is the platform billing integration boundary, implemented
// per platform outside the core. All methods block until the provider's
// asynchronous response arrives; the store system invokes them from its own
// goroutine while holding the single operation token, so implementations never
// see concurrent calls for one session. Failures are reported as errors and are
// always retryable.
type BillingProvider interface {
	// Setup establishes the provider session.
	Setup(ctx context.Context) error

	// LaunchPurchase starts the platform purchase flow for a product. A user
	// cancellation is not an error: it returns a record in
	// PurchaseStateCancelled.
	LaunchPurchase(ctx context.Context, productID, payload string) (*PurchaseRecord, error)

	// RestorePurchases lists purchases the provider reports as owned. Pass an
	// empty cursor for the first page.
	RestorePurchases(ctx context.Context, cursor string) (*RestorePage, error)

	// FetchProductMetadata returns store-front details for the given product
	// ids. Unknown ids may simply be missing from the response.
	FetchProductMetadata(ctx context.Context, productIDs []string) ([]*ProductMetadata, error)

	// Consume flags a purchase token as consumed so the product can be bought
	// again.
	Consume(ctx context.Context, purchaseToken string) error
}
