package storelogix

import (
	"context"
	"sync"
)

// MockBillingProvider is a configurable BillingProvider double for tests and
// host prototypes. Each operation delegates to its Fn field when set and
// otherwise succeeds with a zero-value response.
type MockBillingProvider struct {
	SetupFn                func(ctx context.Context) error
	LaunchPurchaseFn       func(ctx context.Context, productID, payload string) (*PurchaseRecord, error)
	RestorePurchasesFn     func(ctx context.Context, cursor string) (*RestorePage, error)
	FetchProductMetadataFn func(ctx context.Context, productIDs []string) ([]*ProductMetadata, error)
	ConsumeFn              func(ctx context.Context, purchaseToken string) error

	mu             sync.Mutex
	consumedTokens []string
}

func (m *MockBillingProvider) Setup(ctx context.Context) error {
	if m.SetupFn != nil {
		return m.SetupFn(ctx)
	}
	return nil
}

func (m *MockBillingProvider) LaunchPurchase(ctx context.Context, productID, payload string) (*PurchaseRecord, error) {
	if m.LaunchPurchaseFn != nil {
		return m.LaunchPurchaseFn(ctx, productID, payload)
	}
	return &PurchaseRecord{
		ProductID: productID,
		Token:     "mock-token-" + productID,
		Payload:   payload,
		State:     PurchaseStatePurchased,
	}, nil
}

func (m *MockBillingProvider) RestorePurchases(ctx context.Context, cursor string) (*RestorePage, error) {
	if m.RestorePurchasesFn != nil {
		return m.RestorePurchasesFn(ctx, cursor)
	}
	return &RestorePage{}, nil
}

func (m *MockBillingProvider) FetchProductMetadata(ctx context.Context, productIDs []string) ([]*ProductMetadata, error) {
	if m.FetchProductMetadataFn != nil {
		return m.FetchProductMetadataFn(ctx, productIDs)
	}
	return nil, nil
}

func (m *MockBillingProvider) Consume(ctx context.Context, purchaseToken string) error {
	if m.ConsumeFn != nil {
		if err := m.ConsumeFn(ctx, purchaseToken); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.consumedTokens = append(m.consumedTokens, purchaseToken)
	m.mu.Unlock()
	return nil
}

// ConsumedTokens returns the purchase tokens consumed so far.
func (m *MockBillingProvider) ConsumedTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := make([]string, len(m.consumedTokens))
	copy(tokens, m.consumedTokens)
	return tokens
}
