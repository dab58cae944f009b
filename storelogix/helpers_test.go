package storelogix

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestStorelogix wires a full system set over in-memory storage.
func newTestStorelogix(t *testing.T, catalogConfig *CatalogConfig, storeConfig *StoreConfig) *storelogixImpl {
	t.Helper()

	logger := zap.NewNop()
	sl := &storelogixImpl{
		logger:  logger,
		bridge:  &publisherBridge{logger: logger},
		systems: make(map[SystemType]System),
	}
	sl.systems[SystemTypeStorage] = NewMemoryStorageSystem()
	sl.systems[SystemTypeCatalog] = NewCatalogSystem(catalogConfig, logger)
	sl.systems[SystemTypeLedger] = NewLedgerSystem(nil, logger)
	sl.systems[SystemTypeStore] = NewStoreSystem(storeConfig, logger)
	require.NoError(t, sl.wire())

	t.Cleanup(func() { _ = sl.Close() })
	return sl
}

func testCatalogConfig() *CatalogConfig {
	return &CatalogConfig{
		Version: 1,
		Currencies: []*CatalogItem{
			{ID: "coin", Kind: ItemKindCurrency},
		},
		CurrencyPacks: []*CatalogItem{
			{
				ID:           "pack_10",
				Kind:         ItemKindCurrencyPack,
				TargetItemID: "coin",
				TargetAmount: 10,
				Purchase:     &PurchaseMethod{Market: &MarketPurchaseInfo{ProductID: "com.test.pack10", Price: "$0.99"}},
			},
		},
		Goods: []*CatalogItem{
			{
				ID:       "potion",
				Kind:     ItemKindSingleUse,
				Purchase: &PurchaseMethod{Virtual: &ItemPurchaseInfo{ItemID: "coin", Amount: 5}},
			},
			{
				ID:       "elixir",
				Kind:     ItemKindSingleUse,
				Purchase: &PurchaseMethod{Virtual: &ItemPurchaseInfo{ItemID: "coin", Amount: 100}},
			},
			{
				ID:       "sword",
				Kind:     ItemKindLifetime,
				Purchase: &PurchaseMethod{Market: &MarketPurchaseInfo{ProductID: "com.test.sword"}},
			},
			{ID: "hat", Kind: ItemKindEquippable},
			{ID: "car", Kind: ItemKindLifetime},
			{ID: "speed_1", Kind: ItemKindUpgrade, LinkedGoodID: "car"},
			{ID: "speed_2", Kind: ItemKindUpgrade, LinkedGoodID: "car", PrevUpgradeID: "speed_1"},
		},
		NonConsumables: []*CatalogItem{
			{
				ID:       "no_ads",
				Kind:     ItemKindNonConsumable,
				Purchase: &PurchaseMethod{Market: &MarketPurchaseInfo{ProductID: "com.test.noads"}},
			},
		},
	}
}

// eventCollector records delivered events for assertions. Call bus.Flush()
// before reading.
type eventCollector struct {
	mu     sync.Mutex
	events []StoreEvent
}

func (c *eventCollector) onEvent(evt StoreEvent) {
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
}

func (c *eventCollector) all() []StoreEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]StoreEvent, len(c.events))
	copy(events, c.events)
	return events
}

func (c *eventCollector) ofType(t EventType) []StoreEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []StoreEvent
	for _, evt := range c.events {
		if evt.EventType() == t {
			matched = append(matched, evt)
		}
	}
	return matched
}
