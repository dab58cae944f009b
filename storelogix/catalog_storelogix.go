package storelogix

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// CatalogSystemImpl implements the CatalogSystem interface over the persistent
// store's metadata table.
type CatalogSystemImpl struct {
	config *CatalogConfig
	logger *zap.Logger

	// Guards the lookup maps. Published items are never mutated in place:
	// MergeProductMetadata swaps in fresh maps with updated copies, so a
	// pointer handed out before a merge stays consistent.
	mu sync.RWMutex

	version    int
	items      map[string]*CatalogItem
	byProduct  map[string]*CatalogItem
	categories map[string]*CatalogCategory
}

// NewCatalogSystem creates a new instance of the CatalogSystem implementation.
// The catalog is empty until load runs during Init.
func NewCatalogSystem(config *CatalogConfig, logger *zap.Logger) *CatalogSystemImpl {
	if config == nil {
		config = &CatalogConfig{}
	}
	return &CatalogSystemImpl{
		config:     config,
		logger:     logger,
		items:      make(map[string]*CatalogItem),
		byProduct:  make(map[string]*CatalogItem),
		categories: make(map[string]*CatalogCategory),
	}
}

// GetType provides the runtime type of the system.
func (c *CatalogSystemImpl) GetType() SystemType {
	return SystemTypeCatalog
}

// GetConfig returns the configuration type of the system.
func (c *CatalogSystemImpl) GetConfig() any {
	return c.config
}

// load populates the registry. The cached snapshot wins when its version is at
// least the configured one; bumping the configured version therefore
// invalidates the cache and the host-supplied definitions are re-cached.
func (c *CatalogSystemImpl) load(storage StorageSystem) error {
	source := c.config

	if storage != nil {
		if cached, found, err := storage.Get(TableMetadata, metadataKeyCatalogSnapshot); err == nil && found {
			snapshot := &CatalogConfig{}
			if err := json.Unmarshal([]byte(cached), snapshot); err != nil {
				c.logger.Warn("cached catalog snapshot is unreadable, falling back to definitions", zap.Error(err))
			} else if snapshot.Version < c.config.Version {
				c.logger.Info("cached catalog snapshot is stale",
					zap.Int("snapshot_version", snapshot.Version),
					zap.Int("catalog_version", c.config.Version))
			} else {
				source = snapshot
			}
		}
	}

	if err := c.index(source); err != nil {
		return err
	}

	if storage != nil && source == c.config {
		data, err := json.Marshal(c.config)
		if err != nil {
			return err
		}
		if err := storage.Set(TableMetadata, metadataKeyCatalogSnapshot, string(data)); err != nil {
			c.logger.Warn("failed to cache catalog snapshot", zap.Error(err))
		}
	}

	return nil
}

func (c *CatalogSystemImpl) index(source *CatalogConfig) error {
	items := make(map[string]*CatalogItem)
	byProduct := make(map[string]*CatalogItem)
	categories := make(map[string]*CatalogCategory)

	sections := [][]*CatalogItem{source.Currencies, source.CurrencyPacks, source.Goods, source.NonConsumables}
	for _, section := range sections {
		for _, item := range section {
			item.ID = strings.TrimSpace(item.ID)
			if item.ID == "" {
				return NewError("catalog item with empty id", INVALID_ARGUMENT_ERROR_CODE)
			}
			if _, exists := items[item.ID]; exists {
				return NewError("duplicate catalog item id: "+item.ID, INVALID_ARGUMENT_ERROR_CODE)
			}
			items[item.ID] = item

			if item.Purchase != nil && item.Purchase.Market != nil && item.Purchase.Market.ProductID != "" {
				byProduct[item.Purchase.Market.ProductID] = item
			}
		}
	}

	for _, category := range source.Categories {
		category.ID = strings.TrimSpace(category.ID)
		if category.ID == "" {
			return NewError("catalog category with empty id", INVALID_ARGUMENT_ERROR_CODE)
		}
		categories[category.ID] = category
	}

	c.mu.Lock()
	c.version = source.Version
	c.items = items
	c.byProduct = byProduct
	c.categories = categories
	c.mu.Unlock()

	c.logger.Info("catalog loaded",
		zap.Int("items", len(items)),
		zap.Int("categories", len(categories)),
		zap.Int("version", source.Version))
	return nil
}

// ItemByID looks an item up by its identifier.
func (c *CatalogSystemImpl) ItemByID(itemID string) (*CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if item, ok := c.items[strings.TrimSpace(itemID)]; ok {
		return item, nil
	}
	return nil, ErrItemNotFound
}

// ItemByProductID looks a market-purchasable item up by its provider product id.
func (c *CatalogSystemImpl) ItemByProductID(productID string) (*CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if item, ok := c.byProduct[productID]; ok {
		return item, nil
	}
	return nil, ErrItemNotFound
}

// Category looks a category up by its identifier.
func (c *CatalogSystemImpl) Category(categoryID string) (*CatalogCategory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if category, ok := c.categories[categoryID]; ok {
		return category, nil
	}
	return nil, ErrItemNotFound
}

// Items returns every item keyed by id. The map is a published snapshot that
// is never written again; it may be iterated without locking.
func (c *CatalogSystemImpl) Items() map[string]*CatalogItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

// MarketProductIDs returns the provider product ids of all market-priced items.
func (c *CatalogSystemImpl) MarketProductIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.byProduct))
	for productID := range c.byProduct {
		ids = append(ids, productID)
	}
	return ids
}

// MergeProductMetadata overwrites market pricing metadata with provider
// values. Matched items are replaced with updated copies in fresh lookup maps
// rather than mutated, so readers holding earlier pointers are unaffected.
func (c *CatalogSystemImpl) MergeProductMetadata(details []*ProductMetadata) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make(map[string]*CatalogItem, len(c.items))
	for id, item := range c.items {
		items[id] = item
	}
	byProduct := make(map[string]*CatalogItem, len(c.byProduct))
	for productID, item := range c.byProduct {
		byProduct[productID] = item
	}

	updated := 0
	for _, detail := range details {
		if detail == nil {
			continue
		}
		item, ok := byProduct[detail.ProductID]
		if !ok {
			c.logger.Warn("provider metadata for unknown product id, skipping",
				zap.String("product_id", detail.ProductID))
			continue
		}

		market := *item.Purchase.Market
		if detail.Price != "" {
			market.Price = detail.Price
		}
		if detail.Title != "" {
			market.Title = detail.Title
		}
		if detail.Description != "" {
			market.Description = detail.Description
		}

		purchase := *item.Purchase
		purchase.Market = &market
		merged := *item
		merged.Purchase = &purchase

		items[merged.ID] = &merged
		byProduct[detail.ProductID] = &merged
		updated++
	}

	c.items = items
	c.byProduct = byProduct
	return updated
}

// Version returns the loaded catalog version.
func (c *CatalogSystemImpl) Version() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
