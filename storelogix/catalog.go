package storelogix

// The ItemKind tags each catalog item variant. The set is closed; code
// dispatches with a switch over the tag rather than through an inheritance
// hierarchy.
type ItemKind string

const (
	ItemKindCurrency      ItemKind = "currency"
	ItemKindCurrencyPack  ItemKind = "currency_pack"
	ItemKindSingleUse     ItemKind = "single_use"
	ItemKindSingleUsePack ItemKind = "single_use_pack"
	ItemKindLifetime      ItemKind = "lifetime"
	ItemKindEquippable    ItemKind = "equippable"
	ItemKindUpgrade       ItemKind = "upgrade"
	ItemKindNonConsumable ItemKind = "non_consumable"
)

// MarketPurchaseInfo prices an item through the platform billing provider.
// Price, Title and Description start from the catalog definition and are
// overwritten by provider metadata when the store system refreshes it.
type MarketPurchaseInfo struct {
	ProductID   string `json:"product_id"`
	Price       string `json:"price,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// ItemPurchaseInfo prices an item in units of another catalog item.
type ItemPurchaseInfo struct {
	ItemID string `json:"item_id"`
	Amount int64  `json:"amount"`
}

// PurchaseMethod is a closed variant: exactly one of Market or Virtual is set
// for a purchasable item.
type PurchaseMethod struct {
	Market  *MarketPurchaseInfo `json:"market,omitempty"`
	Virtual *ItemPurchaseInfo   `json:"virtual,omitempty"`
}

// A CatalogItem is one entry of the item catalog. Pack variants grant
// TargetAmount units of TargetItemID per purchased unit; upgrade variants form
// a linked chain over LinkedGoodID.
type CatalogItem struct {
	ID          string   `json:"id"`
	Kind        ItemKind `json:"kind"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	CategoryID  string   `json:"category_id,omitempty"`

	Purchase *PurchaseMethod `json:"purchase,omitempty"`

	TargetItemID string `json:"target_item_id,omitempty"`
	TargetAmount int64  `json:"target_amount,omitempty"`

	LinkedGoodID  string `json:"linked_good_id,omitempty"`
	PrevUpgradeID string `json:"prev_upgrade_id,omitempty"`
	NextUpgradeID string `json:"next_upgrade_id,omitempty"`
}

// A CatalogCategory groups item ids for host UIs. The core does not enforce any
// policy (such as equip exclusivity) across a category.
type CatalogCategory struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	ItemIDs []string `json:"item_ids,omitempty"`
}

// CatalogConfig is the data definition for the CatalogSystem type. The same
// document shape is used for the cached snapshot persisted in the metadata
// table.
type CatalogConfig struct {
	Version        int                `json:"version,omitempty"`
	Categories     []*CatalogCategory `json:"categories,omitempty"`
	Currencies     []*CatalogItem     `json:"currencies,omitempty"`
	CurrencyPacks  []*CatalogItem     `json:"currency_packs,omitempty"`
	Goods          []*CatalogItem     `json:"goods,omitempty"`
	NonConsumables []*CatalogItem     `json:"non_consumables,omitempty"`
}

// The CatalogSystem is an immutable-after-load registry of item definitions.
// It is loaded once per process lifetime: from the cached snapshot in the
// persistent store when one with a current version exists, else from the
// host-supplied definitions, which are then re-cached. Lookup misses return
// ErrItemNotFound and are always recoverable.
type CatalogSystem interface {
	System

	// ItemByID looks an item up by its identifier.
	ItemByID(itemID string) (*CatalogItem, error)

	// ItemByProductID looks a market-purchasable item up by its provider
	// product id.
	ItemByProductID(productID string) (*CatalogItem, error)

	// Category looks a category up by its identifier.
	Category(categoryID string) (*CatalogCategory, error)

	// Items returns every item keyed by id. The returned map must not be
	// modified.
	Items() map[string]*CatalogItem

	// MarketProductIDs returns the provider product ids of all market-priced
	// items, for metadata fetches.
	MarketProductIDs() []string

	// MergeProductMetadata overwrites price/title/description of matching
	// market items with provider-reported values and returns the number of
	// entries updated. Unknown product ids are logged and skipped.
	MergeProductMetadata(details []*ProductMetadata) int

	// Version returns the loaded catalog version.
	Version() int
}
