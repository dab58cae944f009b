package storelogix

// The LedgerSystem tracks per-item balances, equip state, upgrade chains and
// non-consumable ownership flags. Mutations dispatch on the catalog item kind:
// pack variants forward to their target item, lifetime and equippable goods
// clamp to {0,1}, upgrade items move the linked good along its chain. Events
// are published only for effective changes; a clamped or redundant mutation is
// a silent no-op.
type LedgerSystem interface {
	System

	// SetStorelogix sets the owning context object on the system.
	SetStorelogix(sl Storelogix)

	// Balance returns the current balance of a currency or good.
	Balance(itemID string) (int64, error)

	// Give credits amount units of the item and returns the resulting balance
	// of the item the credit landed on.
	Give(itemID string, amount int64) (int64, error)

	// Take debits up to amount units of the item, clamping at zero, and returns
	// the resulting balance.
	Take(itemID string, amount int64) (int64, error)

	// ResetBalance overwrites the balance outright.
	ResetBalance(itemID string, balance int64) (int64, error)

	// Equip marks an owned equippable good as equipped. Returns ErrNotOwned
	// when the good's balance is zero. Equipping an equipped good is a no-op.
	Equip(goodID string) error

	// Unequip clears the equipped flag. Unequipping an unequipped good is a
	// no-op.
	Unequip(goodID string) error

	// IsEquipped reports whether the good is currently equipped.
	IsEquipped(goodID string) (bool, error)

	// AssignUpgrade sets the current upgrade of the good the upgrade item is
	// linked to.
	AssignUpgrade(goodID, upgradeID string) error

	// RemoveUpgrade clears the good's upgrade chain entirely.
	RemoveUpgrade(goodID string) error

	// CurrentUpgrade returns the id of the good's current upgrade, or empty
	// when none is assigned.
	CurrentUpgrade(goodID string) (string, error)

	// NonConsumableExists reports whether the ownership flag for a
	// market-managed non-consumable is present.
	NonConsumableExists(itemID string) (bool, error)

	// GrantNonConsumable sets the ownership flag. Granting an owned item is a
	// no-op and publishes nothing.
	GrantNonConsumable(itemID string) error

	// RevokeNonConsumable clears the ownership flag. Revoking an unowned item
	// is a no-op and publishes nothing.
	RevokeNonConsumable(itemID string) error
}

// LedgerConfig is the data definition for the LedgerSystem type. The ledger is
// driven entirely by the catalog and has no definitions of its own.
type LedgerConfig struct{}
