package storelogix

import (
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// Balance-table key prefixes for equip and upgrade state. Both live in the
// balances table so they survive metadata wipes along with the balances they
// describe.
const (
	equipKeyPrefix   = "equip:"
	upgradeKeyPrefix = "upgrade:"
)

// LedgerSystemImpl implements the LedgerSystem interface backed by the
// persistent store's balances and ownership tables.
type LedgerSystemImpl struct {
	config *LedgerConfig
	logger *zap.Logger

	sl Storelogix

	// Serializes read-modify-write sequences per item id.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedgerSystem creates a new instance of the LedgerSystem implementation.
func NewLedgerSystem(config *LedgerConfig, logger *zap.Logger) *LedgerSystemImpl {
	if config == nil {
		config = &LedgerConfig{}
	}
	return &LedgerSystemImpl{
		config: config,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// GetType provides the runtime type of the system.
func (l *LedgerSystemImpl) GetType() SystemType {
	return SystemTypeLedger
}

// GetConfig returns the configuration type of the system.
func (l *LedgerSystemImpl) GetConfig() any {
	return l.config
}

// SetStorelogix sets the owning context object on the system.
func (l *LedgerSystemImpl) SetStorelogix(sl Storelogix) {
	l.sl = sl
}

func (l *LedgerSystemImpl) lockFor(itemID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[itemID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[itemID] = lock
	}
	return lock
}

func (l *LedgerSystemImpl) storage() StorageSystem {
	return l.sl.GetStorageSystem()
}

func (l *LedgerSystemImpl) catalog() CatalogSystem {
	return l.sl.GetCatalogSystem()
}

func (l *LedgerSystemImpl) publish(evt StoreEvent) {
	if bus := l.sl.GetEventBus(); bus != nil {
		bus.Publish(evt)
	}
}

func (l *LedgerSystemImpl) readBalance(key string) (int64, error) {
	value, found, err := l.storage().Get(TableBalances, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	balance, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		l.logger.Warn("unparseable balance, treating as zero", zap.String("key", key))
		return 0, nil
	}
	return balance, nil
}

func (l *LedgerSystemImpl) writeBalance(key string, balance int64) error {
	return l.storage().Set(TableBalances, key, strconv.FormatInt(balance, 10))
}

func (l *LedgerSystemImpl) publishBalanceChanged(item *CatalogItem, balance, delta int64) {
	if item.Kind == ItemKindCurrency {
		l.publish(CurrencyBalanceChanged{CurrencyID: item.ID, Balance: balance, Delta: delta})
		return
	}
	l.publish(GoodBalanceChanged{GoodID: item.ID, Balance: balance, Delta: delta})
}

// Balance returns the current balance of a currency or good.
func (l *LedgerSystemImpl) Balance(itemID string) (int64, error) {
	item, err := l.catalog().ItemByID(itemID)
	if err != nil {
		return 0, err
	}

	switch item.Kind {
	case ItemKindCurrency, ItemKindSingleUse, ItemKindLifetime, ItemKindEquippable:
		return l.readBalance(item.ID)
	case ItemKindNonConsumable:
		exists, err := l.NonConsumableExists(item.ID)
		if err != nil {
			return 0, err
		}
		if exists {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, NewError("item kind has no balance: "+string(item.Kind), INVALID_ARGUMENT_ERROR_CODE)
	}
}

// Give credits amount units of the item. Packs forward to their target item,
// lifetime and equippable goods clamp at one, upgrade items advance the linked
// good's chain and non-consumables set the ownership flag.
func (l *LedgerSystemImpl) Give(itemID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrBadInput
	}
	item, err := l.catalog().ItemByID(itemID)
	if err != nil {
		return 0, err
	}

	switch item.Kind {
	case ItemKindCurrency, ItemKindSingleUse:
		return l.adjustBalance(item, amount)
	case ItemKindCurrencyPack, ItemKindSingleUsePack:
		if item.TargetItemID == "" {
			return 0, NewError("pack item has no target: "+item.ID, INVALID_ARGUMENT_ERROR_CODE)
		}
		return l.Give(item.TargetItemID, amount*item.TargetAmount)
	case ItemKindLifetime, ItemKindEquippable:
		if amount == 0 {
			return l.readBalance(item.ID)
		}
		return l.setFlagBalance(item, 1)
	case ItemKindUpgrade:
		if amount == 0 {
			return 0, nil
		}
		if err := l.AssignUpgrade(item.LinkedGoodID, item.ID); err != nil {
			return 0, err
		}
		return 1, nil
	case ItemKindNonConsumable:
		if amount == 0 {
			return 0, nil
		}
		if err := l.GrantNonConsumable(item.ID); err != nil {
			return 0, err
		}
		return 1, nil
	default:
		return 0, NewError("unknown item kind: "+string(item.Kind), INVALID_ARGUMENT_ERROR_CODE)
	}
}

// Take debits up to amount units of the item, clamping at zero. Equippable
// goods are unequipped when their balance drops to zero; taking an upgrade
// item steps the linked good back one link.
func (l *LedgerSystemImpl) Take(itemID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrBadInput
	}
	item, err := l.catalog().ItemByID(itemID)
	if err != nil {
		return 0, err
	}

	switch item.Kind {
	case ItemKindCurrency, ItemKindSingleUse:
		return l.adjustBalance(item, -amount)
	case ItemKindCurrencyPack, ItemKindSingleUsePack:
		if item.TargetItemID == "" {
			return 0, NewError("pack item has no target: "+item.ID, INVALID_ARGUMENT_ERROR_CODE)
		}
		return l.Take(item.TargetItemID, amount*item.TargetAmount)
	case ItemKindLifetime, ItemKindEquippable:
		if amount == 0 {
			return l.readBalance(item.ID)
		}
		return l.setFlagBalance(item, 0)
	case ItemKindUpgrade:
		if amount == 0 {
			return 0, nil
		}
		return 0, l.downgrade(item)
	case ItemKindNonConsumable:
		if amount == 0 {
			return 0, nil
		}
		return 0, l.RevokeNonConsumable(item.ID)
	default:
		return 0, NewError("unknown item kind: "+string(item.Kind), INVALID_ARGUMENT_ERROR_CODE)
	}
}

// ResetBalance overwrites the balance of a currency or good outright.
func (l *LedgerSystemImpl) ResetBalance(itemID string, balance int64) (int64, error) {
	if balance < 0 {
		return 0, ErrBadInput
	}
	item, err := l.catalog().ItemByID(itemID)
	if err != nil {
		return 0, err
	}

	switch item.Kind {
	case ItemKindCurrency, ItemKindSingleUse:
		lock := l.lockFor(item.ID)
		lock.Lock()
		defer lock.Unlock()

		current, err := l.readBalance(item.ID)
		if err != nil {
			return 0, err
		}
		if balance == current {
			return current, nil
		}
		if err := l.writeBalance(item.ID, balance); err != nil {
			return current, err
		}
		l.publishBalanceChanged(item, balance, balance-current)
		return balance, nil
	case ItemKindLifetime, ItemKindEquippable:
		if balance > 1 {
			balance = 1
		}
		return l.setFlagBalance(item, balance)
	case ItemKindNonConsumable:
		// A non-zero reset grants the ownership flag, a zero reset revokes it.
		if balance > 0 {
			if err := l.GrantNonConsumable(item.ID); err != nil {
				return 0, err
			}
			return 1, nil
		}
		if err := l.RevokeNonConsumable(item.ID); err != nil {
			return 0, err
		}
		return 0, nil
	default:
		return 0, NewError("item kind cannot be reset: "+string(item.Kind), INVALID_ARGUMENT_ERROR_CODE)
	}
}

// adjustBalance applies a signed delta to a countable balance, clamping at
// zero. A clamped or zero effective delta publishes nothing.
func (l *LedgerSystemImpl) adjustBalance(item *CatalogItem, delta int64) (int64, error) {
	lock := l.lockFor(item.ID)
	lock.Lock()
	defer lock.Unlock()

	current, err := l.readBalance(item.ID)
	if err != nil {
		return 0, err
	}
	updated := current + delta
	if updated < 0 {
		updated = 0
	}
	if updated == current {
		return current, nil
	}
	if err := l.writeBalance(item.ID, updated); err != nil {
		return current, err
	}
	l.publishBalanceChanged(item, updated, updated-current)
	return updated, nil
}

// setFlagBalance drives a {0,1} balance. Dropping an equipped equippable to
// zero unequips it first.
func (l *LedgerSystemImpl) setFlagBalance(item *CatalogItem, balance int64) (int64, error) {
	lock := l.lockFor(item.ID)
	lock.Lock()

	current, err := l.readBalance(item.ID)
	if err != nil {
		lock.Unlock()
		return 0, err
	}
	if current == balance {
		lock.Unlock()
		return current, nil
	}
	if err := l.writeBalance(item.ID, balance); err != nil {
		lock.Unlock()
		return current, err
	}
	lock.Unlock()

	if balance == 0 && item.Kind == ItemKindEquippable {
		if err := l.Unequip(item.ID); err != nil {
			return balance, err
		}
	}
	l.publishBalanceChanged(item, balance, balance-current)
	return balance, nil
}

// Equip marks an owned equippable good as equipped.
func (l *LedgerSystemImpl) Equip(goodID string) error {
	item, err := l.catalog().ItemByID(goodID)
	if err != nil {
		return err
	}
	if item.Kind != ItemKindEquippable {
		return NewError("item is not equippable: "+item.ID, INVALID_ARGUMENT_ERROR_CODE)
	}

	lock := l.lockFor(item.ID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := l.readBalance(item.ID)
	if err != nil {
		return err
	}
	if balance < 1 {
		return ErrNotOwned
	}

	_, equipped, err := l.storage().Get(TableBalances, equipKeyPrefix+item.ID)
	if err != nil {
		return err
	}
	if equipped {
		return nil
	}
	if err := l.storage().Set(TableBalances, equipKeyPrefix+item.ID, "1"); err != nil {
		return err
	}
	l.publish(GoodEquipped{GoodID: item.ID})
	return nil
}

// Unequip clears the equipped flag.
func (l *LedgerSystemImpl) Unequip(goodID string) error {
	item, err := l.catalog().ItemByID(goodID)
	if err != nil {
		return err
	}
	if item.Kind != ItemKindEquippable {
		return NewError("item is not equippable: "+item.ID, INVALID_ARGUMENT_ERROR_CODE)
	}

	_, equipped, err := l.storage().Get(TableBalances, equipKeyPrefix+item.ID)
	if err != nil {
		return err
	}
	if !equipped {
		return nil
	}
	if err := l.storage().Delete(TableBalances, equipKeyPrefix+item.ID); err != nil {
		return err
	}
	l.publish(GoodUnequipped{GoodID: item.ID})
	return nil
}

// IsEquipped reports whether the good is currently equipped.
func (l *LedgerSystemImpl) IsEquipped(goodID string) (bool, error) {
	_, equipped, err := l.storage().Get(TableBalances, equipKeyPrefix+goodID)
	return equipped, err
}

// AssignUpgrade sets the current upgrade of the good.
func (l *LedgerSystemImpl) AssignUpgrade(goodID, upgradeID string) error {
	if goodID == "" {
		return NewError("upgrade is not linked to a good", INVALID_ARGUMENT_ERROR_CODE)
	}
	upgrade, err := l.catalog().ItemByID(upgradeID)
	if err != nil {
		return err
	}
	if upgrade.Kind != ItemKindUpgrade {
		return NewError("item is not an upgrade: "+upgrade.ID, INVALID_ARGUMENT_ERROR_CODE)
	}
	if upgrade.LinkedGoodID != goodID {
		return NewError("upgrade is linked to a different good: "+upgrade.ID, INVALID_ARGUMENT_ERROR_CODE)
	}

	lock := l.lockFor(goodID)
	lock.Lock()
	defer lock.Unlock()

	current, _, err := l.storage().Get(TableBalances, upgradeKeyPrefix+goodID)
	if err != nil {
		return err
	}
	if current == upgrade.ID {
		return nil
	}
	if err := l.storage().Set(TableBalances, upgradeKeyPrefix+goodID, upgrade.ID); err != nil {
		return err
	}
	l.publish(GoodUpgrade{GoodID: goodID, UpgradeID: upgrade.ID})
	return nil
}

// RemoveUpgrade clears the good's upgrade chain entirely.
func (l *LedgerSystemImpl) RemoveUpgrade(goodID string) error {
	lock := l.lockFor(goodID)
	lock.Lock()
	defer lock.Unlock()

	_, found, err := l.storage().Get(TableBalances, upgradeKeyPrefix+goodID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := l.storage().Delete(TableBalances, upgradeKeyPrefix+goodID); err != nil {
		return err
	}
	l.publish(GoodUpgrade{GoodID: goodID, UpgradeID: ""})
	return nil
}

// CurrentUpgrade returns the id of the good's current upgrade.
func (l *LedgerSystemImpl) CurrentUpgrade(goodID string) (string, error) {
	current, _, err := l.storage().Get(TableBalances, upgradeKeyPrefix+goodID)
	return current, err
}

// downgrade steps the linked good back to the upgrade's predecessor. Taking
// the first upgrade of a chain removes the chain.
func (l *LedgerSystemImpl) downgrade(upgrade *CatalogItem) error {
	goodID := upgrade.LinkedGoodID
	if goodID == "" {
		return NewError("upgrade is not linked to a good", INVALID_ARGUMENT_ERROR_CODE)
	}

	current, err := l.CurrentUpgrade(goodID)
	if err != nil {
		return err
	}
	if current != upgrade.ID {
		return nil
	}
	if upgrade.PrevUpgradeID == "" {
		return l.RemoveUpgrade(goodID)
	}
	return l.AssignUpgrade(goodID, upgrade.PrevUpgradeID)
}

// NonConsumableExists reports whether the ownership flag is present.
func (l *LedgerSystemImpl) NonConsumableExists(itemID string) (bool, error) {
	_, found, err := l.storage().Get(TableOwnership, itemID)
	return found, err
}

// GrantNonConsumable sets the ownership flag.
func (l *LedgerSystemImpl) GrantNonConsumable(itemID string) error {
	lock := l.lockFor(itemID)
	lock.Lock()
	defer lock.Unlock()

	exists, err := l.NonConsumableExists(itemID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := l.storage().Set(TableOwnership, itemID, "1"); err != nil {
		return err
	}
	l.publish(NonConsumableGranted{ItemID: itemID})
	return nil
}

// RevokeNonConsumable clears the ownership flag.
func (l *LedgerSystemImpl) RevokeNonConsumable(itemID string) error {
	lock := l.lockFor(itemID)
	lock.Lock()
	defer lock.Unlock()

	exists, err := l.NonConsumableExists(itemID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := l.storage().Delete(TableOwnership, itemID); err != nil {
		return err
	}
	l.publish(NonConsumableRevoked{ItemID: itemID})
	return nil
}
