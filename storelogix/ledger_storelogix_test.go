package storelogix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerGiveTakeRoundTrip(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()

	balance, err := ledger.Give("coin", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	balance, err = ledger.Take("coin", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), balance)

	balance, err = ledger.Balance("coin")
	require.NoError(t, err)
	assert.Equal(t, int64(6), balance)
}

func TestLedgerTakeClampsAtZero(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()
	collector := &eventCollector{}
	sl.GetEventBus().Subscribe([]EventType{EventTypeCurrencyBalanceChanged}, collector.onEvent)

	_, err := ledger.Give("coin", 3)
	require.NoError(t, err)

	balance, err := ledger.Take("coin", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	// Taking from an empty balance is a silent no-op.
	_, err = ledger.Take("coin", 1)
	require.NoError(t, err)

	sl.GetEventBus().Flush()
	events := collector.ofType(EventTypeCurrencyBalanceChanged)
	require.Len(t, events, 2)
	assert.Equal(t, int64(-3), events[1].(CurrencyBalanceChanged).Delta)
}

func TestLedgerPackForwardsToTarget(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()
	collector := &eventCollector{}
	sl.GetEventBus().Subscribe(nil, collector.onEvent)

	balance, err := ledger.Give("pack_10", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)

	balance, err = ledger.Balance("coin")
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)

	sl.GetEventBus().Flush()
	events := collector.ofType(EventTypeCurrencyBalanceChanged)
	require.Len(t, events, 1)
	evt := events[0].(CurrencyBalanceChanged)
	assert.Equal(t, "coin", evt.CurrencyID)
	assert.Equal(t, int64(20), evt.Delta)
}

func TestLedgerLifetimeClampsToOne(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()
	collector := &eventCollector{}
	sl.GetEventBus().Subscribe([]EventType{EventTypeGoodBalanceChanged}, collector.onEvent)

	balance, err := ledger.Give("sword", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)

	// A second grant clamps silently.
	balance, err = ledger.Give("sword", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)

	sl.GetEventBus().Flush()
	assert.Len(t, collector.ofType(EventTypeGoodBalanceChanged), 1)
}

func TestLedgerNonConsumableGrantRevoke(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()
	collector := &eventCollector{}
	sl.GetEventBus().Subscribe(nil, collector.onEvent)

	require.NoError(t, ledger.GrantNonConsumable("no_ads"))
	require.NoError(t, ledger.GrantNonConsumable("no_ads"))

	exists, err := ledger.NonConsumableExists("no_ads")
	require.NoError(t, err)
	assert.True(t, exists)

	sl.GetEventBus().Flush()
	assert.Len(t, collector.ofType(EventTypeNonConsumableGranted), 1)

	require.NoError(t, ledger.RevokeNonConsumable("no_ads"))
	require.NoError(t, ledger.RevokeNonConsumable("no_ads"))

	exists, err = ledger.NonConsumableExists("no_ads")
	require.NoError(t, err)
	assert.False(t, exists)

	sl.GetEventBus().Flush()
	assert.Len(t, collector.ofType(EventTypeNonConsumableRevoked), 1)
}

func TestLedgerEquip(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()
	collector := &eventCollector{}
	sl.GetEventBus().Subscribe(nil, collector.onEvent)

	assert.ErrorIs(t, ledger.Equip("hat"), ErrNotOwned)

	_, err := ledger.Give("hat", 1)
	require.NoError(t, err)
	require.NoError(t, ledger.Equip("hat"))
	require.NoError(t, ledger.Equip("hat"))

	equipped, err := ledger.IsEquipped("hat")
	require.NoError(t, err)
	assert.True(t, equipped)

	sl.GetEventBus().Flush()
	assert.Len(t, collector.ofType(EventTypeGoodEquipped), 1)

	// Taking the good unequips it.
	_, err = ledger.Take("hat", 1)
	require.NoError(t, err)

	equipped, err = ledger.IsEquipped("hat")
	require.NoError(t, err)
	assert.False(t, equipped)

	sl.GetEventBus().Flush()
	assert.Len(t, collector.ofType(EventTypeGoodUnequipped), 1)
}

func TestLedgerUpgradeChain(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()
	collector := &eventCollector{}
	sl.GetEventBus().Subscribe([]EventType{EventTypeGoodUpgrade}, collector.onEvent)

	_, err := ledger.Give("speed_1", 1)
	require.NoError(t, err)
	current, err := ledger.CurrentUpgrade("car")
	require.NoError(t, err)
	assert.Equal(t, "speed_1", current)

	_, err = ledger.Give("speed_2", 1)
	require.NoError(t, err)
	current, err = ledger.CurrentUpgrade("car")
	require.NoError(t, err)
	assert.Equal(t, "speed_2", current)

	// Taking the current upgrade steps back one link.
	_, err = ledger.Take("speed_2", 1)
	require.NoError(t, err)
	current, err = ledger.CurrentUpgrade("car")
	require.NoError(t, err)
	assert.Equal(t, "speed_1", current)

	// Taking a non-current upgrade is a no-op.
	_, err = ledger.Take("speed_2", 1)
	require.NoError(t, err)
	current, err = ledger.CurrentUpgrade("car")
	require.NoError(t, err)
	assert.Equal(t, "speed_1", current)

	_, err = ledger.Take("speed_1", 1)
	require.NoError(t, err)
	current, err = ledger.CurrentUpgrade("car")
	require.NoError(t, err)
	assert.Empty(t, current)

	sl.GetEventBus().Flush()
	events := collector.ofType(EventTypeGoodUpgrade)
	require.Len(t, events, 4)
	assert.Empty(t, events[3].(GoodUpgrade).UpgradeID)
}

func TestLedgerRejectsBadInput(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()

	_, err := ledger.Give("coin", -1)
	assert.ErrorIs(t, err, ErrBadInput)
	_, err = ledger.Take("coin", -1)
	assert.ErrorIs(t, err, ErrBadInput)
	_, err = ledger.Give("missing", 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Error(t, ledger.Equip("coin"))
	_, err = ledger.ResetBalance("pack_10", 5)
	assert.Error(t, err)
}

func TestLedgerResetBalance(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()

	balance, err := ledger.ResetBalance("coin", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	// Flag balances clamp on reset.
	balance, err = ledger.ResetBalance("sword", 9)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)
}

func TestLedgerResetNonConsumable(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()
	collector := &eventCollector{}
	sl.GetEventBus().Subscribe(nil, collector.onEvent)

	// A non-zero reset acts as grant.
	balance, err := ledger.ResetBalance("no_ads", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)

	exists, err := ledger.NonConsumableExists("no_ads")
	require.NoError(t, err)
	assert.True(t, exists)

	// A zero reset acts as revoke.
	balance, err = ledger.ResetBalance("no_ads", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	exists, err = ledger.NonConsumableExists("no_ads")
	require.NoError(t, err)
	assert.False(t, exists)

	sl.GetEventBus().Flush()
	assert.Len(t, collector.ofType(EventTypeNonConsumableGranted), 1)
	assert.Len(t, collector.ofType(EventTypeNonConsumableRevoked), 1)
}

func TestLedgerUnequipNeverEquippedIsSilent(t *testing.T) {
	sl := newTestStorelogix(t, testCatalogConfig(), nil)
	ledger := sl.GetLedgerSystem()
	collector := &eventCollector{}
	sl.GetEventBus().Subscribe(nil, collector.onEvent)

	require.NoError(t, ledger.Unequip("hat"))

	sl.GetEventBus().Flush()
	assert.Empty(t, collector.ofType(EventTypeGoodUnequipped))
}
