package storelogix

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultRestorePageLimit = 100

// StoreSystemImpl implements the StoreSystem interface.
type StoreSystemImpl struct {
	config *StoreConfig
	logger *zap.Logger

	sl       Storelogix
	provider BillingProvider

	// Guards the session state and the single operation token.
	mu    sync.Mutex
	state StoreState
	op    AsyncOperation

	// Serializes virtual-item purchases so the balance check and the two
	// ledger mutations form one critical section.
	buyMu sync.Mutex

	cron *cron.Cron
}

// NewStoreSystem creates a new instance of the StoreSystem implementation.
func NewStoreSystem(config *StoreConfig, logger *zap.Logger) *StoreSystemImpl {
	if config == nil {
		config = &StoreConfig{}
	}
	if config.RestorePageLimit <= 0 {
		config.RestorePageLimit = defaultRestorePageLimit
	}
	return &StoreSystemImpl{
		config: config,
		logger: logger,
		state:  StoreStateUninitialized,
	}
}

// GetType provides the runtime type of the system.
func (s *StoreSystemImpl) GetType() SystemType {
	return SystemTypeStore
}

// GetConfig returns the configuration type of the system.
func (s *StoreSystemImpl) GetConfig() any {
	return s.config
}

// SetStorelogix sets the owning context object on the system.
func (s *StoreSystemImpl) SetStorelogix(sl Storelogix) {
	s.sl = sl
}

// SetBillingProvider installs the platform billing integration.
func (s *StoreSystemImpl) SetBillingProvider(provider BillingProvider) {
	s.provider = provider
}

func (s *StoreSystemImpl) storage() StorageSystem {
	return s.sl.GetStorageSystem()
}

func (s *StoreSystemImpl) catalog() CatalogSystem {
	return s.sl.GetCatalogSystem()
}

func (s *StoreSystemImpl) ledger() LedgerSystem {
	return s.sl.GetLedgerSystem()
}

func (s *StoreSystemImpl) publish(evt StoreEvent) {
	if bus := s.sl.GetEventBus(); bus != nil {
		bus.Publish(evt)
	}
}

// acquire claims the single operation token. Operations never queue.
func (s *StoreSystemImpl) acquire(op AsyncOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.op != OpNone {
		s.logger.Debug("billing operation rejected, another is in flight",
			zap.String("requested", op.String()),
			zap.String("in_flight", s.op.String()))
		return ErrAsyncOperationConflict
	}
	s.op = op
	return nil
}

func (s *StoreSystemImpl) release() {
	s.mu.Lock()
	s.op = OpNone
	s.mu.Unlock()
}

func (s *StoreSystemImpl) setState(state StoreState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the current billing session state.
func (s *StoreSystemImpl) State() StoreState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Setup establishes the billing session. On first ever success it also runs a
// restore pass to pick up purchases made on other devices or installs.
func (s *StoreSystemImpl) Setup(ctx context.Context) error {
	if s.provider == nil {
		return ErrNoBillingProvider
	}
	if err := s.acquire(OpSetup); err != nil {
		return err
	}
	defer s.release()

	s.setState(StoreStateSettingUp)
	if err := s.provider.Setup(ctx); err != nil {
		s.setState(StoreStateUninitialized)
		s.logger.Warn("billing setup failed", zap.Error(err))
		s.publish(BillingNotSupported{Reason: err.Error()})
		return ErrProviderFailure
	}
	s.setState(StoreStateReady)
	s.publish(BillingSupported{})

	_, restored, err := s.storage().Get(TableMetadata, metadataKeyRestored)
	if err == nil && !restored {
		s.runRestore(ctx)
	}
	return nil
}

// BuyWithMarket starts the platform purchase flow for a market-priced item and
// processes the resulting purchase record.
func (s *StoreSystemImpl) BuyWithMarket(ctx context.Context, itemID, payload string) error {
	if s.provider == nil {
		return ErrNoBillingProvider
	}
	if s.State() != StoreStateReady {
		return ErrNotReady
	}

	item, err := s.catalog().ItemByID(itemID)
	if err != nil {
		return err
	}
	if item.Purchase == nil || item.Purchase.Market == nil {
		return NewError("item is not market purchasable: "+item.ID, INVALID_ARGUMENT_ERROR_CODE)
	}

	if err := s.acquire(OpPurchase); err != nil {
		return err
	}
	defer s.release()

	s.publish(MarketPurchaseStarted{ItemID: item.ID})

	record, err := s.provider.LaunchPurchase(ctx, item.Purchase.Market.ProductID, payload)
	if err != nil {
		s.logger.Warn("purchase flow failed",
			zap.String("item_id", item.ID),
			zap.Error(err))
		s.publish(UnexpectedStoreError{Message: "purchase failed for " + item.ID + ": " + err.Error()})
		return ErrProviderFailure
	}

	s.processRecord(ctx, record)
	return nil
}

// BuyWithVirtualItem purchases an item priced in another virtual item. The
// funds check happens before any mutation, so a short payer balance leaves the
// ledger untouched.
func (s *StoreSystemImpl) BuyWithVirtualItem(itemID string) (int64, error) {
	item, err := s.catalog().ItemByID(itemID)
	if err != nil {
		return 0, err
	}
	if item.Purchase == nil || item.Purchase.Virtual == nil {
		return 0, NewError("item is not virtual purchasable: "+item.ID, INVALID_ARGUMENT_ERROR_CODE)
	}
	price := item.Purchase.Virtual

	s.buyMu.Lock()
	defer s.buyMu.Unlock()

	balance, err := s.ledger().Balance(price.ItemID)
	if err != nil {
		return 0, err
	}
	if balance < price.Amount {
		return 0, ErrInsufficientFunds
	}

	if _, err := s.ledger().Take(price.ItemID, price.Amount); err != nil {
		return 0, err
	}
	updated, err := s.ledger().Give(item.ID, 1)
	if err != nil {
		return 0, err
	}

	s.publish(ItemPurchased{ItemID: item.ID})
	return updated, nil
}

// RestoreTransactions walks the provider's owned-purchase listing and
// reconciles the ledger with it.
func (s *StoreSystemImpl) RestoreTransactions(ctx context.Context) error {
	if s.provider == nil {
		return ErrNoBillingProvider
	}
	if s.State() != StoreStateReady {
		return ErrNotReady
	}
	if err := s.acquire(OpRestore); err != nil {
		return err
	}
	defer s.release()

	s.runRestore(ctx)
	return nil
}

// runRestore performs the restore pass. The caller holds the operation token.
// A provider failure mid-restore keeps the progress made so far and still
// reports success; the next pass converges the remainder.
func (s *StoreSystemImpl) runRestore(ctx context.Context) {
	s.publish(RestoreStarted{})

	restored := 0
	cursor := ""
	for page := 0; page < s.config.RestorePageLimit; page++ {
		listing, err := s.provider.RestorePurchases(ctx, cursor)
		if err != nil {
			s.logger.Warn("restore interrupted, keeping progress",
				zap.Int("restored", restored),
				zap.Error(err))
			break
		}
		for _, record := range listing.Records {
			if s.processRecord(ctx, record) {
				restored++
			}
		}
		if !listing.HasMore {
			break
		}
		cursor = listing.Cursor
	}

	if err := s.storage().Set(TableMetadata, metadataKeyRestored, "1"); err != nil {
		s.logger.Warn("failed to persist restore marker", zap.Error(err))
	}
	s.publish(RestoreFinished{Succeeded: true, Restored: restored})
}

// processRecord classifies one provider purchase record and applies it to the
// ledger. Returns true when an item was delivered.
func (s *StoreSystemImpl) processRecord(ctx context.Context, record *PurchaseRecord) bool {
	item, err := s.catalog().ItemByProductID(record.ProductID)
	if err != nil {
		// Not an error to crash on: the token stays unconsumed and the record
		// resurfaces once the catalog knows the product.
		s.logger.Warn("purchase record for unknown product, leaving unconsumed",
			zap.String("product_id", record.ProductID))
		s.publish(UnexpectedStoreError{Message: "unknown product id: " + record.ProductID})
		return false
	}

	switch record.State {
	case PurchaseStateCancelled:
		s.publish(MarketPurchaseCancelled{ItemID: item.ID})
		return false

	case PurchaseStateRefunded:
		s.publish(MarketRefund{ItemID: item.ID})
		if !s.config.FriendlyRefunds {
			if _, err := s.ledger().Take(item.ID, purchaseAmount(record.Payload)); err != nil {
				s.logger.Warn("failed to claw back refunded item",
					zap.String("item_id", item.ID),
					zap.Error(err))
			}
		}
		return false

	default:
		if s.alreadyOwned(item) {
			s.logger.Debug("duplicate purchase record for owned item",
				zap.String("item_id", item.ID))
			return false
		}

		if _, err := s.ledger().Give(item.ID, purchaseAmount(record.Payload)); err != nil {
			s.logger.Warn("failed to deliver purchase, leaving unconsumed",
				zap.String("item_id", item.ID),
				zap.Error(err))
			s.publish(UnexpectedStoreError{Message: "delivery failed for " + item.ID + ": " + err.Error()})
			return false
		}
		s.publish(MarketPurchase{ItemID: item.ID, Token: record.Token, Payload: record.Payload})

		if consumableKind(item.Kind) {
			if err := s.provider.Consume(ctx, record.Token); err != nil {
				// The item is already delivered; a duplicate redelivery on the
				// next restore is caught upstream by the provider token.
				s.logger.Warn("failed to consume purchase token",
					zap.String("item_id", item.ID),
					zap.Error(err))
			}
		}
		return true
	}
}

// alreadyOwned reports whether a Purchased record for the item is a duplicate
// that must not mutate the ledger or fire events again.
func (s *StoreSystemImpl) alreadyOwned(item *CatalogItem) bool {
	switch item.Kind {
	case ItemKindNonConsumable:
		exists, err := s.ledger().NonConsumableExists(item.ID)
		return err == nil && exists
	case ItemKindLifetime, ItemKindEquippable:
		balance, err := s.ledger().Balance(item.ID)
		return err == nil && balance >= 1
	default:
		return false
	}
}

// consumableKind reports whether a delivered purchase token must be consumed
// so the product can be bought again.
func consumableKind(kind ItemKind) bool {
	switch kind {
	case ItemKindCurrency, ItemKindCurrencyPack, ItemKindSingleUse, ItemKindSingleUsePack:
		return true
	default:
		return false
	}
}

// purchaseAmount parses the purchase count from the developer payload. Any
// payload that is not a positive integer means a single unit.
func purchaseAmount(payload string) int64 {
	count, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || count < 1 {
		return 1
	}
	return count
}

// RefreshMarketItemDetails fetches provider store-front metadata for all
// market-priced items and merges it into the catalog.
func (s *StoreSystemImpl) RefreshMarketItemDetails(ctx context.Context) (int, error) {
	if s.provider == nil {
		return 0, ErrNoBillingProvider
	}
	if s.State() != StoreStateReady {
		return 0, ErrNotReady
	}
	if err := s.acquire(OpRefresh); err != nil {
		return 0, err
	}
	defer s.release()

	productIDs := s.catalog().MarketProductIDs()
	if len(productIDs) == 0 {
		return 0, nil
	}

	details, err := s.provider.FetchProductMetadata(ctx, productIDs)
	if err != nil {
		s.logger.Warn("market metadata fetch failed", zap.Error(err))
		s.publish(UnexpectedStoreError{Message: "metadata fetch failed: " + err.Error()})
		return 0, ErrProviderFailure
	}

	updated := s.catalog().MergeProductMetadata(details)
	s.publish(MarketItemsRefreshed{Updated: updated})
	return updated, nil
}

// List returns every catalog item, ordered by id.
func (s *StoreSystemImpl) List() []*CatalogItem {
	items := s.catalog().Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	listed := make([]*CatalogItem, 0, len(ids))
	for _, id := range ids {
		listed = append(listed, items[id])
	}
	return listed
}

// start launches the reconciliation schedule if one is configured.
func (s *StoreSystemImpl) start() error {
	if s.config.ReconcileSchedule == "" {
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.config.ReconcileSchedule, func() {
		if s.State() != StoreStateReady {
			return
		}
		if err := s.RestoreTransactions(context.Background()); err != nil {
			if err == ErrAsyncOperationConflict {
				s.logger.Debug("scheduled reconciliation skipped, operation in flight")
				return
			}
			s.logger.Warn("scheduled reconciliation failed", zap.Error(err))
		}
	})
	if err != nil {
		return NewError("invalid reconcile schedule: "+err.Error(), INVALID_ARGUMENT_ERROR_CODE)
	}

	s.cron.Start()
	s.logger.Info("reconciliation schedule started",
		zap.String("schedule", s.config.ReconcileSchedule))
	return nil
}

// Close stops the reconciliation schedule if one is running.
func (s *StoreSystemImpl) Close() error {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.cron = nil
	}
	return nil
}
