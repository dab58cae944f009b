package storelogix

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"
)

// storelogixImpl implements the Storelogix interface.
type storelogixImpl struct {
	logger *zap.Logger

	bridge *publisherBridge

	// Store systems in a map by type
	systems map[SystemType]System
}

// Init initializes a Storelogix type with the configurations provided. Systems
// not named by any config are created with usable defaults: an in-memory
// storage system, an empty catalog and a default-sized event bus.
func Init(logger *zap.Logger, configs ...SystemConfig) (Storelogix, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sl := &storelogixImpl{
		logger:  logger,
		bridge:  &publisherBridge{logger: logger},
		systems: make(map[SystemType]System),
	}

	// Initialize systems based on provided configs
	for _, config := range configs {
		if err := sl.initSystem(config); err != nil {
			return nil, err
		}
	}

	if err := sl.wire(); err != nil {
		return nil, err
	}
	return sl, nil
}

// initSystem initializes a specific system based on its type.
func (sl *storelogixImpl) initSystem(config SystemConfig) error {
	sl.logger.Info("initializing system",
		zap.Uint("system_type", uint(config.GetType())),
		zap.String("config_file", config.GetConfigFile()))

	// An empty config file means the system runs with its zero-value config.
	var configBytes []byte
	if config.GetConfigFile() != "" {
		data, err := os.ReadFile(config.GetConfigFile())
		if err != nil {
			sl.logger.Error("failed to read config file",
				zap.String("config_file", config.GetConfigFile()),
				zap.Error(err))
			return ErrFileNotFound
		}
		configBytes = data
	}

	var system System

	switch config.GetType() {
	case SystemTypeStorage:
		storageConfig := &StorageConfig{}
		if err := sl.parseConfig(configBytes, storageConfig); err != nil {
			return err
		}
		system = NewSqliteStorageSystem(storageConfig, sl.logger)

	case SystemTypeCatalog:
		catalogConfig := &CatalogConfig{}
		if err := sl.parseConfig(configBytes, catalogConfig); err != nil {
			return err
		}
		system = NewCatalogSystem(catalogConfig, sl.logger)

	case SystemTypeLedger:
		ledgerConfig := &LedgerConfig{}
		if err := sl.parseConfig(configBytes, ledgerConfig); err != nil {
			return err
		}
		system = NewLedgerSystem(ledgerConfig, sl.logger)

	case SystemTypeStore:
		storeConfig := &StoreConfig{}
		if err := sl.parseConfig(configBytes, storeConfig); err != nil {
			return err
		}
		system = NewStoreSystem(storeConfig, sl.logger)

	case SystemTypeEventBus:
		busConfig := &BusConfig{}
		if err := sl.parseConfig(configBytes, busConfig); err != nil {
			return err
		}
		system = NewEventBus(busConfig, sl.logger)

	default:
		return ErrSystemNotFound
	}

	sl.systems[config.GetType()] = system
	return nil
}

func (sl *storelogixImpl) parseConfig(configBytes []byte, out any) error {
	if len(configBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(configBytes, out); err != nil {
		sl.logger.Error("failed to parse system config", zap.Error(err))
		return NewError("failed to parse system config: "+err.Error(), INVALID_ARGUMENT_ERROR_CODE)
	}
	return nil
}

// wire fills in defaults for missing systems and connects them: storage opens,
// the catalog loads from it and the ledger and store receive their context.
func (sl *storelogixImpl) wire() error {
	if _, ok := sl.systems[SystemTypeEventBus]; !ok {
		sl.systems[SystemTypeEventBus] = NewEventBus(&BusConfig{}, sl.logger)
	}
	if _, ok := sl.systems[SystemTypeStorage]; !ok {
		sl.systems[SystemTypeStorage] = NewMemoryStorageSystem()
	}
	if _, ok := sl.systems[SystemTypeCatalog]; !ok {
		sl.systems[SystemTypeCatalog] = NewCatalogSystem(&CatalogConfig{}, sl.logger)
	}
	if _, ok := sl.systems[SystemTypeLedger]; !ok {
		sl.systems[SystemTypeLedger] = NewLedgerSystem(&LedgerConfig{}, sl.logger)
	}
	if _, ok := sl.systems[SystemTypeStore]; !ok {
		sl.systems[SystemTypeStore] = NewStoreSystem(&StoreConfig{}, sl.logger)
	}

	storage := sl.GetStorageSystem()
	if sqlite, ok := storage.(*SqliteStorageSystem); ok {
		// The storage version check tracks the configured catalog version so a
		// bump invalidates the cached snapshot on open.
		if catalog, ok := sl.GetCatalogSystem().GetConfig().(*CatalogConfig); ok {
			if sqlite.config.CatalogVersion == 0 {
				sqlite.config.CatalogVersion = catalog.Version
			}
		}
		if err := sqlite.Open(); err != nil {
			return err
		}
	}

	if catalog, ok := sl.GetCatalogSystem().(*CatalogSystemImpl); ok {
		if err := catalog.load(storage); err != nil {
			return err
		}
	}

	sl.GetLedgerSystem().SetStorelogix(sl)
	store := sl.GetStoreSystem()
	store.SetStorelogix(sl)
	if impl, ok := store.(*StoreSystemImpl); ok {
		if err := impl.start(); err != nil {
			return err
		}
	}

	sl.GetEventBus().Subscribe(nil, sl.bridge.onEvent)
	return nil
}

// AddPublisher adds an analytics-style publisher to the chain.
func (sl *storelogixImpl) AddPublisher(publisher Publisher) {
	sl.bridge.publishers = append(sl.bridge.publishers, publisher)
}

// SetBillingProvider installs the platform billing integration the store
// system drives.
func (sl *storelogixImpl) SetBillingProvider(provider BillingProvider) {
	sl.GetStoreSystem().SetBillingProvider(provider)
}

func (sl *storelogixImpl) GetStorageSystem() StorageSystem {
	if system, ok := sl.systems[SystemTypeStorage].(StorageSystem); ok {
		return system
	}
	return nil
}

func (sl *storelogixImpl) GetCatalogSystem() CatalogSystem {
	if system, ok := sl.systems[SystemTypeCatalog].(CatalogSystem); ok {
		return system
	}
	return nil
}

func (sl *storelogixImpl) GetLedgerSystem() LedgerSystem {
	if system, ok := sl.systems[SystemTypeLedger].(LedgerSystem); ok {
		return system
	}
	return nil
}

func (sl *storelogixImpl) GetStoreSystem() StoreSystem {
	if system, ok := sl.systems[SystemTypeStore].(StoreSystem); ok {
		return system
	}
	return nil
}

func (sl *storelogixImpl) GetEventBus() EventBus {
	if system, ok := sl.systems[SystemTypeEventBus].(EventBus); ok {
		return system
	}
	return nil
}

// Close releases the systems in reverse dependency order. The event bus is
// closed before storage so queued notifications deliver while the ledger can
// still be read.
func (sl *storelogixImpl) Close() error {
	var first error

	if store := sl.GetStoreSystem(); store != nil {
		if err := store.Close(); err != nil && first == nil {
			first = err
		}
	}
	if bus := sl.GetEventBus(); bus != nil {
		bus.Close()
	}
	if storage := sl.GetStorageSystem(); storage != nil {
		if err := storage.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
