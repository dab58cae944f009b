package storelogix

var (
	ErrInternal     = NewError("internal error occurred", INTERNAL_ERROR_CODE)
	ErrBadInput     = NewError("bad input", INVALID_ARGUMENT_ERROR_CODE)
	ErrFileNotFound = NewError("file not found", INVALID_ARGUMENT_ERROR_CODE)

	// ErrItemNotFound is returned by catalog lookups that miss. Always recoverable:
	// callers log and continue rather than propagate.
	ErrItemNotFound = NewError("item not found in catalog", NOT_FOUND_ERROR_CODE)
	// ErrInsufficientFunds is raised synchronously before any state mutation when a
	// virtual-item purchase cannot be paid for.
	ErrInsufficientFunds = NewError("insufficient funds", FAILED_PRECONDITION_ERROR_CODE)
	// ErrAsyncOperationConflict is raised when a billing operation is requested while
	// another one is still outstanding. Operations never queue.
	ErrAsyncOperationConflict = NewError("another billing operation is in flight", ABORTED_ERROR_CODE)
	// ErrStorageDecode indicates an obfuscated value failed to decode. The storage
	// layer degrades the value to absent; this error is only logged.
	ErrStorageDecode = NewError("stored value failed to decode", INTERNAL_ERROR_CODE)
	// ErrProviderFailure wraps any failure reported by the billing provider adapter.
	ErrProviderFailure = NewError("billing provider failure", UNAVAILABLE_ERROR_CODE)

	ErrNotOwned           = NewError("good is not owned", FAILED_PRECONDITION_ERROR_CODE)
	ErrNotReady           = NewError("billing session is not ready", FAILED_PRECONDITION_ERROR_CODE)
	ErrNoBillingProvider  = NewError("no billing provider set", FAILED_PRECONDITION_ERROR_CODE)
	ErrSystemNotAvailable = NewError("system not available", INTERNAL_ERROR_CODE)
	ErrSystemNotFound     = NewError("system not found", INTERNAL_ERROR_CODE)
)

// Storelogix provides a type which combines all virtual economy systems. It is
// constructed once by the host application via Init and passed by handle to all
// call sites; there is no process-wide singleton.
type Storelogix interface {
	// AddPublisher adds an analytics-style publisher to the chain. Publishers
	// receive every event delivered on the event bus.
	AddPublisher(publisher Publisher)

	// SetBillingProvider installs the platform billing integration the store
	// system drives. Must be called before StoreSystem.Setup.
	SetBillingProvider(provider BillingProvider)

	GetStorageSystem() StorageSystem
	GetCatalogSystem() CatalogSystem
	GetLedgerSystem() LedgerSystem
	GetStoreSystem() StoreSystem
	GetEventBus() EventBus

	// Close releases the systems in reverse dependency order. The event bus is
	// flushed before shutdown so queued notifications are delivered.
	Close() error
}

// The SystemType identifies each of the virtual economy systems.
type SystemType uint

const (
	SystemTypeUnknown SystemType = iota
	SystemTypeStorage
	SystemTypeCatalog
	SystemTypeLedger
	SystemTypeStore
	SystemTypeEventBus
)

// A System is a base type for a virtual economy system.
type System interface {
	// GetType provides the runtime type of the system.
	GetType() SystemType

	// GetConfig returns the configuration type of the system.
	GetConfig() any
}

// The SystemConfig describes the configuration that each system uses to
// configure itself.
type SystemConfig interface {
	// GetType returns the runtime type of the system.
	GetType() SystemType

	// GetConfigFile returns the configuration file used for the data definitions
	// in the system. May be empty for systems with usable defaults.
	GetConfigFile() string

	// GetExtra returns the extra parameter used to configure the system.
	GetExtra() any
}

var _ SystemConfig = &systemConfig{}

type systemConfig struct {
	systemType SystemType
	configFile string

	extra any
}

func (sc *systemConfig) GetType() SystemType {
	return sc.systemType
}
func (sc *systemConfig) GetConfigFile() string {
	return sc.configFile
}
func (sc *systemConfig) GetExtra() any {
	return sc.extra
}

// WithStorageSystem configures the persistent store backing balances, ownership
// flags and metadata.
func WithStorageSystem(configFile string) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeStorage,
		configFile: configFile,
	}
}

// WithCatalogSystem configures the item catalog from a JSON definition file.
func WithCatalogSystem(configFile string) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeCatalog,
		configFile: configFile,
	}
}

// WithLedgerSystem configures the virtual item ledger. The ledger has no data
// definitions of its own; pass an empty config file for defaults.
func WithLedgerSystem(configFile string) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeLedger,
		configFile: configFile,
	}
}

// WithStoreSystem configures the purchase transaction engine.
func WithStoreSystem(configFile string) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeStore,
		configFile: configFile,
	}
}

// WithEventBus configures the event notification bus. Pass an empty config file
// for defaults.
func WithEventBus(configFile string) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeEventBus,
		configFile: configFile,
	}
}
