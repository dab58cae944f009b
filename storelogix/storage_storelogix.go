package storelogix

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func tableName(table StorageTable) string {
	switch table {
	case TableBalances:
		return "balances"
	case TableOwnership:
		return "ownership_flags"
	case TableMetadata:
		return "metadata"
	default:
		return ""
	}
}

// SqliteStorageSystem implements the StorageSystem interface on a local SQLite
// database. Every Set and Delete is durable on return.
type SqliteStorageSystem struct {
	config *StorageConfig
	logger *zap.Logger

	db  *sql.DB
	obf *obfuscator
}

// NewSqliteStorageSystem creates a new instance of the SQLite-backed storage
// system. Open must be called before use; Init does this for systems it wires.
func NewSqliteStorageSystem(config *StorageConfig, logger *zap.Logger) *SqliteStorageSystem {
	if config == nil {
		config = &StorageConfig{}
	}
	return &SqliteStorageSystem{config: config, logger: logger}
}

// GetType provides the runtime type of the system.
func (s *SqliteStorageSystem) GetType() SystemType {
	return SystemTypeStorage
}

// GetConfig returns the configuration type of the system.
func (s *SqliteStorageSystem) GetConfig() any {
	return s.config
}

// Open connects to the database, applies environment overrides, creates the
// schema and runs the version check.
func (s *SqliteStorageSystem) Open() error {
	overrides := storageEnv{}
	if err := env.Parse(&overrides); err != nil {
		return err
	}
	if overrides.Path != "" {
		s.config.Path = overrides.Path
	}
	if overrides.Secret != "" {
		s.config.Secret = overrides.Secret
	}

	if s.config.Path == "" {
		return NewError("storage path is empty", INVALID_ARGUMENT_ERROR_CODE)
	}

	if s.config.Obfuscate {
		obf, err := newObfuscator(s.config.Secret)
		if err != nil {
			return err
		}
		s.obf = obf
	}

	db, err := sql.Open("sqlite", s.config.Path)
	if err != nil {
		return err
	}
	// SQLite allows a single writer; the ledger already serializes per-item
	// read-modify-write sequences, this keeps the driver side consistent too.
	db.SetMaxOpenConns(1)
	s.db = db

	for _, table := range []StorageTable{TableBalances, TableOwnership, TableMetadata} {
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (k TEXT PRIMARY KEY, v TEXT NOT NULL)", tableName(table))
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return s.checkVersions()
}

// checkVersions wipes the metadata table when either the metadata-format
// version or the configured catalog version advanced past the stored counters.
// Balances and ownership flags are always preserved.
func (s *SqliteStorageSystem) checkVersions() error {
	storedFormat := s.readCounter(metadataKeyFormatVersion)
	storedCatalog := s.readCounter(metadataKeyCatalogVersion)

	if storedFormat != metadataFormatVersion || storedCatalog != s.config.CatalogVersion {
		if storedFormat != 0 || storedCatalog != 0 {
			s.logger.Info("schema version advanced, wiping metadata table",
				zap.Int("stored_metadata_version", storedFormat),
				zap.Int("stored_catalog_version", storedCatalog),
				zap.Int("catalog_version", s.config.CatalogVersion))
		}
		if _, err := s.db.Exec("DELETE FROM metadata"); err != nil {
			return err
		}
		if err := s.Set(TableMetadata, metadataKeyFormatVersion, strconv.Itoa(metadataFormatVersion)); err != nil {
			return err
		}
		if err := s.Set(TableMetadata, metadataKeyCatalogVersion, strconv.Itoa(s.config.CatalogVersion)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SqliteStorageSystem) readCounter(key string) int {
	value, found, err := s.Get(TableMetadata, key)
	if err != nil || !found {
		return 0
	}
	counter, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return counter
}

// Get returns the value for key, or found=false when absent or undecodable.
func (s *SqliteStorageSystem) Get(table StorageTable, key string) (string, bool, error) {
	storedKey := key
	if s.obf != nil {
		storedKey = s.obf.hashKey(table, key)
	}

	var stored string
	row := s.db.QueryRow(fmt.Sprintf("SELECT v FROM %s WHERE k = ?", tableName(table)), storedKey)
	if err := row.Scan(&stored); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}

	if s.obf == nil {
		return stored, true, nil
	}

	value, err := s.obf.open(stored)
	if err != nil {
		// Corrupt ciphertext degrades to "never written", not to a crash.
		s.logger.Warn("stored value failed to decode, treating as absent",
			zap.String("table", tableName(table)))
		return "", false, nil
	}
	return value, true, nil
}

// Set writes the value for key, overwriting any previous value.
func (s *SqliteStorageSystem) Set(table StorageTable, key, value string) error {
	storedKey, storedValue := key, value
	if s.obf != nil {
		storedKey = s.obf.hashKey(table, key)
		sealed, err := s.obf.seal(value)
		if err != nil {
			return err
		}
		storedValue = sealed
	}

	stmt := fmt.Sprintf("INSERT INTO %s (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v", tableName(table))
	_, err := s.db.Exec(stmt, storedKey, storedValue)
	return err
}

// Delete removes the key.
func (s *SqliteStorageSystem) Delete(table StorageTable, key string) error {
	storedKey := key
	if s.obf != nil {
		storedKey = s.obf.hashKey(table, key)
	}
	_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE k = ?", tableName(table)), storedKey)
	return err
}

// Close releases the underlying database.
func (s *SqliteStorageSystem) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// MemoryStorageSystem implements the StorageSystem interface in process memory.
// Used in tests and host prototypes; carries no obfuscation and no durability.
type MemoryStorageSystem struct {
	config *StorageConfig

	mu     sync.RWMutex
	tables map[StorageTable]map[string]string
}

// NewMemoryStorageSystem creates a new instance of the in-memory storage system.
func NewMemoryStorageSystem() *MemoryStorageSystem {
	return &MemoryStorageSystem{
		config: &StorageConfig{},
		tables: map[StorageTable]map[string]string{
			TableBalances:  make(map[string]string),
			TableOwnership: make(map[string]string),
			TableMetadata:  make(map[string]string),
		},
	}
}

// GetType provides the runtime type of the system.
func (s *MemoryStorageSystem) GetType() SystemType {
	return SystemTypeStorage
}

// GetConfig returns the configuration type of the system.
func (s *MemoryStorageSystem) GetConfig() any {
	return s.config
}

func (s *MemoryStorageSystem) Get(table StorageTable, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, found := s.tables[table][key]
	return value, found, nil
}

func (s *MemoryStorageSystem) Set(table StorageTable, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table][key] = value
	return nil
}

func (s *MemoryStorageSystem) Delete(table StorageTable, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables[table], key)
	return nil
}

func (s *MemoryStorageSystem) Close() error {
	return nil
}
