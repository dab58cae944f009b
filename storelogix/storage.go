package storelogix

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// metadataFormatVersion tracks the on-disk layout of the metadata table. The
// metadata table is wiped (balances preserved) whenever this constant or the
// configured catalog version advances past the stored counters.
const metadataFormatVersion = 3

// The StorageTable identifies the logical tables of the persistent store.
type StorageTable uint

const (
	// TableBalances holds per-item integer balances plus prefixed equip and
	// upgrade state, which must survive metadata wipes.
	TableBalances StorageTable = iota
	// TableOwnership holds existence flags for market-managed non-consumables.
	TableOwnership
	// TableMetadata holds the cached catalog snapshot and schema counters.
	TableMetadata
)

// Reserved metadata keys.
const (
	metadataKeyFormatVersion   = "schema.metadata_version"
	metadataKeyCatalogVersion  = "schema.catalog_version"
	metadataKeyCatalogSnapshot = "catalog.snapshot"
	metadataKeyRestored        = "store.restored"
)

// The StorageSystem is a synchronous, durable key-value store. All calls are
// durable on return. Keys and values may pass through an obfuscation transform
// before reaching the underlying storage; a value that fails to decode is
// reported as absent, never as an error the caller must handle.
type StorageSystem interface {
	System

	// Get returns the value for key, or found=false when the key is absent or
	// its stored value failed to decode.
	Get(table StorageTable, key string) (value string, found bool, err error)

	// Set writes the value for key, overwriting any previous value.
	Set(table StorageTable, key, value string) error

	// Delete removes the key. Deleting an absent key is a no-op.
	Delete(table StorageTable, key string) error

	// Close releases the underlying storage.
	Close() error
}

// StorageConfig is the data definition for the StorageSystem type.
type StorageConfig struct {
	Path           string `json:"path,omitempty"`            // SQLite database file
	Secret         string `json:"secret,omitempty"`          // device+package obfuscation secret
	Obfuscate      bool   `json:"obfuscate,omitempty"`       // obfuscate keys and values at rest
	CatalogVersion int    `json:"catalog_version,omitempty"` // host-assigned catalog schema counter
}

// storageEnv carries environment overrides for deployment-sensitive settings,
// so the obfuscation secret does not have to live in the config file.
type storageEnv struct {
	Path   string `env:"STORELOGIX_STORAGE_PATH"`
	Secret string `env:"STORELOGIX_STORAGE_SECRET"`
}

// obfuscator applies the at-rest transform: keys are HMAC-SHA256 hashed (one
// way, deterministic, so lookups keep working) and values are sealed with
// AES-GCM under a key derived from the configured secret.
type obfuscator struct {
	hmacKey []byte
	aead    cipher.AEAD
}

func newObfuscator(secret string) (*obfuscator, error) {
	aesKey := sha256.Sum256([]byte("v:" + secret))
	hmacKey := sha256.Sum256([]byte("k:" + secret))

	block, err := aes.NewCipher(aesKey[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &obfuscator{hmacKey: hmacKey[:], aead: aead}, nil
}

// hashKey produces the stored form of a key, scoped per table so identical item
// ids in different tables never collide.
func (o *obfuscator) hashKey(table StorageTable, key string) string {
	mac := hmac.New(sha256.New, o.hmacKey)
	mac.Write([]byte{byte(table), ':'})
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func (o *obfuscator) seal(value string) (string, error) {
	nonce := make([]byte, o.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := o.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (o *obfuscator) open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrStorageDecode
	}
	if len(raw) < o.aead.NonceSize() {
		return "", ErrStorageDecode
	}
	nonce, sealed := raw[:o.aead.NonceSize()], raw[o.aead.NonceSize():]
	plain, err := o.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrStorageDecode
	}
	return string(plain), nil
}
