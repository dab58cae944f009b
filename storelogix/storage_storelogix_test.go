package storelogix

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObfuscatorRoundTrip(t *testing.T) {
	obf, err := newObfuscator("device-secret")
	require.NoError(t, err)

	sealed, err := obf.seal("42")
	require.NoError(t, err)
	assert.NotEqual(t, "42", sealed)

	plain, err := obf.open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "42", plain)
}

func TestObfuscatorCorruptValue(t *testing.T) {
	obf, err := newObfuscator("device-secret")
	require.NoError(t, err)

	_, err = obf.open("not base64!!")
	assert.ErrorIs(t, err, ErrStorageDecode)

	_, err = obf.open("YWJjZA==")
	assert.ErrorIs(t, err, ErrStorageDecode)
}

func TestObfuscatorHashKey(t *testing.T) {
	obf, err := newObfuscator("device-secret")
	require.NoError(t, err)

	first := obf.hashKey(TableBalances, "coin")
	assert.Equal(t, first, obf.hashKey(TableBalances, "coin"))
	assert.NotEqual(t, first, obf.hashKey(TableOwnership, "coin"))
	assert.NotEqual(t, first, obf.hashKey(TableBalances, "gem"))
}

func newTestSqlite(t *testing.T, path string, secret string, catalogVersion int) *SqliteStorageSystem {
	t.Helper()
	storage := NewSqliteStorageSystem(&StorageConfig{
		Path:           path,
		Secret:         secret,
		Obfuscate:      true,
		CatalogVersion: catalogVersion,
	}, zap.NewNop())
	require.NoError(t, storage.Open())
	return storage
}

func TestSqliteStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	storage := newTestSqlite(t, path, "secret", 1)

	require.NoError(t, storage.Set(TableBalances, "coin", "25"))

	value, found, err := storage.Get(TableBalances, "coin")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "25", value)

	require.NoError(t, storage.Delete(TableBalances, "coin"))
	_, found, err = storage.Get(TableBalances, "coin")
	require.NoError(t, err)
	assert.False(t, found)

	// A value must survive a process restart.
	require.NoError(t, storage.Set(TableBalances, "gem", "3"))
	require.NoError(t, storage.Close())

	reopened := newTestSqlite(t, path, "secret", 1)
	defer reopened.Close()

	value, found, err = reopened.Get(TableBalances, "gem")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "3", value)
}

func TestSqliteMetadataWipeOnCatalogBump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	storage := newTestSqlite(t, path, "secret", 1)

	require.NoError(t, storage.Set(TableBalances, "coin", "100"))
	require.NoError(t, storage.Set(TableMetadata, metadataKeyCatalogSnapshot, "{}"))
	require.NoError(t, storage.Close())

	reopened := newTestSqlite(t, path, "secret", 2)
	defer reopened.Close()

	_, found, err := reopened.Get(TableMetadata, metadataKeyCatalogSnapshot)
	require.NoError(t, err)
	assert.False(t, found, "metadata must be wiped on catalog version bump")

	value, found, err := reopened.Get(TableBalances, "coin")
	require.NoError(t, err)
	require.True(t, found, "balances must survive the wipe")
	assert.Equal(t, "100", value)
}

func TestSqliteWrongSecretDegradesToAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	storage := newTestSqlite(t, path, "secret-a", 1)
	require.NoError(t, storage.Set(TableOwnership, "no_ads", "1"))
	require.NoError(t, storage.Close())

	// A different secret cannot recover the hashed keys or sealed values, so
	// every read misses without erroring.
	reopened := newTestSqlite(t, path, "secret-b", 1)
	defer reopened.Close()

	_, found, err := reopened.Get(TableOwnership, "no_ads")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSqliteEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("STORELOGIX_STORAGE_PATH", path)
	t.Setenv("STORELOGIX_STORAGE_SECRET", "env-secret")

	storage := NewSqliteStorageSystem(&StorageConfig{Obfuscate: true}, zap.NewNop())
	require.NoError(t, storage.Open())
	defer storage.Close()

	assert.Equal(t, path, storage.config.Path)
	assert.Equal(t, "env-secret", storage.config.Secret)

	require.NoError(t, storage.Set(TableBalances, "coin", "1"))
	value, found, err := storage.Get(TableBalances, "coin")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", value)
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	storage := NewMemoryStorageSystem()

	_, found, err := storage.Get(TableBalances, "coin")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, storage.Set(TableBalances, "coin", "7"))
	value, found, err := storage.Get(TableBalances, "coin")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "7", value)

	require.NoError(t, storage.Delete(TableBalances, "coin"))
	_, found, _ = storage.Get(TableBalances, "coin")
	assert.False(t, found)
}
