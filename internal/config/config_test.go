package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 30, cfg.PingIntervalSeconds)
	require.Equal(t, int64(150), cfg.LatencyWarningMs)
	require.Equal(t, dir, cfg.DataDir)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = dir
	cfg.ListenAddr = ":9999"
	cfg.LatencyCriticalMs = 999

	require.NoError(t, Save(cfg))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, ":9999", reloaded.ListenAddr)
	require.Equal(t, int64(999), reloaded.LatencyCriticalMs)
}

func TestSaveWritesViaTempFileThenRename(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = dir
	require.NoError(t, Save(cfg))

	_, err := os.Stat(filepath.Join(dir, configFileName+".tmp"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, configFileName))
	require.NoError(t, err)
}

func TestEnvOverridesWinOverPersistedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = dir
	cfg.ListenAddr = ":8443"
	require.NoError(t, Save(cfg))

	t.Setenv("NETPULSE_LISTEN_ADDR", ":7777")
	reloaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, ":7777", reloaded.ListenAddr)
}

func TestSecretStoreGeneratesAndPersistsKey(t *testing.T) {
	dir := t.TempDir()
	store := NewSecretStore(dir)

	key1, err := store.LoadOrCreateAPIKey()
	require.NoError(t, err)
	require.Len(t, key1, 64)

	key2, err := store.LoadOrCreateAPIKey()
	require.NoError(t, err)
	require.Equal(t, key1, key2)
}

func TestWatcherReloadsOnFileWrite(t *testing.T) {
	origDebounce := debounceReload
	debounceReload = 10 * time.Millisecond
	t.Cleanup(func() { debounceReload = origDebounce })

	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = dir
	require.NoError(t, Save(cfg))

	w, err := NewWatcher(cfg)
	require.NoError(t, err)
	defer w.Stop()

	updated := Default()
	updated.DataDir = dir
	updated.ListenAddr = ":1234"
	require.NoError(t, Save(updated))

	require.Eventually(t, func() bool {
		Mu.RLock()
		defer Mu.RUnlock()
		return cfg.ListenAddr == ":1234"
	}, 2*time.Second, 20*time.Millisecond)
}
