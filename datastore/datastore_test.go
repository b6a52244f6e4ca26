package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Volume int `json:"volume"`
}

func openStore(t *testing.T, path string) *DataStore {
	t.Helper()
	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	return ds
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	ds := openStore(t, path)
	require.NoError(t, ds.Put("guild", record{Volume: 70}))
	require.NoError(t, ds.Close())

	ds = openStore(t, path)
	defer ds.Close()

	var got record
	ok, err := ds.Get("guild", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 70, got.Volume)
	assert.Equal(t, []string{"guild"}, ds.Keys())
}

func TestMissingKey(t *testing.T) {
	ds := openStore(t, filepath.Join(t.TempDir(), "store.json"))
	defer ds.Close()

	var got record
	ok, err := ds.Get("nope", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClosedStore(t *testing.T) {
	ds := openStore(t, filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())

	assert.ErrorIs(t, ds.Put("k", 1), ErrClosed)
	_, err := ds.Get("k", new(int))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := New(path)
	assert.Error(t, err)
}

func TestKeepsLimitedBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	ds := openStore(t, path)
	defer ds.Close()

	for i := range 6 {
		require.NoError(t, ds.Put("k", i))
		require.NoError(t, ds.Save())
	}

	backups, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), 3)
	assert.NotEmpty(t, backups)
}
