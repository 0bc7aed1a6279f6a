package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoadMissing(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing.json"))

	blob, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestFileSaveLoadRoundTrip(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "snap.json"))
	ctx := context.Background()
	want := testBlob()

	require.NoError(t, f.Save(ctx, want))
	got, err := f.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.Cards, got.Cards)
	assert.Equal(t, want.GlobalStats, got.GlobalStats)
	assert.Equal(t, want.CardGroups, got.CardGroups)
	assert.Equal(t, want.DailyStats, got.DailyStats)
	assert.JSONEq(t, string(want.UIState), string(got.UIState))
}

func TestFileSaveCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "snap.json")
	f := NewFile(path)

	require.NoError(t, f.Save(context.Background(), testBlob()))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "snap.json"))

	require.NoError(t, f.Save(context.Background(), testBlob()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snap.json", entries[0].Name())
}

func TestFileLoadCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := NewFile(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileLoadFillsNilCardMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"1"}`), 0o644))

	blob, err := NewFile(path).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.NotNil(t, blob.Cards)
	assert.Empty(t, blob.Cards)
}
