package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/curator/pkg/content"
)

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "rss.json"), Path("data", "", "rss.json"))
	assert.Equal(t, filepath.Join("data", "run-7", "rss.json"), Path("data", "run-7", "rss.json"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	edited := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	data := content.Collection{
		"vid1": {ID: "vid1", Source: content.KindYoutube, Title: "one", LastEditedAt: edited},
		"vid2": {ID: "vid2", Source: content.KindYoutube, Title: "two", Tags: []string{"go"}},
	}

	path, err := Save(dir, "run-1", "youtube.json", data)
	require.NoError(t, err)
	assert.FileExists(t, path)

	got, err := Load(dir, "run-1", "youtube.json")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got["vid2"].Title)
	assert.Equal(t, []string{"go"}, got["vid2"].Tags)
	assert.True(t, got["vid1"].LastEditedAt.Equal(edited))

	entries, err := os.ReadDir(filepath.Join(dir, "run-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	_, err := Save(dir, "", "rss.json", content.Collection{"a": {ID: "a"}, "b": {ID: "b"}})
	require.NoError(t, err)
	_, err = Save(dir, "", "rss.json", content.Collection{"c": {ID: "c"}})
	require.NoError(t, err)

	got, err := Load(dir, "", "rss.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, []string{got.Values()[0].ID})
	assert.Len(t, got, 1)
}

func TestSaveNilWritesEmptyObject(t *testing.T) {
	dir := t.TempDir()
	path, err := Save(dir, "", "article.json", nil)
	require.NoError(t, err)

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(buf))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir(), "nope", "rss.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadFillsIDFromKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "youtube.json"),
		[]byte(`{"vid1": {"title": "one"}, "vid2": {"id": "vid2", "title": "two"}}`), 0o644))

	data, err := Load(dir, "", "youtube.json")
	require.NoError(t, err)
	assert.Equal(t, "vid1", data["vid1"].ID)
	assert.Equal(t, "vid2", data["vid2"].ID)
}

func TestLoadRejectsMismatchedID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rss.json"),
		[]byte(`{"a": {"id": "b", "title": "one"}}`), 0o644))

	_, err := Load(dir, "", "rss.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "a" holds item "b"`)
	assert.False(t, errors.Is(err, ErrNotFound))
}
