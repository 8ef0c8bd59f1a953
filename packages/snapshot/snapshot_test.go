package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "__snapshots__", "api"+Ext)
}

func TestStore_Compare_NewSnapshot(t *testing.T) {
	path := snapshotPath(t)
	store := NewStore(path, true)

	result := store.Compare("GET http://example.com/users/1/", map[string]any{"id": 1, "name": "John"})
	assert.True(t, result.Passed, result.Message)
	assert.True(t, result.Created)
	assert.False(t, result.Updated)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Contains(t, stored, "GET http://example.com/users/1/")
}

func TestStore_Compare_Missing(t *testing.T) {
	path := snapshotPath(t)
	store := NewStore(path, false)

	result := store.Compare("GET http://example.com/", "hello")
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "does not exist")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written outside update mode")
}

func TestStore_Compare_Match(t *testing.T) {
	path := snapshotPath(t)
	data := map[string]any{"id": 1, "tags": []string{"a", "b"}}

	require.True(t, NewStore(path, true).Compare("k", data).Passed)

	result := NewStore(path, false).Compare("k", data)
	assert.True(t, result.Passed, result.Message)
	assert.False(t, result.Created)
}

func TestStore_Compare_Mismatch(t *testing.T) {
	path := snapshotPath(t)
	require.True(t, NewStore(path, true).Compare("k", map[string]any{"id": 1}).Passed)

	result := NewStore(path, false).Compare("k", map[string]any{"id": 2})
	assert.False(t, result.Passed)
	assert.Equal(t, "snapshot mismatch", result.Message)
	assert.Equal(t, map[string]any{"id": 1.0}, result.Expected)
}

func TestStore_Compare_UpdateMismatch(t *testing.T) {
	path := snapshotPath(t)
	require.True(t, NewStore(path, true).Compare("k", "old").Passed)

	result := NewStore(path, true).Compare("k", "new")
	assert.True(t, result.Passed)
	assert.True(t, result.Updated)

	assert.True(t, NewStore(path, false).Compare("k", "new").Passed)
}

func TestStore_Compare_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Ext)
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0644))

	result := NewStore(path, true).Compare("k", "v")
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "failed to load snapshots")
}

func TestKeyAndValue(t *testing.T) {
	assert.Equal(t, "POST http://example.com/items/", Key(http.MethodPost, "http://example.com/items/"))

	jsonResp := &http.Response{Body: []byte(`{"ok":true}`)}
	assert.Equal(t, map[string]any{"ok": true}, Value(jsonResp))

	textResp := &http.Response{Body: []byte("plain text")}
	assert.Equal(t, "plain text", Value(textResp))
}
