package credential

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/devicelink/errors"
)

func writeSession(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFileStore_LoadAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	writeSession(t, path, `{
		"token": "a.b.c",
		"isAuthenticated": true,
		"user": {"id": "u1", "tenantId": "t1", "role": "operator", "name": "Operator One"}
	}`)

	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	id, ok := store.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "t1", id.TenantID)
	assert.Equal(t, "operator", id.Role)
	assert.Equal(t, "a.b.c", id.Token)
	assert.Equal(t, "Operator One", id.Name)

	changed, err := store.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	writeSession(t, path, `{
		"token": "a.b.c",
		"isAuthenticated": true,
		"user": {"id": "u1", "tenantId": "t2", "role": "operator"}
	}`)
	changed, err = store.Reload()
	require.NoError(t, err)
	assert.True(t, changed)

	id, _ = store.Identity()
	assert.Equal(t, "t2", id.TenantID)
}

func TestFileStore_SignedOut(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"not authenticated", `{"token":"a.b.c","isAuthenticated":false,"user":{"id":"u1"}}`},
		{"no user", `{"token":"a.b.c","isAuthenticated":true}`},
		{"no token", `{"isAuthenticated":true,"user":{"id":"u1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			writeSession(t, path, tt.content)

			store, err := NewFileStore(path, nil)
			require.NoError(t, err)

			_, ok := store.Identity()
			assert.False(t, ok)
		})
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), nil)
	require.NoError(t, err)

	_, ok := store.Identity()
	assert.False(t, ok)
}

func TestFileStore_InvalidJSONClearsIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	writeSession(t, path, `{"token":"a.b.c","isAuthenticated":true,"user":{"id":"u1"}}`)

	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	writeSession(t, path, `{broken`)
	changed, err := store.Reload()
	assert.Error(t, err)
	assert.True(t, changed)

	_, ok := store.Identity()
	assert.False(t, ok)

	_, err = NewFileStore(path, nil)
	assert.Error(t, err)
}

func TestFileStore_RejectsUnsafeFiles(t *testing.T) {
	dir := t.TempDir()

	oversized := filepath.Join(dir, "session.json")
	writeSession(t, oversized, `{"token":"a.b.c","isAuthenticated":true,"user":{"id":"u1"},"pad":"`+
		strings.Repeat("x", maxSessionFileSize)+`"}`)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"oversized", oversized, "file too large"},
		{"directory", dir, "not a regular file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileStore(tt.path, nil)
			require.Error(t, err)
			assert.True(t, errors.IsTransient(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStaticStore(t *testing.T) {
	store := NewStaticStore(Identity{UserID: "u1", Token: "a.b.c"})

	id, ok := store.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)

	store.Clear()
	_, ok = store.Identity()
	assert.False(t, ok)

	store.Set(Identity{UserID: "u2"})
	id, ok = store.Identity()
	assert.True(t, ok)
	assert.Equal(t, "u2", id.UserID)
}

func TestIdentity_SamePrincipal(t *testing.T) {
	base := Identity{UserID: "u", TenantID: "t", Role: "admin", Token: "1"}

	assert.True(t, base.SamePrincipal(Identity{UserID: "u", TenantID: "t", Role: "admin", Token: "2"}))
	assert.False(t, base.SamePrincipal(Identity{UserID: "u", TenantID: "t", Role: "viewer"}))
	assert.False(t, base.SamePrincipal(Identity{UserID: "u", TenantID: "x", Role: "admin"}))
	assert.False(t, base.SamePrincipal(Identity{UserID: "v", TenantID: "t", Role: "admin"}))
}
