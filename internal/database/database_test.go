package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, TokenKey, "abc.def.ghi"))
	require.NoError(t, s.Set(ctx, UserKey, `{"id":"1","username":"ayse","role":"shopper"}`))

	v, ok, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", v)

	tok, err := StoredToken{Store: s}.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	require.NoError(t, s.Delete(ctx, TokenKey, UserKey, "missing"))
	_, ok, _ = s.Get(ctx, TokenKey)
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, UserKey)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestJSONDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	db, err := NewJSONDatabase(path)
	require.NoError(t, err)
	exerciseStore(t, db)
}

func TestJSONDatabase_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	db, err := NewJSONDatabase(path)
	require.NoError(t, err)
	require.NoError(t, db.Set(context.Background(), TokenKey, "persisted"))

	reopened, err := NewJSONDatabase(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(context.Background(), TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", v)
}

func TestJSONDatabase_CorruptFileIsReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"jwtToken": `), 0o600))

	db, err := NewJSONDatabase(path)
	require.NoError(t, err)
	_, ok, err := db.Get(context.Background(), TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestJSONDatabase_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	db, err := NewJSONDatabase(path)
	require.NoError(t, err)
	exerciseStore(t, db)
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "vitrin:test:")
	defer s.Close()

	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), TokenKey, "t"))
	assert.True(t, mr.Exists("vitrin:test:jwtToken"))
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "://nope", "")
	assert.Error(t, err)
}

func TestNewRedisStore_Connects(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), "p:")
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}
