package kvstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v, want ErrNotFound", err)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "state/local", []byte(`{"a":1}`)))
		got, err := s.Load(ctx, "state/local")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "state/local", []byte(`{"a":2}`)))
		got, err := s.Load(ctx, "state/local")
		require.NoError(t, err)
		assert.Equal(t, `{"a":2}`, string(got))
	})

	t.Run("NamespacesAreIsolated", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "state/prod", []byte(`prod`)))
		got, err := s.Load(ctx, "state/local")
		require.NoError(t, err)
		assert.Equal(t, `{"a":2}`, string(got))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "state/local"))
		_, err := s.Load(ctx, "state/local")
		assert.True(t, errors.Is(err, ErrNotFound))

		// Deleting again is fine.
		assert.NoError(t, s.Delete(ctx, "state/local"))
	})
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "nested"))
	exerciseStore(t, s)
	require.NoError(t, s.Close())
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, "state/local", []byte("doc")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state_local.json", entries[0].Name())
}

func TestFileStoreKeepsPreviousDocumentOnFailedSave(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	s := NewFileStore(dir)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "ns", []byte("v1")))

	// Make the directory read-only so the temp file cannot be created.
	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	assert.Error(t, s.Save(ctx, "ns", []byte("v2")))

	got, err := s.Load(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "state_api.matchmore.io.json", fileName("state/api.matchmore.io"))
	assert.Equal(t, "default.json", fileName(""))
	assert.False(t, strings.Contains(fileName("../../etc/passwd"), "/"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreSaveError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "ns", []byte("v1")))

	boom := errors.New("disk full")
	s.SetSaveError(boom)
	assert.ErrorIs(t, s.Save(ctx, "ns", []byte("v2")), boom)

	got, err := s.Load(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	data := []byte("abc")
	require.NoError(t, s.Save(ctx, "ns", data))
	data[0] = 'x'

	got, err := s.Load(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewRedisStore(client, "test:")
	exerciseStore(t, s)

	assert.True(t, mr.Exists("test:state/prod"))
	assert.NoError(t, s.Health(context.Background()))
	assert.NoError(t, s.Close())
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := OpenRedis(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "ns", []byte("v")))
	got, err := mr.Get(DefaultRedisPrefix + "ns")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestOpenRedisBadURL(t *testing.T) {
	_, err := OpenRedis(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ALPS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ALPS_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.db.ExecContext(ctx, `DELETE FROM `+s.table)
		s.Close()
	})

	exerciseStore(t, s)
}
