package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IssueTriage/internal/domain"
)

func sampleRecord() domain.Record {
	return domain.Record{
		"type":   "alias",
		"reason": "西北电讯工程学院 <old name>",
		"mcp":    []any{"view28272"},
		"num":    42,
	}
}

// exerciseStore runs the RecordStore contract against s.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	known, err := s.Known(ctx)
	require.NoError(t, err)
	assert.Empty(t, known)

	ok, err := s.Exists(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, 42, sampleRecord()))

	err = s.Put(ctx, 42, domain.Record{"type": "other", "reason": "second", "mcp": []any{}})
	require.ErrorIs(t, err, ErrAlreadyExists)

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "alias", got["type"])
	assert.Equal(t, "西北电讯工程学院 <old name>", got["reason"])
	num, ok := got.Num()
	require.True(t, ok)
	assert.Equal(t, 42, num)

	require.NoError(t, s.Put(ctx, 7, domain.Record{"type": "fix", "reason": "r", "mcp": []any{}}))

	ok, err = s.Exists(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	known, err = s.Known(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]struct{}{42: {}, 7: {}}, known)
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	s, err := NewFileStore(filepath.Join(t.TempDir(), "records"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStoreLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), 42, sampleRecord()))

	raw, err := os.ReadFile(filepath.Join(dir, "42.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"reason\": \"西北电讯工程学院 <old name>\"")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "abc.json", "0.json", ".record-123"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "5.json"), []byte("{}"), 0o644))

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	known, err := s.Known(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int]struct{}{5: {}}, known)
}

func TestFileStoreConcurrentPutHasOneWinner(t *testing.T) {
	t.Parallel()

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Put(context.Background(), 9, domain.Record{"writer": i})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyExists)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	s, err := OpenSQLStore(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		t.Skip("DATABASE_DSN not set")
	}

	s, err := OpenSQLStore(context.Background(), DriverPostgres, dsn)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec("DELETE FROM records WHERE num IN (7, 42)")
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	s, err := OpenRedisStore(context.Background(), addr, 0, "issuetriage:test:"+uuid.NewString()+":")
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Options{Driver: "mongo"})
	require.Error(t, err)

	s, err := Open(context.Background(), Options{Driver: DriverFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
}
