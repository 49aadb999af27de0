package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmark/forensics/internal/config"
)

func sampleRecord() Record {
	return Record{
		ContentHash: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ContentType: "image",
		Verdict:     "ai",
		AIScore:     88,
		Confidence:  80,
		Result:      json.RawMessage(`{"verdict":"ai","aiScore":88}`),
	}
}

// exercise runs the behaviour every backend must share.
func exercise(t *testing.T, repo Repository) {
	ctx := context.Background()

	t.Run("Save generates ID and timestamp", func(t *testing.T) {
		saved, err := repo.Save(ctx, sampleRecord())
		require.NoError(t, err)

		_, err = uuid.Parse(saved.ID)
		assert.NoError(t, err)
		assert.False(t, saved.CreatedAt.IsZero())
		assert.Equal(t, "ai", saved.Verdict)
		assert.Equal(t, 88, saved.AIScore)
	})

	t.Run("Get returns saved record", func(t *testing.T) {
		saved, err := repo.Save(ctx, sampleRecord())
		require.NoError(t, err)

		got, err := repo.Get(ctx, saved.ID)
		require.NoError(t, err)

		assert.Equal(t, saved.ID, got.ID)
		assert.Equal(t, saved.ContentHash, got.ContentHash)
		assert.Equal(t, saved.ContentType, got.ContentType)
		assert.Equal(t, saved.Confidence, got.Confidence)
		assert.JSONEq(t, string(saved.Result), string(got.Result))
		assert.WithinDuration(t, saved.CreatedAt, got.CreatedAt, 0)
	})

	t.Run("Get returns ErrNotFound for unknown ID", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("IDs are unique", func(t *testing.T) {
		a, err := repo.Save(ctx, sampleRecord())
		require.NoError(t, err)
		b, err := repo.Save(ctx, sampleRecord())
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemory()
	defer repo.Close()
	exercise(t, repo)

	t.Run("Get returns copy, not reference", func(t *testing.T) {
		ctx := context.Background()
		saved, err := repo.Save(ctx, sampleRecord())
		require.NoError(t, err)

		first, _ := repo.Get(ctx, saved.ID)
		second, _ := repo.Get(ctx, saved.ID)

		first.Confidence = 1
		first.Result[0] = '['

		assert.Equal(t, 80, second.Confidence)
		assert.JSONEq(t, `{"verdict":"ai","aiScore":88}`, string(second.Result))
	})

	t.Run("concurrent access", func(t *testing.T) {
		ctx := context.Background()
		var wg sync.WaitGroup
		ids := make(chan string, 50)

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				saved, err := repo.Save(ctx, sampleRecord())
				if assert.NoError(t, err) {
					ids <- saved.ID
				}
			}()
		}
		wg.Wait()
		close(ids)

		for id := range ids {
			_, err := repo.Get(ctx, id)
			assert.NoError(t, err)
		}
	})
}

func TestSQLiteRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.db")
	repo, err := NewSQLite(path)
	require.NoError(t, err)
	defer repo.Close()

	exercise(t, repo)

	t.Run("survives reopen", func(t *testing.T) {
		ctx := context.Background()
		saved, err := repo.Save(ctx, sampleRecord())
		require.NoError(t, err)

		again, err := NewSQLite(path)
		require.NoError(t, err)
		defer again.Close()

		got, err := again.Get(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.ContentHash, got.ContentHash)
	})

	t.Run("requires path", func(t *testing.T) {
		_, err := NewSQLite("")
		assert.Error(t, err)
	})
}

func TestRedisRepository(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	repo, err := NewRedis(context.Background(), url, 0)
	require.NoError(t, err)
	defer repo.Close()

	exercise(t, repo)
}

func TestConnectRedis(t *testing.T) {
	t.Run("url", func(t *testing.T) {
		c, err := connectRedis("redis://:secret@cache:6380/2")
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, "cache:6380", c.Options().Addr)
		assert.Equal(t, 2, c.Options().DB)
		assert.Equal(t, "secret", c.Options().Password)
	})

	t.Run("host and port", func(t *testing.T) {
		c, err := connectRedis("localhost:6379")
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, "localhost:6379", c.Options().Addr)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := connectRedis("redis://cache:6379/notadb")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := connectRedis("")
		assert.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := Open(ctx, config.StorageConfig{Backend: config.BackendMemory})
		require.NoError(t, err)
		assert.NoError(t, repo.Ping(ctx))
	})

	t.Run("sqlite", func(t *testing.T) {
		repo, err := Open(ctx, config.StorageConfig{
			Backend:    config.BackendSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "r.db"),
		})
		require.NoError(t, err)
		defer repo.Close()
		assert.NoError(t, repo.Ping(ctx))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open(ctx, config.StorageConfig{Backend: "postgres"})
		assert.ErrorContains(t, err, "unknown storage backend")
	})
}
