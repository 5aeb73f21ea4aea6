package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/chat-relay/models"
	"github.com/upb/chat-relay/repositories"
	"go.uber.org/zap"
)

func newTestRepository(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	repo := NewCacheRepository(NewClient(server.Addr(), "", 0), "test", zap.NewNop())
	t.Cleanup(func() { _ = repo.Close() })
	return repo, server
}

func TestCacheRepository_LatestMiss(t *testing.T) {
	repo, _ := newTestRepository(t)

	entry, err := repo.Latest(context.Background(), "never asked")
	assert.Nil(t, entry)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestCacheRepository_InsertThenLatest(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	first := models.NewCacheEntry("hello", "hi", "jules")
	require.NoError(t, repo.Insert(ctx, first))
	second := models.NewCacheEntry("hello", "hey", "openai")
	require.NoError(t, repo.Insert(ctx, second))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	latest, err := repo.Latest(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.ID)
	assert.Equal(t, "hey", latest.Reply)
	assert.Equal(t, "openai", latest.Provider)
}

func TestCacheRepository_ExactMatchOnly(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, models.NewCacheEntry("Hello", "hi", "jules")))

	for _, prompt := range []string{"hello", "Hello ", " Hello", "HELLO"} {
		_, err := repo.Latest(ctx, prompt)
		assert.ErrorIs(t, err, repositories.ErrNotFound, "prompt %q", prompt)
	}
}

func TestCacheRepository_HistoryIsAppendOnly(t *testing.T) {
	repo, server := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, models.NewCacheEntry("q", "a1", "jules")))
	require.NoError(t, repo.Insert(ctx, models.NewCacheEntry("q", "a2", "jules")))

	items, err := server.List(repo.promptKey("q"))
	require.NoError(t, err)
	require.Len(t, items, 2)

	var oldest models.CacheEntry
	require.NoError(t, json.Unmarshal([]byte(items[1]), &oldest))
	assert.Equal(t, "a1", oldest.Reply)
}

func TestCacheRepository_DigestCollisionGuard(t *testing.T) {
	repo, server := newTestRepository(t)

	raw, err := json.Marshal(models.NewCacheEntry("other prompt", "reply", "jules"))
	require.NoError(t, err)
	_, err = server.Lpush(repo.promptKey("my prompt"), string(raw))
	require.NoError(t, err)

	_, err = repo.Latest(context.Background(), "my prompt")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestCacheRepository_ConcurrentInserts(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Insert(ctx, models.NewCacheEntry("same", "reply", "ollama")))
		}()
	}
	wg.Wait()

	latest, err := repo.Latest(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, "reply", latest.Reply)
}

func TestCacheRepository_Unavailable(t *testing.T) {
	repo, server := newTestRepository(t)
	ctx := context.Background()
	server.Close()

	assert.Error(t, repo.Ping(ctx))

	_, err := repo.Latest(ctx, "hello")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repositories.ErrNotFound)

	assert.Error(t, repo.Insert(ctx, models.NewCacheEntry("hello", "hi", "jules")))
}

func TestCacheRepository_Ping(t *testing.T) {
	repo, _ := newTestRepository(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
