package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admin-api/internal/models"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

type fakeCacheRepo struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	deletes []string
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{data: map[string][]byte{}}
}

func (f *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
		f.deletes = append(f.deletes, key)
	}
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.data {
		if strings.HasPrefix(key, prefix) {
			delete(f.data, key)
			f.deletes = append(f.deletes, key)
		}
	}
	return nil
}

func TestCachedLoadsOnceThenHits(t *testing.T) {
	cache := NewCacheService(newFakeCacheRepo(), NewMetricsService(), time.Minute, nil, true)
	loads := 0
	load := func(ctx context.Context) ([]string, error) {
		loads++
		return []string{"a", "b"}, nil
	}

	value, hit, err := cached(context.Background(), cache, "k", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"a", "b"}, value)

	value, hit, err = cached(context.Background(), cache, "k", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, value)
	assert.Equal(t, 1, loads)
}

func TestCacheFailuresAreIsolated(t *testing.T) {
	repo := newFakeCacheRepo()
	repo.getErr = errors.New("redis down")
	repo.setErr = errors.New("redis down")
	cache := NewCacheService(repo, nil, 0, nil, true)

	value, hit, err := cached(context.Background(), cache, "k", func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, value)
}

func TestDisabledCacheAlwaysLoads(t *testing.T) {
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, nil, 0, nil, false)

	_, _, err := cached(context.Background(), cache, "k", func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Empty(t, repo.data)
	cache.Invalidate(context.Background(), "k")
	assert.Empty(t, repo.deletes)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
}

func TestProgramStructureKey(t *testing.T) {
	assert.Equal(t, "tms:programs:42:structure", ProgramStructureKey(models.ID(42)))
}
