package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/jobcoach-api/internal/dto"
	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
)

type mapCacheRepo struct {
	data     map[string][]byte
	ttls     map[string]time.Duration
	patterns []string
	getErr   error
}

func newMapCacheRepo() *mapCacheRepo {
	return &mapCacheRepo{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mapCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *mapCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	m.data = map[string][]byte{}
	return nil
}

func TestCacheServiceHitMissAndInvalidate(t *testing.T) {
	repo := newMapCacheRepo()
	svc := NewCacheService(repo, NewMetricsService(), 0, nil, true)
	ctx := context.Background()

	var stats dto.AssignmentStats
	hit, err := svc.Get(ctx, statsCacheKey, &stats)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, statsCacheKey, &dto.AssignmentStats{TotalUsers: 7}, 0))
	assert.Equal(t, time.Minute, repo.ttls[statsCacheKey])

	hit, err = svc.Get(ctx, statsCacheKey, &stats)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, stats.TotalUsers)

	require.NoError(t, svc.Invalidate(ctx, statsCachePattern))
	assert.Equal(t, []string{statsCachePattern}, repo.patterns)
	hit, _ = svc.Get(ctx, statsCacheKey, &stats)
	assert.False(t, hit)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMapCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)

	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.data)
	assert.False(t, svc.Enabled())

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceSurfacesRepositoryErrors(t *testing.T) {
	repo := newMapCacheRepo()
	repo.getErr = errors.New("redis down")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.False(t, hit)
	assert.Error(t, err)
}
