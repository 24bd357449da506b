package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-booking-api/internal/dto"
	"github.com/noah-isme/facility-booking-api/internal/models"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
)

type facilityRepoStub struct {
	facilities map[string]*models.Facility
	findCalls  int
	listErr    error
}

func (s *facilityRepoStub) FindByID(ctx context.Context, id string) (*models.Facility, error) {
	s.findCalls++
	if f, ok := s.facilities[id]; ok {
		return f, nil
	}
	return nil, sql.ErrNoRows
}

func (s *facilityRepoStub) List(ctx context.Context, filter models.FacilityFilter) ([]models.Facility, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	var out []models.Facility
	for _, f := range s.facilities {
		out = append(out, *f)
	}
	return out, len(out), nil
}

// memoryCacheRepo round-trips values through JSON like the Redis repository.
type memoryCacheRepo struct {
	values  map[string][]byte
	deleted []string
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := r.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.values[key] = raw
	return nil
}

func (r *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(r.values, k)
		r.deleted = append(r.deleted, k)
	}
	return nil
}

func TestFacilityServiceGetReadsThroughCache(t *testing.T) {
	repo := &facilityRepoStub{facilities: map[string]*models.Facility{"fac-1": testFacility()}}
	cacheRepo := &memoryCacheRepo{values: map[string][]byte{}}
	cacheSvc := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	svc := NewFacilityService(repo, cacheSvc, time.Minute, zap.NewNop())

	first, err := svc.Get(context.Background(), "fac-1")
	require.NoError(t, err)
	second, err := svc.Get(context.Background(), "fac-1")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.findCalls)
	assert.Equal(t, first.OperatingHours, second.OperatingHours)
	assert.Equal(t, first.BookingRules, second.BookingRules)

	require.NoError(t, svc.Evict(context.Background(), "fac-1", admin))
	_, err = svc.Get(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.findCalls)

	assert.ErrorIs(t, svc.Evict(context.Background(), "fac-1", resident), appErrors.ErrForbidden)
}

func TestFacilityServiceGetWithoutCache(t *testing.T) {
	repo := &facilityRepoStub{facilities: map[string]*models.Facility{"fac-1": testFacility()}}
	svc := NewFacilityService(repo, nil, 0, nil)

	_, err := svc.Get(context.Background(), "fac-1")
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.findCalls)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFacilityServiceList(t *testing.T) {
	repo := &facilityRepoStub{facilities: map[string]*models.Facility{"fac-1": testFacility()}}
	svc := NewFacilityService(repo, nil, 0, nil)

	items, page, err := svc.List(context.Background(), dto.FacilityQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 20, page.PageSize)

	repo.listErr = errors.New("db down")
	_, _, err = svc.List(context.Background(), dto.FacilityQuery{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestFacilityServiceLookupReportsCacheHit(t *testing.T) {
	repo := &facilityRepoStub{facilities: map[string]*models.Facility{"fac-1": testFacility()}}
	cacheSvc := NewCacheService(&memoryCacheRepo{values: map[string][]byte{}}, nil, time.Minute, nil, true)
	svc := NewFacilityService(repo, cacheSvc, time.Minute, nil)

	_, hit, err := svc.Lookup(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = svc.Lookup(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.True(t, hit)

	_, _, err = svc.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
