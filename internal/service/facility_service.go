package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/facility-booking-api/internal/dto"
	"github.com/noah-isme/facility-booking-api/internal/models"
	"github.com/noah-isme/facility-booking-api/pkg/cache"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
)

type facilityRepository interface {
	FindByID(ctx context.Context, id string) (*models.Facility, error)
	List(ctx context.Context, filter models.FacilityFilter) ([]models.Facility, int, error)
}

// FacilityService reads the facility registry through a read-through cache.
type FacilityService struct {
	repo   facilityRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewFacilityService constructs the service. A nil cache disables caching.
func NewFacilityService(repo facilityRepository, cacheSvc *CacheService, ttl time.Duration, logger *zap.Logger) *FacilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacilityService{repo: repo, cache: cacheSvc, ttl: ttl, logger: logger}
}

func facilityCacheKey(id string) string {
	return cache.Key("facility", id)
}

// Get returns a facility by id.
func (s *FacilityService) Get(ctx context.Context, id string) (*models.Facility, error) {
	facility, _, err := s.Lookup(ctx, id)
	return facility, err
}

// Lookup returns a facility and whether it was served from the cache.
func (s *FacilityService) Lookup(ctx context.Context, id string) (*models.Facility, bool, error) {
	if id == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "facility id is required")
	}

	var cached models.Facility
	if hit, _ := s.cache.Get(ctx, facilityCacheKey(id), &cached); hit {
		return &cached, true, nil
	}

	facility, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "facility not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load facility")
	}

	_ = s.cache.Set(ctx, facilityCacheKey(id), facility, s.ttl)
	return facility, false, nil
}

// List returns the facility catalogue. Listings bypass the cache.
func (s *FacilityService) List(ctx context.Context, query dto.FacilityQuery) ([]models.Facility, *models.Pagination, error) {
	filter := models.FacilityFilter{Type: query.Type, AvailableOnly: query.AvailableOnly, Page: query.Page, PageSize: query.PageSize}
	facilities, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list facilities")
	}
	page, size := normalisePage(filter.Page, filter.PageSize, 20, 100)
	return facilities, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Evict drops the cached copy of a facility so the next read goes to the registry.
func (s *FacilityService) Evict(ctx context.Context, id string, actor Actor) error {
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	if err := s.cache.Invalidate(ctx, facilityCacheKey(id)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evict facility cache")
	}
	s.logger.Info("facility cache evicted", zap.String("facility_id", id))
	return nil
}
