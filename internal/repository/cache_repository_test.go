package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "facility-booking:facility:fac-1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "facility-booking:facility:fac-1", map[string]string{"id": "fac-1"}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "facility-booking:facility:fac-1"))
	assert.NoError(t, repo.Close())
}
