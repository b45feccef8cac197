package services

import (
	"context"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/models"
)

// PropertyStore is the canonical store surface the services depend on.
// *storage.PostgresStore satisfies it; tests use an in-memory fake.
type PropertyStore interface {
	GetBySourceKey(ctx context.Context, source, externalID string) (*models.Property, error)
	GetBySourceURL(ctx context.Context, sourceURL string) (*models.Property, error)
	Create(ctx context.Context, p *models.Property) error
	Update(ctx context.Context, p *models.Property) error
	ListActive(ctx context.Context) ([]models.Property, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.Property, error)
	ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.Property, error)
	Stats(ctx context.Context, now time.Time) (*models.ListingStats, error)
	StatusCounts(ctx context.Context) (map[models.AvailabilityStatus]int, error)
}
