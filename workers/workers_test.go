package workers

import (
	"context"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/google/uuid"
)

// fakeStore implements services.PropertyStore for worker tests.
type fakeStore struct {
	active  []models.Property
	updated map[string]models.Property
}

func newFakeStore(active ...models.Property) *fakeStore {
	return &fakeStore{active: active, updated: make(map[string]models.Property)}
}

func (f *fakeStore) GetBySourceKey(ctx context.Context, source, externalID string) (*models.Property, error) {
	return nil, nil
}

func (f *fakeStore) GetBySourceURL(ctx context.Context, sourceURL string) (*models.Property, error) {
	return nil, nil
}

func (f *fakeStore) Create(ctx context.Context, p *models.Property) error { return nil }

func (f *fakeStore) Update(ctx context.Context, p *models.Property) error {
	f.updated[p.ExternalID] = *p
	return nil
}

func (f *fakeStore) ListActive(ctx context.Context) ([]models.Property, error) {
	out := make([]models.Property, len(f.active))
	copy(out, f.active)
	return out, nil
}

func (f *fakeStore) ListExpired(ctx context.Context, now time.Time) ([]models.Property, error) {
	return nil, nil
}

func (f *fakeStore) ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.Property, error) {
	return nil, nil
}

func (f *fakeStore) Stats(ctx context.Context, now time.Time) (*models.ListingStats, error) {
	return &models.ListingStats{}, nil
}

func (f *fakeStore) StatusCounts(ctx context.Context) (map[models.AvailabilityStatus]int, error) {
	return nil, nil
}

func activeProperty(externalID, sourceURL string) models.Property {
	scraped := time.Now().UTC().Add(-2 * time.Hour)
	return models.Property{
		ID:                 uuid.New(),
		ExternalID:         externalID,
		SourceURL:          sourceURL,
		Source:             "weeklymansion",
		Type:               models.TypeWeeklyMansion,
		PriceJPY:           100000,
		IsActive:           true,
		AvailabilityStatus: models.StatusUnknown,
		LastScrapedAt:      &scraped,
	}
}
