package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/google/uuid"
)

// memStore is an in-memory PropertyStore for service tests.
type memStore struct {
	properties map[uuid.UUID]*models.Property
	writes     int
	failUpdate map[string]error
	failList   error
}

func newMemStore() *memStore {
	return &memStore{
		properties: make(map[uuid.UUID]*models.Property),
		failUpdate: make(map[string]error),
	}
}

func (m *memStore) GetBySourceKey(ctx context.Context, source, externalID string) (*models.Property, error) {
	for _, p := range m.properties {
		if p.Source == source && p.ExternalID == externalID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetBySourceURL(ctx context.Context, sourceURL string) (*models.Property, error) {
	for _, p := range m.properties {
		if p.SourceURL == sourceURL {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) Create(ctx context.Context, p *models.Property) error {
	for _, existing := range m.properties {
		if existing.Source == p.Source && existing.ExternalID == p.ExternalID {
			return errors.New("duplicate key")
		}
	}
	clone := *p
	m.properties[p.ID] = &clone
	m.writes++
	return nil
}

func (m *memStore) Update(ctx context.Context, p *models.Property) error {
	if err := m.failUpdate[p.ExternalID]; err != nil {
		return err
	}
	if _, ok := m.properties[p.ID]; !ok {
		return errors.New("not found")
	}
	clone := *p
	m.properties[p.ID] = &clone
	m.writes++
	return nil
}

func (m *memStore) ListActive(ctx context.Context) ([]models.Property, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	var out []models.Property
	for _, p := range m.properties {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	sortByExternalID(out)
	return out, nil
}

func (m *memStore) ListExpired(ctx context.Context, now time.Time) ([]models.Property, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	var out []models.Property
	for _, p := range m.properties {
		if p.IsActive && p.AutoHideAfter != nil && p.AutoHideAfter.Before(now) {
			out = append(out, *p)
		}
	}
	sortByExternalID(out)
	return out, nil
}

func (m *memStore) ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.Property, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	var out []models.Property
	for _, p := range m.properties {
		if p.IsActive && (p.LastScrapedAt == nil || p.LastScrapedAt.Before(cutoff)) {
			out = append(out, *p)
		}
	}
	sortByExternalID(out)
	return out, nil
}

func (m *memStore) Stats(ctx context.Context, now time.Time) (*models.ListingStats, error) {
	var st models.ListingStats
	for _, p := range m.properties {
		if p.IsActive {
			st.TotalActive++
		} else {
			st.TotalHidden++
		}
	}
	return &st, nil
}

func (m *memStore) StatusCounts(ctx context.Context) (map[models.AvailabilityStatus]int, error) {
	counts := make(map[models.AvailabilityStatus]int)
	for _, p := range m.properties {
		if p.IsActive {
			counts[p.AvailabilityStatus]++
		}
	}
	return counts, nil
}

func (m *memStore) byExternalID(externalID string) *models.Property {
	for _, p := range m.properties {
		if p.ExternalID == externalID {
			return p
		}
	}
	return nil
}

func sortByExternalID(properties []models.Property) {
	sort.Slice(properties, func(i, j int) bool {
		return properties[i].ExternalID < properties[j].ExternalID
	})
}
