package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/freshness"
	"github.com/GraysonBannister/live-japan-sub000/identity"
	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/google/uuid"
)

// IngestService merges scraped listings into the canonical store. Merge is
// idempotent per key: re-running the same batch produces only skips.
type IngestService struct {
	store PropertyStore
}

func NewIngestService(store PropertyStore) *IngestService {
	return &IngestService{store: store}
}

// Ingest processes listings in orchestrator order. A failing record is
// recorded and the batch continues; only the caller decides whether the
// error list is fatal.
func (s *IngestService) Ingest(ctx context.Context, listings []models.RawListing) *models.IngestSummary {
	summary := &models.IngestSummary{}
	now := time.Now().UTC()

	for _, raw := range listings {
		created, err := s.mergeOne(ctx, &raw, now)
		if err != nil {
			log.Printf("ingest %s/%s: %v", raw.Source, raw.ExternalID, err)
			summary.Errors = append(summary.Errors, models.RecordError{
				ExternalID: raw.ExternalID,
				Message:    err.Error(),
			})
			continue
		}
		switch created {
		case mergeCreated:
			summary.Created++
		case mergeUpdated:
			summary.Updated++
		default:
			summary.Skipped++
		}
	}

	log.Printf("ingest done: %d created, %d updated, %d skipped, %d errors",
		summary.Created, summary.Updated, summary.Skipped, len(summary.Errors))
	return summary
}

type mergeOutcome int

const (
	mergeSkipped mergeOutcome = iota
	mergeCreated
	mergeUpdated
)

func (s *IngestService) mergeOne(ctx context.Context, raw *models.RawListing, now time.Time) (mergeOutcome, error) {
	// Lookup and storage share one key shape with the orchestrator's
	// dedup, so tracking params added between runs can't fork a row.
	raw.SourceURL = identity.CanonicalURL(raw.SourceURL)

	existing, err := s.store.GetBySourceKey(ctx, raw.Source, raw.ExternalID)
	if err != nil {
		return mergeSkipped, fmt.Errorf("get by key: %w", err)
	}
	if existing == nil {
		existing, err = s.store.GetBySourceURL(ctx, raw.SourceURL)
		if err != nil {
			return mergeSkipped, fmt.Errorf("get by url: %w", err)
		}
	}

	if existing == nil {
		p := newProperty(raw, now)
		if err := s.store.Create(ctx, p); err != nil {
			return mergeSkipped, fmt.Errorf("create: %w", err)
		}
		return mergeCreated, nil
	}

	if !contentChanged(existing, raw) {
		// Zero writes: an unchanged re-scrape leaves the row untouched.
		return mergeSkipped, nil
	}

	applyContent(existing, raw, now)
	if err := s.store.Update(ctx, existing); err != nil {
		return mergeSkipped, fmt.Errorf("update: %w", err)
	}
	return mergeUpdated, nil
}

// contentChanged compares the mutable content fields by exact equality.
func contentChanged(p *models.Property, raw *models.RawListing) bool {
	return p.PriceJPY != raw.PriceJPY ||
		p.DescriptionEn != raw.DescriptionEn ||
		p.DescriptionJp != raw.DescriptionJp ||
		p.Furnished != raw.Furnished ||
		p.ForeignerFriendly != raw.ForeignerFriendly ||
		p.PartnerFeed != raw.PartnerFeed
}

func newProperty(raw *models.RawListing, now time.Time) *models.Property {
	p := &models.Property{
		ID:                 uuid.New(),
		ExternalID:         raw.ExternalID,
		SourceURL:          raw.SourceURL,
		Source:             raw.Source,
		Type:               raw.Type,
		IsActive:           true,
		VerificationStatus: models.VerificationUnverified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	applyContent(p, raw, now)
	p.AvailabilityStatus = freshness.DetermineAvailabilityStatus(raw.PageText, &now, now)
	return p
}

// applyContent copies the scraped content fields and the scrape-derived
// freshness stamps. Score and active/hidden state stay untouched here;
// those belong to the maintenance job.
func applyContent(p *models.Property, raw *models.RawListing, now time.Time) {
	p.PriceJPY = raw.PriceJPY
	p.DepositJPY = raw.DepositJPY
	p.KeyMoneyJPY = raw.KeyMoneyJPY
	p.NearestStation = raw.NearestStation
	p.WalkTimeMin = raw.WalkTimeMin
	p.Furnished = raw.Furnished
	p.ForeignerFriendly = raw.ForeignerFriendly
	p.PartnerFeed = raw.PartnerFeed
	p.Photos = raw.Photos
	p.DescriptionEn = raw.DescriptionEn
	p.DescriptionJp = raw.DescriptionJp
	p.Location = raw.Location
	p.Lat = raw.Lat
	p.Lng = raw.Lng
	p.PricingPlans = raw.PricingPlans
	p.Tags = raw.Tags
	p.AvailableFrom = raw.AvailableFrom

	p.LastScrapedAt = &now
	hideAfter := freshness.CalculateAutoHideDate(now, p.Type)
	p.AutoHideAfter = &hideAfter

	hash := freshness.ContentHash(raw.PriceJPY, raw.DepositJPY, raw.KeyMoneyJPY, raw.DescriptionEn, raw.DescriptionJp, raw.AvailableFrom)
	if hash != p.ContentHash {
		p.ContentHash = hash
		p.LastContentChangeAt = &now
	}
	p.UpdatedAt = now
}
