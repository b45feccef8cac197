package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/freshness"
	"github.com/GraysonBannister/live-japan-sub000/models"
)

const (
	// scoreWriteHysteresis avoids write storms on negligible drift.
	scoreWriteHysteresis = 5
	lowConfidenceFloor   = 20
	staleAfter           = 30 * 24 * time.Hour
	stalePenalty         = 10
)

// MaintenanceService runs the daily freshness pass over the full active set
// and answers the statistics query.
type MaintenanceService struct {
	store PropertyStore
}

func NewMaintenanceService(store PropertyStore) *MaintenanceService {
	return &MaintenanceService{store: store}
}

// RunDaily executes the three maintenance steps in order. Per-record
// failures are collected; only an unreachable store aborts the run.
func (s *MaintenanceService) RunDaily(ctx context.Context) (*models.MaintenanceSummary, error) {
	summary := &models.MaintenanceSummary{}
	now := time.Now().UTC()

	if err := s.hideExpired(ctx, now, summary); err != nil {
		return nil, fmt.Errorf("hide expired: %w", err)
	}
	if err := s.recomputeScores(ctx, now, summary); err != nil {
		return nil, fmt.Errorf("recompute scores: %w", err)
	}
	if err := s.flagStale(ctx, now, summary); err != nil {
		return nil, fmt.Errorf("flag stale: %w", err)
	}

	log.Printf("maintenance done: %d hidden, %d scores updated, %d low confidence, %d stale checked, %d errors",
		summary.ListingsHidden, summary.ConfidenceScoresUpdated, summary.LowConfidenceFlagged,
		summary.StaleListingsChecked, len(summary.Errors))
	return summary, nil
}

// Step 1: deactivate listings whose auto-hide date has passed.
func (s *MaintenanceService) hideExpired(ctx context.Context, now time.Time, summary *models.MaintenanceSummary) error {
	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return err
	}

	for i := range expired {
		p := &expired[i]
		if !freshness.ShouldAutoHide(p, now) {
			continue
		}
		p.IsActive = false
		p.AvailabilityStatus = models.StatusProbablyUnavailable
		if err := s.store.Update(ctx, p); err != nil {
			summary.Errors = append(summary.Errors, models.RecordError{
				ExternalID: p.ExternalID,
				Message:    fmt.Sprintf("hide: %v", err),
			})
			continue
		}
		summary.ListingsHidden++
	}
	return nil
}

// Step 2: recompute confidence for every remaining active listing. Writes
// only happen when the score moved enough to matter.
func (s *MaintenanceService) recomputeScores(ctx context.Context, now time.Time, summary *models.MaintenanceSummary) error {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return err
	}

	for i := range active {
		p := &active[i]
		newScore := freshness.CalculateConfidenceScore(p, now)

		if newScore < lowConfidenceFloor {
			summary.LowConfidenceFlagged++
		}

		if p.StatusConfidenceScore != nil && abs(newScore-*p.StatusConfidenceScore) < scoreWriteHysteresis {
			continue
		}

		p.StatusConfidenceScore = &newScore
		if err := s.store.Update(ctx, p); err != nil {
			summary.Errors = append(summary.Errors, models.RecordError{
				ExternalID: p.ExternalID,
				Message:    fmt.Sprintf("score: %v", err),
			})
			continue
		}
		summary.ConfidenceScoresUpdated++
	}
	return nil
}

// Step 3: mark listings not seen in 30+ days as probably unavailable.
// The score decrement here is deliberately unclamped; step 2's full
// recompute restores the invariant on the next pass.
func (s *MaintenanceService) flagStale(ctx context.Context, now time.Time, summary *models.MaintenanceSummary) error {
	stale, err := s.store.ListStaleActive(ctx, now.Add(-staleAfter))
	if err != nil {
		return err
	}

	for i := range stale {
		p := &stale[i]
		p.AvailabilityStatus = models.StatusProbablyUnavailable
		if p.StatusConfidenceScore != nil {
			decremented := *p.StatusConfidenceScore - stalePenalty
			p.StatusConfidenceScore = &decremented
		}
		if err := s.store.Update(ctx, p); err != nil {
			summary.Errors = append(summary.Errors, models.RecordError{
				ExternalID: p.ExternalID,
				Message:    fmt.Sprintf("stale: %v", err),
			})
			continue
		}
		summary.StaleListingsChecked++
	}
	return nil
}

// Statistics answers the read-only aggregate query without mutating
// anything.
func (s *MaintenanceService) Statistics(ctx context.Context) (*models.ListingStats, map[models.AvailabilityStatus]int, error) {
	stats, err := s.store.Stats(ctx, time.Now().UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("stats: %w", err)
	}
	byStatus, err := s.store.StatusCounts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("status counts: %w", err)
	}
	return stats, byStatus, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
