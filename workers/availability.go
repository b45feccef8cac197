package workers

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/freshness"
	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/GraysonBannister/live-japan-sub000/services"
)

const (
	availabilityBodyLimit = 500 * 1024
	availabilityDelay     = 500 * time.Millisecond
)

// AvailabilityWorker re-checks active listing pages between scrape runs and
// refreshes availability status from the live page text.
type AvailabilityWorker struct {
	store     services.PropertyStore
	client    *http.Client
	triggerCh chan struct{}
}

func NewAvailabilityWorker(store services.PropertyStore, client *http.Client) *AvailabilityWorker {
	return &AvailabilityWorker{
		store:     store,
		client:    client,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run a batch immediately.
func (w *AvailabilityWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *AvailabilityWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("availability worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("availability worker triggered manually")
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *AvailabilityWorker) processBatch(ctx context.Context, batchSize int) {
	listings, err := w.store.ListActive(ctx)
	if err != nil {
		log.Printf("availability: query error: %v", err)
		return
	}
	if len(listings) > batchSize {
		listings = listings[:batchSize]
	}
	if len(listings) == 0 {
		return
	}

	log.Printf("availability: checking %d listings", len(listings))

	var checked, confirmed, gone int
	for i := range listings {
		if ctx.Err() != nil {
			return
		}
		p := &listings[i]
		if p.SourceURL == "" {
			continue
		}

		status, err := w.checkOne(ctx, p)
		if err != nil {
			log.Printf("availability: %s: %v", p.SourceURL, err)
			continue
		}
		checked++

		now := time.Now().UTC()
		changed := status != p.AvailabilityStatus
		p.AvailabilityStatus = status

		switch status {
		case models.StatusAvailable, models.StatusLikelyAvailable:
			p.LastConfirmedAvailableAt = &now
			confirmed++
			changed = true
		case models.StatusUnavailable:
			gone++
		}

		if changed {
			if err := w.store.Update(ctx, p); err != nil {
				log.Printf("availability: update %s: %v", p.ExternalID, err)
			}
		}

		time.Sleep(availabilityDelay)
	}

	log.Printf("availability: checked %d, confirmed %d, gone %d", checked, confirmed, gone)
}

func (w *AvailabilityWorker) checkOne(ctx context.Context, p *models.Property) (models.AvailabilityStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.SourceURL, nil)
	if err != nil {
		return models.StatusUnknown, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := w.client.Do(req)
	if err != nil {
		return models.StatusUnknown, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return models.StatusUnavailable, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// Listing pages that redirect usually send visitors back to search.
		return models.StatusUnavailable, nil
	case resp.StatusCode != http.StatusOK:
		return models.StatusUnknown, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, availabilityBodyLimit))
	if err != nil {
		return models.StatusUnknown, err
	}

	now := time.Now().UTC()
	return freshness.DetermineAvailabilityStatus(string(body), p.LastScrapedAt, now), nil
}
