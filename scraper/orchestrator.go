package scraper

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/config"
	"github.com/GraysonBannister/live-japan-sub000/httputil"
	"github.com/GraysonBannister/live-japan-sub000/identity"
	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/GraysonBannister/live-japan-sub000/ratelimit"
)

// SnapshotStore persists the last good scrape so a fully failed run can
// fall back to recent data instead of serving nothing.
type SnapshotStore interface {
	Save(ctx context.Context, listings []models.RawListing) error
	Load(ctx context.Context) ([]models.RawListing, error)
}

// Orchestrator runs every configured site adapter in sequence, deduplicates
// the combined results, and escalates to browser transport when the
// aggregate yield looks like bot defenses ate the run.
type Orchestrator struct {
	adapters  []Adapter
	fallbacks map[string]Adapter
	snapshot  SnapshotStore
	minYield  int
}

func NewOrchestrator(cfg *config.Config, clients *httputil.Clients, snapshot SnapshotStore) *Orchestrator {
	o := &Orchestrator{
		fallbacks: make(map[string]Adapter),
		snapshot:  snapshot,
		minYield:  cfg.Scraper.MinYield,
	}

	ids := make([]string, 0, len(cfg.Sites))
	for id := range cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		site := cfg.Sites[id]
		limiter := ratelimit.New(time.Duration(site.RateLimitMS) * time.Millisecond)
		o.adapters = append(o.adapters, NewAdapter(site, clients.Scraping, limiter, cfg.Proxy.URL))

		if site.BrowserFallback && site.Transport != "browser" {
			o.fallbacks[id] = NewBrowserAdapter(site, limiter, cfg.Proxy.URL)
		}
	}

	return o
}

// ScrapeAll runs every adapter serially. A single failing source never
// aborts the run; its error lands in the run record instead.
func (o *Orchestrator) ScrapeAll(ctx context.Context) ([]models.RawListing, *models.ScrapeRun) {
	run := &models.ScrapeRun{
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}

	var all []models.RawListing
	var failures []string
	yields := make(map[string]int)
	failed := make(map[string]bool)

	for _, adapter := range o.adapters {
		if ctx.Err() != nil {
			break
		}
		listings, err := adapter.FetchListings(ctx)
		if err != nil {
			log.Printf("source %s failed: %v", adapter.ID(), err)
			run.SourcesFailed++
			failed[adapter.ID()] = true
			failures = append(failures, fmt.Sprintf("%s: %v", adapter.ID(), err))
			continue
		}
		log.Printf("source %s yielded %d listings", adapter.ID(), len(listings))
		run.SourcesOK++
		yields[adapter.ID()] = len(listings)
		all = append(all, listings...)
	}

	if len(all) < o.minYield && len(o.fallbacks) > 0 {
		all = append(all, o.escalate(ctx, run, yields, failed, &failures)...)
	}

	all = dedupe(all)
	run.ListingsFound = len(all)

	finished := time.Now().UTC()
	run.FinishedAt = &finished

	switch {
	case run.SourcesOK == 0:
		run.Status = models.RunStatusFailed
		run.ErrorMessage = strings.Join(failures, "; ")
		if fallback := o.loadFallback(ctx); fallback != nil {
			log.Printf("all sources failed, using snapshot with %d listings", len(fallback))
			run.UsedFallback = true
			run.ListingsFound = len(fallback)
			return fallback, run
		}
	case run.SourcesFailed > 0:
		run.Status = models.RunStatusPartial
		run.ErrorMessage = strings.Join(failures, "; ")
	default:
		run.Status = models.RunStatusCompleted
	}

	if len(all) > 0 && o.snapshot != nil {
		if err := o.snapshot.Save(ctx, all); err != nil {
			log.Printf("snapshot save failed: %v", err)
		}
	}

	return all, run
}

// escalate retries low-yield or failed sources on browser transport. A site
// only gets retried when its cheap transport produced nothing useful.
func (o *Orchestrator) escalate(ctx context.Context, run *models.ScrapeRun, yields map[string]int, failed map[string]bool, failures *[]string) []models.RawListing {
	var extra []models.RawListing

	ids := make([]string, 0, len(o.fallbacks))
	for id := range o.fallbacks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if yields[id] > 0 {
			continue
		}
		log.Printf("escalating %s to browser transport", id)
		listings, err := o.fallbacks[id].FetchListings(ctx)
		if err != nil {
			log.Printf("browser escalation for %s failed: %v", id, err)
			*failures = append(*failures, fmt.Sprintf("%s (browser): %v", id, err))
			continue
		}
		log.Printf("browser escalation for %s yielded %d listings", id, len(listings))
		if len(listings) > 0 && failed[id] {
			// The cheap transport counted as failed; the browser rescued it.
			run.SourcesOK++
			run.SourcesFailed--
			failed[id] = false
		}
		extra = append(extra, listings...)
	}

	return extra
}

func (o *Orchestrator) loadFallback(ctx context.Context) []models.RawListing {
	if o.snapshot == nil {
		return nil
	}
	listings, err := o.snapshot.Load(ctx)
	if err != nil {
		log.Printf("snapshot load failed: %v", err)
		return nil
	}
	if len(listings) == 0 {
		return nil
	}
	return listings
}

// dedupe drops listings whose canonical source URL was already seen.
// First occurrence wins so earlier sources take precedence.
func dedupe(listings []models.RawListing) []models.RawListing {
	seen := make(map[string]bool, len(listings))
	out := listings[:0]
	for _, l := range listings {
		key := identity.CanonicalURL(l.SourceURL)
		if key == "" {
			key = identity.ExternalKey(l.Source, l.ExternalID)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}
