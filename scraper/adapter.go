package scraper

import (
	"context"
	"net/http"

	"github.com/GraysonBannister/live-japan-sub000/config"
	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/GraysonBannister/live-japan-sub000/ratelimit"
)

// Adapter fetches raw listing candidates from one external site.
// Implementations are independently swappable; the orchestrator only
// depends on this capability.
type Adapter interface {
	ID() string
	FetchListings(ctx context.Context) ([]models.RawListing, error)
}

// NewAdapter builds the adapter configured for a site. The rate limiter
// is shared by every adapter that hits the same host.
func NewAdapter(siteCfg *config.SiteConfig, client *http.Client, limiter *ratelimit.Limiter, proxyURL string) Adapter {
	switch siteCfg.Transport {
	case "api":
		return NewAPIAdapter(siteCfg, client, limiter)
	case "browser":
		return NewBrowserAdapter(siteCfg, limiter, proxyURL)
	default:
		return NewStaticAdapter(siteCfg, client, limiter)
	}
}

// Result is the per-record outcome of parsing one listing candidate.
// Rejection (implausible price, unusable page) is a filtering decision,
// not an error; real failures come back on the error path instead.
type Result struct {
	Listing  models.RawListing
	Rejected bool
	Reason   string
}

func accepted(l models.RawListing) Result {
	return Result{Listing: l}
}

func rejected(reason string) Result {
	return Result{Rejected: true, Reason: reason}
}

func listingType(s string) models.ListingType {
	switch models.ListingType(s) {
	case models.TypeWeeklyMansion, models.TypeMonthlyMansion, models.TypeApartment:
		return models.ListingType(s)
	default:
		return models.TypeApartment
	}
}
