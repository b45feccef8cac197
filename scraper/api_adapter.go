package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/config"
	"github.com/GraysonBannister/live-japan-sub000/extract"
	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/GraysonBannister/live-japan-sub000/ratelimit"
)

const (
	apiPageSize = 50

	// apiMaxPages bounds pagination so an API that never returns a
	// short page can't keep the adapter looping.
	apiMaxPages = 40
)

// APIAdapter pulls listings from a site's JSON search endpoint,
// paginating until a short page.
type APIAdapter struct {
	cfg     *config.SiteConfig
	client  *http.Client
	limiter *ratelimit.Limiter
}

func NewAPIAdapter(cfg *config.SiteConfig, client *http.Client, limiter *ratelimit.Limiter) *APIAdapter {
	return &APIAdapter{cfg: cfg, client: client, limiter: limiter}
}

func (a *APIAdapter) ID() string {
	return a.cfg.ID
}

func (a *APIAdapter) FetchListings(ctx context.Context) ([]models.RawListing, error) {
	var all []models.RawListing

	for page := 1; ; page++ {
		if page > apiMaxPages {
			log.Printf("[%s] stopping at page cap (%d pages)", a.cfg.ID, apiMaxPages)
			break
		}

		rooms, err := a.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(rooms) == 0 {
			break
		}

		for _, room := range rooms {
			res := a.convertRoom(room)
			if res.Rejected {
				log.Printf("[%s] rejected %s: %s", a.cfg.ID, room.ID, res.Reason)
				continue
			}
			all = append(all, res.Listing)
		}

		log.Printf("[%s] page %d: %d rooms (total kept: %d)", a.cfg.ID, page, len(rooms), len(all))

		if len(rooms) < apiPageSize {
			break
		}
	}

	return all, nil
}

func (a *APIAdapter) fetchPage(ctx context.Context, page int) ([]apiRoom, error) {
	a.limiter.Wait()

	url := fmt.Sprintf("%s?page=%d&per_page=%d", a.cfg.SearchURL, page, apiPageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Referer", a.cfg.BaseURL+"/")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search API error %d: %s", resp.StatusCode, string(body))
	}

	var result apiSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Rooms, nil
}

func (a *APIAdapter) convertRoom(r apiRoom) Result {
	price := r.MonthlyPrice
	if price == 0 {
		price = extract.PriceJPY(r.PriceText)
	}
	if !extract.PlausiblePrice(price) {
		return rejected(fmt.Sprintf("price %d outside plausible band", price))
	}

	listing := models.RawListing{
		ExternalID:        r.ID,
		SourceURL:         a.cfg.BaseURL + r.Path,
		Source:            a.cfg.ID,
		Type:              listingType(a.cfg.ListingType),
		PartnerFeed:       a.cfg.PartnerFeed,
		PriceJPY:          price,
		NearestStation:    r.Station,
		WalkTimeMin:       r.WalkMinutes,
		Furnished:         r.Furnished,
		ForeignerFriendly: r.ForeignerOK,
		Photos:            r.Photos,
		DescriptionEn:     r.DescriptionEn,
		DescriptionJp:     r.DescriptionJa,
		Location:          r.Area,
		Lat:               r.Lat,
		Lng:               r.Lng,
		Tags:              extract.NormalizeTags(r.Tags),
		PageText:          r.DescriptionEn + "\n" + r.DescriptionJa + "\n" + r.StatusText,
	}

	if r.Station == "" && r.AccessText != "" {
		listing.NearestStation = extract.NearestStation(r.AccessText)
	}
	if r.WalkMinutes == 0 {
		listing.WalkTimeMin = extract.WalkTimeMin(r.AccessText)
	}
	if r.Deposit != nil {
		listing.DepositJPY = r.Deposit
	}
	if r.KeyMoney != nil {
		listing.KeyMoneyJPY = r.KeyMoney
	}
	if r.AvailableFrom != "" {
		if from, err := time.Parse("2006-01-02", r.AvailableFrom); err == nil {
			listing.AvailableFrom = &from
		}
	}
	for _, p := range r.Plans {
		listing.PricingPlans = append(listing.PricingPlans, models.PricingPlan{
			Name:         p.Name,
			Duration:     p.Duration,
			MonthlyPrice: p.MonthlyPrice,
			InitialCost:  p.InitialCost,
		})
	}

	return accepted(listing)
}

type apiSearchResponse struct {
	Rooms []apiRoom `json:"rooms"`
	Total int       `json:"total"`
}

type apiRoom struct {
	ID            string    `json:"id"`
	Path          string    `json:"path"`
	MonthlyPrice  int       `json:"monthly_price"`
	PriceText     string    `json:"price_text"`
	Deposit       *int      `json:"deposit"`
	KeyMoney      *int      `json:"key_money"`
	Station       string    `json:"station"`
	WalkMinutes   int       `json:"walk_minutes"`
	AccessText    string    `json:"access_text"`
	Area          string    `json:"area"`
	Lat           *float64  `json:"lat"`
	Lng           *float64  `json:"lng"`
	Furnished     bool      `json:"furnished"`
	ForeignerOK   bool      `json:"foreigner_ok"`
	Photos        []string  `json:"photos"`
	DescriptionEn string    `json:"description_en"`
	DescriptionJa string    `json:"description_ja"`
	StatusText    string    `json:"status_text"`
	AvailableFrom string    `json:"available_from"`
	Tags          []string  `json:"tags"`
	Plans         []apiPlan `json:"plans"`
}

type apiPlan struct {
	Name         string `json:"name"`
	Duration     string `json:"duration"`
	MonthlyPrice int    `json:"monthly_price"`
	InitialCost  int    `json:"initial_cost"`
}
