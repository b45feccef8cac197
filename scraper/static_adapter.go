package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/config"
	"github.com/GraysonBannister/live-japan-sub000/extract"
	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/GraysonBannister/live-japan-sub000/ratelimit"
	"github.com/PuerkitoBio/goquery"
)

// StaticAdapter crawls a server-rendered site in two steps: the search
// page lists room cards, each card links to a detail page with the full
// fields.
type StaticAdapter struct {
	cfg     *config.SiteConfig
	client  *http.Client
	limiter *ratelimit.Limiter
}

func NewStaticAdapter(cfg *config.SiteConfig, client *http.Client, limiter *ratelimit.Limiter) *StaticAdapter {
	return &StaticAdapter{cfg: cfg, client: client, limiter: limiter}
}

func (a *StaticAdapter) ID() string {
	return a.cfg.ID
}

func (a *StaticAdapter) FetchListings(ctx context.Context) ([]models.RawListing, error) {
	doc, err := a.fetchDocument(ctx, a.cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("search page: %w", err)
	}

	type card struct {
		externalID string
		detailURL  string
	}
	var cards []card

	doc.Find("li.room-card").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Find("a.room-link").Attr("href")
		if href == "" {
			return
		}
		id, _ := s.Attr("data-room-id")
		cards = append(cards, card{externalID: id, detailURL: a.absoluteURL(href)})
	})

	log.Printf("[%s] search page: %d room cards", a.cfg.ID, len(cards))

	var listings []models.RawListing
	for _, c := range cards {
		res, err := a.parseDetail(ctx, c.externalID, c.detailURL)
		if err != nil {
			// One broken detail page must not sink the run.
			log.Printf("[%s] detail %s: %v", a.cfg.ID, c.detailURL, err)
			continue
		}
		if res.Rejected {
			log.Printf("[%s] rejected %s: %s", a.cfg.ID, c.detailURL, res.Reason)
			continue
		}
		listings = append(listings, res.Listing)
	}

	return listings, nil
}

// parseDetail fetches and parses one detail page. Missing optional
// selectors default to empty/zero values; only transport failures are
// errors.
func (a *StaticAdapter) parseDetail(ctx context.Context, externalID, detailURL string) (Result, error) {
	doc, err := a.fetchDocument(ctx, detailURL)
	if err != nil {
		return Result{}, err
	}
	return a.parseDetailDocument(doc, externalID, detailURL), nil
}

func (a *StaticAdapter) parseDetailDocument(doc *goquery.Document, externalID, detailURL string) Result {
	price := extract.PriceJPY(doc.Find(".room-price").Text())
	if !extract.PlausiblePrice(price) {
		return rejected(fmt.Sprintf("price %d outside plausible band", price))
	}

	if externalID == "" {
		externalID, _ = doc.Find("[data-room-id]").Attr("data-room-id")
	}

	access := doc.Find(".room-access").Text()

	listing := models.RawListing{
		ExternalID:     externalID,
		SourceURL:      detailURL,
		Source:         a.cfg.ID,
		Type:           listingType(a.cfg.ListingType),
		PartnerFeed:    a.cfg.PartnerFeed,
		PriceJPY:       price,
		NearestStation: extract.NearestStation(access),
		WalkTimeMin:    extract.WalkTimeMin(access),
		DescriptionEn:  strings.TrimSpace(doc.Find(".room-description-en").Text()),
		DescriptionJp:  strings.TrimSpace(doc.Find(".room-description-jp").Text()),
		Location:       strings.TrimSpace(doc.Find(".room-location").Text()),
		PageText:       doc.Find("body").Text(),
	}

	if txt := doc.Find(".room-fees .deposit").Text(); txt != "" {
		v := extract.PriceJPY(txt)
		listing.DepositJPY = &v
	}
	if txt := doc.Find(".room-fees .key-money").Text(); txt != "" {
		v := extract.PriceJPY(txt)
		listing.KeyMoneyJPY = &v
	}

	features := strings.ToLower(doc.Find(".room-features").Text())
	listing.Furnished = strings.Contains(features, "furnished") || strings.Contains(features, "家具付き")
	listing.ForeignerFriendly = strings.Contains(features, "foreigner friendly") || strings.Contains(features, "外国人可")

	doc.Find(".room-photos img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			listing.Photos = append(listing.Photos, a.absoluteURL(src))
		}
	})

	var tags []string
	doc.Find(".room-tags .tag").Each(func(_ int, s *goquery.Selection) {
		tags = append(tags, s.Text())
	})
	listing.Tags = extract.NormalizeTags(tags)

	doc.Find(".room-plans .plan").Each(func(_ int, s *goquery.Selection) {
		listing.PricingPlans = append(listing.PricingPlans, models.PricingPlan{
			Name:         strings.TrimSpace(s.Find(".plan-name").Text()),
			Duration:     strings.TrimSpace(s.Find(".plan-duration").Text()),
			MonthlyPrice: extract.PriceJPY(s.Find(".plan-price").Text()),
			InitialCost:  extract.PriceJPY(s.Find(".plan-initial").Text()),
		})
	})

	if txt := strings.TrimSpace(doc.Find(".room-available-from").Text()); txt != "" {
		if from, err := time.Parse("2006-01-02", txt); err == nil {
			listing.AvailableFrom = &from
		}
	}

	if m := doc.Find("#room-map"); m.Length() > 0 {
		if lat, lng, ok := parseLatLng(m); ok {
			listing.Lat = &lat
			listing.Lng = &lng
		}
	}

	return accepted(listing)
}

func (a *StaticAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	a.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func (a *StaticAdapter) absoluteURL(href string) string {
	base, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func parseLatLng(s *goquery.Selection) (float64, float64, bool) {
	latStr, _ := s.Attr("data-lat")
	lngStr, _ := s.Attr("data-lng")
	var lat, lng float64
	if _, err := fmt.Sscanf(latStr, "%f", &lat); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(lngStr, "%f", &lng); err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
