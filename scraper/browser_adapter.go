package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/config"
	"github.com/GraysonBannister/live-japan-sub000/extract"
	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/GraysonBannister/live-japan-sub000/ratelimit"
	"github.com/playwright-community/playwright-go"
)

const browserNavTimeoutMS = 60000

// BrowserAdapter drives a headless Chromium session for JS-rendered or
// bot-defended sites. The browser context is configured to look like an
// ordinary Japanese desktop visitor: real user agent, viewport, locale,
// timezone, and the automation fingerprint disabled.
type BrowserAdapter struct {
	cfg      *config.SiteConfig
	limiter  *ratelimit.Limiter
	proxyURL string

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	bctx        playwright.BrowserContext
	initialized bool
}

func NewBrowserAdapter(cfg *config.SiteConfig, limiter *ratelimit.Limiter, proxyURL string) *BrowserAdapter {
	return &BrowserAdapter{cfg: cfg, limiter: limiter, proxyURL: proxyURL}
}

func (a *BrowserAdapter) ID() string {
	return a.cfg.ID
}

func (a *BrowserAdapter) FetchListings(ctx context.Context) ([]models.RawListing, error) {
	if err := a.ensureBrowser(); err != nil {
		return nil, err
	}
	defer a.Close()

	page, err := a.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	a.limiter.Wait()

	log.Printf("[%s] navigating to %s", a.cfg.ID, a.cfg.SearchURL)
	_, err = page.Goto(a.cfg.SearchURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(browserNavTimeoutMS),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, fmt.Errorf("navigation: %w", err)
	}

	a.humanDelay(2000, 4000)
	a.handleConsent(page)
	a.simulateHumanBehavior(page)

	content, _ := page.Content()
	if trigger := detectBotBlock(content); trigger != "" {
		return nil, fmt.Errorf("bot defense triggered: %s", trigger)
	}

	// Scroll a few times so lazy-loaded cards render.
	for i := 0; i < 4; i++ {
		page.Evaluate(`window.scrollBy(0, window.innerHeight)`)
		a.humanDelay(800, 1500)
	}

	return a.extractListings(page)
}

func (a *BrowserAdapter) ensureBrowser() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return nil
	}

	var err error
	a.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if a.proxyURL != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: a.proxyURL}
	}

	a.browser, err = a.pw.Chromium.Launch(launchOpts)
	if err != nil {
		a.pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	a.bctx, err = a.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:  playwright.String(browserUserAgent),
		Viewport:   &playwright.Size{Width: 1366, Height: 768},
		Locale:     playwright.String("ja-JP"),
		TimezoneId: playwright.String("Asia/Tokyo"),
	})
	if err != nil {
		a.browser.Close()
		a.pw.Stop()
		return fmt.Errorf("new context: %w", err)
	}

	a.initialized = true
	return nil
}

func (a *BrowserAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bctx != nil {
		a.bctx.Close()
		a.bctx = nil
	}
	if a.browser != nil {
		a.browser.Close()
		a.browser = nil
	}
	if a.pw != nil {
		a.pw.Stop()
		a.pw = nil
	}
	a.initialized = false
}

// extractListings pulls the rendered room cards out of the DOM in one
// Evaluate round trip.
func (a *BrowserAdapter) extractListings(page playwright.Page) ([]models.RawListing, error) {
	result, err := page.Evaluate(`
		JSON.stringify(Array.from(document.querySelectorAll('[data-room-id]')).map(el => ({
			id: el.getAttribute('data-room-id'),
			href: el.querySelector('a') ? el.querySelector('a').href : '',
			price: el.querySelector('.price') ? el.querySelector('.price').textContent : '',
			access: el.querySelector('.access') ? el.querySelector('.access').textContent : '',
			area: el.querySelector('.area') ? el.querySelector('.area').textContent : '',
			text: el.textContent,
			photos: Array.from(el.querySelectorAll('img')).map(i => i.src)
		})))`)
	if err != nil {
		return nil, fmt.Errorf("extract cards: %w", err)
	}

	str, ok := result.(string)
	if !ok || str == "" {
		return nil, fmt.Errorf("unexpected evaluate result %T", result)
	}

	var cards []browserCard
	if err := json.Unmarshal([]byte(str), &cards); err != nil {
		return nil, fmt.Errorf("decode cards: %w", err)
	}

	var listings []models.RawListing
	for _, c := range cards {
		res := a.convertCard(c)
		if res.Rejected {
			log.Printf("[%s] rejected %s: %s", a.cfg.ID, c.ID, res.Reason)
			continue
		}
		listings = append(listings, res.Listing)
	}

	log.Printf("[%s] extracted %d listings from %d cards", a.cfg.ID, len(listings), len(cards))
	return listings, nil
}

func (a *BrowserAdapter) convertCard(c browserCard) Result {
	price := extract.PriceJPY(c.Price)
	if !extract.PlausiblePrice(price) {
		return rejected(fmt.Sprintf("price %d outside plausible band", price))
	}

	sourceURL := c.Href
	if sourceURL == "" {
		sourceURL = fmt.Sprintf("%s/rooms/%s", a.cfg.BaseURL, c.ID)
	}

	lower := strings.ToLower(c.Text)
	return accepted(models.RawListing{
		ExternalID:        c.ID,
		SourceURL:         sourceURL,
		Source:            a.cfg.ID,
		Type:              listingType(a.cfg.ListingType),
		PartnerFeed:       a.cfg.PartnerFeed,
		PriceJPY:          price,
		NearestStation:    extract.NearestStation(c.Access),
		WalkTimeMin:       extract.WalkTimeMin(c.Access),
		Furnished:         strings.Contains(lower, "furnished") || strings.Contains(c.Text, "家具付き"),
		ForeignerFriendly: strings.Contains(lower, "foreigner friendly") || strings.Contains(c.Text, "外国人可"),
		Photos:            c.Photos,
		Location:          strings.TrimSpace(c.Area),
		PageText:          c.Text,
	})
}

func (a *BrowserAdapter) handleConsent(page playwright.Page) {
	consentSelectors := []string{
		"button:has-text('同意する')",
		"button:has-text('Accept')",
		"button:has-text('Agree')",
		"button[id*='accept']",
		"#didomi-notice-agree-button",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("[%s] clicking consent button: %s", a.cfg.ID, selector)
			btn.Click()
			page.WaitForTimeout(1500)
			break
		}
	}
}

func (a *BrowserAdapter) simulateHumanBehavior(page playwright.Page) {
	page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	page.WaitForTimeout(float64(150 + rand.Intn(300)))
	page.Mouse().Move(float64(400+rand.Intn(300)), float64(300+rand.Intn(200)))
	page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, 100+rand.Intn(300)))
}

func (a *BrowserAdapter) humanDelay(minMs, maxMs int) {
	time.Sleep(time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond)
}

func detectBotBlock(content string) string {
	triggers := []string{
		"Request unsuccessful. Incapsula",
		"Incapsula incident ID",
		"Access Denied",
		"This request was blocked",
		"captcha",
	}
	for _, t := range triggers {
		if strings.Contains(content, t) {
			return t
		}
	}
	return ""
}

type browserCard struct {
	ID     string   `json:"id"`
	Href   string   `json:"href"`
	Price  string   `json:"price"`
	Access string   `json:"access"`
	Area   string   `json:"area"`
	Text   string   `json:"text"`
	Photos []string `json:"photos"`
}
