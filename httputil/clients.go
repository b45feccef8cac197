package httputil

import (
	"net/http"
	"net/url"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/config"
)

// Clients groups the outbound HTTP clients the pipeline uses. Scraping
// traffic can go through a forward proxy; API traffic (partner feeds,
// S3) goes direct.
type Clients struct {
	Scraping *http.Client
	API      *http.Client
}

// Per-request hard timeouts. A slow page fails locally and the run
// moves on; nothing retries at this layer.
const (
	scrapeTimeout = 20 * time.Second
	apiTimeout    = 30 * time.Second
)

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	scraping := &http.Client{
		Timeout:   scrapeTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Redirects on listing pages usually mean "listing gone";
			// surface the status code instead of following it.
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: apiTimeout},
	}
}
