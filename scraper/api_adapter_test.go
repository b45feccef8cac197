package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/config"
	"github.com/GraysonBannister/live-japan-sub000/ratelimit"
)

func TestAPIAdapterPagination(t *testing.T) {
	// Page 1 is full, page 2 is short, so exactly two requests happen.
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		page := r.URL.Query().Get("page")

		var rooms []apiRoom
		switch page {
		case "1":
			for i := 0; i < apiPageSize; i++ {
				rooms = append(rooms, apiRoom{
					ID:           fmt.Sprintf("ms-%03d", i),
					Path:         fmt.Sprintf("/rooms/ms-%03d", i),
					MonthlyPrice: 100000 + i,
					Station:      "品川",
					WalkMinutes:  8,
				})
			}
		case "2":
			rooms = []apiRoom{{
				ID:           "ms-last",
				Path:         "/rooms/ms-last",
				MonthlyPrice: 95000,
				Station:      "品川",
				WalkMinutes:  8,
			}}
		default:
			t.Errorf("unexpected page %q", page)
		}

		json.NewEncoder(w).Encode(apiSearchResponse{Rooms: rooms, Total: apiPageSize + 1})
	}))
	defer srv.Close()

	site := testSite(srv)
	site.ID = "monthlystay"
	site.Transport = "api"
	site.ListingType = "monthly_mansion"
	a := NewAPIAdapter(site, srv.Client(), ratelimit.New(time.Millisecond))

	listings, err := a.FetchListings(context.Background())
	if err != nil {
		t.Fatalf("FetchListings: %v", err)
	}
	if pages != 2 {
		t.Errorf("expected 2 page requests, got %d", pages)
	}
	if len(listings) != apiPageSize+1 {
		t.Fatalf("expected %d listings, got %d", apiPageSize+1, len(listings))
	}
	if listings[0].SourceURL != srv.URL+"/rooms/ms-000" {
		t.Errorf("sourceURL = %q", listings[0].SourceURL)
	}
}

func TestAPIAdapterStopsAtPageCap(t *testing.T) {
	// Every page comes back full; pagination must still terminate.
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var rooms []apiRoom
		for i := 0; i < apiPageSize; i++ {
			rooms = append(rooms, apiRoom{
				ID:           fmt.Sprintf("%s-%03d", r.URL.Query().Get("page"), i),
				Path:         fmt.Sprintf("/rooms/%d", i),
				MonthlyPrice: 100000,
			})
		}
		json.NewEncoder(w).Encode(apiSearchResponse{Rooms: rooms})
	}))
	defer srv.Close()

	site := testSite(srv)
	site.ID = "monthlystay"
	site.Transport = "api"
	site.ListingType = "monthly_mansion"
	a := NewAPIAdapter(site, srv.Client(), ratelimit.New(time.Millisecond))

	listings, err := a.FetchListings(context.Background())
	if err != nil {
		t.Fatalf("FetchListings: %v", err)
	}
	if requests != apiMaxPages {
		t.Errorf("expected %d page requests, got %d", apiMaxPages, requests)
	}
	if len(listings) != apiMaxPages*apiPageSize {
		t.Errorf("listings = %d", len(listings))
	}
}

func TestAPIAdapterConvertRoom(t *testing.T) {
	site := &config.SiteConfig{
		ID:          "monthlystay",
		Transport:   "api",
		BaseURL:     "https://www.monthlystay.jp",
		ListingType: "monthly_mansion",
		PartnerFeed: true,
	}
	a := NewAPIAdapter(site, http.DefaultClient, ratelimit.New(time.Millisecond))

	deposit := 60000
	res := a.convertRoom(apiRoom{
		ID:            "ms-42",
		Path:          "/rooms/ms-42",
		PriceText:     "12.8万円",
		Deposit:       &deposit,
		AccessText:    "目黒駅から徒歩6分",
		Furnished:     true,
		DescriptionJa: "人気物件です。",
		AvailableFrom: "2026-10-01",
		Tags:          []string{"Wi-Fi", "wi-fi"},
	})
	if res.Rejected {
		t.Fatalf("rejected: %s", res.Reason)
	}

	l := res.Listing
	if l.PriceJPY != 128000 {
		t.Errorf("price from price_text = %d", l.PriceJPY)
	}
	if l.SourceURL != "https://www.monthlystay.jp/rooms/ms-42" {
		t.Errorf("sourceURL = %q", l.SourceURL)
	}
	if l.NearestStation != "目黒" {
		t.Errorf("station from access text = %q", l.NearestStation)
	}
	if l.WalkTimeMin != 6 {
		t.Errorf("walk time from access text = %d", l.WalkTimeMin)
	}
	if l.DepositJPY == nil || *l.DepositJPY != 60000 {
		t.Errorf("deposit = %v", l.DepositJPY)
	}
	if l.AvailableFrom == nil {
		t.Error("availableFrom not parsed")
	}
	if len(l.Tags) != 1 {
		t.Errorf("tags = %v", l.Tags)
	}
	if !l.PartnerFeed {
		t.Error("partner feed flag not carried from site config")
	}
}

func TestAPIAdapterRejectsImplausiblePrices(t *testing.T) {
	site := &config.SiteConfig{ID: "monthlystay", Transport: "api"}
	a := NewAPIAdapter(site, http.DefaultClient, ratelimit.New(time.Millisecond))

	for _, price := range []int{0, 30000, 9800, 500000, 1200000} {
		res := a.convertRoom(apiRoom{ID: "x", MonthlyPrice: price})
		if !res.Rejected {
			t.Errorf("price %d should be rejected", price)
		}
	}
}
