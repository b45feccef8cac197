package models

import (
	"time"
)

// ListingType classifies the rental product a source offers.
type ListingType string

const (
	TypeMonthlyMansion ListingType = "monthly_mansion"
	TypeWeeklyMansion  ListingType = "weekly_mansion"
	TypeApartment      ListingType = "apartment"
)

// PricingPlan is one of a listing's stay-length price tiers
// (e.g. "1 week", "1-3 months").
type PricingPlan struct {
	Name         string `json:"name"`
	Duration     string `json:"duration"`
	MonthlyPrice int    `json:"monthly_price"`
	InitialCost  int    `json:"initial_cost"`
}

// RawListing is one adapter's unmerged scrape output for a single
// external listing. It lives for one scrape run and is discarded after
// the merge.
type RawListing struct {
	ExternalID        string        `json:"external_id"`
	SourceURL         string        `json:"source_url"`
	Source            string        `json:"source"`
	Type              ListingType   `json:"type"`
	PriceJPY          int           `json:"price_jpy"`
	DepositJPY        *int          `json:"deposit_jpy"`
	KeyMoneyJPY       *int          `json:"key_money_jpy"`
	NearestStation    string        `json:"nearest_station"`
	WalkTimeMin       int           `json:"walk_time_min"`
	Furnished         bool          `json:"furnished"`
	ForeignerFriendly bool          `json:"foreigner_friendly"`
	PartnerFeed       bool          `json:"partner_feed"`
	Photos            []string      `json:"photos"`
	DescriptionEn     string        `json:"description_en"`
	DescriptionJp     string        `json:"description_jp"`
	Location          string        `json:"location"`
	Lat               *float64      `json:"lat"`
	Lng               *float64      `json:"lng"`
	PricingPlans      []PricingPlan `json:"pricing_plans"`
	Tags              []string      `json:"tags"`
	AvailableFrom     *time.Time    `json:"available_from"`

	// PageText carries the visible text of the source page so the
	// availability classifier can keyword-scan it. Not persisted.
	PageText string `json:"-"`
}
