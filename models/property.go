package models

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilityStatus is the pipeline's best estimate of whether a
// listing can still be rented.
type AvailabilityStatus string

const (
	StatusUnknown             AvailabilityStatus = "unknown"
	StatusAvailable           AvailabilityStatus = "available"
	StatusLikelyAvailable     AvailabilityStatus = "likely_available"
	StatusProbablyUnavailable AvailabilityStatus = "probably_unavailable"
	StatusUnavailable         AvailabilityStatus = "unavailable"
)

// VerificationStatus records how strongly a listing has been confirmed.
type VerificationStatus string

const (
	VerificationUnverified        VerificationStatus = "unverified"
	VerificationVerified          VerificationStatus = "verified"
	VerificationManuallyConfirmed VerificationStatus = "manually_confirmed"
)

// Property is the canonical, persisted listing record. Content fields
// are written only by the ingest merger; score/status/autoHideAfter/
// isActive are written only by the freshness side (maintenance job and
// availability worker). Rows are never deleted, only deactivated.
type Property struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	ExternalID        string        `json:"external_id" db:"external_id"`
	SourceURL         string        `json:"source_url" db:"source_url"`
	Source            string        `json:"source" db:"source"`
	Type              ListingType   `json:"type" db:"type"`
	PriceJPY          int           `json:"price_jpy" db:"price_jpy"`
	DepositJPY        *int          `json:"deposit_jpy" db:"deposit_jpy"`
	KeyMoneyJPY       *int          `json:"key_money_jpy" db:"key_money_jpy"`
	NearestStation    string        `json:"nearest_station" db:"nearest_station"`
	WalkTimeMin       int           `json:"walk_time_min" db:"walk_time_min"`
	Furnished         bool          `json:"furnished" db:"furnished"`
	ForeignerFriendly bool          `json:"foreigner_friendly" db:"foreigner_friendly"`
	Photos            []string      `json:"photos" db:"photos"`
	DescriptionEn     string        `json:"description_en" db:"description_en"`
	DescriptionJp     string        `json:"description_jp" db:"description_jp"`
	Location          string        `json:"location" db:"location"`
	Lat               *float64      `json:"lat" db:"lat"`
	Lng               *float64      `json:"lng" db:"lng"`
	PricingPlans      []PricingPlan `json:"pricing_plans" db:"pricing_plans"`
	Tags              []string      `json:"tags" db:"tags"`
	AvailableFrom     *time.Time    `json:"available_from" db:"available_from"`

	// Freshness attributes.
	LastScrapedAt            *time.Time         `json:"last_scraped_at" db:"last_scraped_at"`
	LastConfirmedAvailableAt *time.Time         `json:"last_confirmed_available_at" db:"last_confirmed_available_at"`
	SourceLastUpdatedAt      *time.Time         `json:"source_last_updated_at" db:"source_last_updated_at"`
	StatusConfidenceScore    *int               `json:"status_confidence_score" db:"status_confidence_score"`
	AvailabilityStatus       AvailabilityStatus `json:"availability_status" db:"availability_status"`
	ContentHash              string             `json:"content_hash" db:"content_hash"`
	LastContentChangeAt      *time.Time         `json:"last_content_change_at" db:"last_content_change_at"`
	AutoHideAfter            *time.Time         `json:"auto_hide_after" db:"auto_hide_after"`
	IsActive                 bool               `json:"is_active" db:"is_active"`
	PartnerFeed              bool               `json:"partner_feed" db:"partner_feed"`
	VerificationStatus       VerificationStatus `json:"verification_status" db:"verification_status"`

	// Engagement counters, bumped by the site frontend.
	ClickCount    int        `json:"click_count" db:"click_count"`
	InquiryCount  int        `json:"inquiry_count" db:"inquiry_count"`
	LastInquiryAt *time.Time `json:"last_inquiry_at" db:"last_inquiry_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Score returns the stored confidence score, or 0 when it has never
// been computed.
func (p *Property) Score() int {
	if p.StatusConfidenceScore == nil {
		return 0
	}
	return *p.StatusConfidenceScore
}
