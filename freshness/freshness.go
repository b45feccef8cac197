// Package freshness estimates how trustworthy a listing's displayed
// state currently is. Everything here is a pure function of a Property
// snapshot and a caller-supplied "now", so the maintenance job, the
// ingest merger and the availability worker all score identically.
package freshness

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/models"
)

const (
	day = 24 * time.Hour

	// Auto-hide horizon after the last successful scrape.
	weeklyHideAfterDays  = 7
	defaultHideAfterDays = 14
)

// Keyword sets for availability classification, checked in priority
// order. Matching is case-insensitive substring scan over the page text.
var (
	goneKeywords = []string{
		"満室",
		"成約済",
		"契約済",
		"掲載終了",
		"募集終了",
		"fully booked",
		"no longer available",
		"contract concluded",
		"sold out",
	}

	demandKeywords = []string{
		"残りわずか",
		"人気物件",
		"内覧可能",
		"内見可能",
		"viewing available",
		"high demand",
		"now accepting",
		"available now",
	}
)

// CalculateConfidenceScore returns a 0-100 estimate of how much the
// stored record can be trusted. Base 50, additive adjustments, clamped
// once at the end so the factor order never matters.
func CalculateConfidenceScore(p *models.Property, now time.Time) int {
	score := 50

	switch {
	case p.LastScrapedAt == nil:
		score -= 20
	case now.Sub(*p.LastScrapedAt) <= 1*day:
		score += 30
	case now.Sub(*p.LastScrapedAt) <= 3*day:
		score += 20
	case now.Sub(*p.LastScrapedAt) <= 7*day:
		score += 10
	case now.Sub(*p.LastScrapedAt) <= 14*day:
		score += 5
	default:
		score -= 10
	}

	if p.PartnerFeed {
		score += 20
	}

	switch p.VerificationStatus {
	case models.VerificationManuallyConfirmed:
		score += 15
	case models.VerificationVerified:
		score += 10
	}

	if p.LastConfirmedAvailableAt != nil {
		switch age := now.Sub(*p.LastConfirmedAvailableAt); {
		case age <= 3*day:
			score += 15
		case age <= 7*day:
			score += 10
		case age <= 14*day:
			score += 5
		}
	}

	switch {
	case p.ClickCount > 10 || p.InquiryCount > 0:
		score += 10
	case p.ClickCount > 5:
		score += 5
	}

	if p.LastContentChangeAt != nil && now.Sub(*p.LastContentChangeAt) <= 7*day {
		score += 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ShouldAutoHide reports whether an active listing has passed its
// auto-hide date. Inactive listings and listings without a hide date
// never qualify.
func ShouldAutoHide(p *models.Property, now time.Time) bool {
	if !p.IsActive || p.AutoHideAfter == nil {
		return false
	}
	return now.After(*p.AutoHideAfter)
}

// CalculateAutoHideDate derives the timestamp after which an
// unrefreshed listing is hidden: 7 days after the scrape for weekly
// mansions, 14 for everything else.
func CalculateAutoHideDate(lastScrapedAt time.Time, t models.ListingType) time.Time {
	if t == models.TypeWeeklyMansion {
		return lastScrapedAt.Add(weeklyHideAfterDays * day)
	}
	return lastScrapedAt.Add(defaultHideAfterDays * day)
}

// DetermineAvailabilityStatus classifies a listing from its source page
// text, falling back to last-seen recency when no keyword matches.
// First match wins: a page that says both "fully booked" and "viewing
// available" is unavailable.
func DetermineAvailabilityStatus(pageText string, lastSeen *time.Time, now time.Time) models.AvailabilityStatus {
	lower := strings.ToLower(pageText)

	for _, kw := range goneKeywords {
		if strings.Contains(lower, kw) {
			return models.StatusUnavailable
		}
	}
	for _, kw := range demandKeywords {
		if strings.Contains(lower, kw) {
			return models.StatusLikelyAvailable
		}
	}

	if lastSeen == nil {
		return models.StatusUnknown
	}
	switch age := now.Sub(*lastSeen); {
	case age <= 7*day:
		return models.StatusAvailable
	case age <= 14*day:
		return models.StatusLikelyAvailable
	case age <= 30*day:
		return models.StatusProbablyUnavailable
	default:
		return models.StatusUnknown
	}
}

// ContentHash digests the mutable content fields used for change
// detection. The projection is fixed and ordered so the hash is stable
// across runs; it is not a security hash.
func ContentHash(priceJPY int, depositJPY, keyMoneyJPY *int, descriptionEn, descriptionJp string, availableFrom *time.Time) string {
	from := ""
	if availableFrom != nil {
		from = availableFrom.UTC().Format(time.RFC3339)
	}

	input := fmt.Sprintf("%d|%s|%s|%s|%s|%s",
		priceJPY,
		intOrNull(depositJPY),
		intOrNull(keyMoneyJPY),
		truncate(descriptionEn, 200),
		truncate(descriptionJp, 200),
		from,
	)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}

func intOrNull(v *int) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
