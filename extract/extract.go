// Package extract centralizes the numeric and keyword heuristics shared
// by all source adapters, so price bands, walk-time defaults and other
// filters behave identically regardless of which site a listing came
// from.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Listings priced outside this band are treated as extraction noise
// (parking spaces, whole buildings, mis-parsed numbers) and filtered
// out rather than surfaced as errors.
const (
	MinPlausiblePriceJPY = 30000
	MaxPlausiblePriceJPY = 500000
)

// DefaultWalkTimeMin is used when a source page does not state a
// walk time. A documented fallback, not a failure.
const DefaultWalkTimeMin = 10

var (
	yenAmountRegex  = regexp.MustCompile(`(?:¥|￥)?\s*([0-9][0-9,，]*)\s*(?:円|yen|JPY)?`)
	manYenRegex     = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*万\s*円?`)
	walkTimeRegex   = regexp.MustCompile(`(?:徒歩|walk)\D{0,5}([0-9]{1,3})\s*(?:分|min)`)
	walkTimeEnRegex = regexp.MustCompile(`([0-9]{1,3})\s*min(?:ute)?s?\.?\s*(?:walk|on foot)`)
	stationRegex    = regexp.MustCompile(`(?:「([^」]+)」駅|([A-Z][A-Za-z'-]*(?:\s[A-Z][A-Za-z'-]*)*)\s+[Ss]tation|([^\s、,「」()]+)駅)`)
	digitsRegex     = regexp.MustCompile(`[0-9]+`)
)

// PriceJPY extracts a yen amount from localized price text. It
// understands plain comma-grouped digits ("¥85,000", "85,000円") and
// the 万円 ten-thousand notation ("8.5万円"). Returns 0 when nothing
// parses.
func PriceJPY(text string) int {
	if m := manYenRegex.FindStringSubmatch(text); m != nil {
		f, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return int(f * 10000)
		}
	}

	if m := yenAmountRegex.FindStringSubmatch(text); m != nil {
		digits := strings.NewReplacer(",", "", "，", "").Replace(m[1])
		n, err := strconv.Atoi(digits)
		if err == nil {
			return n
		}
	}

	return 0
}

// PlausiblePrice reports whether an extracted monthly price falls inside
// the band this pipeline accepts. Out-of-band prices are a filtering
// decision, not an error.
func PlausiblePrice(priceJPY int) bool {
	return priceJPY > MinPlausiblePriceJPY && priceJPY < MaxPlausiblePriceJPY
}

// WalkTimeMin extracts the station walk time in minutes from localized
// access text ("新宿駅から徒歩5分", "7 min walk from Shibuya Station").
// Falls back to DefaultWalkTimeMin when the page doesn't state one.
func WalkTimeMin(text string) int {
	for _, re := range []*regexp.Regexp{walkTimeRegex, walkTimeEnRegex} {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= 0 {
				return n
			}
		}
	}
	return DefaultWalkTimeMin
}

// NearestStation extracts a station name from localized access text.
// Returns "" when no station pattern matches; adapters store the empty
// value rather than failing.
func NearestStation(text string) string {
	m := stationRegex.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return strings.TrimSpace(g)
		}
	}
	return ""
}

// Digits pulls the first integer out of arbitrary text ("敷金: 1ヶ月",
// "Floor 3F"). Returns 0 when none present.
func Digits(text string) int {
	m := digitsRegex.FindString(text)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(m)
	return n
}

// NormalizeTags lowercases, trims and de-duplicates free-form tag text
// while keeping source order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
