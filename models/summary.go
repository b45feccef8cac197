package models

// RecordError pairs a failed record's merge key with what went wrong.
type RecordError struct {
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
}

// IngestSummary is the outcome of one merge batch.
type IngestSummary struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Errors  []RecordError `json:"errors,omitempty"`
}

// MaintenanceSummary is the outcome of one daily maintenance pass.
type MaintenanceSummary struct {
	ListingsHidden          int           `json:"listingsHidden"`
	ConfidenceScoresUpdated int           `json:"confidenceScoresUpdated"`
	LowConfidenceFlagged    int           `json:"lowConfidenceFlagged"`
	StaleListingsChecked    int           `json:"staleListingsChecked"`
	Errors                  []RecordError `json:"errors,omitempty"`
}

// ListingStats is the read-only aggregate view served by the stats
// endpoint.
type ListingStats struct {
	TotalActive     int `json:"totalActive"`
	TotalHidden     int `json:"totalHidden"`
	ExpiringSoon    int `json:"expiringSoon"`
	LowConfidence   int `json:"lowConfidence"`
	RecentlyUpdated int `json:"recentlyUpdated"`
	StaleListings   int `json:"staleListings"`
}
