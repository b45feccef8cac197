package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GraysonBannister/live-japan-sub000/models"
)

type stubMaintenance struct {
	summary  *models.MaintenanceSummary
	stats    *models.ListingStats
	byStatus map[models.AvailabilityStatus]int
	err      error
	runs     int
}

func (m *stubMaintenance) RunDaily(ctx context.Context) (*models.MaintenanceSummary, error) {
	m.runs++
	return m.summary, m.err
}

func (m *stubMaintenance) Statistics(ctx context.Context) (*models.ListingStats, map[models.AvailabilityStatus]int, error) {
	return m.stats, m.byStatus, m.err
}

func newTestServer(m *stubMaintenance) *Server {
	return New(m, "topsecret")
}

func doRequest(t *testing.T, s *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestRunEndpoint(t *testing.T) {
	m := &stubMaintenance{
		summary: &models.MaintenanceSummary{
			ListingsHidden:          3,
			ConfidenceScoresUpdated: 12,
			LowConfidenceFlagged:    1,
			StaleListingsChecked:    2,
		},
	}
	rec := doRequest(t, newTestServer(m), http.MethodPost, "/api/maintenance/run", "topsecret")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if m.runs != 1 {
		t.Errorf("maintenance ran %d times", m.runs)
	}

	var body struct {
		Success bool `json:"success"`
		Summary struct {
			ListingsHidden          int `json:"listingsHidden"`
			ConfidenceScoresUpdated int `json:"confidenceScoresUpdated"`
			LowConfidenceFlagged    int `json:"lowConfidenceFlagged"`
			StaleListingsChecked    int `json:"staleListingsChecked"`
		} `json:"summary"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success {
		t.Error("success = false")
	}
	if body.Summary.ListingsHidden != 3 || body.Summary.ConfidenceScoresUpdated != 12 {
		t.Errorf("summary = %+v", body.Summary)
	}
	if body.Timestamp == "" {
		t.Error("timestamp missing")
	}
}

func TestRunEndpointIncludesRecordErrors(t *testing.T) {
	m := &stubMaintenance{
		summary: &models.MaintenanceSummary{
			ListingsHidden: 1,
			Errors:         []models.RecordError{{ExternalID: "wm-9", Message: "timeout"}},
		},
	}
	rec := doRequest(t, newTestServer(m), http.MethodPost, "/api/maintenance/run", "topsecret")

	if rec.Code != http.StatusOK {
		t.Fatalf("partial failure must still return 200, got %d", rec.Code)
	}
	var body struct {
		Errors []models.RecordError `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Errors) != 1 || body.Errors[0].ExternalID != "wm-9" {
		t.Errorf("errors = %+v", body.Errors)
	}
}

func TestRunEndpointInternalFailure(t *testing.T) {
	m := &stubMaintenance{err: errors.New("store unreachable")}
	rec := doRequest(t, newTestServer(m), http.MethodPost, "/api/maintenance/run", "topsecret")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success {
		t.Error("success must be false on internal failure")
	}
	if body.Error == "" {
		t.Error("error message missing")
	}
}

func TestAuthRequired(t *testing.T) {
	m := &stubMaintenance{summary: &models.MaintenanceSummary{}}
	s := newTestServer(m)

	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "not-the-secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/maintenance/run", tc.token)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != "Unauthorized" {
				t.Errorf("body = %v", body)
			}
		})
	}
	if m.runs != 0 {
		t.Errorf("unauthorized requests must have no side effects, ran %d times", m.runs)
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	m := &stubMaintenance{summary: &models.MaintenanceSummary{}}
	s := New(m, "")

	rec := doRequest(t, s, http.MethodPost, "/api/maintenance/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	m := &stubMaintenance{
		stats: &models.ListingStats{TotalActive: 42, TotalHidden: 7},
		byStatus: map[models.AvailabilityStatus]int{
			models.StatusAvailable: 40,
			models.StatusUnknown:   2,
		},
	}
	rec := doRequest(t, newTestServer(m), http.MethodGet, "/api/maintenance/stats", "topsecret")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body struct {
		Summary  models.ListingStats `json:"summary"`
		ByStatus map[string]int      `json:"byStatus"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Summary.TotalActive != 42 || body.Summary.TotalHidden != 7 {
		t.Errorf("summary = %+v", body.Summary)
	}
	if body.ByStatus["available"] != 40 {
		t.Errorf("byStatus = %v", body.ByStatus)
	}
	if m.runs != 0 {
		t.Error("stats must not trigger the maintenance job")
	}
}
