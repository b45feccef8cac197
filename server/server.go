package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/gorilla/mux"
)

// Maintenance is the service surface the endpoints call into.
// *services.MaintenanceService satisfies it.
type Maintenance interface {
	RunDaily(ctx context.Context) (*models.MaintenanceSummary, error)
	Statistics(ctx context.Context) (*models.ListingStats, map[models.AvailabilityStatus]int, error)
}

// Server exposes the maintenance boundary over HTTP: a trigger for the
// daily job and a read-only statistics query, both behind a shared secret.
type Server struct {
	maintenance Maintenance
	secret      string
	router      *mux.Router
}

func New(maintenance Maintenance, secret string) *Server {
	s := &Server{
		maintenance: maintenance,
		secret:      secret,
		router:      mux.NewRouter(),
	}

	api := s.router.PathPrefix("/api/maintenance").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/run", s.handleRun).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret != "" {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == token || token != s.secret {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type maintenanceCounts struct {
	ListingsHidden          int `json:"listingsHidden"`
	ConfidenceScoresUpdated int `json:"confidenceScoresUpdated"`
	LowConfidenceFlagged    int `json:"lowConfidenceFlagged"`
	StaleListingsChecked    int `json:"staleListingsChecked"`
}

type runResponse struct {
	Success   bool                 `json:"success"`
	Timestamp time.Time            `json:"timestamp"`
	Summary   maintenanceCounts    `json:"summary"`
	Errors    []models.RecordError `json:"errors,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type statsResponse struct {
	Timestamp time.Time                         `json:"timestamp"`
	Summary   models.ListingStats               `json:"summary"`
	ByStatus  map[models.AvailabilityStatus]int `json:"byStatus"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.maintenance.RunDaily(r.Context())
	if err != nil {
		log.Printf("maintenance run failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		Success:   true,
		Timestamp: time.Now().UTC(),
		Summary: maintenanceCounts{
			ListingsHidden:          summary.ListingsHidden,
			ConfidenceScoresUpdated: summary.ConfidenceScoresUpdated,
			LowConfidenceFlagged:    summary.LowConfidenceFlagged,
			StaleListingsChecked:    summary.StaleListingsChecked,
		},
		Errors: summary.Errors,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, byStatus, err := s.maintenance.Statistics(r.Context())
	if err != nil {
		log.Printf("stats query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Timestamp: time.Now().UTC(),
		Summary:   *stats,
		ByStatus:  byStatus,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
