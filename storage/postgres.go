package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Properties
// =============================================================================

const propertyColumns = `
	id, external_id, source_url, source, listing_type, price_jpy, deposit_jpy,
	key_money_jpy, nearest_station, walk_time_min, furnished, foreigner_friendly,
	photos, description_en, description_jp, location, lat, lng, pricing_plans,
	tags, available_from, last_scraped_at, last_confirmed_available_at,
	source_last_updated_at, status_confidence_score, availability_status,
	content_hash, last_content_change_at, auto_hide_after, is_active,
	partner_feed, verification_status, click_count, inquiry_count,
	last_inquiry_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Property) error {
	plans, err := json.Marshal(p.PricingPlans)
	if err != nil {
		return fmt.Errorf("marshal pricing plans: %w", err)
	}

	query := `
		INSERT INTO properties (` + propertyColumns + `)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33, $34, $35, $36, $37
		)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		p.ID, p.ExternalID, p.SourceURL, p.Source, p.Type, p.PriceJPY, p.DepositJPY,
		p.KeyMoneyJPY, p.NearestStation, p.WalkTimeMin, p.Furnished, p.ForeignerFriendly,
		p.Photos, p.DescriptionEn, p.DescriptionJp, p.Location, p.Lat, p.Lng, plans,
		p.Tags, p.AvailableFrom, p.LastScrapedAt, p.LastConfirmedAvailableAt,
		p.SourceLastUpdatedAt, p.StatusConfidenceScore, p.AvailabilityStatus,
		p.ContentHash, p.LastContentChangeAt, p.AutoHideAfter, p.IsActive,
		p.PartnerFeed, p.VerificationStatus, p.ClickCount, p.InquiryCount,
		p.LastInquiryAt, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Property) error {
	plans, err := json.Marshal(p.PricingPlans)
	if err != nil {
		return fmt.Errorf("marshal pricing plans: %w", err)
	}

	query := `
		UPDATE properties SET
			source_url = $2, listing_type = $3, price_jpy = $4, deposit_jpy = $5,
			key_money_jpy = $6, nearest_station = $7, walk_time_min = $8,
			furnished = $9, foreigner_friendly = $10, photos = $11,
			description_en = $12, description_jp = $13, location = $14,
			lat = $15, lng = $16, pricing_plans = $17, tags = $18,
			available_from = $19, last_scraped_at = $20,
			last_confirmed_available_at = $21, source_last_updated_at = $22,
			status_confidence_score = $23, availability_status = $24,
			content_hash = $25, last_content_change_at = $26,
			auto_hide_after = $27, is_active = $28, partner_feed = $29,
			verification_status = $30, click_count = $31, inquiry_count = $32,
			last_inquiry_at = $33, updated_at = NOW()
		WHERE id = $1`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.SourceURL, p.Type, p.PriceJPY, p.DepositJPY,
		p.KeyMoneyJPY, p.NearestStation, p.WalkTimeMin,
		p.Furnished, p.ForeignerFriendly, p.Photos,
		p.DescriptionEn, p.DescriptionJp, p.Location,
		p.Lat, p.Lng, plans, p.Tags,
		p.AvailableFrom, p.LastScrapedAt,
		p.LastConfirmedAvailableAt, p.SourceLastUpdatedAt,
		p.StatusConfidenceScore, p.AvailabilityStatus,
		p.ContentHash, p.LastContentChangeAt,
		p.AutoHideAfter, p.IsActive, p.PartnerFeed,
		p.VerificationStatus, p.ClickCount, p.InquiryCount,
		p.LastInquiryAt,
	)
	return err
}

func (s *PostgresStore) GetBySourceKey(ctx context.Context, source, externalID string) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE source = $1 AND external_id = $2`
	return scanProperty(s.pool.QueryRow(ctx, query, source, externalID))
}

func (s *PostgresStore) GetBySourceURL(ctx context.Context, sourceURL string) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE source_url = $1`
	return scanProperty(s.pool.QueryRow(ctx, query, sourceURL))
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE is_active ORDER BY updated_at`
	return s.queryProperties(ctx, query)
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties
		WHERE is_active AND auto_hide_after IS NOT NULL AND auto_hide_after < $1
		ORDER BY auto_hide_after`
	return s.queryProperties(ctx, query, now)
}

func (s *PostgresStore) ListStaleActive(ctx context.Context, cutoff time.Time) ([]models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties
		WHERE is_active AND (last_scraped_at IS NULL OR last_scraped_at < $1)
		ORDER BY last_scraped_at NULLS FIRST`
	return s.queryProperties(ctx, query, cutoff)
}

func (s *PostgresStore) queryProperties(ctx context.Context, query string, args ...interface{}) ([]models.Property, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, *p)
	}
	return properties, rows.Err()
}

func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	var plans []byte
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.SourceURL, &p.Source, &p.Type, &p.PriceJPY, &p.DepositJPY,
		&p.KeyMoneyJPY, &p.NearestStation, &p.WalkTimeMin, &p.Furnished, &p.ForeignerFriendly,
		&p.Photos, &p.DescriptionEn, &p.DescriptionJp, &p.Location, &p.Lat, &p.Lng, &plans,
		&p.Tags, &p.AvailableFrom, &p.LastScrapedAt, &p.LastConfirmedAvailableAt,
		&p.SourceLastUpdatedAt, &p.StatusConfidenceScore, &p.AvailabilityStatus,
		&p.ContentHash, &p.LastContentChangeAt, &p.AutoHideAfter, &p.IsActive,
		&p.PartnerFeed, &p.VerificationStatus, &p.ClickCount, &p.InquiryCount,
		&p.LastInquiryAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		if err := json.Unmarshal(plans, &p.PricingPlans); err != nil {
			return nil, fmt.Errorf("unmarshal pricing plans: %w", err)
		}
	}
	return &p, nil
}

// =============================================================================
// Statistics
// =============================================================================

func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (*models.ListingStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE NOT is_active),
			COUNT(*) FILTER (WHERE is_active AND auto_hide_after IS NOT NULL AND auto_hide_after < $1 + interval '3 days'),
			COUNT(*) FILTER (WHERE is_active AND status_confidence_score IS NOT NULL AND status_confidence_score < 20),
			COUNT(*) FILTER (WHERE is_active AND last_scraped_at > $1 - interval '1 day'),
			COUNT(*) FILTER (WHERE is_active AND (last_scraped_at IS NULL OR last_scraped_at < $1 - interval '30 days'))
		FROM properties`

	var st models.ListingStats
	err := s.pool.QueryRow(ctx, query, now).Scan(
		&st.TotalActive, &st.TotalHidden, &st.ExpiringSoon,
		&st.LowConfidence, &st.RecentlyUpdated, &st.StaleListings,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) StatusCounts(ctx context.Context) (map[models.AvailabilityStatus]int, error) {
	query := `SELECT availability_status, COUNT(*) FROM properties WHERE is_active GROUP BY availability_status`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.AvailabilityStatus]int)
	for rows.Next() {
		var status models.AvailabilityStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// Scrape Runs
// =============================================================================

func (s *PostgresStore) CreateScrapeRun(ctx context.Context, run *models.ScrapeRun) error {
	query := `
		INSERT INTO scrape_runs (started_at, status, listings_found, sources_ok, sources_failed, used_fallback, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.StartedAt, run.Status, run.ListingsFound, run.SourcesOK, run.SourcesFailed, run.UsedFallback, run.ErrorMessage,
	).Scan(&run.ID)
}

func (s *PostgresStore) UpdateScrapeRun(ctx context.Context, run *models.ScrapeRun) error {
	query := `
		UPDATE scrape_runs SET
			finished_at = $2, status = $3, listings_found = $4, sources_ok = $5,
			sources_failed = $6, used_fallback = $7, error_message = $8
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.ListingsFound, run.SourcesOK,
		run.SourcesFailed, run.UsedFallback, run.ErrorMessage,
	)
	return err
}
