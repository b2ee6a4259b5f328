package store

import (
	"context"
	"fmt"

	"tourism-compliance/internal/common/database"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS registered_properties (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		address         TEXT NOT NULL DEFAULT '',
		city            TEXT NOT NULL DEFAULT '',
		neighborhood    TEXT NOT NULL DEFAULT '',
		latitude        DOUBLE PRECISION,
		longitude       DOUBLE PRECISION,
		total_rooms     INTEGER,
		capacity_guests INTEGER,
		landlord_name   TEXT NOT NULL DEFAULT '',
		landlord_phone  TEXT NOT NULL DEFAULT '',
		deregistered_at TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_registered_properties_city ON registered_properties (LOWER(city)) WHERE deregistered_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS scraped_listings (
		id                  TEXT PRIMARY KEY,
		platform            TEXT NOT NULL,
		platform_id         TEXT NOT NULL,
		url                 TEXT NOT NULL DEFAULT '',
		title               TEXT NOT NULL DEFAULT '',
		host_name           TEXT NOT NULL DEFAULT '',
		host_id             TEXT NOT NULL DEFAULT '',
		host_phone          TEXT NOT NULL DEFAULT '',
		location_text       TEXT NOT NULL DEFAULT '',
		city                TEXT NOT NULL DEFAULT '',
		neighborhood        TEXT NOT NULL DEFAULT '',
		latitude            DOUBLE PRECISION,
		longitude           DOUBLE PRECISION,
		price_per_night     DOUBLE PRECISION CHECK (price_per_night >= 0),
		bedrooms            INTEGER CHECK (bedrooms >= 0),
		max_guests          INTEGER CHECK (max_guests >= 0),
		review_count        INTEGER CHECK (review_count >= 0),
		rating              DOUBLE PRECISION CHECK (rating BETWEEN 0 AND 5),
		is_compliant        BOOLEAN NOT NULL DEFAULT FALSE,
		matched_property_id TEXT REFERENCES registered_properties (id),
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_scraped_listings_platform ON scraped_listings (platform, platform_id)`,
	`CREATE INDEX IF NOT EXISTS ix_scraped_listings_city ON scraped_listings (LOWER(city))`,
	`CREATE INDEX IF NOT EXISTS ix_scraped_listings_host ON scraped_listings (platform, host_id) WHERE host_id <> ''`,
	`CREATE INDEX IF NOT EXISTS ix_scraped_listings_phone ON scraped_listings (host_phone) WHERE host_phone <> ''`,

	`CREATE TABLE IF NOT EXISTS match_records (
		id                 TEXT PRIMARY KEY,
		scraped_listing_id TEXT NOT NULL REFERENCES scraped_listings (id),
		property_id        TEXT REFERENCES registered_properties (id),
		match_type         TEXT NOT NULL,
		match_score        DOUBLE PRECISION NOT NULL CHECK (match_score BETWEEN 0 AND 1),
		match_factors      JSONB NOT NULL DEFAULT '{}',
		status             TEXT NOT NULL DEFAULT 'pending',
		decision_notes     TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		decided_at         TIMESTAMPTZ,
		CHECK (status = 'pending' OR decided_at IS NOT NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_match_records_queue ON match_records (status, match_type, created_at)`,
	`CREATE INDEX IF NOT EXISTS ix_match_records_listing ON match_records (scraped_listing_id)`,

	`CREATE TABLE IF NOT EXISTS compliance_reports (
		id                 TEXT PRIMARY KEY,
		scraped_listing_id TEXT NOT NULL REFERENCES scraped_listings (id),
		match_record_id    TEXT NOT NULL REFERENCES match_records (id),
		report_type        TEXT NOT NULL,
		severity           TEXT NOT NULL,
		status             TEXT NOT NULL DEFAULT 'new',
		description        TEXT NOT NULL DEFAULT '',
		evidence           JSONB NOT NULL DEFAULT '{}',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_compliance_reports_match ON compliance_reports (match_record_id)`,
	`CREATE INDEX IF NOT EXISTS ix_compliance_reports_open ON compliance_reports (status, severity) WHERE status <> 'resolved'`,
}

// EnsureSchema creates the tables and indexes used by the pipeline. It is safe to run on every start.
func EnsureSchema(ctx context.Context, db database.DBTX) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
