package store

import (
	"context"
	"fmt"

	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/models"
)

// InsertMatchRecord writes a new match record.
func InsertMatchRecord(ctx context.Context, db database.DBTX, m *models.MatchRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO match_records
			(id, scraped_listing_id, property_id, match_type, match_score, match_factors,
			 status, decision_notes, created_at, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.ScrapedListingID, m.PropertyID, m.MatchType, m.MatchScore, m.MatchFactors,
		m.Status, m.DecisionNotes, m.CreatedAt, m.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match record %s: %w", m.ID, err)
	}
	return nil
}

// InsertReport writes a compliance report. The unique match_record_id index rejects a second report.
func InsertReport(ctx context.Context, db database.DBTX, r *models.ComplianceReport) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO compliance_reports
			(id, scraped_listing_id, match_record_id, report_type, severity, status,
			 description, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.ScrapedListingID, r.MatchRecordID, r.ReportType, r.Severity, r.Status,
		r.Description, r.Evidence, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert compliance report for match %s: %w", r.MatchRecordID, err)
	}
	return nil
}

// LinkListing marks a listing compliant and points it at the approved property.
func LinkListing(ctx context.Context, db database.DBTX, listingID, propertyID string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE scraped_listings
		SET is_compliant = TRUE, matched_property_id = $2, updated_at = NOW()
		WHERE id = $1`, listingID, propertyID)
	if err != nil {
		return fmt.Errorf("link listing %s: %w", listingID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("link listing %s: no such listing", listingID)
	}
	return nil
}

// GetListing loads a listing by id. A missing listing is NotFound.
func GetListing(ctx context.Context, db database.DBTX, id string) (*models.ScrapedListing, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+Columns("", ListingFields)+` FROM scraped_listings WHERE id = $1`, id)
	return ScanListing(row)
}
