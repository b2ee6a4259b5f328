package hosts

import (
	"context"
	"fmt"

	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store"
)

// CountSiblings returns how many listings share l's operator identity, l included. It
// matches on normalized phone when available, otherwise on host key. A listing with
// neither counts as a single-property operator.
func CountSiblings(ctx context.Context, db database.DBTX, l *models.ScrapedListing) (int, error) {
	if phone, ok := NormalizePhone(l.HostPhone); ok {
		var n int
		// host_phone is stored normalized by ingestion.
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM scraped_listings WHERE host_phone = $1`, phone).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("count listings for phone: %w", err)
		}
		return max(n, 1), nil
	}
	if _, ok := HostKey(l); ok {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM scraped_listings WHERE platform = $1 AND host_id = $2`,
			l.Platform, l.HostID).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("count listings for host: %w", err)
		}
		return max(n, 1), nil
	}
	return 1, nil
}

// LoadOperators groups every listing carrying a phone or host id, optionally within city.
func LoadOperators(ctx context.Context, db database.DBTX, city string) ([]Operator, error) {
	query := `SELECT ` + store.Columns("", store.ListingFields) + `
		FROM scraped_listings
		WHERE (host_phone <> '' OR host_id <> '')
		  AND ($1 = '' OR LOWER(city) = LOWER($1))`

	rows, err := db.QueryContext(ctx, query, city)
	if err != nil {
		return nil, fmt.Errorf("load operator listings: %w", err)
	}
	defer rows.Close()

	var listings []models.ScrapedListing
	for rows.Next() {
		l, err := store.ScanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Group(listings), nil
}
