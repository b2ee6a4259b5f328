package store

import (
	"strings"

	"tourism-compliance/internal/models"
)

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...interface{}) error
}

var (
	ListingFields = []string{
		"id", "platform", "platform_id", "url", "title", "host_name", "host_id", "host_phone",
		"location_text", "city", "neighborhood", "latitude", "longitude", "price_per_night",
		"bedrooms", "max_guests", "review_count", "rating", "is_compliant", "matched_property_id",
		"created_at", "updated_at",
	}
	PropertyFields = []string{
		"id", "name", "address", "city", "neighborhood", "latitude", "longitude",
		"total_rooms", "capacity_guests", "landlord_name", "landlord_phone", "deregistered_at",
	}
	MatchRecordFields = []string{
		"id", "scraped_listing_id", "property_id", "match_type", "match_score", "match_factors",
		"status", "decision_notes", "created_at", "decided_at",
	}
	ReportFields = []string{
		"id", "scraped_listing_id", "match_record_id", "report_type", "severity", "status",
		"description", "evidence", "created_at",
	}
)

// Columns renders fields as a select list, prefixed with alias when given.
func Columns(alias string, fields []string) string {
	if alias == "" {
		return strings.Join(fields, ", ")
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = alias + "." + f
	}
	return strings.Join(out, ", ")
}

func listingDest(l *models.ScrapedListing) []interface{} {
	return []interface{}{
		&l.ID, &l.Platform, &l.PlatformID, &l.URL, &l.Title, &l.HostName, &l.HostID, &l.HostPhone,
		&l.LocationText, &l.City, &l.Neighborhood, &l.Latitude, &l.Longitude, &l.PricePerNight,
		&l.Bedrooms, &l.MaxGuests, &l.ReviewCount, &l.Rating, &l.IsCompliant, &l.MatchedPropertyID,
		&l.CreatedAt, &l.UpdatedAt,
	}
}

func propertyDest(p *models.RegisteredProperty) []interface{} {
	return []interface{}{
		&p.ID, &p.Name, &p.Address, &p.City, &p.Neighborhood, &p.Latitude, &p.Longitude,
		&p.TotalRooms, &p.CapacityGuests, &p.LandlordName, &p.LandlordPhone, &p.DeregisteredAt,
	}
}

func matchRecordDest(m *models.MatchRecord) []interface{} {
	return []interface{}{
		&m.ID, &m.ScrapedListingID, &m.PropertyID, &m.MatchType, &m.MatchScore, &m.MatchFactors,
		&m.Status, &m.DecisionNotes, &m.CreatedAt, &m.DecidedAt,
	}
}

func reportDest(r *models.ComplianceReport) []interface{} {
	return []interface{}{
		&r.ID, &r.ScrapedListingID, &r.MatchRecordID, &r.ReportType, &r.Severity, &r.Status,
		&r.Description, &r.Evidence, &r.CreatedAt,
	}
}

// ScanListing scans a row selecting ListingFields.
func ScanListing(s Scanner) (*models.ScrapedListing, error) {
	var l models.ScrapedListing
	if err := s.Scan(listingDest(&l)...); err != nil {
		return nil, err
	}
	return &l, nil
}

// ScanProperty scans a row selecting PropertyFields.
func ScanProperty(s Scanner) (*models.RegisteredProperty, error) {
	var p models.RegisteredProperty
	if err := s.Scan(propertyDest(&p)...); err != nil {
		return nil, err
	}
	return &p, nil
}

// ScanMatchWithListing scans a row selecting MatchRecordFields followed by ListingFields.
func ScanMatchWithListing(s Scanner) (*models.MatchRecord, *models.ScrapedListing, error) {
	var m models.MatchRecord
	var l models.ScrapedListing
	dest := append(matchRecordDest(&m), listingDest(&l)...)
	if err := s.Scan(dest...); err != nil {
		return nil, nil, err
	}
	return &m, &l, nil
}

// ScanReportWithListing scans a row selecting ReportFields followed by ListingFields.
func ScanReportWithListing(s Scanner) (*models.ComplianceReport, *models.ScrapedListing, error) {
	var r models.ComplianceReport
	var l models.ScrapedListing
	dest := append(reportDest(&r), listingDest(&l)...)
	if err := s.Scan(dest...); err != nil {
		return nil, nil, err
	}
	return &r, &l, nil
}
