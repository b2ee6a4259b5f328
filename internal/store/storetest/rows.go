// Package storetest builds sqlmock rows matching the store column lists.
package storetest

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
)

// ListingRows builds sqlmock rows in ListingFields order.
func ListingRows(listings ...models.ScrapedListing) *sqlmock.Rows {
	rows := sqlmock.NewRows(store.ListingFields)
	for _, l := range listings {
		rows.AddRow(ListingValues(l)...)
	}
	return rows
}

func ListingValues(l models.ScrapedListing) []driver.Value {
	return []driver.Value{
		l.ID, string(l.Platform), l.PlatformID, l.URL, l.Title, l.HostName, l.HostID, l.HostPhone,
		l.LocationText, l.City, l.Neighborhood, f64(l.Latitude), f64(l.Longitude), f64(l.PricePerNight),
		i64(l.Bedrooms), i64(l.MaxGuests), i64(l.ReviewCount), f64(l.Rating), l.IsCompliant, str(l.MatchedPropertyID),
		ts(l.CreatedAt), ts(l.UpdatedAt),
	}
}

// PropertyRows builds sqlmock rows in PropertyFields order.
func PropertyRows(props ...models.RegisteredProperty) *sqlmock.Rows {
	rows := sqlmock.NewRows(store.PropertyFields)
	for _, p := range props {
		var dereg driver.Value
		if p.DeregisteredAt != nil {
			dereg = *p.DeregisteredAt
		}
		rows.AddRow(
			p.ID, p.Name, p.Address, p.City, p.Neighborhood, f64(p.Latitude), f64(p.Longitude),
			i64(p.TotalRooms), i64(p.CapacityGuests), p.LandlordName, p.LandlordPhone, dereg,
		)
	}
	return rows
}

func MatchRecordValues(m models.MatchRecord) []driver.Value {
	factors, _ := json.Marshal(m.MatchFactors)
	var decided driver.Value
	if m.DecidedAt != nil {
		decided = *m.DecidedAt
	}
	return []driver.Value{
		m.ID, m.ScrapedListingID, str(m.PropertyID), string(m.MatchType), m.MatchScore, factors,
		string(m.Status), m.DecisionNotes, ts(m.CreatedAt), decided,
	}
}

// MatchWithListingRows pairs records[i] with listings[i].
func MatchWithListingRows(records []models.MatchRecord, listings []models.ScrapedListing) *sqlmock.Rows {
	rows := sqlmock.NewRows(append(append([]string{}, store.MatchRecordFields...), prefixed("l_", store.ListingFields)...))
	for i := range records {
		rows.AddRow(append(MatchRecordValues(records[i]), ListingValues(listings[i])...)...)
	}
	return rows
}

func ReportValues(r models.ComplianceReport) []driver.Value {
	evidence, _ := json.Marshal(r.Evidence)
	return []driver.Value{
		r.ID, r.ScrapedListingID, r.MatchRecordID, string(r.ReportType), string(r.Severity), string(r.Status),
		r.Description, evidence, ts(r.CreatedAt),
	}
}

// ReportWithListingRows pairs reports[i] with listings[i].
func ReportWithListingRows(reports []models.ComplianceReport, listings []models.ScrapedListing) *sqlmock.Rows {
	rows := sqlmock.NewRows(append(append([]string{}, store.ReportFields...), prefixed("l_", store.ListingFields)...))
	for i := range reports {
		rows.AddRow(append(ReportValues(reports[i]), ListingValues(listings[i])...)...)
	}
	return rows
}

func prefixed(prefix string, fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = prefix + f
	}
	return out
}

func f64(p *float64) driver.Value {
	if p == nil {
		return nil
	}
	return *p
}

func i64(p *int) driver.Value {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func str(p *string) driver.Value {
	if p == nil {
		return nil
	}
	return *p
}

func ts(t time.Time) driver.Value {
	if t.IsZero() {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}
