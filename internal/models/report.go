package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ReportType names why a report was opened.
type ReportType string

const (
	ReportUnregistered   ReportType = "unregistered_property"
	ReportMisrepresented ReportType = "misrepresented_property"
	ReportOther          ReportType = "other"
)

// Severity of a compliance report.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

type ReportStatus string

const (
	ReportNew           ReportStatus = "new"
	ReportInvestigating ReportStatus = "investigating"
	ReportResolved      ReportStatus = "resolved"
)

const EvidenceVersion = 1

// Evidence captures the listing signals at the time a report was opened. Every field is
// optional; consumers apply their own defaults.
type Evidence struct {
	Version           int       `json:"version"`
	HostPropertyCount *int      `json:"hostPropertyCount,omitempty"`
	ReviewCount       *int      `json:"reviewCount,omitempty"`
	Rating            *float64  `json:"rating,omitempty"`
	PricePerNight     *float64  `json:"pricePerNight,omitempty"`
	ListingURL        string    `json:"listingUrl,omitempty"`
	MatchType         MatchType `json:"matchType,omitempty"`
	MatchScore        *float64  `json:"matchScore,omitempty"`
}

func (e Evidence) Value() (driver.Value, error) {
	return json.Marshal(e)
}

func (e *Evidence) Scan(src interface{}) error {
	return scanJSON(src, e)
}

// ComplianceReport is opened when a reviewer rejects a match.
type ComplianceReport struct {
	ID               string       `json:"id"`
	ScrapedListingID string       `json:"scrapedListingId"`
	MatchRecordID    string       `json:"matchRecordId"`
	ReportType       ReportType   `json:"reportType"`
	Severity         Severity     `json:"severity"`
	Status           ReportStatus `json:"status"`
	Description      string       `json:"description,omitempty"`
	Evidence         Evidence     `json:"evidence"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// Open reports whether the report still needs enforcement.
func (r *ComplianceReport) Open() bool {
	return r.Status != ReportResolved
}
