package models

import "time"

// EstimatedImpact is the projected revenue and tax loss of one listing.
type EstimatedImpact struct {
	MonthlyRevenue float64 `json:"monthlyRevenue"`
	AnnualTaxLoss  float64 `json:"annualTaxLoss"`
	GuestsPerMonth float64 `json:"guestsPerMonth"`
}

// EnforcementTarget is a ranked view of an open report. It is derived and never stored.
type EnforcementTarget struct {
	ReportID        string          `json:"reportId"`
	Priority        int             `json:"priority"`
	EstimatedImpact EstimatedImpact `json:"estimatedImpact"`
	SuggestedAction string          `json:"suggestedAction"`

	ListingID     string    `json:"listingId"`
	Severity      Severity  `json:"severity"`
	Title         string    `json:"title,omitempty"`
	URL           string    `json:"url,omitempty"`
	City          string    `json:"city,omitempty"`
	HostName      string    `json:"hostName,omitempty"`
	PricePerNight *float64  `json:"pricePerNight,omitempty"`
	ReviewCount   *int      `json:"reviewCount,omitempty"`
	ReportedAt    time.Time `json:"reportedAt"`
}

// EnforcementSummary aggregates every open report, not just the returned page.
type EnforcementSummary struct {
	TotalReports                 int              `json:"totalReports"`
	BySeverity                   map[Severity]int `json:"bySeverity"`
	EstimatedTotalAnnualTaxLoss  float64          `json:"estimatedTotalAnnualTaxLoss"`
	EstimatedTotalMonthlyRevenue float64          `json:"estimatedTotalMonthlyRevenue"`
}
