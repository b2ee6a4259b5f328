package enforcement

import (
	"sort"

	"tourism-compliance/internal/models"
)

// Assumptions parameterize the fiscal impact estimate. None of them vary per listing, so
// AnnualTaxLoss is the same for every target until a per-listing input is added here.
type Assumptions struct {
	OccupancyRate    float64
	AvgGuestsPerStay float64
	DaysPerMonth     float64
	TPTRatePerNight  float64
}

// DefaultAssumptions are the fixed occupancy and tax constants behind the impact estimate.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		OccupancyRate:    0.5,
		AvgGuestsPerStay: 2,
		DaysPerMonth:     30,
		TPTRatePerNight:  1000,
	}
}

// MonthlyOccupiedNights is 30 nights at the assumed occupancy rate.
func (a Assumptions) MonthlyOccupiedNights() float64 {
	return a.OccupancyRate * a.DaysPerMonth
}

// Impact estimates monthly revenue, guests and annual tax loss for one listing.
func (a Assumptions) Impact(pricePerNight float64) models.EstimatedImpact {
	nights := a.MonthlyOccupiedNights()
	return models.EstimatedImpact{
		MonthlyRevenue: pricePerNight * nights,
		GuestsPerMonth: nights * a.AvgGuestsPerStay,
		AnnualTaxLoss:  nights * 12 * a.AvgGuestsPerStay * a.TPTRatePerNight,
	}
}

// OpenReport is a compliance report together with the listing it is about.
type OpenReport struct {
	Report  models.ComplianceReport
	Listing models.ScrapedListing
}

func severityTerm(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return 40
	case models.SeverityHigh:
		return 30
	case models.SeverityMedium:
		return 20
	default:
		return 10
	}
}

func priceTerm(price float64) int {
	switch {
	case price > 100000:
		return 20
	case price > 50000:
		return 15
	case price > 25000:
		return 10
	default:
		return 5
	}
}

// Priority scores a report from 0 to 100. Missing evidence falls back to defaults:
// one property per host, zero reviews, and the lowest price band.
func Priority(r OpenReport) int {
	reviews := models.IntOr(r.Listing.ReviewCount, 0)
	if r.Report.Evidence.ReviewCount != nil && r.Listing.ReviewCount == nil {
		reviews = *r.Report.Evidence.ReviewCount
	}
	hostProperties := models.IntOr(r.Report.Evidence.HostPropertyCount, 1)
	if hostProperties <= 0 {
		hostProperties = 1
	}

	p := severityTerm(r.Report.Severity) +
		clamp(reviews, 0, 20) +
		clamp(hostProperties*4, 0, 20) +
		priceTerm(price(r))
	return clamp(p, 0, 100)
}

// SuggestedAction picks the inspector guidance for a severity.
func SuggestedAction(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "Immediate inspection recommended. High-traffic unregistered operator."
	case models.SeverityHigh:
		return "Schedule inspection within 1 week. Established listing without registration."
	case models.SeverityMedium:
		return "Send registration reminder. Follow up if no response within 30 days."
	default:
		return "Monitor and gather more evidence"
	}
}

// Prioritize ranks reports by priority descending, then oldest report first, then report
// id, and keeps at most limit targets. A limit of 0 keeps all of them. It does not
// modify reports.
func Prioritize(reports []OpenReport, limit int, a Assumptions) []models.EnforcementTarget {
	targets := make([]models.EnforcementTarget, 0, len(reports))
	for _, r := range reports {
		targets = append(targets, target(r, a))
	}

	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Priority != targets[j].Priority {
			return targets[i].Priority > targets[j].Priority
		}
		if !targets[i].ReportedAt.Equal(targets[j].ReportedAt) {
			return targets[i].ReportedAt.Before(targets[j].ReportedAt)
		}
		return targets[i].ReportID < targets[j].ReportID
	})

	if limit > 0 && len(targets) > limit {
		targets = targets[:limit]
	}
	return targets
}

func target(r OpenReport, a Assumptions) models.EnforcementTarget {
	return models.EnforcementTarget{
		ReportID:        r.Report.ID,
		Priority:        Priority(r),
		EstimatedImpact: a.Impact(price(r)),
		SuggestedAction: SuggestedAction(r.Report.Severity),
		ListingID:       r.Listing.ID,
		Severity:        r.Report.Severity,
		Title:           r.Listing.Title,
		URL:             r.Listing.URL,
		City:            r.Listing.City,
		HostName:        r.Listing.HostName,
		PricePerNight:   r.Listing.PricePerNight,
		ReviewCount:     r.Listing.ReviewCount,
		ReportedAt:      r.Report.CreatedAt,
	}
}

// Summarize totals every report in the snapshot, not only the ranked subset.
func Summarize(reports []OpenReport, a Assumptions) models.EnforcementSummary {
	sum := models.EnforcementSummary{
		TotalReports: len(reports),
		BySeverity:   make(map[models.Severity]int, len(models.Severities)),
	}
	for _, s := range models.Severities {
		sum.BySeverity[s] = 0
	}
	for _, r := range reports {
		sum.BySeverity[r.Report.Severity]++
		impact := a.Impact(price(r))
		sum.EstimatedTotalAnnualTaxLoss += impact.AnnualTaxLoss
		sum.EstimatedTotalMonthlyRevenue += impact.MonthlyRevenue
	}
	return sum
}

func price(r OpenReport) float64 {
	if r.Listing.PricePerNight != nil {
		return *r.Listing.PricePerNight
	}
	return models.FloatOr(r.Report.Evidence.PricePerNight, 0)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
