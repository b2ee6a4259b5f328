package review

import "tourism-compliance/internal/models"

// SeverityPolicy derives a report severity from listing traction.
type SeverityPolicy struct {
	CriticalReviewCount int
	HighReviewCount     int
}

// DefaultSeverityPolicy is critical at 50 reviews and high at 10.
func DefaultSeverityPolicy() SeverityPolicy {
	return SeverityPolicy{CriticalReviewCount: 50, HighReviewCount: 10}
}

// Severity derives report severity from the listing review count.
func (p SeverityPolicy) Severity(l *models.ScrapedListing) models.Severity {
	reviews := models.IntOr(l.ReviewCount, 0)
	switch {
	case reviews >= p.CriticalReviewCount:
		return models.SeverityCritical
	case reviews >= p.HighReviewCount:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}
