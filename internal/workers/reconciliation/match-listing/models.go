// internal/workers/reconciliation/match-listing/models.go
package matchlisting

type Input struct {
	ListingID string `json:"listingId"`
}

type Output struct {
	MatchRecordID  string  `json:"matchRecordId"`
	MatchType      string  `json:"matchType"`
	MatchScore     float64 `json:"matchScore"`
	PropertyID     string  `json:"propertyId,omitempty"`
	Status         string  `json:"status"`
	RequiresReview bool    `json:"requiresReview"`
}
