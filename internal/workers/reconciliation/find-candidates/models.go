// internal/workers/reconciliation/find-candidates/models.go
package findcandidates

type Input struct {
	ListingID string `json:"listingId"`
}

type Output struct {
	ListingID      string   `json:"listingId"`
	CandidateIDs   []string `json:"candidateIds"`
	CandidateCount int      `json:"candidateCount"`
}
