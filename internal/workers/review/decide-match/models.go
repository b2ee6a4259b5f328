// internal/workers/review/decide-match/models.go
package decidematch

type Input struct {
	MatchID  string `json:"matchId"`
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

type Output struct {
	MatchRecordID string `json:"matchRecordId"`
	Status        string `json:"status"`
	ReportID      string `json:"reportId,omitempty"`
	Severity      string `json:"severity,omitempty"`
}
