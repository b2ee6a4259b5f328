package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MatchType is the confidence tier of a match.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchProbable MatchType = "probable"
	MatchPossible MatchType = "possible"
	MatchNone     MatchType = "no_match"
)

var MatchTypes = []MatchType{MatchExact, MatchProbable, MatchPossible, MatchNone}

// Rank orders tiers by confidence, higher is more confident.
func (t MatchType) Rank() int {
	switch t {
	case MatchExact:
		return 3
	case MatchProbable:
		return 2
	case MatchPossible:
		return 1
	default:
		return 0
	}
}

func (t MatchType) Valid() bool {
	switch t {
	case MatchExact, MatchProbable, MatchPossible, MatchNone:
		return true
	}
	return false
}

// MatchStatus is the review state of a match record.
type MatchStatus string

const (
	StatusPending   MatchStatus = "pending"
	StatusApproved  MatchStatus = "approved"
	StatusRejected  MatchStatus = "rejected"
	StatusEscalated MatchStatus = "escalated"
)

var MatchStatuses = []MatchStatus{StatusPending, StatusApproved, StatusRejected, StatusEscalated}

// Terminal reports whether no further decision is allowed.
func (s MatchStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusEscalated
}

// Decision is a reviewer's verdict; each maps to the terminal status of the same name.
type Decision string

const (
	DecisionApprove  Decision = "approved"
	DecisionReject   Decision = "rejected"
	DecisionEscalate Decision = "escalated"
)

// ParseDecision accepts the verb or the status form, e.g. "approve" or "approved".
func ParseDecision(raw string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "approve":
		return DecisionApprove, nil
	case "rejected", "reject":
		return DecisionReject, nil
	case "escalated", "escalate":
		return DecisionEscalate, nil
	}
	return "", fmt.Errorf("unknown decision %q", raw)
}

func (d Decision) Status() MatchStatus {
	return MatchStatus(d)
}

// Factors is the per-factor score breakdown stored with a match record.
type Factors map[string]float64

func (f Factors) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

func (f *Factors) Scan(src interface{}) error {
	return scanJSON(src, f)
}

// MatchRecord is the outcome of matching one listing against its candidates.
type MatchRecord struct {
	ID               string      `json:"id"`
	ScrapedListingID string      `json:"scrapedListingId"`
	PropertyID       *string     `json:"propertyId"`
	MatchType        MatchType   `json:"matchType"`
	MatchScore       float64     `json:"matchScore"`
	MatchFactors     Factors     `json:"matchFactors"`
	Status           MatchStatus `json:"status"`
	DecisionNotes    string      `json:"decisionNotes,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	DecidedAt        *time.Time  `json:"decidedAt,omitempty"`
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
}
