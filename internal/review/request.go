package review

import (
	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DecisionRequest is the body of a decision submitted over HTTP or zeebe.
type DecisionRequest struct {
	MatchID  string `json:"matchId"`
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

func (r DecisionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MatchID, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Decision, validation.Required,
			validation.In("approved", "rejected", "escalated", "approve", "reject", "escalate")),
		validation.Field(&r.Notes, validation.Length(0, 2000)),
	)
}

// Parse validates r and returns its decision.
func (r DecisionRequest) Parse() (models.Decision, error) {
	if err := r.Validate(); err != nil {
		return "", errors.NewValidationError(err.Error())
	}
	d, err := models.ParseDecision(r.Decision)
	if err != nil {
		return "", errors.NewValidationError(err.Error())
	}
	return d, nil
}
