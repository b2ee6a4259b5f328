// internal/workers/review/decide-match/handler_test.go
package decidematch

import (
	"context"
	"testing"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/review"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type decideCall struct {
	matchID  string
	decision models.Decision
	notes    string
}

type fakeDecider struct {
	result *review.Result
	err    error
	calls  []decideCall
}

func (f *fakeDecider) Decide(_ context.Context, matchID string, dec models.Decision, notes string) (*review.Result, error) {
	f.calls = append(f.calls, decideCall{matchID, dec, notes})
	return f.result, f.err
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Approve(t *testing.T) {
	dec := &fakeDecider{result: &review.Result{
		MatchRecord: &models.MatchRecord{ID: "m-1", Status: models.StatusApproved},
	}}
	h := NewHandler(LoadConfig(), dec, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{MatchID: "m-1", Decision: "approve", Notes: "same host"})

	require.NoError(t, err)
	assert.Equal(t, &Output{MatchRecordID: "m-1", Status: "approved"}, out)
	require.Len(t, dec.calls, 1)
	assert.Equal(t, decideCall{"m-1", models.DecisionApprove, "same host"}, dec.calls[0])
}

func TestHandler_Execute_RejectCreatesReport(t *testing.T) {
	dec := &fakeDecider{result: &review.Result{
		MatchRecord: &models.MatchRecord{ID: "m-1", Status: models.StatusRejected},
		Report:      &models.ComplianceReport{ID: "r-1", Severity: models.SeverityHigh},
	}}
	h := NewHandler(LoadConfig(), dec, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{MatchID: "m-1", Decision: "rejected"})

	require.NoError(t, err)
	assert.Equal(t, "rejected", out.Status)
	assert.Equal(t, "r-1", out.ReportID)
	assert.Equal(t, "high", out.Severity)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     *Input
		decideErr error
		wantCode  errors.ErrorCode
		wantCalls int
	}{
		{"missing match id", &Input{Decision: "approve"}, nil, errors.ErrCodeValidation, 0},
		{"unknown decision", &Input{MatchID: "m-1", Decision: "maybe"}, nil, errors.ErrCodeValidation, 0},
		{"already decided", &Input{MatchID: "m-1", Decision: "approve"}, errors.NewAlreadyDecidedError("m-1", "rejected"), errors.ErrCodeAlreadyDecided, 1},
		{"no property to approve", &Input{MatchID: "m-1", Decision: "approve"}, errors.NewInvalidDecisionError("no_match record has no property"), errors.ErrCodeInvalidDecision, 1},
		{"unknown match", &Input{MatchID: "m-404", Decision: "escalate"}, errors.NewNotFoundError("match record", "m-404"), errors.ErrCodeNotFound, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := &fakeDecider{err: tt.decideErr}
			h := NewHandler(LoadConfig(), dec, logger.NewTestLogger(t))

			out, err := h.Execute(context.Background(), tt.input)

			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
			assert.Len(t, dec.calls, tt.wantCalls)
		})
	}
}
