// internal/workers/reconciliation/find-candidates/handler_test.go
package findcandidates

import (
	"context"
	stderrors "errors"
	"testing"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeFinder struct {
	listing    *models.ScrapedListing
	listingErr error
	candidates []models.RegisteredProperty
	findErr    error
	searched   *models.ScrapedListing
}

func (f *fakeFinder) Listing(_ context.Context, id string) (*models.ScrapedListing, error) {
	if f.listingErr != nil {
		return nil, f.listingErr
	}
	return f.listing, nil
}

func (f *fakeFinder) Candidates(_ context.Context, l *models.ScrapedListing) ([]models.RegisteredProperty, error) {
	f.searched = l
	return f.candidates, f.findErr
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	listing := &models.ScrapedListing{ID: "lst-1", City: "Dakar"}
	finder := &fakeFinder{
		listing:    listing,
		candidates: []models.RegisteredProperty{{ID: "p-1"}, {ID: "p-2"}},
	}
	h := NewHandler(LoadConfig(), finder, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{ListingID: " lst-1 "})

	require.NoError(t, err)
	assert.Equal(t, "lst-1", out.ListingID)
	assert.Equal(t, []string{"p-1", "p-2"}, out.CandidateIDs)
	assert.Equal(t, 2, out.CandidateCount)
	assert.Same(t, listing, finder.searched)
}

func TestHandler_Execute_NoCandidates(t *testing.T) {
	finder := &fakeFinder{listing: &models.ScrapedListing{ID: "lst-1"}}
	h := NewHandler(LoadConfig(), finder, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{ListingID: "lst-1"})

	require.NoError(t, err)
	assert.NotNil(t, out.CandidateIDs)
	assert.Empty(t, out.CandidateIDs)
	assert.Zero(t, out.CandidateCount)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		finder   *fakeFinder
		wantCode errors.ErrorCode
	}{
		{
			name:     "missing listing id",
			input:    &Input{ListingID: "  "},
			finder:   &fakeFinder{},
			wantCode: errors.ErrCodeValidation,
		},
		{
			name:     "listing not found",
			input:    &Input{ListingID: "lst-404"},
			finder:   &fakeFinder{listingErr: errors.NewNotFoundError("scraped listing", "lst-404")},
			wantCode: errors.ErrCodeNotFound,
		},
		{
			name:     "retrieval timeout",
			input:    &Input{ListingID: "lst-1"},
			finder:   &fakeFinder{listing: &models.ScrapedListing{ID: "lst-1"}, findErr: context.DeadlineExceeded},
			wantCode: errors.ErrCodeUpstreamTimeout,
		},
		{
			name:     "retrieval failure",
			input:    &Input{ListingID: "lst-1"},
			finder:   &fakeFinder{listing: &models.ScrapedListing{ID: "lst-1"}, findErr: stderrors.New("index unavailable")},
			wantCode: errors.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(LoadConfig(), tt.finder, logger.NewTestLogger(t))

			out, err := h.Execute(context.Background(), tt.input)

			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
		})
	}
}
