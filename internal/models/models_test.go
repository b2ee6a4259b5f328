package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapedListing_Validate(t *testing.T) {
	tests := []struct {
		name    string
		listing ScrapedListing
		wantErr string
	}{
		{"valid minimal", ScrapedListing{Platform: PlatformAirbnb, PlatformID: "a1"}, ""},
		{"zero price allowed", ScrapedListing{Platform: PlatformOther, PlatformID: "x", PricePerNight: FloatPtr(0)}, ""},
		{"missing platform", ScrapedListing{PlatformID: "a1"}, "platform"},
		{"unknown platform", ScrapedListing{Platform: "craigslist", PlatformID: "a1"}, "platform"},
		{"missing platformId", ScrapedListing{Platform: PlatformBooking}, "platformId"},
		{"negative price", ScrapedListing{Platform: PlatformAirbnb, PlatformID: "a1", PricePerNight: FloatPtr(-1)}, "pricePerNight"},
		{"negative bedrooms", ScrapedListing{Platform: PlatformAirbnb, PlatformID: "a1", Bedrooms: IntPtr(-2)}, "bedrooms"},
		{"rating out of range", ScrapedListing{Platform: PlatformAirbnb, PlatformID: "a1", Rating: FloatPtr(5.5)}, "rating"},
		{"latitude out of range", ScrapedListing{Platform: PlatformAirbnb, PlatformID: "a1", Latitude: FloatPtr(120)}, "latitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.listing.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseDecision(t *testing.T) {
	for raw, want := range map[string]Decision{
		"approved": DecisionApprove, "Approve": DecisionApprove,
		"rejected": DecisionReject, " reject ": DecisionReject,
		"escalated": DecisionEscalate, "ESCALATE": DecisionEscalate,
	} {
		got, err := ParseDecision(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
		assert.True(t, got.Status().Terminal())
	}

	_, err := ParseDecision("pending")
	assert.Error(t, err)
}

func TestMatchTypeRank(t *testing.T) {
	assert.Greater(t, MatchExact.Rank(), MatchProbable.Rank())
	assert.Greater(t, MatchProbable.Rank(), MatchPossible.Rank())
	assert.Greater(t, MatchPossible.Rank(), MatchNone.Rank())
	assert.False(t, MatchType("maybe").Valid())
	assert.False(t, StatusPending.Terminal())
}

func TestFactorsScan(t *testing.T) {
	var f Factors
	require.NoError(t, f.Scan([]byte(`{"geoProximity":0.9,"nameSimilarity":0.5}`)))
	assert.Equal(t, 0.9, f["geoProximity"])

	var empty Factors
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
	assert.Error(t, empty.Scan(42))

	v, err := Factors(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}

func TestEvidenceJSON_OmitsAbsentFields(t *testing.T) {
	raw, err := json.Marshal(Evidence{Version: EvidenceVersion, ReviewCount: IntPtr(12)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"reviewCount":12}`, string(raw))

	var e Evidence
	require.NoError(t, e.Scan(`{"version":1}`))
	assert.Nil(t, e.HostPropertyCount)
}
