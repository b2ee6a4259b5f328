// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tourism-compliance/internal/app"
	"tourism-compliance/internal/common/config"
	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/enforcement"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/reconciliation"

	decidematch "tourism-compliance/internal/workers/review/decide-match"
	matchlisting "tourism-compliance/internal/workers/reconciliation/match-listing"
)

// Runs against the docker-compose stack (postgres, redis). Set E2E=1 to enable.
func setup(t *testing.T) *app.App {
	if os.Getenv("E2E") == "" {
		t.Skip("E2E not set")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	// 🔧 FORCE LOCALHOST FOR E2E TESTS
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Reconciliation.CandidateBackend = "postgres"
	cfg.Reconciliation.CandidateCacheTTL = 0
	cfg.Integrations.ZeebeEvents.Enabled = false
	cfg.Integrations.AWS.SNS.Enabled = false

	a, err := app.New(context.Background(), cfg, zap.NewNop(), app.Options{ServiceName: "e2e", RetryDelay: 500 * time.Millisecond})
	require.NoError(t, err, "❌ bootstrap failed")
	t.Cleanup(a.Close)
	return a
}

// seedProperty inserts a registered property in a city unique to this run.
func seedProperty(t *testing.T, a *app.App, city string) string {
	id := "e2e-prop-" + uuid.NewString()
	_, err := a.Postgres.DB.Exec(`
		INSERT INTO registered_properties (id, name, address, city, neighborhood, latitude, longitude, total_rooms, capacity_guests, landlord_name, landlord_phone)
		VALUES ($1, 'Villa Teranga Almadies', 'Route des Almadies', $2, 'Almadies', 14.7450, -17.5100, 3, 6, 'Awa Diop', '+221770000001')`,
		id, city)
	require.NoError(t, err)
	return id
}

func listingJSON(city, platformID, title string) []byte {
	return []byte(fmt.Sprintf(`{
		"platform": "airbnb",
		"platformId": %q,
		"url": "https://airbnb.com/rooms/%s",
		"title": %q,
		"hostName": "Awa Diop",
		"hostPhone": "+221 77 000 00 01",
		"city": %q,
		"neighborhood": "Almadies",
		"latitude": 14.7452,
		"longitude": -17.5098,
		"pricePerNight": 45000,
		"bedrooms": 3,
		"maxGuests": 6,
		"reviewCount": 64,
		"rating": 4.8
	}`, platformID, platformID, title, city))
}

func cleanup(t *testing.T, a *app.App, city string) {
	t.Cleanup(func() {
		db := a.Postgres.DB
		_, _ = db.Exec(`DELETE FROM compliance_reports WHERE scraped_listing_id IN (SELECT id FROM scraped_listings WHERE city = $1)`, city)
		_, _ = db.Exec(`DELETE FROM match_records WHERE scraped_listing_id IN (SELECT id FROM scraped_listings WHERE city = $1)`, city)
		_, _ = db.Exec(`DELETE FROM scraped_listings WHERE city = $1`, city)
		_, _ = db.Exec(`DELETE FROM registered_properties WHERE city = $1`, city)
	})
}

// ==========================
// Full pipeline
// ==========================

func TestFullE2E(t *testing.T) {
	a := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	city := "E2E-" + uuid.NewString()[:8]
	cleanup(t, a, city)
	propertyID := seedProperty(t, a, city)

	t.Log("🚀 Ingesting listing...")
	ing, err := a.Ingestion.IngestJSON(ctx, listingJSON(city, uuid.NewString(), "Villa Teranga Almadies 3 chambres"))
	require.NoError(t, err)
	assert.True(t, ing.Created)

	t.Log("🔍 Matching via match-listing worker...")
	match := matchlisting.NewHandler(matchlisting.LoadConfig(), a.Reconciliation, a.Logger)
	out, err := match.Execute(ctx, &matchlisting.Input{ListingID: ing.ListingID})
	require.NoError(t, err)
	assert.NotEqual(t, string(models.MatchNone), out.MatchType)
	assert.Equal(t, propertyID, out.PropertyID)
	assert.True(t, out.RequiresReview)

	t.Log("⚖️ Rejecting via decide-match worker...")
	decide := decidematch.NewHandler(decidematch.LoadConfig(), a.Review, a.Logger)
	dec, err := decide.Execute(ctx, &decidematch.Input{MatchID: out.MatchRecordID, Decision: "reject", Notes: "different owner"})
	require.NoError(t, err)
	assert.Equal(t, "rejected", dec.Status)
	require.NotEmpty(t, dec.ReportID)

	_, err = decide.Execute(ctx, &decidematch.Input{MatchID: out.MatchRecordID, Decision: "approve"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyDecided))

	t.Log("📋 Ranking enforcement targets...")
	resp, err := a.Enforcement.Run(ctx, enforcement.Request{City: city, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Targets, 1)
	assert.Equal(t, dec.ReportID, resp.Targets[0].ReportID)
	assert.Equal(t, 1, resp.Summary.TotalReports)

	t.Log("✅ Full pipeline successful!")
}

func TestBatchAndRevalidate(t *testing.T) {
	a := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	city := "E2E-" + uuid.NewString()[:8]
	cleanup(t, a, city)
	propertyID := seedProperty(t, a, city)

	for i := 0; i < 3; i++ {
		_, err := a.Ingestion.IngestJSON(ctx, listingJSON(city, uuid.NewString(), fmt.Sprintf("Villa Teranga Almadies %d", i)))
		require.NoError(t, err)
	}

	res, err := a.Reconciliation.RunBatch(ctx, reconciliation.BatchRequest{City: city})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Selected)
	assert.Equal(t, 3, res.Processed)
	assert.Zero(t, res.Failed)

	again, err := a.Reconciliation.RunBatch(ctx, reconciliation.BatchRequest{City: city})
	require.NoError(t, err)
	assert.Zero(t, again.Selected, "pending records block re-selection")

	rows, err := a.Postgres.DB.QueryContext(ctx, `
		SELECT m.id FROM match_records m
		JOIN scraped_listings l ON l.id = m.scraped_listing_id
		WHERE l.city = $1 AND m.status = 'pending' AND m.property_id IS NOT NULL`, city)
	require.NoError(t, err)
	var pending []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		pending = append(pending, id)
	}
	require.NoError(t, rows.Close())

	var approved int
	for _, id := range pending {
		_, err := a.Review.Decide(ctx, id, models.DecisionApprove, "")
		require.NoError(t, err)
		approved++
	}
	require.Equal(t, 3, approved)

	_, err = a.Postgres.DB.Exec(`UPDATE registered_properties SET deregistered_at = NOW() WHERE id = $1`, propertyID)
	require.NoError(t, err)

	rv, err := a.Reconciliation.Revalidate(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(rv.Reopened), 3)
}
