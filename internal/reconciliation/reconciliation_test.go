package reconciliation

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"tourism-compliance/internal/alerts"
	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/matching"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store"
	"tourism-compliance/internal/store/storetest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type stubFinder struct {
	mu      sync.Mutex
	byID    map[string][]models.RegisteredProperty
	errByID map[string]error
	onCall  func()
	calls   []string
}

func (f *stubFinder) FindCandidates(_ context.Context, l *models.ScrapedListing) ([]models.RegisteredProperty, error) {
	f.mu.Lock()
	f.calls = append(f.calls, l.ID)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}
	if err := f.errByID[l.ID]; err != nil {
		return nil, err
	}
	return f.byID[l.ID], nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []alerts.Event
}

func (c *capturePublisher) Publish(_ context.Context, e alerts.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

type testEnv struct {
	svc    *Service
	mock   sqlmock.Sqlmock
	mr     *miniredis.Miniredis
	finder *stubFinder
	pub    *capturePublisher
}

func newTestEnv(t *testing.T, autoApprove bool) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	engineOpts := matching.DefaultOptions()
	engineOpts.AutoApprove = autoApprove

	finder := &stubFinder{byID: map[string][]models.RegisteredProperty{}, errByID: map[string]error{}}
	pub := &capturePublisher{}
	svc := NewService(Deps{
		DB:        database.NewPostgresFromDB(db),
		Redis:     rdb,
		Finder:    finder,
		Engine:    matching.NewEngine(engineOpts),
		Publisher: pub,
	}, Options{Workers: 1, BatchSize: 100}, logger.NewTestLogger(t))
	svc.now = func() time.Time { return fixedNow }
	svc.newID = func() string { return "run-1" }

	return &testEnv{svc: svc, mock: mock, mr: mr, finder: finder, pub: pub}
}

func createTestListing(id string) models.ScrapedListing {
	return models.ScrapedListing{
		ID:         id,
		Platform:   models.PlatformAirbnb,
		PlatformID: "pid-" + id,
		Title:      "Villa Teranga",
		City:       "Dakar",
		Latitude:   models.FloatPtr(14.7000),
		Longitude:  models.FloatPtr(-17.4500),
		Bedrooms:   models.IntPtr(3),
		MaxGuests:  models.IntPtr(6),
	}
}

func createTestProperty(id string) models.RegisteredProperty {
	return models.RegisteredProperty{
		ID:             id,
		Name:           "Villa Teranga",
		City:           "Dakar",
		Latitude:       models.FloatPtr(14.7000),
		Longitude:      models.FloatPtr(-17.4500),
		TotalRooms:     models.IntPtr(3),
		CapacityGuests: models.IntPtr(6),
	}
}

func (e *testEnv) expectPersist() {
	e.mock.ExpectBegin()
	e.mock.ExpectExec(`INSERT INTO match_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectCommit()
}

// ==========================
// Reconcile
// ==========================

func TestReconcile_PersistsPendingRecord(t *testing.T) {
	env := newTestEnv(t, false)
	env.finder.byID["l-1"] = []models.RegisteredProperty{createTestProperty("p-1")}
	env.expectPersist()

	l := createTestListing("l-1")
	rec, err := env.svc.Reconcile(context.Background(), &l)
	require.NoError(t, err)

	assert.Equal(t, models.MatchExact, rec.MatchType)
	assert.Equal(t, models.StatusPending, rec.Status)
	require.NotNil(t, rec.PropertyID)
	assert.Equal(t, "p-1", *rec.PropertyID)
	assert.False(t, l.IsCompliant)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestReconcile_NoCandidates(t *testing.T) {
	env := newTestEnv(t, false)
	env.expectPersist()

	l := createTestListing("l-1")
	rec, err := env.svc.Reconcile(context.Background(), &l)
	require.NoError(t, err)

	assert.Equal(t, models.MatchNone, rec.MatchType)
	assert.Nil(t, rec.PropertyID)
	assert.Zero(t, rec.MatchScore)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestReconcile_AutoApproveLinksInSameTransaction(t *testing.T) {
	env := newTestEnv(t, true)
	env.finder.byID["l-1"] = []models.RegisteredProperty{createTestProperty("p-1")}

	env.mock.ExpectBegin()
	env.mock.ExpectExec(`INSERT INTO match_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec(`UPDATE scraped_listings\s+SET is_compliant = TRUE`).
		WithArgs("l-1", "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	l := createTestListing("l-1")
	rec, err := env.svc.Reconcile(context.Background(), &l)
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, rec.Status)
	assert.True(t, l.IsCompliant)
	require.NotNil(t, l.MatchedPropertyID)
	assert.Equal(t, "p-1", *l.MatchedPropertyID)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestReconcile_RetrievalFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t, false)
	env.finder.errByID["l-1"] = errors.NewUpstreamTimeoutError("retrieval", context.DeadlineExceeded)

	l := createTestListing("l-1")
	_, err := env.svc.Reconcile(context.Background(), &l)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUpstreamTimeout))
	assert.True(t, errors.IsRetryable(err))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestReconcile_PersistenceFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, false)

	env.mock.ExpectBegin()
	env.mock.ExpectExec(`INSERT INTO match_records`).WillReturnError(stderrors.New("disk full"))
	env.mock.ExpectRollback()

	l := createTestListing("l-1")
	_, err := env.svc.Reconcile(context.Background(), &l)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestReconcileListing_NotFound(t *testing.T) {
	env := newTestEnv(t, false)
	env.mock.ExpectQuery(`FROM scraped_listings WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(store.ListingFields))

	_, err := env.svc.ReconcileListing(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	assert.Empty(t, env.finder.calls)
}

func TestReconcileListing_LoadsThenMatches(t *testing.T) {
	env := newTestEnv(t, false)
	env.mock.ExpectQuery(`FROM scraped_listings WHERE id = \$1`).
		WithArgs("l-1").
		WillReturnRows(storetest.ListingRows(createTestListing("l-1")))
	env.expectPersist()

	rec, err := env.svc.ReconcileListing(context.Background(), "l-1")
	require.NoError(t, err)
	assert.Equal(t, "l-1", rec.ScrapedListingID)
	assert.Equal(t, []string{"l-1"}, env.finder.calls)
}

// ==========================
// Batch
// ==========================

func (e *testEnv) expectEligible(city string, limit int, listings ...models.ScrapedListing) {
	e.mock.ExpectQuery(`WHERE l.is_compliant = FALSE`).
		WithArgs(city, limit).
		WillReturnRows(storetest.ListingRows(listings...))
}

func TestRunBatch_ProcessesEligibleListings(t *testing.T) {
	env := newTestEnv(t, false)
	env.finder.byID["l-1"] = []models.RegisteredProperty{createTestProperty("p-1")}
	env.finder.errByID["l-3"] = errors.NewUpstreamTimeoutError("retrieval", context.DeadlineExceeded)

	env.expectEligible("Dakar", 100, createTestListing("l-1"), createTestListing("l-2"), createTestListing("l-3"))
	env.expectPersist()
	env.expectPersist()

	res, err := env.svc.RunBatch(context.Background(), BatchRequest{City: " Dakar "})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, 3, res.Selected)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.Cancelled)
	assert.Equal(t, 1, res.ByMatchType[models.MatchExact])
	assert.Equal(t, 1, res.ByMatchType[models.MatchNone])
	assert.Equal(t, 0, res.ByMatchType[models.MatchPossible])
	assert.False(t, env.mr.Exists(BatchLock), "lock must be released")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRunBatch_ExplicitLimit(t *testing.T) {
	env := newTestEnv(t, false)
	env.expectEligible("", 5)

	res, err := env.svc.RunBatch(context.Background(), BatchRequest{Limit: 5})
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRunBatch_RejectsConcurrentRun(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.mr.Set(BatchLock, "held"))

	_, err := env.svc.RunBatch(context.Background(), BatchRequest{})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBatchInProgress))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRunBatch_CancelBetweenListings(t *testing.T) {
	env := newTestEnv(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the first listing cancels the run while it is in flight
	env.finder.onCall = cancel
	env.expectEligible("", 100, createTestListing("l-1"), createTestListing("l-2"), createTestListing("l-3"))
	env.expectPersist()

	res, err := env.svc.RunBatch(ctx, BatchRequest{})
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, []string{"l-1"}, env.finder.calls)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRunBatch_InvalidRequest(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.svc.RunBatch(context.Background(), BatchRequest{Limit: -1})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestRunBatch_QueryFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.mock.ExpectQuery(`WHERE l.is_compliant = FALSE`).WillReturnError(stderrors.New("connection reset"))

	_, err := env.svc.RunBatch(context.Background(), BatchRequest{})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))
	assert.False(t, env.mr.Exists(BatchLock))
}

// ==========================
// Revalidation
// ==========================

func TestRevalidate_ReopensStaleLinks(t *testing.T) {
	env := newTestEnv(t, false)
	dereg := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	env.mock.ExpectQuery(`JOIN registered_properties p ON p.id = l.matched_property_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "property_id", "deregistered_at"}).
			AddRow("l-1", "p-1", dereg).
			AddRow("l-2", "p-2", dereg))
	env.mock.ExpectExec(`SET is_compliant = FALSE, matched_property_id = NULL`).
		WithArgs("l-1", "p-1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec(`SET is_compliant = FALSE, matched_property_id = NULL`).
		WithArgs("l-2", "p-2", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := env.svc.Revalidate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, []string{"l-1"}, res.Reopened)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)

	require.Len(t, env.pub.events, 1)
	event := env.pub.events[0]
	assert.Equal(t, alerts.EventListingRevalidated, event.Type)
	assert.Equal(t, "l-1", event.CorrelationKey)
	payload, ok := event.Payload.(ListingRevalidated)
	require.True(t, ok)
	assert.Equal(t, "p-1", payload.PropertyID)
	assert.Equal(t, dereg, payload.DeregisteredAt)

	assert.False(t, env.mr.Exists(BatchLock))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRevalidate_CountsFailures(t *testing.T) {
	env := newTestEnv(t, false)
	env.mock.ExpectQuery(`JOIN registered_properties p`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "property_id", "deregistered_at"}).
			AddRow("l-1", "p-1", fixedNow))
	env.mock.ExpectExec(`SET is_compliant = FALSE`).WillReturnError(stderrors.New("deadlock detected"))

	res, err := env.svc.Revalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, res.Reopened)
	assert.Empty(t, env.pub.events)
}

func TestRevalidate_SharesBatchLock(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.mr.Set(BatchLock, "held"))

	_, err := env.svc.Revalidate(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeBatchInProgress))
}
