package review

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"tourism-compliance/internal/alerts"
	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store/storetest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decidedAt = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type capturePublisher struct{ events []alerts.Event }

func (c *capturePublisher) Publish(_ context.Context, e alerts.Event) error {
	c.events = append(c.events, e)
	return nil
}

type testEnv struct {
	svc  *Service
	mock sqlmock.Sqlmock
	pub  *capturePublisher
	mr   *miniredis.Miniredis
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	pub := &capturePublisher{}

	svc := NewService(database.NewPostgresFromDB(db), rdb, pub, opts, logger.NewTestLogger(t))
	svc.now = func() time.Time { return decidedAt }
	svc.newID = func() string { return "r-1" }
	return &testEnv{svc: svc, mock: mock, pub: pub, mr: mr}
}

func createTestRecord() models.MatchRecord {
	return models.MatchRecord{
		ID:               "m-1",
		ScrapedListingID: "l-1",
		PropertyID:       models.StringPtr("p-1"),
		MatchType:        models.MatchProbable,
		MatchScore:       0.72,
		MatchFactors:     models.Factors{"nameSimilarity": 0.8, "geoProximity": 0.6},
		Status:           models.StatusPending,
		CreatedAt:        time.Date(2024, 5, 30, 8, 0, 0, 0, time.UTC),
	}
}

func createTestListing() models.ScrapedListing {
	return models.ScrapedListing{
		ID:            "l-1",
		Platform:      models.PlatformAirbnb,
		PlatformID:    "554433",
		URL:           "https://airbnb.example/rooms/554433",
		Title:         "Appartement vue mer",
		City:          "Dakar",
		HostPhone:     "+221771234567",
		PricePerNight: models.FloatPtr(120000),
		ReviewCount:   models.IntPtr(60),
		Rating:        models.FloatPtr(4.8),
	}
}

func (e *testEnv) expectLock(rec models.MatchRecord) {
	e.mock.ExpectQuery(`FOR UPDATE OF m`).
		WithArgs(rec.ID).
		WillReturnRows(storetest.MatchWithListingRows([]models.MatchRecord{rec}, []models.ScrapedListing{createTestListing()}))
}

func (e *testEnv) expectMarkDecided(status string, notes string, affected int64) {
	e.mock.ExpectExec(`UPDATE match_records\s+SET status = \$2`).
		WithArgs("m-1", status, notes, decidedAt).
		WillReturnResult(sqlmock.NewResult(0, affected))
}

// ==========================
// Approve
// ==========================

func TestDecide_ApproveLinksListing(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.mock.ExpectBegin()
	env.expectLock(createTestRecord())
	env.expectMarkDecided("approved", "same building", 1)
	env.mock.ExpectExec(`UPDATE scraped_listings\s+SET is_compliant = TRUE`).
		WithArgs("l-1", "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	res, err := env.svc.Decide(context.Background(), "m-1", models.DecisionApprove, "same building")
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, res.MatchRecord.Status)
	require.NotNil(t, res.MatchRecord.DecidedAt)
	assert.Equal(t, decidedAt, *res.MatchRecord.DecidedAt)
	assert.Nil(t, res.Report)
	assert.Empty(t, env.pub.events)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDecide_SecondApproveIsAlreadyDecided(t *testing.T) {
	env := newTestEnv(t, Options{})

	decided := createTestRecord()
	decided.Status = models.StatusApproved
	at := decidedAt
	decided.DecidedAt = &at

	env.mock.ExpectBegin()
	env.expectLock(decided)
	env.mock.ExpectRollback()

	_, err := env.svc.Decide(context.Background(), "m-1", models.DecisionApprove, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyDecided))
	assert.Empty(t, env.pub.events)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDecide_ApproveWithoutPropertyIsInvalid(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := createTestRecord()
	rec.PropertyID = nil
	rec.MatchType = models.MatchNone
	rec.MatchScore = 0

	env.mock.ExpectBegin()
	env.expectLock(rec)
	env.mock.ExpectRollback()

	_, err := env.svc.Decide(context.Background(), "m-1", models.DecisionApprove, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidDecision))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDecide_LinkFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.mock.ExpectBegin()
	env.expectLock(createTestRecord())
	env.expectMarkDecided("approved", "", 1)
	env.mock.ExpectExec(`UPDATE scraped_listings`).WillReturnError(stderrors.New("deadlock detected"))
	env.mock.ExpectRollback()

	_, err := env.svc.Decide(context.Background(), "m-1", models.DecisionApprove, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

// ==========================
// Reject
// ==========================

func TestDecide_RejectCreatesExactlyOneReport(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.mock.ExpectBegin()
	env.expectLock(createTestRecord())
	env.expectMarkDecided("rejected", "not in registry", 1)
	env.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scraped_listings WHERE host_phone = \$1`).
		WithArgs("+221771234567").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	env.mock.ExpectExec(`INSERT INTO compliance_reports`).
		WithArgs("r-1", "l-1", "m-1", "unregistered_property", "critical", "new", sqlmock.AnyArg(), sqlmock.AnyArg(), decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	res, err := env.svc.Decide(context.Background(), "m-1", models.DecisionReject, "not in registry")
	require.NoError(t, err)
	require.NotNil(t, res.Report)

	report := res.Report
	assert.Equal(t, models.ReportNew, report.Status)
	assert.Equal(t, models.SeverityCritical, report.Severity)
	assert.Equal(t, "m-1", report.MatchRecordID)
	require.NotNil(t, report.Evidence.HostPropertyCount)
	assert.Equal(t, 3, *report.Evidence.HostPropertyCount)
	assert.Equal(t, 60, *report.Evidence.ReviewCount)
	assert.Equal(t, models.EvidenceVersion, report.Evidence.Version)
	assert.Contains(t, report.Description, "not in registry")

	require.Len(t, env.pub.events, 1)
	assert.Equal(t, alerts.EventReportCreated, env.pub.events[0].Type)
	assert.Equal(t, "r-1", env.pub.events[0].CorrelationKey)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDecide_RejectIsNotRepeatable(t *testing.T) {
	env := newTestEnv(t, Options{})

	rejected := createTestRecord()
	rejected.Status = models.StatusRejected
	at := decidedAt
	rejected.DecidedAt = &at

	env.mock.ExpectBegin()
	env.expectLock(rejected)
	env.mock.ExpectRollback()

	_, err := env.svc.Decide(context.Background(), "m-1", models.DecisionReject, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyDecided))
	assert.Empty(t, env.pub.events)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDecide_ConcurrentWriterWins(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.mock.ExpectBegin()
	env.expectLock(createTestRecord())
	env.expectMarkDecided("rejected", "", 0)
	env.mock.ExpectRollback()

	_, err := env.svc.Decide(context.Background(), "m-1", models.DecisionReject, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyDecided))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

// ==========================
// Escalate
// ==========================

func TestDecide_EscalateQueuesForFollowUp(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.mock.ExpectBegin()
	env.expectLock(createTestRecord())
	env.expectMarkDecided("escalated", "owner disputes", 1)
	env.mock.ExpectCommit()

	res, err := env.svc.Decide(context.Background(), "m-1", models.DecisionEscalate, "owner disputes")
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, res.MatchRecord.Status)
	assert.Nil(t, res.Report)
	assert.Empty(t, env.pub.events)

	entries, err := env.svc.Escalations(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "m-1", entries[0].MatchRecordID)
	assert.Equal(t, "owner disputes", entries[0].Notes)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

// ==========================
// Failure modes
// ==========================

func TestDecide_NotFound(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(`FOR UPDATE OF m`).WithArgs("missing").
		WillReturnRows(storetest.MatchWithListingRows(nil, nil))
	env.mock.ExpectRollback()

	_, err := env.svc.Decide(context.Background(), "missing", models.DecisionEscalate, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDecide_TimeoutIsRetryable(t *testing.T) {
	env := newTestEnv(t, Options{Timeout: 20 * time.Millisecond})

	env.mock.ExpectBegin().WillDelayFor(500 * time.Millisecond)

	_, err := env.svc.Decide(context.Background(), "m-1", models.DecisionEscalate, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUpstreamTimeout))
	assert.True(t, errors.IsRetryable(err))
}

func TestDecide_UnknownDecision(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.svc.Decide(context.Background(), "m-1", models.Decision("pending"), "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

// ==========================
// Queue reads
// ==========================

func TestListPending(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM match_records`).
		WithArgs("probable").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	env.mock.ExpectQuery(`ORDER BY m.match_score DESC`).
		WithArgs("probable", 50, 0).
		WillReturnRows(storetest.MatchWithListingRows([]models.MatchRecord{createTestRecord()}, []models.ScrapedListing{createTestListing()}))

	page, err := env.svc.ListPending(context.Background(), PendingQuery{MatchType: models.MatchProbable})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 50, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 0.8, page.Items[0].Match.MatchFactors["nameSimilarity"])
	assert.Equal(t, "Dakar", page.Items[0].Listing.City)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestListPending_RejectsUnknownTier(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.svc.ListPending(context.Background(), PendingQuery{MatchType: "maybe"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.mock.ExpectQuery(`GROUP BY status, match_type`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "match_type", "count"}).
			AddRow("pending", "exact", 2).
			AddRow("pending", "no_match", 1).
			AddRow("approved", "exact", 4).
			AddRow("rejected", "possible", 1))

	sum, err := env.svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalPending)
	assert.Equal(t, 2, sum.PendingByTier[models.MatchExact])
	assert.Equal(t, 0, sum.PendingByTier[models.MatchProbable])
	assert.Equal(t, 4, sum.ByStatus[models.StatusApproved])
	assert.Equal(t, 0, sum.ByStatus[models.StatusEscalated])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGetMatch_NotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.mock.ExpectQuery(`WHERE m.id = \$1`).WithArgs("nope").
		WillReturnRows(storetest.MatchWithListingRows(nil, nil))

	_, err := env.svc.GetMatch(context.Background(), "nope")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestQueueReads_TimeoutIsRetryable(t *testing.T) {
	tests := []struct {
		name  string
		query string
		call  func(s *Service) error
	}{
		{
			name:  "list pending",
			query: `SELECT COUNT\(\*\) FROM match_records`,
			call: func(s *Service) error {
				_, err := s.ListPending(context.Background(), PendingQuery{})
				return err
			},
		},
		{
			name:  "get match",
			query: `WHERE m.id = \$1`,
			call: func(s *Service) error {
				_, err := s.GetMatch(context.Background(), "m-1")
				return err
			},
		},
		{
			name:  "summary",
			query: `GROUP BY status, match_type`,
			call: func(s *Service) error {
				_, err := s.Summary(context.Background())
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{Timeout: 20 * time.Millisecond})
			env.mock.ExpectQuery(tt.query).
				WillDelayFor(300 * time.Millisecond).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

			err := tt.call(env.svc)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeUpstreamTimeout), err.Error())
			assert.True(t, errors.IsRetryable(err))
		})
	}
}

func TestEscalations_SkipsMalformed(t *testing.T) {
	env := newTestEnv(t, Options{})
	entry, _ := json.Marshal(EscalationEntry{MatchRecordID: "m-9"})
	_, err := env.mr.Lpush(EscalationQueue, "not json")
	require.NoError(t, err)
	_, err = env.mr.Lpush(EscalationQueue, string(entry))
	require.NoError(t, err)

	entries, err := env.svc.Escalations(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "m-9", entries[0].MatchRecordID)
}

// ==========================
// Policy & requests
// ==========================

func TestSeverityPolicy(t *testing.T) {
	policy := DefaultSeverityPolicy()
	tests := []struct {
		reviews *int
		want    models.Severity
	}{
		{models.IntPtr(50), models.SeverityCritical},
		{models.IntPtr(120), models.SeverityCritical},
		{models.IntPtr(49), models.SeverityHigh},
		{models.IntPtr(10), models.SeverityHigh},
		{models.IntPtr(9), models.SeverityMedium},
		{nil, models.SeverityMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.Severity(&models.ScrapedListing{ReviewCount: tt.reviews}))
	}
}

func TestDecisionRequest_Parse(t *testing.T) {
	d, err := DecisionRequest{MatchID: "m-1", Decision: "reject"}.Parse()
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, d)

	_, err = DecisionRequest{MatchID: "m-1", Decision: "maybe"}.Parse()
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = DecisionRequest{Decision: "approved"}.Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matchId")
}
