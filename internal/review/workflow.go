package review

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"tourism-compliance/internal/alerts"
	"tourism-compliance/internal/common/config"
	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/common/metrics"
	"tourism-compliance/internal/hosts"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store"

	"github.com/google/uuid"
)

const EscalationQueue = "review:escalations"

type Options struct {
	Policy   SeverityPolicy
	PageSize int
	Timeout  time.Duration
}

// OptionsFromConfig reads the review section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Policy: SeverityPolicy{
			CriticalReviewCount: cfg.Review.CriticalReviewCount,
			HighReviewCount:     cfg.Review.HighReviewCount,
		},
		PageSize: cfg.Review.PageSize,
		Timeout:  config.GetDuration(cfg.Reconciliation.PersistenceTimeout),
	}
}

// Result is what a decision produced. Report is set only for rejections.
type Result struct {
	MatchRecord *models.MatchRecord      `json:"matchRecord"`
	Report      *models.ComplianceReport `json:"report,omitempty"`
}

// EscalationEntry is pushed onto the escalation queue for manual follow-up.
type EscalationEntry struct {
	MatchRecordID string           `json:"matchRecordId"`
	ListingID     string           `json:"listingId"`
	PropertyID    *string          `json:"propertyId"`
	MatchType     models.MatchType `json:"matchType"`
	MatchScore    float64          `json:"matchScore"`
	Notes         string           `json:"notes,omitempty"`
	ListingURL    string           `json:"listingUrl,omitempty"`
	EscalatedAt   time.Time        `json:"escalatedAt"`
}

// ReportCreated is the payload of a compliance_report.created event.
type ReportCreated struct {
	ReportID      string            `json:"reportId"`
	MatchRecordID string            `json:"matchRecordId"`
	ListingID     string            `json:"listingId"`
	ReportType    models.ReportType `json:"reportType"`
	Severity      models.Severity   `json:"severity"`
	City          string            `json:"city,omitempty"`
	Title         string            `json:"title,omitempty"`
	Evidence      models.Evidence   `json:"evidence"`
}

// Service applies reviewer decisions and serves the review queue.
type Service struct {
	db        *database.PostgresClient
	redis     *database.RedisClient
	publisher alerts.Publisher
	opts      Options
	logger    logger.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates the review service. A nil publisher drops events.
func NewService(db *database.PostgresClient, redis *database.RedisClient, publisher alerts.Publisher, opts Options, log logger.Logger) *Service {
	if opts.Policy == (SeverityPolicy{}) {
		opts.Policy = DefaultSeverityPolicy()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if publisher == nil {
		publisher = alerts.Noop{}
	}
	return &Service{
		db:        db,
		redis:     redis,
		publisher: publisher,
		opts:      opts,
		logger:    log.WithFields(map[string]interface{}{"component": "review"}),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// decision carries one decide call through its transition.
type decision struct {
	record  *models.MatchRecord
	listing *models.ScrapedListing
	notes   string
	at      time.Time
	report  *models.ComplianceReport
}

type transition func(ctx context.Context, tx *sql.Tx, d *decision) error

func (s *Service) transitionFor(dec models.Decision) transition {
	switch dec {
	case models.DecisionApprove:
		return s.approve
	case models.DecisionReject:
		return s.reject
	case models.DecisionEscalate:
		return s.escalate
	}
	return nil
}

// Decide moves a pending match record to the terminal state named by dec and applies its
// side effect in the same transaction. Deciding a record twice fails with AlreadyDecided
// and changes nothing.
func (s *Service) Decide(ctx context.Context, matchID string, dec models.Decision, notes string) (*Result, error) {
	apply := s.transitionFor(dec)
	if apply == nil {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown decision %q", dec))
	}

	log := s.logger.WithFields(map[string]interface{}{"matchRecordId": matchID, "decision": string(dec)})

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	d := &decision{notes: notes, at: s.now()}
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		rec, listing, err := lockRecord(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if rec.Status.Terminal() {
			return errors.NewAlreadyDecidedError(rec.ID, string(rec.Status))
		}
		d.record, d.listing = rec, listing
		return apply(ctx, tx, d)
	})
	if err != nil {
		stdErr := classify(ctx, err).WithMetadata("matchRecordId", matchID)
		metrics.ReviewDecisions.WithLabelValues(string(dec), string(stdErr.Code)).Inc()
		log.Warn("decision rejected", map[string]interface{}{"errorCode": string(stdErr.Code), "error": stdErr.Error()})
		return nil, stdErr
	}

	metrics.ReviewDecisions.WithLabelValues(string(dec), "ok").Inc()
	log.Info("match record decided", map[string]interface{}{"listingId": d.listing.ID, "status": string(d.record.Status)})

	s.afterCommit(ctx, d)
	return &Result{MatchRecord: d.record, Report: d.report}, nil
}

func lockRecord(ctx context.Context, tx *sql.Tx, matchID string) (*models.MatchRecord, *models.ScrapedListing, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+store.Columns("m", store.MatchRecordFields)+`, `+store.Columns("l", store.ListingFields)+`
		FROM match_records m
		JOIN scraped_listings l ON l.id = m.scraped_listing_id
		WHERE m.id = $1
		FOR UPDATE OF m`, matchID)
	rec, listing, err := store.ScanMatchWithListing(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil, errors.NewNotFoundError("match record", matchID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load match record %s: %w", matchID, err)
	}
	return rec, listing, nil
}

// markDecided is the conditional status write shared by every transition. Zero affected
// rows means another writer decided the record first.
func markDecided(ctx context.Context, tx *sql.Tx, d *decision, status models.MatchStatus) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE match_records
		SET status = $2, decision_notes = $3, decided_at = $4
		WHERE id = $1 AND status = 'pending'`,
		d.record.ID, status, d.notes, d.at)
	if err != nil {
		return fmt.Errorf("update match record %s: %w", d.record.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match record %s: %w", d.record.ID, err)
	}
	if n == 0 {
		return errors.NewAlreadyDecidedError(d.record.ID, "decided concurrently")
	}

	at := d.at
	d.record.Status = status
	d.record.DecidedAt = &at
	d.record.DecisionNotes = d.notes
	return nil
}

func (s *Service) approve(ctx context.Context, tx *sql.Tx, d *decision) error {
	if d.record.PropertyID == nil {
		return errors.NewInvalidDecisionError("cannot approve a match record without a candidate property").
			WithMetadata("matchRecordId", d.record.ID)
	}
	if err := markDecided(ctx, tx, d, models.StatusApproved); err != nil {
		return err
	}
	if err := store.LinkListing(ctx, tx, d.listing.ID, *d.record.PropertyID); err != nil {
		return err
	}
	d.listing.IsCompliant = true
	d.listing.MatchedPropertyID = d.record.PropertyID
	return nil
}

func (s *Service) reject(ctx context.Context, tx *sql.Tx, d *decision) error {
	if err := markDecided(ctx, tx, d, models.StatusRejected); err != nil {
		return err
	}

	siblings, err := hosts.CountSiblings(ctx, tx, d.listing)
	if err != nil {
		return err
	}
	score := d.record.MatchScore
	report := &models.ComplianceReport{
		ID:               s.newID(),
		ScrapedListingID: d.listing.ID,
		MatchRecordID:    d.record.ID,
		ReportType:       models.ReportUnregistered,
		Severity:         s.opts.Policy.Severity(d.listing),
		Status:           models.ReportNew,
		Description:      describe(d),
		Evidence: models.Evidence{
			Version:           models.EvidenceVersion,
			HostPropertyCount: &siblings,
			ReviewCount:       d.listing.ReviewCount,
			Rating:            d.listing.Rating,
			PricePerNight:     d.listing.PricePerNight,
			ListingURL:        d.listing.URL,
			MatchType:         d.record.MatchType,
			MatchScore:        &score,
		},
		CreatedAt: d.at,
	}
	if err := store.InsertReport(ctx, tx, report); err != nil {
		return err
	}
	d.report = report
	return nil
}

func (s *Service) escalate(ctx context.Context, tx *sql.Tx, d *decision) error {
	return markDecided(ctx, tx, d, models.StatusEscalated)
}

func describe(d *decision) string {
	title := d.listing.Title
	if title == "" {
		title = d.listing.PlatformID
	}
	desc := fmt.Sprintf("%s listing %q has no matching registered property", d.listing.Platform, title)
	if d.notes != "" {
		desc += ": " + d.notes
	}
	return desc
}

// afterCommit runs the outbound effects of a committed decision. Their failures are logged
// and never undo the decision.
func (s *Service) afterCommit(ctx context.Context, d *decision) {
	switch d.record.Status {
	case models.StatusRejected:
		metrics.ComplianceReportsCreated.WithLabelValues(string(d.report.Severity)).Inc()
		event := alerts.NewEvent(alerts.EventReportCreated, d.report.ID, string(d.report.Severity), ReportCreated{
			ReportID:      d.report.ID,
			MatchRecordID: d.record.ID,
			ListingID:     d.listing.ID,
			ReportType:    d.report.ReportType,
			Severity:      d.report.Severity,
			City:          d.listing.City,
			Title:         d.listing.Title,
			Evidence:      d.report.Evidence,
		})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish report event", map[string]interface{}{
				"reportId": d.report.ID,
				"error":    err.Error(),
			})
		}

	case models.StatusEscalated:
		if s.redis == nil {
			return
		}
		entry := EscalationEntry{
			MatchRecordID: d.record.ID,
			ListingID:     d.listing.ID,
			PropertyID:    d.record.PropertyID,
			MatchType:     d.record.MatchType,
			MatchScore:    d.record.MatchScore,
			Notes:         d.notes,
			ListingURL:    d.listing.URL,
			EscalatedAt:   d.at,
		}
		if err := s.redis.PushJSON(ctx, EscalationQueue, entry); err != nil {
			s.logger.Error("failed to enqueue escalation", map[string]interface{}{
				"matchRecordId": d.record.ID,
				"error":         err.Error(),
			})
		}
	}
}
