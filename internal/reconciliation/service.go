package reconciliation

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
	"tourism-compliance/internal/common/observability"
	"tourism-compliance/internal/matching"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CandidateFinder is implemented by *retrieval.Retriever.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, l *models.ScrapedListing) ([]models.RegisteredProperty, error)
}

// Options tune batch size, worker concurrency and the reconcile lock.
type Options struct {
	PersistenceTimeout time.Duration
	Workers            int
	BatchSize          int
	LockTTL            time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PersistenceTimeout: config.GetDuration(cfg.Reconciliation.PersistenceTimeout),
		Workers:            cfg.Reconciliation.Workers,
		BatchSize:          cfg.Reconciliation.BatchSize,
	}
}

// Deps are the collaborators a Service needs. Redis, Publisher and Obs may be nil.
type Deps struct {
	DB        *database.PostgresClient
	Redis     *database.RedisClient
	Finder    CandidateFinder
	Engine    *matching.Engine
	Publisher alerts.Publisher
	Obs       *observability.Observability
}

// Service runs the per-listing pipeline: retrieve candidates, match, persist.
type Service struct {
	deps   Deps
	opts   Options
	logger logger.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates the reconciliation service.
func NewService(deps Deps, opts Options, log logger.Logger) *Service {
	if opts.PersistenceTimeout <= 0 {
		opts.PersistenceTimeout = 5 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if deps.Engine == nil {
		deps.Engine = matching.NewEngine(matching.DefaultOptions())
	}
	if deps.Publisher == nil {
		deps.Publisher = alerts.Noop{}
	}
	return &Service{
		deps:   deps,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "reconciliation"}),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Candidates exposes the retrieval stage on its own.
func (s *Service) Candidates(ctx context.Context, l *models.ScrapedListing) ([]models.RegisteredProperty, error) {
	return s.deps.Finder.FindCandidates(ctx, l)
}

// ReconcileListing loads the listing by id and reconciles it.
func (s *Service) ReconcileListing(ctx context.Context, listingID string) (*models.MatchRecord, error) {
	l, err := s.Listing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, l)
}

// Listing loads one scraped listing by id.
func (s *Service) Listing(ctx context.Context, listingID string) (*models.ScrapedListing, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PersistenceTimeout)
	defer cancel()

	l, err := store.GetListing(ctx, s.deps.DB.DB, listingID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("scraped listing", listingID)
	}
	if err != nil {
		return nil, classify(ctx, "persistence", err).WithMetadata("listingId", listingID)
	}
	return l, nil
}

// Reconcile matches one listing against its candidates and stores the resulting pending
// record. An auto-approved record links the listing in the same transaction.
func (s *Service) Reconcile(ctx context.Context, l *models.ScrapedListing) (*models.MatchRecord, error) {
	ctx, span := s.deps.Obs.StartSpan(ctx, "reconcile.listing", attribute.String("listing.id", l.ID))
	defer span.End()

	start := time.Now()
	candidates, err := s.deps.Finder.FindCandidates(ctx, l)
	s.deps.Obs.RecordStage(ctx, "retrieve", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	start = time.Now()
	rec := s.deps.Engine.Match(l, candidates)
	s.deps.Obs.RecordStage(ctx, "match", time.Since(start))

	start = time.Now()
	err = s.persist(ctx, l, rec)
	s.deps.Obs.RecordStage(ctx, "persist", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return nil, err
	}

	metrics.ListingsMatched.WithLabelValues(string(rec.MatchType)).Inc()
	metrics.MatchScore.Observe(rec.MatchScore)
	span.SetAttributes(
		attribute.String("match.type", string(rec.MatchType)),
		attribute.Float64("match.score", rec.MatchScore),
		attribute.Int("candidates", len(candidates)),
	)

	s.logger.Info("listing reconciled", map[string]interface{}{
		"listingId":     l.ID,
		"matchRecordId": rec.ID,
		"matchType":     string(rec.MatchType),
		"matchScore":    rec.MatchScore,
		"candidates":    len(candidates),
		"status":        string(rec.Status),
	})
	return rec, nil
}

func (s *Service) persist(ctx context.Context, l *models.ScrapedListing, rec *models.MatchRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PersistenceTimeout)
	defer cancel()

	err := s.deps.DB.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.InsertMatchRecord(ctx, tx, rec); err != nil {
			return err
		}
		if rec.Status == models.StatusApproved && rec.PropertyID != nil {
			return store.LinkListing(ctx, tx, l.ID, *rec.PropertyID)
		}
		return nil
	})
	if err != nil {
		return classify(ctx, "persistence", err).WithMetadata("listingId", l.ID)
	}

	if rec.Status == models.StatusApproved {
		l.IsCompliant = true
		l.MatchedPropertyID = rec.PropertyID
	}
	return nil
}

// classify maps err to a StandardError, reporting a driver error raised after the deadline
// as a timeout.
func classify(ctx context.Context, stage string, err error) *errors.StandardError {
	if ctx.Err() != nil && errors.CodeOf(err) == "" {
		err = fmt.Errorf("%w (%v)", ctx.Err(), err)
	}
	return errors.FromContext(stage, err)
}
