package enforcement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tourism-compliance/internal/alerts"
	"tourism-compliance/internal/common/config"
	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/common/metrics"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Options bound the enforcement list size.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	Assumptions  Assumptions
	Timeout      time.Duration
}

// OptionsFromConfig reads the enforcement section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	e := cfg.Enforcement
	return Options{
		DefaultLimit: e.DefaultLimit,
		MaxLimit:     e.MaxLimit,
		Assumptions: Assumptions{
			OccupancyRate:    e.OccupancyRate,
			AvgGuestsPerStay: e.AvgGuestsPerStay,
			DaysPerMonth:     e.DaysPerMonth,
			TPTRatePerNight:  e.TPTRatePerNight,
		},
		Timeout: config.GetDuration(cfg.Reconciliation.PersistenceTimeout),
	}
}

// Request is one enforcement run. A zero Limit uses the configured default.
type Request struct {
	City              string `json:"city,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	SendNotifications bool   `json:"sendNotifications,omitempty"`
}

func (r Request) Validate(maxLimit int) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.City, validation.Length(0, 120)),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(maxLimit)),
	)
}

// Response carries the summary over every open report and the ranked targets.
type Response struct {
	Summary          models.EnforcementSummary  `json:"summary"`
	Targets          []models.EnforcementTarget `json:"targets"`
	NotificationSent bool                       `json:"notificationSent"`
}

// SummaryNotification is the payload of an enforcement.summary event.
type SummaryNotification struct {
	City                        string                    `json:"city,omitempty"`
	CriticalTargets             int                       `json:"criticalTargets"`
	HighTargets                 int                       `json:"highTargets"`
	TargetCount                 int                       `json:"targetCount"`
	TargetsAnnualTaxLoss        float64                   `json:"targetsAnnualTaxLoss"`
	EstimatedTotalAnnualTaxLoss float64                   `json:"estimatedTotalAnnualTaxLoss"`
	Summary                     models.EnforcementSummary `json:"summary"`
}

// Service loads open reports, ranks them and sends the summary notification.
type Service struct {
	db        database.DBTX
	publisher alerts.Publisher
	opts      Options
	logger    logger.Logger
}

// NewService creates the enforcement service.
func NewService(db database.DBTX, publisher alerts.Publisher, opts Options, log logger.Logger) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if opts.Assumptions == (Assumptions{}) {
		opts.Assumptions = DefaultAssumptions()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if publisher == nil {
		publisher = alerts.Noop{}
	}
	return &Service{
		db:        db,
		publisher: publisher,
		opts:      opts,
		logger:    log.WithFields(map[string]interface{}{"component": "enforcement"}),
	}
}

// Run snapshots the open reports, ranks them and optionally emits one summary event when
// the ranked targets include critical or high severity work.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(s.opts.MaxLimit); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.opts.DefaultLimit
	}

	snapshot, err := s.OpenReports(ctx, req.City)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Summary: Summarize(snapshot, s.opts.Assumptions),
		Targets: Prioritize(snapshot, limit, s.opts.Assumptions),
	}
	metrics.EnforcementRuns.Inc()

	if req.SendNotifications {
		resp.NotificationSent = s.notify(ctx, req.City, resp)
	}

	s.logger.Info("enforcement targets ranked", map[string]interface{}{
		"city":         req.City,
		"openReports":  resp.Summary.TotalReports,
		"targets":      len(resp.Targets),
		"notification": resp.NotificationSent,
	})
	return resp, nil
}

func (s *Service) notify(ctx context.Context, city string, resp *Response) bool {
	n := SummaryNotification{
		City:                        city,
		TargetCount:                 len(resp.Targets),
		EstimatedTotalAnnualTaxLoss: resp.Summary.EstimatedTotalAnnualTaxLoss,
		Summary:                     resp.Summary,
	}
	for _, t := range resp.Targets {
		switch t.Severity {
		case models.SeverityCritical:
			n.CriticalTargets++
		case models.SeverityHigh:
			n.HighTargets++
		}
		n.TargetsAnnualTaxLoss += t.EstimatedImpact.AnnualTaxLoss
	}
	if n.CriticalTargets+n.HighTargets == 0 {
		return false
	}

	severity := string(models.SeverityHigh)
	if n.CriticalTargets > 0 {
		severity = string(models.SeverityCritical)
	}
	event := alerts.NewEvent(alerts.EventEnforcementSummary, uuid.NewString(), severity, n)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish enforcement summary", map[string]interface{}{
			"eventId": event.ID,
			"error":   err.Error(),
		})
		return false
	}
	return true
}

// OpenReports loads every report not yet resolved, optionally restricted to a city.
func (s *Service) OpenReports(ctx context.Context, city string) ([]OpenReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+store.Columns("r", store.ReportFields)+`, `+store.Columns("l", store.ListingFields)+`
		FROM compliance_reports r
		JOIN scraped_listings l ON l.id = r.scraped_listing_id
		WHERE r.status <> 'resolved'
		  AND ($1 = '' OR LOWER(l.city) = LOWER($1))
		ORDER BY r.created_at, r.id`, strings.TrimSpace(city))
	if err != nil {
		return nil, s.classify(ctx, fmt.Errorf("query open reports: %w", err))
	}
	defer rows.Close()

	var out []OpenReport
	for rows.Next() {
		r, l, err := store.ScanReportWithListing(rows)
		if err != nil {
			return nil, errors.NewInternalError("persistence", err)
		}
		out = append(out, OpenReport{Report: *r, Listing: *l})
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(ctx, err)
	}
	return out, nil
}

func (s *Service) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		err = fmt.Errorf("%w (%v)", ctx.Err(), err)
	}
	return errors.FromContext("persistence", err)
}
