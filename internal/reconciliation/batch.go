package reconciliation

import (
	"context"
	"strings"
	"sync"
	"time"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/metrics"
	"tourism-compliance/internal/common/workerpool"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const BatchLock = "reconcile:lock"

// BatchRequest selects listings for a run. Empty City means every city.
type BatchRequest struct {
	City  string `json:"city,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (r BatchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.City, validation.Length(0, 120)),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(10000)),
	)
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	RunID       string                   `json:"runId"`
	Selected    int                      `json:"selected"`
	Processed   int                      `json:"processed"`
	ByMatchType map[models.MatchType]int `json:"byMatchType"`
	Failed      int                      `json:"failed"`
	Cancelled   bool                     `json:"cancelled"`
	StartedAt   time.Time                `json:"startedAt"`
	FinishedAt  time.Time                `json:"finishedAt"`
}

// eligibleQuery selects listings that are not compliant and have no match record that is
// still open or already settled. Rejected records keep their listing out of batches; an
// approval whose property was since deregistered does not.
var eligibleQuery = `
	SELECT ` + store.Columns("l", store.ListingFields) + `
	FROM scraped_listings l
	WHERE l.is_compliant = FALSE
	  AND ($1 = '' OR LOWER(l.city) = LOWER($1))
	  AND NOT EXISTS (
		SELECT 1 FROM match_records m
		LEFT JOIN registered_properties p ON p.id = m.property_id
		WHERE m.scraped_listing_id = l.id
		  AND (m.status IN ('pending', 'rejected', 'escalated')
		       OR (m.status = 'approved' AND p.deregistered_at IS NULL))
	  )
	ORDER BY l.created_at ASC, l.id ASC
	LIMIT $2`

// RunBatch reconciles every eligible listing on a bounded pool. Cancelling ctx stops new
// listings from starting; a listing already in flight runs to completion and its record
// stays. Only one batch runs at a time across processes.
func (s *Service) RunBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	if s.deps.Redis != nil {
		release, ok, err := s.deps.Redis.AcquireLock(ctx, BatchLock, s.opts.LockTTL)
		if err != nil {
			return nil, errors.FromContext("lock", err)
		}
		if !ok {
			return nil, errors.NewBatchInProgressError()
		}
		defer release(context.WithoutCancel(ctx))
	}

	res := &BatchResult{
		RunID:       s.newID(),
		ByMatchType: make(map[models.MatchType]int, len(models.MatchTypes)),
		StartedAt:   s.now(),
	}
	for _, t := range models.MatchTypes {
		res.ByMatchType[t] = 0
	}
	log := s.logger.WithFields(map[string]interface{}{"runId": res.RunID, "city": req.City})

	limit := req.Limit
	if limit <= 0 {
		limit = s.opts.BatchSize
	}
	listings, err := s.eligible(ctx, req.City, limit)
	if err != nil {
		return nil, err
	}
	res.Selected = len(listings)
	log.Info("batch started", map[string]interface{}{"selected": len(listings)})

	var mu sync.Mutex
	pool := workerpool.New(s.opts.Workers)
	for i := range listings {
		l := &listings[i]
		submitted := pool.Submit(ctx, func() {
			rec, err := s.Reconcile(context.WithoutCancel(ctx), l)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				metrics.BatchListingsProcessed.WithLabelValues("failed").Inc()
				log.Warn("listing failed", map[string]interface{}{
					"listingId": l.ID,
					"errorCode": string(errors.CodeOf(err)),
					"error":     err.Error(),
				})
				return
			}
			res.Processed++
			res.ByMatchType[rec.MatchType]++
			metrics.BatchListingsProcessed.WithLabelValues(string(rec.MatchType)).Inc()
		})
		if !submitted {
			res.Cancelled = true
			break
		}
	}
	pool.Wait()

	res.FinishedAt = s.now()
	log.Info("batch finished", map[string]interface{}{
		"processed": res.Processed,
		"failed":    res.Failed,
		"cancelled": res.Cancelled,
	})
	return res, nil
}

func (s *Service) eligible(ctx context.Context, city string, limit int) ([]models.ScrapedListing, error) {
	qctx, cancel := context.WithTimeout(ctx, s.opts.PersistenceTimeout)
	defer cancel()

	rows, err := s.deps.DB.DB.QueryContext(qctx, eligibleQuery, strings.TrimSpace(city), limit)
	if err != nil {
		return nil, classify(qctx, "persistence", err)
	}
	defer rows.Close()

	var out []models.ScrapedListing
	for rows.Next() {
		l, err := store.ScanListing(rows)
		if err != nil {
			return nil, classify(qctx, "persistence", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(qctx, "persistence", err)
	}
	return out, nil
}
