package review

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store"
)

// PendingQuery filters and pages the pending list. A zero Limit uses the page size.
type PendingQuery struct {
	MatchType models.MatchType
	Limit     int
	Offset    int
}

// Item is a match record shown to reviewers alongside the listing it is about.
type Item struct {
	Match   *models.MatchRecord    `json:"match"`
	Listing *models.ScrapedListing `json:"listing"`
}

// Page is one page of pending records with the total before paging.
type Page struct {
	Items  []Item `json:"items"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// Summary counts records for the review dashboard.
type Summary struct {
	PendingByTier map[models.MatchType]int   `json:"pendingByTier"`
	ByStatus      map[models.MatchStatus]int `json:"byStatus"`
	TotalPending  int                        `json:"totalPending"`
}

const joinedSelect = `SELECT %s, %s
		FROM match_records m
		JOIN scraped_listings l ON l.id = m.scraped_listing_id`

func selectJoined() string {
	return fmt.Sprintf(joinedSelect, store.Columns("m", store.MatchRecordFields), store.Columns("l", store.ListingFields))
}

// classify reports a driver error raised after the deadline as UpstreamTimeout. The driver
// cancels the query without wrapping ctx.Err().
func classify(ctx context.Context, err error) *errors.StandardError {
	if ctx.Err() != nil && errors.CodeOf(err) == "" {
		err = fmt.Errorf("%w (%v)", ctx.Err(), err)
	}
	return errors.FromContext("persistence", err)
}

// ListPending pages through pending records, most confident first.
func (s *Service) ListPending(ctx context.Context, q PendingQuery) (*Page, error) {
	if q.MatchType != "" && !q.MatchType.Valid() {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown matchType %q", q.MatchType))
	}
	if q.Limit <= 0 {
		q.Limit = s.opts.PageSize
	}
	if q.Offset < 0 {
		return nil, errors.NewValidationError("offset must be >= 0")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	page := &Page{Items: []Item{}, Limit: q.Limit, Offset: q.Offset}
	err := s.db.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM match_records
		WHERE status = 'pending' AND ($1 = '' OR match_type = $1)`, q.MatchType).Scan(&page.Total)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("count pending: %w", err))
	}

	rows, err := s.db.DB.QueryContext(ctx, selectJoined()+`
		WHERE m.status = 'pending' AND ($1 = '' OR m.match_type = $1)
		ORDER BY m.match_score DESC, m.created_at ASC, m.id ASC
		LIMIT $2 OFFSET $3`, q.MatchType, q.Limit, q.Offset)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("list pending: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		m, l, err := store.ScanMatchWithListing(rows)
		if err != nil {
			return nil, classify(ctx, err)
		}
		page.Items = append(page.Items, Item{Match: m, Listing: l})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	return page, nil
}

// GetMatch returns one record with its listing and factor breakdown.
func (s *Service) GetMatch(ctx context.Context, id string) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	row := s.db.DB.QueryRowContext(ctx, selectJoined()+` WHERE m.id = $1`, id)
	m, l, err := store.ScanMatchWithListing(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("match record", id)
	}
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("get match record %s: %w", id, err))
	}
	return &Item{Match: m, Listing: l}, nil
}

// Summary counts pending records per tier and all records per status.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out := &Summary{
		PendingByTier: make(map[models.MatchType]int, len(models.MatchTypes)),
		ByStatus:      make(map[models.MatchStatus]int, len(models.MatchStatuses)),
	}
	for _, t := range models.MatchTypes {
		out.PendingByTier[t] = 0
	}
	for _, st := range models.MatchStatuses {
		out.ByStatus[st] = 0
	}

	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT status, match_type, COUNT(*)
		FROM match_records
		GROUP BY status, match_type`)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("summarize match records: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var status models.MatchStatus
		var tier models.MatchType
		var n int
		if err := rows.Scan(&status, &tier, &n); err != nil {
			return nil, classify(ctx, err)
		}
		out.ByStatus[status] += n
		if status == models.StatusPending {
			out.PendingByTier[tier] += n
			out.TotalPending += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	return out, nil
}

// Escalations returns the newest entries of the escalation queue.
func (s *Service) Escalations(ctx context.Context, limit int) ([]EscalationEntry, error) {
	out := []EscalationEntry{}
	if s.redis == nil {
		return out, nil
	}
	if limit <= 0 {
		limit = s.opts.PageSize
	}
	raw, err := s.redis.RangeJSON(ctx, EscalationQueue, int64(limit))
	if err != nil {
		return nil, errors.FromContext("escalation-queue", err)
	}
	for _, r := range raw {
		var e EscalationEntry
		if err := json.Unmarshal(r, &e); err != nil {
			s.logger.Warn("skipping malformed escalation entry", map[string]interface{}{"error": err.Error()})
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
