package reconciliation

import (
	"context"
	"time"

	"tourism-compliance/internal/alerts"
	"tourism-compliance/internal/common/errors"
)

// ListingRevalidated is the payload of a listing.revalidated event.
type ListingRevalidated struct {
	ListingID      string    `json:"listingId"`
	PropertyID     string    `json:"propertyId"`
	DeregisteredAt time.Time `json:"deregisteredAt"`
	RevalidatedAt  time.Time `json:"revalidatedAt"`
}

// RevalidationResult lists the listings a sweep re-opened.
type RevalidationResult struct {
	Checked  int      `json:"checked"`
	Reopened []string `json:"reopened"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
}

type staleLink struct {
	listingID      string
	propertyID     string
	deregisteredAt time.Time
}

// Revalidate reopens listings linked to a property that has since been deregistered. The
// listing loses its compliant flag and becomes eligible for the next batch. The approved
// match record is left as it is. It shares the batch lock so a sweep never races a batch.
func (s *Service) Revalidate(ctx context.Context) (*RevalidationResult, error) {
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

	links, err := s.staleLinks(ctx)
	if err != nil {
		return nil, err
	}

	res := &RevalidationResult{Checked: len(links), Reopened: []string{}}
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		reopened, err := s.reopen(ctx, link)
		switch {
		case err != nil:
			res.Failed++
			s.logger.Error("failed to reopen listing", map[string]interface{}{
				"listingId": link.listingID,
				"error":     err.Error(),
			})
		case !reopened:
			res.Skipped++
		default:
			res.Reopened = append(res.Reopened, link.listingID)
			s.announce(ctx, link)
		}
	}

	s.logger.Info("revalidation finished", map[string]interface{}{
		"checked":  res.Checked,
		"reopened": len(res.Reopened),
		"skipped":  res.Skipped,
		"failed":   res.Failed,
	})
	return res, nil
}

func (s *Service) staleLinks(ctx context.Context) ([]staleLink, error) {
	qctx, cancel := context.WithTimeout(ctx, s.opts.PersistenceTimeout)
	defer cancel()

	rows, err := s.deps.DB.DB.QueryContext(qctx, `
		SELECT l.id, p.id, p.deregistered_at
		FROM scraped_listings l
		JOIN registered_properties p ON p.id = l.matched_property_id
		WHERE l.is_compliant = TRUE AND p.deregistered_at IS NOT NULL
		ORDER BY l.id ASC`)
	if err != nil {
		return nil, classify(qctx, "persistence", err)
	}
	defer rows.Close()

	var out []staleLink
	for rows.Next() {
		var link staleLink
		if err := rows.Scan(&link.listingID, &link.propertyID, &link.deregisteredAt); err != nil {
			return nil, classify(qctx, "persistence", err)
		}
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(qctx, "persistence", err)
	}
	return out, nil
}

// reopen clears the link only if it still points at the deregistered property.
func (s *Service) reopen(ctx context.Context, link staleLink) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PersistenceTimeout)
	defer cancel()

	res, err := s.deps.DB.DB.ExecContext(ctx, `
		UPDATE scraped_listings
		SET is_compliant = FALSE, matched_property_id = NULL, updated_at = $3
		WHERE id = $1 AND matched_property_id = $2`,
		link.listingID, link.propertyID, s.now())
	if err != nil {
		return false, classify(ctx, "persistence", err).WithMetadata("listingId", link.listingID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(ctx, "persistence", err).WithMetadata("listingId", link.listingID)
	}
	return n > 0, nil
}

func (s *Service) announce(ctx context.Context, link staleLink) {
	event := alerts.NewEvent(alerts.EventListingRevalidated, link.listingID, "medium", ListingRevalidated{
		ListingID:      link.listingID,
		PropertyID:     link.propertyID,
		DeregisteredAt: link.deregisteredAt,
		RevalidatedAt:  s.now(),
	})
	if err := s.deps.Publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish revalidation event", map[string]interface{}{
			"listingId": link.listingID,
			"error":     err.Error(),
		})
	}
}
