// Package ingestion is the write boundary for normalized marketplace listings.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/common/validation"
	"tourism-compliance/internal/hosts"
	"tourism-compliance/internal/models"

	"github.com/google/uuid"
)

// Result reports the stored listing id and whether the upsert inserted it.
type Result struct {
	ListingID string `json:"listingId"`
	Created   bool   `json:"created"`
}

// Rejection explains why one listing in a batch was not stored.
type Rejection struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult counts what a batch ingest stored and rejected.
type BatchResult struct {
	Accepted []Result    `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
}

// Service upserts scraped listings keyed by platform and platform id.
type Service struct {
	db      database.DBTX
	timeout time.Duration
	logger  logger.Logger
	newID   func() string
	now     func() time.Time
}

// NewService creates an ingestion service. timeout bounds each upsert.
func NewService(db database.DBTX, timeout time.Duration, log logger.Logger) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		db:      db,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "ingestion"}),
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// IngestJSON validates a raw listing document against the listing schema before decoding
// and upserting it.
func (s *Service) IngestJSON(ctx context.Context, raw []byte) (*Result, error) {
	res, err := validation.ListingSchemaValidator().ValidateJSON(raw)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if !res.Valid {
		return nil, errors.NewValidationError(res.Summary())
	}

	var l models.ScrapedListing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("decode listing: %v", err))
	}
	return s.Ingest(ctx, &l)
}

// IngestMany ingests each document independently. One bad document never blocks the rest.
func (s *Service) IngestMany(ctx context.Context, docs []json.RawMessage) *BatchResult {
	out := &BatchResult{Accepted: []Result{}, Rejected: []Rejection{}}
	for i, doc := range docs {
		res, err := s.IngestJSON(ctx, doc)
		if err != nil {
			out.Rejected = append(out.Rejected, Rejection{Index: i, Error: err.Error()})
			continue
		}
		out.Accepted = append(out.Accepted, *res)
	}
	return out
}

// Ingest upserts l keyed by (platform, platformId). Mutable fields are last-write-wins;
// isCompliant and matchedPropertyId are never written here.
func (s *Service) Ingest(ctx context.Context, l *models.ScrapedListing) (*Result, error) {
	normalize(l)
	if err := l.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	var res Result
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO scraped_listings
			(id, platform, platform_id, url, title, host_name, host_id, host_phone,
			 location_text, city, neighborhood, latitude, longitude, price_per_night,
			 bedrooms, max_guests, review_count, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19)
		ON CONFLICT (platform, platform_id) DO UPDATE SET
			url             = EXCLUDED.url,
			title           = EXCLUDED.title,
			host_name       = EXCLUDED.host_name,
			host_id         = EXCLUDED.host_id,
			host_phone      = EXCLUDED.host_phone,
			location_text   = EXCLUDED.location_text,
			city            = EXCLUDED.city,
			neighborhood    = EXCLUDED.neighborhood,
			latitude        = EXCLUDED.latitude,
			longitude       = EXCLUDED.longitude,
			price_per_night = EXCLUDED.price_per_night,
			bedrooms        = EXCLUDED.bedrooms,
			max_guests      = EXCLUDED.max_guests,
			review_count    = EXCLUDED.review_count,
			rating          = EXCLUDED.rating,
			updated_at      = EXCLUDED.updated_at
		RETURNING id, (xmax = 0)`,
		s.newID(), l.Platform, l.PlatformID, l.URL, l.Title, l.HostName, l.HostID, l.HostPhone,
		l.LocationText, l.City, l.Neighborhood, l.Latitude, l.Longitude, l.PricePerNight,
		l.Bedrooms, l.MaxGuests, l.ReviewCount, l.Rating, now,
	).Scan(&res.ListingID, &res.Created)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		return nil, errors.FromContext("persistence", fmt.Errorf("upsert listing %s/%s: %w", l.Platform, l.PlatformID, err))
	}

	s.logger.Debug("listing ingested", map[string]interface{}{
		"listingId":  res.ListingID,
		"platform":   string(l.Platform),
		"platformId": l.PlatformID,
		"created":    res.Created,
	})
	return &res, nil
}

// normalize trims free text and stores host phones in canonical form so operator grouping
// can compare them directly.
func normalize(l *models.ScrapedListing) {
	for _, f := range []*string{&l.PlatformID, &l.URL, &l.Title, &l.HostName, &l.HostID, &l.LocationText, &l.City, &l.Neighborhood} {
		*f = strings.TrimSpace(*f)
	}
	l.Platform = models.Platform(strings.ToLower(strings.TrimSpace(string(l.Platform))))
	if phone, ok := hosts.NormalizePhone(l.HostPhone); ok {
		l.HostPhone = phone
	} else {
		l.HostPhone = strings.TrimSpace(l.HostPhone)
	}
}
