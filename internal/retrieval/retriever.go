package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/common/metrics"
	"tourism-compliance/internal/geo"
	"tourism-compliance/internal/models"
)

// Options bound the candidate search.
type Options struct {
	RadiusKm      float64
	MaxCandidates int
	Timeout       time.Duration
}

func DefaultOptions() Options {
	return Options{RadiusKm: 2.0, MaxCandidates: 20, Timeout: 5 * time.Second}
}

// Retriever finds the candidate properties for a listing.
type Retriever struct {
	source Source
	opts   Options
	logger logger.Logger
}

// NewRetriever creates a retriever over source. Unset options take their defaults.
func NewRetriever(source Source, opts Options, log logger.Logger) *Retriever {
	def := DefaultOptions()
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = def.RadiusKm
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = def.MaxCandidates
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	return &Retriever{
		source: source,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "retrieval"}),
	}
}

// FindCandidates returns at most MaxCandidates active properties plausibly matching l. An
// empty result is not an error. A deadline surfaces as a retryable UpstreamTimeout.
func (r *Retriever) FindCandidates(ctx context.Context, l *models.ScrapedListing) ([]models.RegisteredProperty, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	props, err := r.source.Properties(ctx, l.City)
	metrics.CandidateRetrievalDuration.WithLabelValues(r.source.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, errors.FromContext("retrieval", err).WithMetadata("listingId", l.ID)
	}

	candidates := Filter(l, props, r.opts.RadiusKm, r.opts.MaxCandidates)
	r.logger.Debug("candidates retrieved", map[string]interface{}{
		"listingId":  l.ID,
		"city":       l.City,
		"fetched":    len(props),
		"candidates": len(candidates),
	})
	return candidates, nil
}

// Filter applies the city, radius and size bounds to props. The city filter only applies
// when the listing has a city. The radius filter only applies when the listing has
// coordinates and at least one city property does. Results are ordered by distance, with
// unknown distance last, then by id.
func Filter(l *models.ScrapedListing, props []models.RegisteredProperty, radiusKm float64, limit int) []models.RegisteredProperty {
	city := strings.TrimSpace(l.City)

	inCity := make([]models.RegisteredProperty, 0, len(props))
	anyCoords := false
	for _, p := range props {
		if !p.Active() {
			continue
		}
		if city != "" && !strings.EqualFold(strings.TrimSpace(p.City), city) {
			continue
		}
		if p.HasCoordinates() {
			anyCoords = true
		}
		inCity = append(inCity, p)
	}

	type ranked struct {
		p        models.RegisteredProperty
		distance float64
	}
	out := make([]ranked, 0, len(inCity))
	applyRadius := l.HasCoordinates() && anyCoords && radiusKm > 0
	for _, p := range inCity {
		d, ok := geo.Between(l.Latitude, l.Longitude, p.Latitude, p.Longitude)
		if !ok {
			d = -1
		}
		if applyRadius && (!ok || d > radiusKm) {
			continue
		}
		out = append(out, ranked{p: p, distance: d})
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].distance, out[j].distance
		if (di < 0) != (dj < 0) {
			return dj < 0
		}
		if di != dj {
			return di < dj
		}
		return out[i].p.ID < out[j].p.ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	result := make([]models.RegisteredProperty, len(out))
	for i, r := range out {
		result[i] = r.p
	}
	return result
}
