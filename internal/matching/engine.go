package matching

import (
	"math"
	"sort"
	"time"

	"tourism-compliance/internal/models"

	"github.com/google/uuid"
)

// Options configure the engine. RadiusKm also bounds geoProximity.
type Options struct {
	RadiusKm             float64
	Weights              Weights
	PriceBands           PriceBands
	AutoApprove          bool
	AutoApproveThreshold float64
}

// DefaultOptions has auto-approve off.
func DefaultOptions() Options {
	return Options{
		RadiusKm:             2.0,
		Weights:              DefaultWeights(),
		PriceBands:           DefaultPriceBands(),
		AutoApproveThreshold: 0.97,
	}
}

// CandidateScore is one scored (listing, property) pair.
type CandidateScore struct {
	PropertyID string           `json:"propertyId"`
	Score      float64          `json:"score"`
	MatchType  models.MatchType `json:"matchType"`
	Factors    models.Factors   `json:"factors"`
	DistanceKm *float64         `json:"distanceKm,omitempty"`
}

func (c CandidateScore) distance() float64 {
	if c.DistanceKm == nil {
		return math.Inf(1)
	}
	return *c.DistanceKm
}

// Engine scores candidates and builds match records. It holds no mutable state.
type Engine struct {
	opts  Options
	now   func() time.Time
	newID func() string
}

// NewEngine fills unset options from DefaultOptions.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = def.RadiusKm
	}
	if len(opts.Weights) == 0 {
		opts.Weights = def.Weights
	}
	if len(opts.PriceBands) == 0 {
		opts.PriceBands = def.PriceBands
	}
	if opts.AutoApproveThreshold <= 0 {
		opts.AutoApproveThreshold = def.AutoApproveThreshold
	}
	return &Engine{
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Rank scores every candidate and orders them best first: score descending, then
// distance ascending with unknown distance last, then property id ascending.
func (e *Engine) Rank(l *models.ScrapedListing, candidates []models.RegisteredProperty) []CandidateScore {
	out := make([]CandidateScore, 0, len(candidates))
	for i := range candidates {
		p := &candidates[i]
		factors, distance, hasDistance := factorsFor(l, p, e.opts)
		cs := CandidateScore{
			PropertyID: p.ID,
			Score:      Score(factors, e.opts.Weights),
			Factors:    factors,
		}
		cs.MatchType = Tier(cs.Score)
		if hasDistance {
			d := round4(distance)
			cs.DistanceKm = &d
		}
		out = append(out, cs)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if di, dj := out[i].distance(), out[j].distance(); di != dj {
			return di < dj
		}
		return out[i].PropertyID < out[j].PropertyID
	})
	return out
}

// Match builds a pending match record for the best candidate. A best score below the
// possible tier, or no candidates, yields no_match with no property.
func (e *Engine) Match(l *models.ScrapedListing, candidates []models.RegisteredProperty) *models.MatchRecord {
	rec := &models.MatchRecord{
		ID:               e.newID(),
		ScrapedListingID: l.ID,
		MatchType:        models.MatchNone,
		MatchFactors:     models.Factors{},
		Status:           models.StatusPending,
		CreatedAt:        e.now(),
	}

	ranked := e.Rank(l, candidates)
	if len(ranked) == 0 {
		return rec
	}

	best := ranked[0]
	rec.MatchScore = best.Score
	rec.MatchFactors = best.Factors
	rec.MatchType = best.MatchType
	if rec.MatchType != models.MatchNone {
		id := best.PropertyID
		rec.PropertyID = &id
	}

	if e.opts.AutoApprove && rec.MatchType == models.MatchExact && rec.MatchScore >= e.opts.AutoApproveThreshold {
		decided := rec.CreatedAt
		rec.Status = models.StatusApproved
		rec.DecidedAt = &decided
		rec.DecisionNotes = "auto-approved"
	}
	return rec
}
