package matching

import (
	"math"
	"strings"

	"tourism-compliance/internal/geo"
	"tourism-compliance/internal/models"
)

const (
	FactorName         = "nameSimilarity"
	FactorGeo          = "geoProximity"
	FactorCapacity     = "capacityMatch"
	FactorPriceBand    = "priceBandPlausibility"
	FactorNeighborhood = "neighborhoodMatch"
)

// Weights maps factor name to weight. They need not sum to 1; Score renormalizes.
type Weights map[string]float64

// DefaultWeights sum to 1.
func DefaultWeights() Weights {
	return Weights{
		FactorName:         0.25,
		FactorGeo:          0.30,
		FactorCapacity:     0.20,
		FactorPriceBand:    0.15,
		FactorNeighborhood: 0.10,
	}
}

// nameSimilarity compares the listing title and host name against the property name and
// keeps the better of the two. Absent when there is nothing to compare.
func nameSimilarity(l *models.ScrapedListing, p *models.RegisteredProperty) (float64, bool) {
	target := tokens(p.Name)
	if len(target) == 0 {
		return 0, false
	}

	best, seen := 0.0, false
	for _, src := range []string{l.Title, l.HostName} {
		candidate := tokens(src)
		if len(candidate) == 0 {
			continue
		}
		seen = true
		s := math.Max(jaccard(candidate, target), levenshteinRatio(strings.Join(candidate, " "), strings.Join(target, " ")))
		best = math.Max(best, s)
	}
	return best, seen
}

// geoProximity is 1 at zero distance and falls linearly to 0 at radiusKm.
func geoProximity(distanceKm float64, hasDistance bool, radiusKm float64) (float64, bool) {
	if !hasDistance || radiusKm <= 0 {
		return 0, false
	}
	return math.Max(0, 1-distanceKm/radiusKm), true
}

// capacityMatch averages the bedrooms/totalRooms and maxGuests/capacityGuests comparisons
// that both sides can provide.
func capacityMatch(l *models.ScrapedListing, p *models.RegisteredProperty) (float64, bool) {
	var sum float64
	var n int
	for _, pair := range [][2]*int{{l.Bedrooms, p.TotalRooms}, {l.MaxGuests, p.CapacityGuests}} {
		if pair[0] == nil || pair[1] == nil {
			continue
		}
		sum += capacityScore(*pair[0], *pair[1])
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func capacityScore(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 1:
		return 1
	case diff >= 4:
		return 0
	default:
		return float64(4-diff) / 3
	}
}

func priceBandPlausibility(l *models.ScrapedListing, p *models.RegisteredProperty, bands PriceBands) (float64, bool) {
	if l.PricePerNight == nil || p.TotalRooms == nil {
		return 0, false
	}
	band, ok := bands.For(*p.TotalRooms)
	if !ok {
		return 0, false
	}
	return band.Score(*l.PricePerNight), true
}

func neighborhoodMatch(l *models.ScrapedListing, p *models.RegisteredProperty) (float64, bool) {
	a, b := strings.TrimSpace(l.Neighborhood), strings.TrimSpace(p.Neighborhood)
	if a == "" || b == "" {
		return 0, false
	}
	if strings.EqualFold(a, b) {
		return 1, true
	}
	return 0, true
}

// factorsFor computes every factor both sides have data for, plus the distance when known.
func factorsFor(l *models.ScrapedListing, p *models.RegisteredProperty, opts Options) (models.Factors, float64, bool) {
	f := models.Factors{}
	distance, hasDistance := geo.Between(l.Latitude, l.Longitude, p.Latitude, p.Longitude)

	if v, ok := nameSimilarity(l, p); ok {
		f[FactorName] = v
	}
	if v, ok := geoProximity(distance, hasDistance, opts.RadiusKm); ok {
		f[FactorGeo] = v
	}
	if v, ok := capacityMatch(l, p); ok {
		f[FactorCapacity] = v
	}
	if v, ok := priceBandPlausibility(l, p, opts.PriceBands); ok {
		f[FactorPriceBand] = v
	}
	if v, ok := neighborhoodMatch(l, p); ok {
		f[FactorNeighborhood] = v
	}

	for k, v := range f {
		f[k] = round4(clamp01(v))
	}
	return f, distance, hasDistance
}
