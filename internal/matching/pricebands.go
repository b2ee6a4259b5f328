package matching

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// PriceBand is the plausible nightly price range in XOF for a given room count.
type PriceBand struct {
	Rooms int     `yaml:"rooms"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
}

// Score is 1 inside the band, proportional below it and decays to 0 at twice the maximum.
func (b PriceBand) Score(price float64) float64 {
	switch {
	case price >= b.Min && price <= b.Max:
		return 1
	case price < b.Min:
		if b.Min <= 0 {
			return 1
		}
		return math.Max(0, price/b.Min)
	default:
		if b.Max <= 0 {
			return 0
		}
		return math.Max(0, 1-(price-b.Max)/b.Max)
	}
}

// PriceBands is sorted by Rooms ascending. The last band also covers larger properties.
type PriceBands []PriceBand

// DefaultPriceBands are nightly FCFA ranges by room count.
func DefaultPriceBands() PriceBands {
	return PriceBands{
		{Rooms: 1, Min: 10000, Max: 60000},
		{Rooms: 2, Min: 20000, Max: 100000},
		{Rooms: 3, Min: 30000, Max: 150000},
		{Rooms: 4, Min: 40000, Max: 200000},
		{Rooms: 5, Min: 50000, Max: 300000},
	}
}

// For returns the band for rooms. Rooms below the first band use the first band.
func (bs PriceBands) For(rooms int) (PriceBand, bool) {
	if len(bs) == 0 {
		return PriceBand{}, false
	}
	match := bs[0]
	for _, b := range bs {
		if b.Rooms <= rooms {
			match = b
		}
	}
	return match, true
}

type priceBandFile struct {
	Bands []PriceBand `yaml:"price_bands"`
}

// LoadPriceBands reads a YAML band table. On any error the defaults are returned with the error.
func LoadPriceBands(path string) (PriceBands, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultPriceBands(), fmt.Errorf("read price bands: %w", err)
	}

	var file priceBandFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return DefaultPriceBands(), fmt.Errorf("parse price bands: %w", err)
	}
	if len(file.Bands) == 0 {
		return DefaultPriceBands(), fmt.Errorf("price bands file %s has no bands", path)
	}
	for _, b := range file.Bands {
		if b.Min < 0 || b.Max < b.Min {
			return DefaultPriceBands(), fmt.Errorf("invalid band for %d rooms: [%v, %v]", b.Rooms, b.Min, b.Max)
		}
	}

	bands := PriceBands(file.Bands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Rooms < bands[j].Rooms })
	return bands, nil
}
