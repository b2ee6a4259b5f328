package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Platform is the site a listing was scraped from.
type Platform string

const (
	PlatformAirbnb      Platform = "airbnb"
	PlatformBooking     Platform = "booking"
	PlatformExpatDakar  Platform = "expat_dakar"
	PlatformJumiaHouse  Platform = "jumia_house"
	PlatformCoinAfrique Platform = "coinafrique"
	PlatformKeurImmo    Platform = "keur_immo"
	PlatformOther       Platform = "other"
)

var platforms = []interface{}{
	PlatformAirbnb, PlatformBooking, PlatformExpatDakar, PlatformJumiaHouse,
	PlatformCoinAfrique, PlatformKeurImmo, PlatformOther,
}

func (p Platform) Valid() bool {
	for _, known := range platforms {
		if p == known {
			return true
		}
	}
	return false
}

// ScrapedListing is a normalized marketplace listing. Absent strings are "", absent
// numbers are nil.
type ScrapedListing struct {
	ID           string   `json:"id"`
	Platform     Platform `json:"platform"`
	PlatformID   string   `json:"platformId"`
	URL          string   `json:"url,omitempty"`
	Title        string   `json:"title,omitempty"`
	HostName     string   `json:"hostName,omitempty"`
	HostID       string   `json:"hostId,omitempty"`
	HostPhone    string   `json:"hostPhone,omitempty"`
	LocationText string   `json:"locationText,omitempty"`
	City         string   `json:"city,omitempty"`
	Neighborhood string   `json:"neighborhood,omitempty"`

	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	PricePerNight *float64 `json:"pricePerNight,omitempty"`
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	MaxGuests     *int     `json:"maxGuests,omitempty"`
	ReviewCount   *int     `json:"reviewCount,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`

	IsCompliant       bool    `json:"isCompliant"`
	MatchedPropertyID *string `json:"matchedPropertyId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (l *ScrapedListing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Validate checks the typed fields before anything is written.
func (l ScrapedListing) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Platform, validation.Required, validation.In(platforms...)),
		validation.Field(&l.PlatformID, validation.Required, validation.Length(1, 255)),
		validation.Field(&l.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&l.Longitude, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&l.PricePerNight, validation.Min(0.0)),
		validation.Field(&l.Bedrooms, validation.Min(0)),
		validation.Field(&l.MaxGuests, validation.Min(0)),
		validation.Field(&l.ReviewCount, validation.Min(0)),
		validation.Field(&l.Rating, validation.Min(0.0), validation.Max(5.0)),
	)
}

// IntOr returns *p, or def when p is nil.
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// FloatOr dereferences p, or returns def when p is nil.
func FloatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

func StringPtr(v string) *string { return &v }
