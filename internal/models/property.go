package models

import "time"

// RegisteredProperty is reference data owned by the registration subsystem.
type RegisteredProperty struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address,omitempty"`
	City           string   `json:"city,omitempty"`
	Neighborhood   string   `json:"neighborhood,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	TotalRooms     *int     `json:"totalRooms,omitempty"`
	CapacityGuests *int     `json:"capacityGuests,omitempty"`
	LandlordName   string   `json:"landlordName,omitempty"`
	LandlordPhone  string   `json:"landlordPhone,omitempty"`

	DeregisteredAt *time.Time `json:"deregisteredAt,omitempty"`
}

func (p *RegisteredProperty) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Active reports whether the property has not been deregistered.
func (p *RegisteredProperty) Active() bool {
	return p.DeregisteredAt == nil
}
