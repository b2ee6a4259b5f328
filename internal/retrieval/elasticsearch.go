package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/models"
)

const PropertyIndexMapping = `{
  "mappings": {
    "properties": {
      "id":             {"type": "keyword"},
      "name":           {"type": "text"},
      "address":        {"type": "text"},
      "city":           {"type": "keyword"},
      "cityDisplay":    {"type": "keyword", "index": false},
      "neighborhood":   {"type": "keyword"},
      "location":       {"type": "geo_point"},
      "totalRooms":     {"type": "integer"},
      "capacityGuests": {"type": "integer"},
      "landlordName":   {"type": "text"},
      "landlordPhone":  {"type": "keyword"},
      "deregisteredAt": {"type": "date"}
    }
  }
}`

// maxIndexHits caps one city fetch; radius and candidate bounds are applied afterwards.
const maxIndexHits = 1000

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type propertyDoc struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Address        string     `json:"address,omitempty"`
	City           string     `json:"city,omitempty"`
	CityDisplay    string     `json:"cityDisplay,omitempty"`
	Neighborhood   string     `json:"neighborhood,omitempty"`
	Location       *geoPoint  `json:"location,omitempty"`
	TotalRooms     *int       `json:"totalRooms,omitempty"`
	CapacityGuests *int       `json:"capacityGuests,omitempty"`
	LandlordName   string     `json:"landlordName,omitempty"`
	LandlordPhone  string     `json:"landlordPhone,omitempty"`
	DeregisteredAt *time.Time `json:"deregisteredAt,omitempty"`
}

func toDoc(p models.RegisteredProperty) propertyDoc {
	doc := propertyDoc{
		ID:             p.ID,
		Name:           p.Name,
		Address:        p.Address,
		City:           strings.ToLower(strings.TrimSpace(p.City)),
		CityDisplay:    p.City,
		Neighborhood:   p.Neighborhood,
		TotalRooms:     p.TotalRooms,
		CapacityGuests: p.CapacityGuests,
		LandlordName:   p.LandlordName,
		LandlordPhone:  p.LandlordPhone,
		DeregisteredAt: p.DeregisteredAt,
	}
	if p.HasCoordinates() {
		doc.Location = &geoPoint{Lat: *p.Latitude, Lon: *p.Longitude}
	}
	return doc
}

func (d propertyDoc) property() models.RegisteredProperty {
	p := models.RegisteredProperty{
		ID:             d.ID,
		Name:           d.Name,
		Address:        d.Address,
		City:           d.CityDisplay,
		Neighborhood:   d.Neighborhood,
		TotalRooms:     d.TotalRooms,
		CapacityGuests: d.CapacityGuests,
		LandlordName:   d.LandlordName,
		LandlordPhone:  d.LandlordPhone,
		DeregisteredAt: d.DeregisteredAt,
	}
	if p.City == "" {
		p.City = d.City
	}
	if d.Location != nil {
		p.Latitude = models.FloatPtr(d.Location.Lat)
		p.Longitude = models.FloatPtr(d.Location.Lon)
	}
	return p
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source propertyDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// ElasticsearchSource reads candidates from a registered_properties index kept in sync
// with the system of record.
type ElasticsearchSource struct {
	es    *database.ElasticsearchClient
	index string
}

// NewElasticsearchSource reads properties from index.
func NewElasticsearchSource(es *database.ElasticsearchClient, index string) *ElasticsearchSource {
	return &ElasticsearchSource{es: es, index: index}
}

func (s *ElasticsearchSource) Name() string { return "elasticsearch" }

// Properties runs a city term query. The radius is applied by the Retriever.
func (s *ElasticsearchSource) Properties(ctx context.Context, city string) ([]models.RegisteredProperty, error) {
	filter := []interface{}{}
	if c := strings.ToLower(strings.TrimSpace(city)); c != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"city": c}})
	}

	query := map[string]interface{}{
		"size": maxIndexHits,
		"sort": []interface{}{map[string]interface{}{"id": "asc"}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter":   filter,
				"must_not": []interface{}{map[string]interface{}{"exists": map[string]interface{}{"field": "deregisteredAt"}}},
			},
		},
	}

	var res searchResponse
	if err := s.es.Search(ctx, s.index, query, &res); err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}

	out := make([]models.RegisteredProperty, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		out = append(out, hit.Source.property())
	}
	return out, nil
}

// EnsureIndex creates the property index with its mapping if missing.
func (s *ElasticsearchSource) EnsureIndex(ctx context.Context) error {
	return s.es.EnsureIndex(ctx, s.index, PropertyIndexMapping)
}

// IndexProperty upserts one property document.
func (s *ElasticsearchSource) IndexProperty(ctx context.Context, p models.RegisteredProperty) error {
	return s.es.IndexDocument(ctx, s.index, p.ID, toDoc(p))
}

// Sync indexes every active property from the system of record. It returns the number of
// documents written.
func (s *ElasticsearchSource) Sync(ctx context.Context, from Source) (int, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	props, err := from.Properties(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("load properties from %s: %w", from.Name(), err)
	}
	for i, p := range props {
		if err := s.IndexProperty(ctx, p); err != nil {
			return i, err
		}
	}
	return len(props), nil
}
