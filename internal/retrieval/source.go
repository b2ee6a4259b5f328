package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store"
)

// Source loads active registered properties for a city. An empty city means the whole
// jurisdiction.
type Source interface {
	Properties(ctx context.Context, city string) ([]models.RegisteredProperty, error)
	Name() string
}

// PostgresSource reads registered properties straight from postgres.
type PostgresSource struct {
	db database.DBTX
}

// NewPostgresSource creates a source over db.
func NewPostgresSource(db database.DBTX) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Properties(ctx context.Context, city string) ([]models.RegisteredProperty, error) {
	query := `SELECT ` + store.Columns("", store.PropertyFields) + `
		FROM registered_properties
		WHERE deregistered_at IS NULL
		  AND ($1 = '' OR LOWER(city) = LOWER($1))
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, strings.TrimSpace(city))
	if err != nil {
		return nil, fmt.Errorf("query registered properties: %w", err)
	}
	defer rows.Close()

	var out []models.RegisteredProperty
	for rows.Next() {
		p, err := store.ScanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registered property: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CachedSource memoizes another source per city in redis. Cache failures fall through to
// the wrapped source.
type CachedSource struct {
	next  Source
	redis *database.RedisClient
	ttl   time.Duration
}

// NewCachedSource fronts next with a per-city redis cache.
func NewCachedSource(next Source, redis *database.RedisClient, ttl time.Duration) *CachedSource {
	return &CachedSource{next: next, redis: redis, ttl: ttl}
}

func (s *CachedSource) Name() string { return s.next.Name() + "+redis" }

// CacheKey is the redis key for a city, lowercased and trimmed.
func CacheKey(city string) string {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		city = "_all"
	}
	return "candidates:city:" + city
}

// Properties serves from redis when it can and falls through to next otherwise.
func (s *CachedSource) Properties(ctx context.Context, city string) ([]models.RegisteredProperty, error) {
	key := CacheKey(city)

	var cached []models.RegisteredProperty
	if found, err := s.redis.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	props, err := s.next.Properties(ctx, city)
	if err != nil {
		return nil, err
	}
	if props == nil {
		props = []models.RegisteredProperty{}
	}
	_ = s.redis.SetJSON(ctx, key, props, s.ttl)
	return props, nil
}

// Invalidate drops the cached candidates for city.
func (s *CachedSource) Invalidate(ctx context.Context, city string) error {
	return s.redis.Del(ctx, CacheKey(city))
}
