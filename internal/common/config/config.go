package config

import "fmt"

// Config is the root configuration for both binaries.
type Config struct {
	App            AppConfig               `mapstructure:"app"`
	Camunda        CamundaConfig           `mapstructure:"camunda"`
	Database       DatabaseConfig          `mapstructure:"database"`
	Workers        map[string]WorkerConfig `mapstructure:"workers"`
	Integrations   IntegrationConfig       `mapstructure:"integrations"`
	HTTP           HTTPConfig              `mapstructure:"http"`
	Reconciliation ReconciliationConfig    `mapstructure:"reconciliation"`
	Review         ReviewConfig            `mapstructure:"review"`
	Enforcement    EnforcementConfig       `mapstructure:"enforcement"`
	Scheduler      SchedulerConfig         `mapstructure:"scheduler"`
	Observability  ObservabilityConfig     `mapstructure:"observability"`
	Logging        LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN builds a lib/pq connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses     []string `mapstructure:"addresses"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	PropertyIndex string   `mapstructure:"property_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig controls one zeebe job worker. Timeout is in milliseconds.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// IntegrationConfig holds settings for outbound notification sinks.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	// Zeebe message fan-out of domain events.
	ZeebeEvents struct {
		Enabled bool `mapstructure:"enabled"`
		TTL     int  `mapstructure:"ttl"` // milliseconds
	} `mapstructure:"zeebe_events"`
}

type HTTPConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ReconciliationConfig covers retrieval, matching and batch settings.
type ReconciliationConfig struct {
	RadiusKm             float64 `mapstructure:"radius_km"`
	MaxCandidates        int     `mapstructure:"max_candidates"`
	CandidateBackend     string  `mapstructure:"candidate_backend"` // postgres | elasticsearch
	CandidateCacheTTL    int     `mapstructure:"candidate_cache_ttl"`
	AutoApprove          bool    `mapstructure:"auto_approve"`
	AutoApproveThreshold float64 `mapstructure:"auto_approve_threshold"`
	Workers              int     `mapstructure:"workers"`
	RetrievalTimeout     int     `mapstructure:"retrieval_timeout"`
	PersistenceTimeout   int     `mapstructure:"persistence_timeout"`
	BatchSize            int     `mapstructure:"batch_size"`
	PriceBandsPath       string  `mapstructure:"price_bands_path"`
}

// ReviewConfig holds review queue and severity settings.
type ReviewConfig struct {
	PageSize            int `mapstructure:"page_size"`
	CriticalReviewCount int `mapstructure:"critical_review_count"`
	HighReviewCount     int `mapstructure:"high_review_count"`
}

type EnforcementConfig struct {
	DefaultLimit     int     `mapstructure:"default_limit"`
	MaxLimit         int     `mapstructure:"max_limit"`
	OccupancyRate    float64 `mapstructure:"occupancy_rate"`
	AvgGuestsPerStay float64 `mapstructure:"avg_guests_per_stay"`
	DaysPerMonth     float64 `mapstructure:"days_per_month"`
	TPTRatePerNight  float64 `mapstructure:"tpt_rate_per_night"`
}

// SchedulerConfig holds the cron expressions for the periodic jobs.
type SchedulerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ReconcileCron  string `mapstructure:"reconcile_cron"`
	RevalidateCron string `mapstructure:"revalidate_cron"`
}

// ObservabilityConfig holds tracing settings. An empty JaegerEndpoint disables tracing.
type ObservabilityConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
