package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top and lets
// environment variables override any key (database.postgres.host -> DATABASE_POSTGRES_HOST).
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	if root := findProjectRoot(); root != "" {
		v.AddConfigPath(filepath.Join(root, "configs"))
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from path, then applies env overrides and validates.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Integrations.AWS.SNS.TopicARN == "" {
		cfg.Integrations.AWS.SNS.TopicARN = os.Getenv("ALERTS_SNS_TOPIC_ARN")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "tourism-compliance"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.PropertyIndex == "" {
		cfg.Database.Elasticsearch.PropertyIndex = "registered_properties"
	}

	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "eu-west-1"
	}
	if cfg.Integrations.ZeebeEvents.TTL == 0 {
		cfg.Integrations.ZeebeEvents.TTL = 3600000
	}

	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8081"
	}

	r := &cfg.Reconciliation
	if r.RadiusKm == 0 {
		r.RadiusKm = 2.0
	}
	if r.MaxCandidates == 0 {
		r.MaxCandidates = 20
	}
	if r.CandidateBackend == "" {
		r.CandidateBackend = "postgres"
	}
	if r.CandidateCacheTTL == 0 {
		r.CandidateCacheTTL = 300000
	}
	if r.AutoApproveThreshold == 0 {
		r.AutoApproveThreshold = 0.97
	}
	if r.Workers == 0 {
		r.Workers = 4
	}
	if r.RetrievalTimeout == 0 {
		r.RetrievalTimeout = 5000
	}
	if r.PersistenceTimeout == 0 {
		r.PersistenceTimeout = 5000
	}
	if r.BatchSize == 0 {
		r.BatchSize = 500
	}

	if cfg.Review.PageSize == 0 {
		cfg.Review.PageSize = 50
	}
	if cfg.Review.CriticalReviewCount == 0 {
		cfg.Review.CriticalReviewCount = 50
	}
	if cfg.Review.HighReviewCount == 0 {
		cfg.Review.HighReviewCount = 10
	}

	e := &cfg.Enforcement
	if e.DefaultLimit == 0 {
		e.DefaultLimit = 20
	}
	if e.MaxLimit == 0 {
		e.MaxLimit = 100
	}
	if e.OccupancyRate == 0 {
		e.OccupancyRate = 0.5
	}
	if e.AvgGuestsPerStay == 0 {
		e.AvgGuestsPerStay = 2
	}
	if e.DaysPerMonth == 0 {
		e.DaysPerMonth = 30
	}
	if e.TPTRatePerNight == 0 {
		e.TPTRatePerNight = 1000
	}

	if cfg.Scheduler.ReconcileCron == "" {
		cfg.Scheduler.ReconcileCron = "0 */6 * * *"
	}
	if cfg.Scheduler.RevalidateCron == "" {
		cfg.Scheduler.RevalidateCron = "30 2 * * *"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Reconciliation.CandidateBackend {
	case "postgres":
	case "elasticsearch":
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch candidate backend")
		}
	default:
		return fmt.Errorf("reconciliation.candidate_backend must be postgres or elasticsearch, got %q", cfg.Reconciliation.CandidateBackend)
	}

	if cfg.Reconciliation.RadiusKm < 0 {
		return fmt.Errorf("reconciliation.radius_km must be >= 0")
	}
	if t := cfg.Reconciliation.AutoApproveThreshold; t < 0.85 || t > 1 {
		return fmt.Errorf("reconciliation.auto_approve_threshold must be within [0.85, 1]")
	}
	if cfg.Review.HighReviewCount > cfg.Review.CriticalReviewCount {
		return fmt.Errorf("review.high_review_count must not exceed review.critical_review_count")
	}
	if r := cfg.Enforcement.OccupancyRate; r <= 0 || r > 1 {
		return fmt.Errorf("enforcement.occupancy_rate must be within (0, 1]")
	}
	if cfg.Integrations.AWS.SNS.Enabled && cfg.Integrations.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("integrations.aws.sns.topic_arn is required when sns is enabled")
	}
	return nil
}

// GetDuration converts milliseconds to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig returns the configured worker settings, or defaults when none exist.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

