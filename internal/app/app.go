// Package app connects the backing stores and builds the domain services shared by the
// worker manager and the API server.
package app

import (
	"context"
	"fmt"
	"time"

	"tourism-compliance/internal/alerts"
	"tourism-compliance/internal/common/aws"
	"tourism-compliance/internal/common/camunda"
	"tourism-compliance/internal/common/config"
	"tourism-compliance/internal/common/database"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/common/observability"
	"tourism-compliance/internal/enforcement"
	"tourism-compliance/internal/hosts"
	"tourism-compliance/internal/ingestion"
	"tourism-compliance/internal/matching"
	"tourism-compliance/internal/reconciliation"
	"tourism-compliance/internal/retrieval"
	"tourism-compliance/internal/review"
	"tourism-compliance/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// RetryWithBackoff attempts to execute a function with exponential backoff
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// Options tune how New connects.
type Options struct {
	ServiceName string
	// Zeebe connects the broker even when event fan-out is disabled. The worker manager
	// needs it for job workers.
	Zeebe bool
	// RetryDelay is the first backoff step when connecting. Zero means 2s.
	RetryDelay time.Duration
}

// App holds the connected backends and the domain services built on them.
type App struct {
	Config *config.Config
	Logger logger.Logger
	Obs    *observability.Observability

	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	Zeebe         zbc.Client
	Camunda       *camunda.Client

	Publisher      *alerts.MultiPublisher
	Ingestion      *ingestion.Service
	Reconciliation *reconciliation.Service
	Review         *review.Service
	Enforcement    *enforcement.Service

	zapLog *zap.Logger
}

// New connects every configured backend with retry and builds the services. Callers must
// Close the returned App.
func New(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, opts Options) (*App, error) {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	var obsOpts []observability.Option
	if cfg.Observability.JaegerEndpoint != "" {
		obsOpts = append(obsOpts, observability.WithJaeger(cfg.Observability.JaegerEndpoint))
	}

	a := &App{
		Config: cfg,
		Logger: logger.NewZapAdapter(zapLog),
		Obs:    observability.New(opts.ServiceName, obsOpts...),
		zapLog: zapLog,
	}

	if err := a.connect(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context, opts Options) error {
	cfg := a.Config

	if opts.Zeebe || cfg.Integrations.ZeebeEvents.Enabled {
		err := RetryWithBackoff(func() error {
			var err error
			a.Camunda, err = camunda.Dial(ctx, &camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
				MessageTTL:             config.GetDuration(cfg.Integrations.ZeebeEvents.TTL),
			})
			return err
		}, 10, opts.RetryDelay, a.zapLog, "Zeebe client initialization")
		if err != nil {
			return err
		}
		a.Zeebe = a.Camunda.Zeebe()
		a.zapLog.Info("Zeebe client connected successfully")
	}

	err := RetryWithBackoff(func() error {
		var err error
		a.Postgres, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return a.Postgres.Ping(ctx)
	}, 15, opts.RetryDelay, a.zapLog, "PostgreSQL connection")
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx, a.Postgres.DB); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.zapLog.Info("PostgreSQL connected successfully")

	err = RetryWithBackoff(func() error {
		var err error
		a.Redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return a.Redis.Ping(ctx)
	}, 10, opts.RetryDelay, a.zapLog, "Redis connection")
	if err != nil {
		return err
	}
	a.zapLog.Info("Redis connected successfully")

	if cfg.Reconciliation.CandidateBackend == "elasticsearch" {
		err = RetryWithBackoff(func() error {
			var err error
			a.Elasticsearch, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return a.Elasticsearch.Ping()
		}, 15, opts.RetryDelay, a.zapLog, "Elasticsearch connection")
		if err != nil {
			return err
		}
		a.zapLog.Info("Elasticsearch connected successfully")
	}
	return nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	publisher, err := a.publisher(ctx)
	if err != nil {
		return err
	}
	a.Publisher = publisher

	source, err := a.candidateSource(ctx)
	if err != nil {
		return err
	}
	retriever := retrieval.NewRetriever(source, retrieval.Options{
		RadiusKm:      cfg.Reconciliation.RadiusKm,
		MaxCandidates: cfg.Reconciliation.MaxCandidates,
		Timeout:       config.GetDuration(cfg.Reconciliation.RetrievalTimeout),
	}, a.Logger)

	engine := matching.NewEngine(a.matchingOptions())

	a.Ingestion = ingestion.NewService(a.Postgres.DB, config.GetDuration(cfg.Reconciliation.PersistenceTimeout), a.Logger)
	a.Reconciliation = reconciliation.NewService(reconciliation.Deps{
		DB:        a.Postgres,
		Redis:     a.Redis,
		Finder:    retriever,
		Engine:    engine,
		Publisher: a.Publisher,
		Obs:       a.Obs,
	}, reconciliation.OptionsFromConfig(cfg), a.Logger)
	a.Review = review.NewService(a.Postgres, a.Redis, a.Publisher, review.OptionsFromConfig(cfg), a.Logger)
	a.Enforcement = enforcement.NewService(a.Postgres.DB, a.Publisher, enforcement.OptionsFromConfig(cfg), a.Logger)
	return nil
}

func (a *App) matchingOptions() matching.Options {
	r := a.Config.Reconciliation
	opts := matching.DefaultOptions()
	opts.RadiusKm = r.RadiusKm
	opts.AutoApprove = r.AutoApprove
	opts.AutoApproveThreshold = r.AutoApproveThreshold

	if r.PriceBandsPath != "" {
		bands, err := matching.LoadPriceBands(r.PriceBandsPath)
		if err != nil {
			a.Logger.Warn("using default price bands", map[string]interface{}{
				"path":  r.PriceBandsPath,
				"error": err.Error(),
			})
		}
		opts.PriceBands = bands
	}
	return opts
}

// candidateSource builds the configured backend, fronted by the redis cache. The
// elasticsearch index is synced from postgres at startup.
func (a *App) candidateSource(ctx context.Context) (retrieval.Source, error) {
	cfg := a.Config
	pg := retrieval.NewPostgresSource(a.Postgres.DB)

	var source retrieval.Source = pg
	if a.Elasticsearch != nil {
		es := retrieval.NewElasticsearchSource(a.Elasticsearch, cfg.Database.Elasticsearch.PropertyIndex)
		n, err := es.Sync(ctx, pg)
		if err != nil {
			return nil, fmt.Errorf("sync property index: %w", err)
		}
		a.Logger.Info("property index synced", map[string]interface{}{
			"index":     cfg.Database.Elasticsearch.PropertyIndex,
			"documents": n,
		})
		source = es
	}

	if ttl := config.GetDuration(cfg.Reconciliation.CandidateCacheTTL); ttl > 0 {
		source = retrieval.NewCachedSource(source, a.Redis, ttl)
	}
	return source, nil
}

func (a *App) publisher(ctx context.Context) (*alerts.MultiPublisher, error) {
	integ := a.Config.Integrations
	m := alerts.NewMultiPublisher().Add("log", alerts.NewLogPublisher(a.Logger))

	if integ.AWS.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, integ.AWS.Region, integ.AWS.SNS.TopicARN)
		if err != nil {
			return nil, fmt.Errorf("init sns: %w", err)
		}
		m.Add("sns", alerts.NewSNSPublisher(sns))
	}
	if integ.ZeebeEvents.Enabled && a.Camunda != nil {
		m.Add("zeebe", alerts.NewZeebePublisher(a.Camunda))
	}

	a.Logger.Info("alert sinks configured", map[string]interface{}{"sinks": m.Len()})
	return m, nil
}

// Operators loads operator groups for the hosts endpoint.
func (a *App) Operators(ctx context.Context, city string) ([]hosts.Operator, error) {
	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(a.Config.Reconciliation.PersistenceTimeout))
	defer cancel()
	return hosts.LoadOperators(ctx, a.Postgres.DB, city)
}

// Close releases every connection New opened.
func (a *App) Close() {
	if a.Camunda != nil {
		if err := a.Camunda.Close(); err != nil {
			a.zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Postgres != nil {
		_ = a.Postgres.Close()
	}
	a.Obs.Shutdown()
}
