// Package api exposes the review, enforcement, ingestion and reconciliation operations over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"time"

	"tourism-compliance/internal/common/config"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/enforcement"
	"tourism-compliance/internal/hosts"
	"tourism-compliance/internal/ingestion"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/reconciliation"
	"tourism-compliance/internal/review"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReviewService is implemented by *review.Service.
type ReviewService interface {
	ListPending(ctx context.Context, q review.PendingQuery) (*review.Page, error)
	Summary(ctx context.Context) (*review.Summary, error)
	GetMatch(ctx context.Context, id string) (*review.Item, error)
	Decide(ctx context.Context, matchID string, dec models.Decision, notes string) (*review.Result, error)
	Escalations(ctx context.Context, limit int) ([]review.EscalationEntry, error)
}

// EnforcementService is implemented by *enforcement.Service.
type EnforcementService interface {
	Run(ctx context.Context, req enforcement.Request) (*enforcement.Response, error)
}

// IngestionService is implemented by *ingestion.Service.
type IngestionService interface {
	IngestJSON(ctx context.Context, raw []byte) (*ingestion.Result, error)
	IngestMany(ctx context.Context, docs []json.RawMessage) *ingestion.BatchResult
}

// ReconciliationService is implemented by *reconciliation.Service.
type ReconciliationService interface {
	ReconcileListing(ctx context.Context, listingID string) (*models.MatchRecord, error)
	RunBatch(ctx context.Context, req reconciliation.BatchRequest) (*reconciliation.BatchResult, error)
	Revalidate(ctx context.Context) (*reconciliation.RevalidationResult, error)
}

// OperatorSource loads operator groups, optionally within a city.
type OperatorSource func(ctx context.Context, city string) ([]hosts.Operator, error)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps are the services the HTTP handlers call.
type Deps struct {
	Review         ReviewService
	Enforcement    EnforcementService
	Ingestion      IngestionService
	Reconciliation ReconciliationService
	Operators      OperatorSource
	// Checks are pinged by /ready, keyed by dependency name.
	Checks map[string]Pinger
}

// Handler serves the /api routes.
type Handler struct {
	deps   Deps
	logger logger.Logger
}

// NewRouter builds the gin engine with CORS, health, metrics and the /api routes.
func NewRouter(deps Deps, cfg config.HTTPConfig, log logger.Logger) *gin.Engine {
	h := &Handler{
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
	}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", h.health)
	r.GET("/ready", h.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	rv := api.Group("/review")
	rv.GET("/pending", h.listPending)
	rv.GET("/summary", h.reviewSummary)
	rv.GET("/matches/:id", h.getMatch)
	rv.POST("/decisions", h.decide)
	rv.GET("/escalations", h.escalations)

	api.POST("/enforcement/prioritize", h.prioritize)

	api.POST("/listings", h.ingestListing)
	api.POST("/listings/bulk", h.ingestListings)

	rc := api.Group("/reconciliation")
	rc.POST("/listings/:id", h.reconcileListing)
	rc.POST("/batch", h.runBatch)
	rc.POST("/revalidate", h.revalidate)

	api.GET("/hosts/operators", h.operators)

	return r
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request served", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}
}
