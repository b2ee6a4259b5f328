// internal/workers/reconciliation/match-listing/handler.go
package matchlisting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "match-listing"
)

// Reconciler is implemented by *reconciliation.Service.
type Reconciler interface {
	ReconcileListing(ctx context.Context, listingID string) (*models.MatchRecord, error)
}

type Handler struct {
	config       *Config
	reconciler   Reconciler
	reviewTiers  map[models.MatchType]bool
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, reconciler Reconciler, log logger.Logger) *Handler {
	tiers := make(map[models.MatchType]bool, len(config.ReviewTiers))
	for _, t := range config.ReviewTiers {
		tiers[models.MatchType(t)] = true
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		reconciler:   reconciler,
		reviewTiers:  tiers,
		errorHandler: errors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, errors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	id := strings.TrimSpace(input.ListingID)
	if id == "" {
		return nil, errors.NewValidationError("listingId is required")
	}

	rec, err := h.reconciler.ReconcileListing(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &Output{
		MatchRecordID:  rec.ID,
		MatchType:      string(rec.MatchType),
		MatchScore:     rec.MatchScore,
		Status:         string(rec.Status),
		RequiresReview: rec.Status == models.StatusPending && h.reviewTiers[rec.MatchType],
	}
	if rec.PropertyID != nil {
		out.PropertyID = *rec.PropertyID
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":         job.Key,
		"matchType":      output.MatchType,
		"requiresReview": output.RequiresReview,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
