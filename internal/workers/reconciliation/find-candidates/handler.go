// internal/workers/reconciliation/find-candidates/handler.go
package findcandidates

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
	TaskType = "find-candidates"
)

// Finder is implemented by *reconciliation.Service.
type Finder interface {
	Listing(ctx context.Context, listingID string) (*models.ScrapedListing, error)
	Candidates(ctx context.Context, l *models.ScrapedListing) ([]models.RegisteredProperty, error)
}

type Handler struct {
	config       *Config
	finder       Finder
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, finder Finder, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		finder:       finder,
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

	listing, err := h.finder.Listing(ctx, id)
	if err != nil {
		return nil, err
	}
	candidates, err := h.finder.Candidates(ctx, listing)
	if err != nil {
		return nil, errors.FromContext("retrieve", err)
	}

	ids := make([]string, 0, len(candidates))
	for _, p := range candidates {
		ids = append(ids, p.ID)
	}

	h.logger.Debug("candidates retrieved", map[string]interface{}{
		"listingId": id,
		"count":     len(ids),
	})
	return &Output{ListingID: id, CandidateIDs: ids, CandidateCount: len(ids)}, nil
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
		"candidateCount": output.CandidateCount,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
