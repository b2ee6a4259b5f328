// internal/workers/reconciliation/ingest-listing/handler.go
package ingestlisting

import (
	"context"
	"encoding/json"
	"fmt"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/ingestion"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "ingest-listing"
)

// Ingester is implemented by *ingestion.Service.
type Ingester interface {
	IngestJSON(ctx context.Context, raw []byte) (*ingestion.Result, error)
}

type Handler struct {
	config       *Config
	ingester     Ingester
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, ingester Ingester, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		ingester:     ingester,
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
	if len(input.Listing) == 0 || string(input.Listing) == "null" {
		return nil, errors.NewValidationError("listing is required")
	}

	res, err := h.ingester.IngestJSON(ctx, input.Listing)
	if err != nil {
		return nil, err
	}

	h.logger.Info("listing ingested", map[string]interface{}{
		"listingId": res.ListingID,
		"created":   res.Created,
	})
	return &Output{ListingID: res.ListingID, Created: res.Created}, nil
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
		"jobKey": job.Key,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
