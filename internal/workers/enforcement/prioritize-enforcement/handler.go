// internal/workers/enforcement/prioritize-enforcement/handler.go
package prioritizeenforcement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/enforcement"
	"tourism-compliance/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "prioritize-enforcement"
)

// Prioritizer is implemented by *enforcement.Service.
type Prioritizer interface {
	Run(ctx context.Context, req enforcement.Request) (*enforcement.Response, error)
}

type Handler struct {
	config       *Config
	prioritizer  Prioritizer
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, prioritizer Prioritizer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		prioritizer:  prioritizer,
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
	resp, err := h.prioritizer.Run(ctx, enforcement.Request{
		City:              strings.TrimSpace(input.City),
		Limit:             input.Limit,
		SendNotifications: input.SendNotifications,
	})
	if err != nil {
		return nil, err
	}

	targets := resp.Targets
	if targets == nil {
		targets = []models.EnforcementTarget{}
	}
	out := &Output{
		Summary:          resp.Summary,
		Targets:          targets,
		TargetCount:      len(targets),
		NotificationSent: resp.NotificationSent,
	}
	if len(targets) > 0 {
		out.TopReportID = targets[0].ReportID
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
		"jobKey":      job.Key,
		"targetCount": output.TargetCount,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
