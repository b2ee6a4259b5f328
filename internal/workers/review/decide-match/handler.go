// internal/workers/review/decide-match/handler.go
package decidematch

import (
	"context"
	"encoding/json"
	"fmt"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/review"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "decide-match"
)

// Decider is implemented by *review.Service.
type Decider interface {
	Decide(ctx context.Context, matchID string, dec models.Decision, notes string) (*review.Result, error)
}

type Handler struct {
	config       *Config
	decider      Decider
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, decider Decider, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		decider:      decider,
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
	req := review.DecisionRequest{MatchID: input.MatchID, Decision: input.Decision, Notes: input.Notes}
	dec, err := req.Parse()
	if err != nil {
		return nil, err
	}

	res, err := h.decider.Decide(ctx, req.MatchID, dec, req.Notes)
	if err != nil {
		return nil, err
	}

	out := &Output{
		MatchRecordID: res.MatchRecord.ID,
		Status:        string(res.MatchRecord.Status),
	}
	if res.Report != nil {
		out.ReportID = res.Report.ID
		out.Severity = string(res.Report.Severity)
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
		"jobKey":        job.Key,
		"matchRecordId": output.MatchRecordID,
		"status":        output.Status,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
