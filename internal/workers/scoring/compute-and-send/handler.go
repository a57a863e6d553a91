package computeandsend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "lendee-scoring/internal/common/errors"
	"lendee-scoring/internal/common/logger"
	"lendee-scoring/internal/common/metrics"
	"lendee-scoring/internal/common/observability"
	"lendee-scoring/internal/common/validation"
	"lendee-scoring/internal/lendee"
	"lendee-scoring/internal/scoring"
)

const TaskType = "compute-and-send"

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

type Service interface {
	ComputeAndSend(ctx context.Context, ids []string, destination string) (*scoring.Result, error)
}

type Handler struct {
	config    *Config
	service   Service
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	obs       *observability.Observability
	logger    logger.Logger
}

// NewHandler builds the job handler. obs may be nil.
func NewHandler(cfg *Config, service Service, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    cfg,
		service:   service,
		validator: validation.MustValidator(validation.ComputeJobSchema),
		errors:    apperrors.NewErrorHandler(log),
		obs:       obs,
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"workflowKey": job.GetProcessInstanceKey(),
	})

	output, err := h.process(ctx, job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.AsStandard(err).Code)).Inc()
		h.record(ctx, statusFailed, start)
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.record(ctx, statusCompleted, start)
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	raw := []byte(job.GetVariables())

	result, err := h.validator.Validate(raw)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidRequestError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	return &input, nil
}

// Execute scores the requested ids and relays them. A failed delivery still
// completes the job with posted=false.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.service.ComputeAndSend(ctx, lendee.Identifiers(input.UUIDs), input.OracleURL)
	if err != nil {
		return nil, err
	}

	if res.Delivery.Err != nil {
		h.logger.Warn("scores computed but not delivered", map[string]interface{}{
			"destination": res.Destination,
			"error":       res.Delivery.Err,
		})
	}

	return &Output{
		Mapping:          res.Mapping,
		Posted:           res.Delivery.Delivered,
		OracleStatusCode: res.Delivery.StatusCode,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey": job.GetKey(),
		"scored": len(output.Mapping),
		"posted": output.Posted,
	})
}

func (h *Handler) record(ctx context.Context, status string, start time.Time) {
	if h.obs != nil {
		h.obs.RecordJob(ctx, TaskType, status, time.Since(start))
	}
}
