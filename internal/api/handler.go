package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "lendee-scoring/internal/common/errors"
	"lendee-scoring/internal/common/logger"
	"lendee-scoring/internal/common/validation"
	"lendee-scoring/internal/lendee"
	"lendee-scoring/internal/models"
	"lendee-scoring/internal/scoring"
)

const (
	maxBodyBytes = 1 << 20

	headerOracleStatus = "oracle_status_code"
)

// Service is the scoring operations the HTTP front end dispatches to.
type Service interface {
	ComputeAndSend(ctx context.Context, ids []string, destination string) (*scoring.Result, error)
	Score(ctx context.Context, items []lendee.FeatureItem) (lendee.Scores, error)
}

// ReadinessCheck reports whether the service's dependencies are reachable.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	service       Service
	env           string
	ready         ReadinessCheck
	computeSchema *validation.Validator
	scoreSchema   *validation.Validator
	logger        logger.Logger
}

func NewHandler(service Service, env string, ready ReadinessCheck, log logger.Logger) *Handler {
	return &Handler{
		service:       service,
		env:           env,
		ready:         ready,
		computeSchema: validation.MustValidator(validation.ComputeRequestSchema),
		scoreSchema:   validation.MustValidator(validation.ScoreRequestSchema),
		logger:        log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Register mounts the scoring endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compute_and_send", h.handleComputeAndSend)
	r.Post("/score", h.handleScore)
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
}

func (h *Handler) handleComputeAndSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		h.writeError(w, r, apperrors.NewInvalidRequestError("missing json"))
		return
	}
	if !h.validate(w, r, h.computeSchema, body) {
		return
	}

	var req models.ComputeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	res, err := h.service.ComputeAndSend(ctx, lendee.Identifiers(req.UUIDs), req.OracleURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := models.ComputeResponse{
		OK:      true,
		Posted:  res.Delivery.Delivered,
		Mapping: res.Mapping,
	}
	if res.Delivery.StatusCode != 0 {
		status := res.Delivery.StatusCode
		resp.OracleStatusCode = &status
		w.Header().Set(headerOracleStatus, strconv.Itoa(status))
	}
	if res.Delivery.Err != nil {
		h.logger.Warn("scores computed but not delivered", map[string]interface{}{
			"requestId":   middleware.GetReqID(ctx),
			"destination": res.Destination,
			"error":       res.Delivery.Err,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	var req models.ScoreRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if !h.validate(w, r, h.scoreSchema, body) {
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			h.writeError(w, r, apperrors.NewInvalidRequestError(err.Error()))
			return
		}
	}

	scores, err := h.service.Score(r.Context(), req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ScoreResponse{OK: true, Mapping: scores})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{OK: true, Env: h.env})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{
				Code:    "NOT_READY",
				Message: err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, models.HealthResponse{OK: true, Env: h.env})
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request, v *validation.Validator, body []byte) bool {
	result, err := v.Validate(body)
	if err != nil {
		h.writeError(w, r, apperrors.NewInvalidRequestError("missing json"))
		return false
	}
	if !result.Valid {
		serr := apperrors.NewInvalidRequestError(result.Summary())
		h.logger.Info("request rejected", map[string]interface{}{
			"requestId": middleware.GetReqID(r.Context()),
			"path":      r.URL.Path,
			"errors":    result.Errors,
		})
		writeJSON(w, apperrors.HTTPStatus(serr.Code), models.ErrorResponse{
			Code:    string(serr.Code),
			Message: serr.Message,
			Details: result.Errors,
		})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	serr := apperrors.AsStandard(err)
	status := apperrors.HTTPStatus(serr.Code)

	fields := map[string]interface{}{
		"requestId": middleware.GetReqID(r.Context()),
		"path":      r.URL.Path,
		"code":      serr.Code,
		"details":   serr.Details,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields)
	} else {
		h.logger.Info("request rejected", fields)
	}

	resp := models.ErrorResponse{Code: string(serr.Code), Message: serr.Message}
	if serr.Details != "" {
		resp.Details = serr.Details
	}
	writeJSON(w, status, resp)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("request body too large")
		}
		return nil, err
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
