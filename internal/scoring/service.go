// Package scoring joins the lendee pipeline and the relay publisher. Computing
// scores and delivering them are separate failure domains: a failed delivery
// still returns the computed mapping.
package scoring

import (
	"context"
	"time"

	apperrors "lendee-scoring/internal/common/errors"
	"lendee-scoring/internal/common/logger"
	"lendee-scoring/internal/common/metrics"
	"lendee-scoring/internal/lendee"
	"lendee-scoring/internal/relay"
)

const (
	modeAll    = "all"
	modeSubset = "subset"
	modeItems  = "items"
)

type Pipeline interface {
	ScoreAll(ctx context.Context) (lendee.Scores, error)
	ScoreSubset(ctx context.Context, ids []string) (lendee.Scores, error)
}

type Publisher interface {
	Publish(ctx context.Context, url string, scores map[string]float64) relay.Delivery
}

// Result is a computed mapping plus the outcome of relaying it.
type Result struct {
	Mapping     lendee.Scores
	Destination string
	Delivery    relay.Delivery
}

type Service struct {
	pipeline   Pipeline
	publisher  Publisher
	defaultURL string
	logger     logger.Logger
}

func NewService(pipeline Pipeline, publisher Publisher, defaultURL string, log logger.Logger) *Service {
	return &Service{
		pipeline:   pipeline,
		publisher:  publisher,
		defaultURL: defaultURL,
		logger:     log.WithFields(map[string]interface{}{"component": "scoring"}),
	}
}

// ComputeAndSend scores the requested ids and relays the mapping to
// destination, or to the configured URL when destination is empty. The error
// is non-nil only when the scores could not be computed.
func (s *Service) ComputeAndSend(ctx context.Context, ids []string, destination string) (*Result, error) {
	if len(ids) == 0 {
		return nil, apperrors.NewInvalidRequestError("uuids must be a non-empty list")
	}

	start := time.Now()
	scores, err := s.pipeline.ScoreSubset(ctx, ids)
	metrics.ObservePipeline(modeSubset, start, len(scores), err)
	if err != nil {
		return nil, err
	}

	url := destination
	if url == "" {
		url = s.defaultURL
	}

	delivery := s.publisher.Publish(ctx, url, scores)
	metrics.ObserveDelivery(delivery.Delivered)

	s.logger.Info("compute and send finished", map[string]interface{}{
		"requested":  len(ids),
		"scored":     len(scores),
		"posted":     delivery.Delivered,
		"statusCode": delivery.StatusCode,
	})

	return &Result{Mapping: scores, Destination: url, Delivery: delivery}, nil
}

// Score scores caller-supplied items, or every lendee in the sources when no
// items are given. Nothing is relayed.
func (s *Service) Score(ctx context.Context, items []lendee.FeatureItem) (lendee.Scores, error) {
	start := time.Now()
	if len(items) > 0 {
		scores := lendee.ScoreItems(items)
		metrics.ObservePipeline(modeItems, start, len(scores), nil)
		return scores, nil
	}

	scores, err := s.pipeline.ScoreAll(ctx)
	metrics.ObservePipeline(modeAll, start, len(scores), err)
	return scores, err
}
