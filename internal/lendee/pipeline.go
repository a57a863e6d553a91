package lendee

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "lendee-scoring/internal/common/errors"
	"lendee-scoring/internal/common/logger"
)

// Pipeline loads the sources, aggregates them and scores the result. It keeps
// no state between runs; every call re-reads the sources.
type Pipeline struct {
	loader Loader
	sinks  []SnapshotSink
	logger logger.Logger
}

func NewPipeline(loader Loader, log logger.Logger, sinks ...SnapshotSink) *Pipeline {
	return &Pipeline{
		loader: loader,
		sinks:  sinks,
		logger: log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// Features runs the full aggregation and refreshes every snapshot sink.
func (p *Pipeline) Features(ctx context.Context) ([]FeatureRow, error) {
	log := p.logger.WithFields(map[string]interface{}{"runId": uuid.NewString()})
	start := time.Now()

	src, err := p.loader.Load(ctx)
	if err != nil {
		log.Error("failed to load sources", map[string]interface{}{"error": err})
		return nil, err
	}

	rows := Aggregate(src)
	p.snapshot(ctx, log, rows)

	log.Info("features aggregated", map[string]interface{}{
		"lendees":    len(rows),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return rows, nil
}

// ScoreAll scores every lendee found in the sources.
func (p *Pipeline) ScoreAll(ctx context.Context) (Scores, error) {
	rows, err := p.Features(ctx)
	if err != nil {
		return nil, err
	}
	return ScoreRows(rows), nil
}

// ScoreSubset scores only the requested ids. Ids found in no source are
// absent from the result.
func (p *Pipeline) ScoreSubset(ctx context.Context, ids []string) (Scores, error) {
	rows, err := p.Features(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	scores := make(Scores, len(wanted))
	for _, row := range rows {
		if _, ok := wanted[row.LendeeID]; ok {
			scores[row.LendeeID] = Score(row.ScoreInput())
		}
	}
	return scores, nil
}

func (p *Pipeline) snapshot(ctx context.Context, log logger.Logger, rows []FeatureRow) {
	for _, sink := range p.sinks {
		if err := sink.Write(ctx, rows); err != nil {
			serr := apperrors.NewSnapshotWriteFailedError(sink.Name(), err)
			log.Warn("snapshot write failed", map[string]interface{}{
				"sink":  sink.Name(),
				"code":  serr.Code,
				"error": serr.Details,
			})
		}
	}
}
