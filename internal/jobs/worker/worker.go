package worker

import (
	"context"
	"time"

	"github.com/epigraph-ai/epigraph-backend/internal/platform/envutil"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/classifier"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/validator"
)

// Worker runs the two maintenance passes on their own schedules. Both passes
// are idempotent and commute with live resolution, so no coordination with
// the HTTP path is needed beyond what the store guarantees.
type Worker struct {
	log        *logger.Logger
	classifier *classifier.Classifier
	validator  *validator.Validator

	classifyEvery time.Duration
	validateEvery time.Duration
}

func New(baseLog *logger.Logger, cl *classifier.Classifier, va *validator.Validator) *Worker {
	log := baseLog.With("component", "MaintenanceWorker")
	return &Worker{
		log:           log,
		classifier:    cl,
		validator:     va,
		classifyEvery: time.Duration(envutil.GetEnvAsInt("CLASSIFIER_INTERVAL_SECONDS", 300, log)) * time.Second,
		validateEvery: time.Duration(envutil.GetEnvAsInt("VALIDATOR_INTERVAL_SECONDS", 900, log)) * time.Second,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx, "classifier", w.classifyEvery, func(ctx context.Context) error {
		_, err := w.classifier.Run(ctx)
		return err
	})
	go w.loop(ctx, "validator", w.validateEvery, func(ctx context.Context) error {
		_, err := w.validator.Run(ctx)
		return err
	})
}

func (w *Worker) loop(ctx context.Context, name string, every time.Duration, pass func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pass(ctx); err != nil {
				// Deferred passes (missing seed or prototype embeddings)
				// land here; the next tick retries.
				w.log.Warn("Maintenance pass deferred", "pass", name, "error", err)
			}
		}
	}
}
