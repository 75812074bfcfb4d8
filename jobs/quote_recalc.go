package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-trade/meridian/internal/jobs"
	"github.com/meridian-trade/meridian/internal/quotes"
	"github.com/meridian-trade/meridian/internal/quotes/calc"
	"github.com/meridian-trade/meridian/internal/quotes/vars"
	"github.com/meridian-trade/meridian/internal/shared"
	"github.com/meridian-trade/meridian/internal/workflow"
)

// Recalculator re-runs quote calculations in the background, typically after
// a rate refresh invalidates cached snapshots.
type Recalculator struct {
	quotes  *quotes.Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

func NewRecalculator(service *quotes.Service, logger *slog.Logger) *Recalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recalculator{quotes: service, logger: logger, metrics: defaultJobMetrics}
}

// Handle processes TaskTypeQuoteRecalc tasks. Input errors are the quote's
// problem, not the queue's, so they skip retry.
func (r *Recalculator) Handle(ctx context.Context, t *asynq.Task) error {
	var payload QuoteRecalcPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := r.metrics.Track("quote_recalc")

	actor := workflow.Actor{Roles: []string{"admin"}}
	_, err := r.quotes.Calculate(ctx, payload.QuoteID, actor)
	if err != nil {
		var verr *vars.ValidationError
		var cerr *calc.CalculationError
		if errors.As(err, &verr) || errors.As(err, &cerr) || errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("quote recalc skipped",
				slog.String("quote_id", payload.QuoteID.String()),
				slog.Any("error", err))
			return tracker.End(asynq.SkipRetry)
		}
		return tracker.End(err)
	}
	r.logger.Info("quote recalculated", slog.String("quote_id", payload.QuoteID.String()))
	return tracker.End(nil)
}
