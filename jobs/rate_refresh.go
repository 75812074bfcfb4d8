package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-trade/meridian/internal/fx"
	jobmetrics "github.com/meridian-trade/meridian/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RateRefresher pulls the daily rate sheet from the upstream source and
// persists it, so conversions stop depending on the fallback window.
type RateRefresher struct {
	source  fx.Source
	store   fx.Store
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

func NewRateRefresher(source fx.Source, store fx.Store, logger *slog.Logger) *RateRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateRefresher{source: source, store: store, logger: logger, metrics: defaultJobMetrics}
}

// Handle processes TaskTypeRateRefresh tasks.
func (r *RateRefresher) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := r.metrics.Track("fx_refresh")

	asOf := time.Now().UTC()
	set, err := r.source.FetchRates(ctx, asOf)
	if err != nil {
		r.logger.Error("fetch rates", slog.Any("error", err))
		return tracker.End(err)
	}
	if set.Empty() {
		r.metrics.AddRateGap(fx.DateKey(asOf).Format("2006-01-02"))
		r.logger.Warn("rate source published no sheet",
			slog.String("date", fx.DateKey(asOf).Format("2006-01-02")))
		return tracker.End(nil)
	}
	if err := r.store.SaveRates(ctx, set); err != nil {
		r.logger.Error("save rates", slog.Any("error", err))
		return tracker.End(err)
	}
	r.logger.Info("rates refreshed",
		slog.String("date", set.Date.Format("2006-01-02")),
		slog.Int("count", len(set.Rates)))
	return tracker.End(nil)
}
