package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRateRefresh fetches the daily currency rate sheet.
	TaskTypeRateRefresh = "fx:refresh"
	// TaskTypeQuoteRecalc recalculates a quote snapshot in the background.
	TaskTypeQuoteRecalc = "quote:recalc"
)

// QuoteRecalcPayload identifies the quote to recalculate.
type QuoteRecalcPayload struct {
	QuoteID uuid.UUID `json:"quote_id"`
}

// NewRateRefreshTask constructs the daily rate fetch task.
func NewRateRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRateRefresh, nil)
}

// NewQuoteRecalcTask constructs a recalculation task.
func NewQuoteRecalcTask(payload QuoteRecalcPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeQuoteRecalc, data), nil
}
