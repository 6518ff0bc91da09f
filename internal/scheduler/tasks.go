package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskQuoteExpirySweep = "quotes.expiry.sweep"

type QuoteExpirySweepPayload struct {
	// AsOf pins the sweep cutoff so a delayed task does not expire quotes
	// that were still valid when it was enqueued. Zero means "now".
	AsOf time.Time `json:"asOf"`
}

func NewQuoteExpirySweepTask(payload QuoteExpirySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteExpirySweep, data), nil
}

func ParseQuoteExpirySweepPayload(task *asynq.Task) (QuoteExpirySweepPayload, error) {
	var payload QuoteExpirySweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return QuoteExpirySweepPayload{}, err
	}
	return payload, nil
}
