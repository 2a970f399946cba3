// Package jobs runs background work over Asynq: the nightly overdue sweep
// that marks long-delinquent loans as defaulted.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueSweep is the task type for the nightly arrears sweep.
	TaskOverdueSweep = "loans:overdue_sweep"
)

// OverdueSweepPayload parameterizes one sweep run.
type OverdueSweepPayload struct {
	// GraceDays is how long an installment may stay unpaid past its due
	// date before the loan is marked DEFAULTED.
	GraceDays int `json:"graceDays"`
}

// NewOverdueSweepTask constructs an Asynq task for the overdue sweep.
func NewOverdueSweepTask(graceDays int) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueSweepPayload{GraceDays: graceDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueSweep, data), nil
}
