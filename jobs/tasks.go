package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup prefetches dashboard reports into the cache.
	TaskDashboardWarmup = "dashboard:warmup"
)

// WarmupPayload selects what a warmup run prefetches. Empty Offices means the configured
// default offices.
type WarmupPayload struct {
	Offices []int64 `json:"offices,omitempty"`
	// Invalidate bumps the cache version before fetching.
	Invalidate bool `json:"invalidate,omitempty"`
}

// NewWarmupTask constructs an Asynq task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data), nil
}
