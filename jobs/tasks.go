package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSalesCleanupVoided purges voided sales past the retention window.
	TaskSalesCleanupVoided = "sales:cleanup_voided"
)

// SalesCleanupPayload parameterises the voided-sale cleanup.
type SalesCleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewSalesCleanupTask constructs an Asynq task for the cleanup job.
func NewSalesCleanupTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(SalesCleanupPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSalesCleanupVoided, data), nil
}
