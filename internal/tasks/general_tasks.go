package tasks

import (
	"context"

	"go.uber.org/zap"

	"serviceportal/internal/models"
)

// LogInfoTaskDef writes its message argument to the log. Useful to check a
// worker deployment end to end.
type LogInfoTaskDef struct {
	log *zap.Logger
}

// TaskID returns the unique identifier for this task
func (t *LogInfoTaskDef) TaskID() string {
	return models.TaskLogInfo
}

// HandleExecution handles logging information
func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	message, ok := task.Arguments["message"].(string)
	if !ok {
		message = "No message provided"
	}
	t.log.Info("task log_info", zap.Uint("task_id", task.ID), zap.String("message", message))

	return map[string]interface{}{
		"status":            "success",
		"message":           message,
		"max_attempts_info": task.MaxAttempt,
	}, nil
}
