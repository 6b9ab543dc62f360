package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"serviceportal/internal/models"
	"serviceportal/internal/store"
)

const taskTimeout = 2 * time.Minute

// Runner executes due scheduled tasks and keeps their bookkeeping
type Runner struct {
	store    store.Store
	registry *Registry
	now      func() time.Time
	log      *zap.Logger
}

func NewRunner(st store.Store, registry *Registry, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{store: st, registry: registry, now: time.Now, log: log}
}

// RunDue executes every task that is due now and returns how many ran
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	pending, err := r.store.DueTasks(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("fetch pending tasks: %w", err)
	}
	if len(pending) == 0 {
		r.log.Debug("no pending tasks")
		return 0, nil
	}
	r.log.Info("found pending tasks", zap.Int("count", len(pending)))

	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		r.execute(ctx, task)
		ran++
	}
	return ran, nil
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) {
	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}
	attempt := 1
	if n, ok := task.Arguments["attempt_count"].(float64); ok {
		attempt = int(n) + 1
	}

	log := r.log.With(zap.Uint("task_id", task.ID), zap.String("task_name", task.TaskName))
	log.Info("processing task")

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Error("task handler not found, marking as failure")
		now := r.now()
		task.LastRun = &now
		task.Status = models.ScheduledTaskStatusFailure
		r.save(ctx, &task, &models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		return
	}

	startTime := r.now()
	result, err := r.call(ctx, handler, task)
	runtimeMs := int(time.Since(startTime).Milliseconds())

	status := "success"
	if err != nil {
		status = "failure"
		result = map[string]interface{}{"error": err.Error(), "result": result}
		log.Error("task failed", zap.Error(err))
	} else {
		log.Info("task completed", zap.Int("runtime_ms", runtimeMs))
	}

	task.LastRun = &startTime
	switch task.TaskType {
	case models.ScheduledTaskTypeRecurring:
		// a failed run of a recurring task still moves on to its next slot
		nextDue := task.NextDueAfter(startTime)
		if nextDue.After(task.Due) {
			task.Status = models.ScheduledTaskStatusActive
			task.Due = nextDue
		} else {
			task.Status = models.ScheduledTaskStatusDone
		}
	default:
		task.Status = models.ScheduledTaskStatusDone
		if err != nil {
			task.Status = models.ScheduledTaskStatusFailure
		}
	}

	r.save(ctx, &task, &models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           startTime,
		Runtime:         runtimeMs,
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	})
}

// call runs handler with a timeout and turns a panic into an error
func (r *Runner) call(ctx context.Context, handler TaskHandler, task models.ScheduledTask) (result map[string]interface{}, err error) {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return handler(ctx, task)
}

func (r *Runner) save(ctx context.Context, task *models.ScheduledTask, run *models.ScheduledTaskHistory) {
	ctx = context.WithoutCancel(ctx)
	if err := r.store.RecordTaskRun(ctx, run); err != nil {
		r.log.Error("failed to record task history", zap.Uint("task_id", task.ID), zap.Error(err))
	}
	if err := r.store.UpdateTask(ctx, task); err != nil {
		r.log.Error("failed to update task", zap.Uint("task_id", task.ID), zap.Error(err))
	}
}
