package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"serviceportal/internal/models"
	"serviceportal/internal/services"
	"serviceportal/internal/store"
)

const (
	reconcileRetryDelay = 10 * time.Minute

	// ExpireSessionsRule runs the session cleanup every hour
	ExpireSessionsRule = "FREQ=HOURLY;INTERVAL=1"
	defaultSessionAge  = 24 * time.Hour
)

// ReconcilePaymentTaskDef records a payment the gateway settled but the store
// failed to write at completion time
type ReconcilePaymentTaskDef struct {
	payments *services.PaymentService
	store    store.Store
	now      func() time.Time
	log      *zap.Logger
}

func (t *ReconcilePaymentTaskDef) TaskID() string {
	return models.TaskReconcilePayment
}

func (t *ReconcilePaymentTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args services.ReconcileArgs
	if err := decodeArgs(task.Arguments, &args); err != nil {
		return nil, err
	}
	if args.Reference == "" {
		return nil, fmt.Errorf("reconcile_payment: reference is missing")
	}

	result := map[string]interface{}{
		"reference": args.Reference,
		"attempt":   args.AttemptCount,
	}

	res, err := t.payments.Reconcile(ctx, args.Reference, args.TransactionRef)
	if err == nil {
		result["outcome"] = string(res.Outcome)
		result["duplicate"] = res.Duplicate
		t.log.Info("task reconcile_payment done",
			zap.String("reference", args.Reference),
			zap.String("outcome", string(res.Outcome)),
		)
		return result, nil
	}
	result["error"] = err.Error()

	if errors.Is(err, services.ErrPaymentHeld) {
		result["outcome"] = string(services.OutcomeProcessingPending)
		t.log.Warn("task reconcile_payment stored funds for review",
			zap.String("reference", args.Reference),
		)
		return result, nil
	}

	// these will not change by waiting
	if errors.Is(err, services.ErrAlreadyPaid) || errors.Is(err, services.ErrStageNotPayable) || errors.Is(err, services.ErrNotFound) {
		return result, err
	}

	if args.AttemptCount < task.MaxAttempt {
		next := args
		next.AttemptCount++
		retry, berr := models.BuildScheduledTask(t.TaskID(), next, t.now().Add(reconcileRetryDelay), nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
		if berr == nil {
			berr = t.store.CreateTask(ctx, retry)
		}
		if berr != nil {
			return result, fmt.Errorf("reschedule reconciliation of %s: %w", args.Reference, berr)
		}
		t.log.Warn("task reconcile_payment failed, rescheduling",
			zap.String("reference", args.Reference),
			zap.Int("next_attempt", next.AttemptCount),
			zap.Error(err),
		)
		result["status"] = "rescheduled"
		return result, nil
	}

	t.log.Error("task reconcile_payment gave up, manual review needed",
		zap.String("reference", args.Reference),
		zap.String("transaction_ref", args.TransactionRef),
		zap.Error(err),
	)
	return result, err
}

// ExpireSessionsArgs are the optional arguments of expire_payment_sessions
type ExpireSessionsArgs struct {
	MaxAgeMinutes int `json:"max_age_minutes"`
}

// ExpireSessionsTaskDef closes checkout sessions the payer abandoned
type ExpireSessionsTaskDef struct {
	payments *services.PaymentService
	maxAge   time.Duration
	log      *zap.Logger
}

func (t *ExpireSessionsTaskDef) TaskID() string {
	return models.TaskExpireSessions
}

// CreateTask builds the recurring task record starting at due
func (t *ExpireSessionsTaskDef) CreateTask(due time.Time) (*models.ScheduledTask, error) {
	rule := ExpireSessionsRule
	return models.BuildScheduledTask(t.TaskID(), ExpireSessionsArgs{}, due, &rule, models.ScheduledTaskTypeRecurring, 1)
}

func (t *ExpireSessionsTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args ExpireSessionsArgs
	if err := decodeArgs(task.Arguments, &args); err != nil {
		return nil, err
	}
	maxAge := t.maxAge
	if args.MaxAgeMinutes > 0 {
		maxAge = time.Duration(args.MaxAgeMinutes) * time.Minute
	}
	if maxAge <= 0 {
		maxAge = defaultSessionAge
	}

	expired, completed, err := t.payments.ExpireStaleSessions(ctx, maxAge)
	if err != nil {
		return nil, err
	}
	t.log.Info("task expire_payment_sessions done",
		zap.Int("expired", expired),
		zap.Int("completed", completed),
		zap.Duration("max_age", maxAge),
	)
	return map[string]interface{}{
		"expired":   expired,
		"completed": completed,
	}, nil
}
