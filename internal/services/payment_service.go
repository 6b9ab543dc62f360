package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"serviceportal/internal/catalog"
	"serviceportal/internal/models"
	"serviceportal/internal/store"
)

// Outcome is what the payer is told after an attempt
type Outcome string

const (
	OutcomePending           Outcome = "pending"
	OutcomePaid              Outcome = "paid"
	OutcomeCancelled         Outcome = "cancelled"
	OutcomeProcessingPending Outcome = "processing_pending"
)

const (
	completeRetries    = 3
	reconcileDelay     = 2 * time.Minute
	reconcileAttempts  = 10
	notifyMaxAttempts  = 3
	systemActor        = "system"
	defaultPaymentLock = 30 * time.Second
)

type PaymentConfig struct {
	Currency string
	LockTTL  time.Duration
	// FinishURL is where the gateway sends the payer back after checkout
	FinishURL string
}

// PayInput starts a checkout for one stage. The amount is always computed here.
type PayInput struct {
	RequestID  uint
	Stage      catalog.Stage
	PayerEmail string
	PayerName  string
	// ForceNew cancels a pending checkout instead of resuming it
	ForceNew bool
}

type Checkout struct {
	Reference   string  `json:"reference"`
	Token       string  `json:"token"`
	RedirectURL string  `json:"redirect_url"`
	AmountMinor int64   `json:"amount_minor"`
	Currency    string  `json:"currency"`
	Outcome     Outcome `json:"outcome"`
	Reused      bool    `json:"reused"`
}

type PaymentResult struct {
	Outcome   Outcome         `json:"outcome"`
	Request   *models.Request `json:"request,omitempty"`
	Payment   *models.Payment `json:"payment,omitempty"`
	Duplicate bool            `json:"duplicate"`
}

// sessionResponse is what gets persisted as a session's response metadata
type sessionResponse struct {
	Token       string          `json:"token"`
	RedirectURL string          `json:"redirect_url"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// PaymentService owns the staged payment state machine. Request rows only
// change through Complete, inside one store transaction.
type PaymentService struct {
	store   store.Store
	gateway Gateway
	pricing *PricingService
	locker  Locker
	cfg     PaymentConfig
	now     func() time.Time
	log     *zap.Logger
}

func NewPaymentService(st store.Store, gateway Gateway, pricing *PricingService, locker Locker, cfg PaymentConfig, log *zap.Logger) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultPaymentLock
	}
	return &PaymentService{
		store:   st,
		gateway: gateway,
		pricing: pricing,
		locker:  locker,
		cfg:     cfg,
		now:     time.Now,
		log:     orNop(log),
	}
}

// MinorUnits converts a major amount to minor units, rounding half away from zero
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CheckPayable is the gating rule. It only looks at the request row.
func CheckPayable(req *models.Request, stage catalog.Stage) error {
	service := catalog.Service(req.Service)
	info := catalog.StageOf(service, stage)
	if !info.Known || info.Terminal {
		return fmt.Errorf("%w: %q is not a payment stage of %s", ErrStageNotPayable, stage, service)
	}

	current := catalog.Stage(req.PaymentStage)
	if current == catalog.StageCompleted {
		return fmt.Errorf("%w: request %s is fully paid", ErrAlreadyPaid, req.RequestNumber)
	}
	if req.Status == catalog.StatusRejected || req.Status == catalog.StatusCancelled {
		return fmt.Errorf("%w: request %s is %s", ErrStageNotPayable, req.RequestNumber, req.Status)
	}
	if stage != current {
		if catalog.StageBefore(service, stage, current) {
			return fmt.Errorf("%w: stage %s", ErrAlreadyPaid, stage)
		}
		return fmt.Errorf("%w: request is at stage %s", ErrStageNotPayable, current)
	}

	switch stage {
	case catalog.StageEvaluation:
		if req.EvaluationStatus != nil {
			return fmt.Errorf("%w: evaluation fee", ErrAlreadyPaid)
		}
	case catalog.StageTranche1:
		if req.EvaluationStatusValue() != string(catalog.EvaluationApproved) {
			return fmt.Errorf("%w: evaluation is not approved", ErrStageNotPayable)
		}
	}
	return nil
}

// ensurePayable adds the payment-record check to CheckPayable
func ensurePayable(ctx context.Context, st store.Store, req *models.Request, stage catalog.Stage) error {
	if err := CheckPayable(req, stage); err != nil {
		return err
	}
	_, err := st.PaymentForStage(ctx, req.ID, string(stage))
	if err == nil {
		return fmt.Errorf("%w: stage %s", ErrAlreadyPaid, stage)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// StageAmount is the fixed amount due for stage, never more than the balance
func (s *PaymentService) StageAmount(ctx context.Context, req *models.Request, stage catalog.Stage) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch stage {
	case catalog.StageEvaluation, catalog.StageTranche2, catalog.StageBalance:
		// the evaluation fee is the whole balance captured at creation
		amount = req.BalanceDue
	case catalog.StageTranche1, catalog.StageAdvance:
		tier, err := s.pricing.Resolve(ctx, catalog.Service(req.Service), req.ProgramType, req.ProjectType, req.Level)
		if err != nil {
			return decimal.Zero, err
		}
		amount = tier.AdvanceFee
		if stage == catalog.StageTranche1 {
			amount = tier.Tranche1Fee
		}
		if amount.GreaterThan(req.BalanceDue) {
			amount = req.BalanceDue
		}
	default:
		return decimal.Zero, fmt.Errorf("%w: %s", ErrStageNotPayable, stage)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: nothing due for %s", ErrStageNotPayable, stage)
	}
	return amount, nil
}

// applyPayment is the transition table
func applyPayment(req *models.Request, stage catalog.Stage, amount decimal.Decimal) {
	req.RecordPayment(amount)

	switch stage {
	case catalog.StageEvaluation:
		pending := string(catalog.EvaluationPending)
		req.EvaluationStatus = &pending
	case catalog.StageTranche1:
		req.PaymentStage = string(catalog.StageTranche2)
	case catalog.StageTranche2, catalog.StageBalance:
		req.PaymentStage = string(catalog.StageCompleted)
		req.Status = catalog.StatusCompleted
	case catalog.StageAdvance:
		req.PaymentStage = string(catalog.StageBalance)
		req.Status = catalog.StatusAdvancePaid
	}

	// a final stage with nothing left to pay is skipped
	final := catalog.Stage(req.PaymentStage)
	if (final == catalog.StageTranche2 || final == catalog.StageBalance) && !req.BalanceDue.IsPositive() {
		req.PaymentStage = string(catalog.StageCompleted)
		req.Status = catalog.StatusCompleted
	}
}

func (s *PaymentService) lockKey(requestID uint, stage catalog.Stage) string {
	return fmt.Sprintf("payment_lock:%d:%s", requestID, stage)
}

// Initiate opens (or resumes) a gateway checkout for one stage. Gating runs
// before the gateway is contacted.
func (s *PaymentService) Initiate(ctx context.Context, in PayInput) (*Checkout, error) {
	s.log.Info("paymentService.Initiate called",
		zap.Uint("request_id", in.RequestID),
		zap.String("stage", string(in.Stage)),
	)

	req, err := s.store.GetRequestByID(ctx, in.RequestID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if err := ensurePayable(ctx, s.store, req, in.Stage); err != nil {
		s.log.Info("paymentService.Initiate rejected by gate",
			zap.String("request_number", req.RequestNumber),
			zap.Error(err),
		)
		return nil, err
	}
	amount, err := s.StageAmount(ctx, req, in.Stage)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		key := s.lockKey(req.ID, in.Stage)
		token, err := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
		switch {
		case err != nil:
			// the unique transaction reference still guards double recording
			s.log.Warn("paymentService.Initiate lock unavailable", zap.String("key", key), zap.Error(err))
		case token == "":
			return nil, ErrPaymentInProgress
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn("paymentService.Initiate lock release failed", zap.String("key", key), zap.Error(err))
				}
			}()
		}
	}

	checkout, err := s.resumeSession(ctx, req, in, amount)
	if err != nil || checkout != nil {
		return checkout, err
	}

	reference := fmt.Sprintf("%s_%d_%d", in.Stage, req.ID, s.now().UnixMilli())
	stageInfo := catalog.StageOf(catalog.Service(req.Service), in.Stage)
	creq := CheckoutRequest{
		Reference:   reference,
		AmountMinor: MinorUnits(amount),
		Currency:    s.cfg.Currency,
		ItemName:    fmt.Sprintf("%s - %s", req.RequestNumber, stageInfo.Label),
		PayerName:   in.PayerName,
		PayerEmail:  in.PayerEmail,
		Metadata: map[string]string{
			"request_id": strconv.FormatUint(uint64(req.ID), 10),
			"stage":      string(in.Stage),
			"payer_name": in.PayerName,
		},
		FinishURL: s.cfg.FinishURL,
	}

	resp, err := s.gateway.Initialize(ctx, creq)
	if err != nil {
		s.log.Error("paymentService.Initiate gateway error",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	reqMeta, _ := json.Marshal(creq)
	respMeta, _ := json.Marshal(sessionResponse{Token: resp.Token, RedirectURL: resp.RedirectURL, Raw: resp.Raw})
	session := &models.PaymentSession{
		RequestID:        req.ID,
		Stage:            string(in.Stage),
		PaymentGateway:   s.gateway.Name(),
		Reference:        reference,
		Amount:           amount,
		Currency:         s.cfg.Currency,
		PayerEmail:       in.PayerEmail,
		PayerName:        in.PayerName,
		IsActive:         true,
		RequestMetadata:  reqMeta,
		ResponseMetadata: respMeta,
	}
	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	s.log.Info("paymentService.Initiate opened checkout",
		zap.String("reference", reference),
		zap.Int64("amount_minor", creq.AmountMinor),
	)
	return &Checkout{
		Reference:   reference,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		AmountMinor: creq.AmountMinor,
		Currency:    s.cfg.Currency,
		Outcome:     OutcomePending,
	}, nil
}

func (s *PaymentService) deactivate(ctx context.Context, session *models.PaymentSession) {
	session.IsActive = false
	if err := s.store.SaveSession(ctx, session); err != nil {
		s.log.Warn("paymentService deactivate session failed",
			zap.String("reference", session.Reference),
			zap.Error(err),
		)
	}
}

// resumeSession returns a checkout when an active session can be reused,
// nil when a new one should be opened.
func (s *PaymentService) resumeSession(ctx context.Context, req *models.Request, in PayInput, amount decimal.Decimal) (*Checkout, error) {
	existing, err := s.store.ActiveSession(ctx, req.ID, string(in.Stage))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	status, err := s.gateway.Verify(ctx, existing.Reference)
	if err != nil {
		s.log.Warn("paymentService.resumeSession status check failed, dropping session",
			zap.String("reference", existing.Reference),
			zap.Error(err),
		)
		s.deactivate(ctx, existing)
		return nil, nil
	}

	switch status.State {
	case GatewayStatePaid:
		// paid at the gateway but never recorded here
		if _, err := s.Complete(ctx, existing.Reference, status.TransactionID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: stage %s", ErrAlreadyPaid, in.Stage)
	case GatewayStateFailed:
		s.deactivate(ctx, existing)
		return nil, nil
	}

	if in.ForceNew || !existing.Amount.Equal(amount) {
		if err := s.gateway.Cancel(ctx, existing.Reference); err != nil {
			s.log.Warn("paymentService.resumeSession cancel failed",
				zap.String("reference", existing.Reference),
				zap.Error(err),
			)
		}
		s.deactivate(ctx, existing)
		return nil, nil
	}

	var saved sessionResponse
	if err := json.Unmarshal(existing.ResponseMetadata, &saved); err != nil || saved.Token == "" {
		s.deactivate(ctx, existing)
		return nil, nil
	}
	return &Checkout{
		Reference:   existing.Reference,
		Token:       saved.Token,
		RedirectURL: saved.RedirectURL,
		AmountMinor: MinorUnits(existing.Amount),
		Currency:    existing.Currency,
		Outcome:     OutcomePending,
		Reused:      true,
	}, nil
}

// Complete records a gateway success for reference. The gateway is always
// asked first; reported is the transaction id the caller saw and is only
// logged. Calling it again for a recorded checkout returns the stored result
// with Duplicate set.
func (s *PaymentService) Complete(ctx context.Context, reference, reported string) (*PaymentResult, error) {
	return s.complete(ctx, reference, reported, true)
}

// Reconcile is Complete without queueing another reconciliation on failure
func (s *PaymentService) Reconcile(ctx context.Context, reference, reported string) (*PaymentResult, error) {
	return s.complete(ctx, reference, reported, false)
}

func (s *PaymentService) complete(ctx context.Context, reference, reported string, enqueue bool) (*PaymentResult, error) {
	s.log.Info("paymentService.Complete called",
		zap.String("reference", reference),
		zap.String("reported_transaction", reported),
	)

	session, err := s.store.SessionByReference(ctx, reference)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	status, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	switch status.State {
	case GatewayStatePaid:
	case GatewayStateFailed:
		if session.IsActive {
			s.deactivate(ctx, session)
		}
		return &PaymentResult{Outcome: OutcomeCancelled}, nil
	default:
		return &PaymentResult{Outcome: OutcomePending}, nil
	}

	transactionRef := status.TransactionID
	if transactionRef == "" {
		transactionRef = reference
	}
	if reported != "" && reported != transactionRef {
		s.log.Warn("paymentService.Complete reported transaction differs from gateway",
			zap.String("reference", reference),
			zap.String("reported_transaction", reported),
			zap.String("transaction_ref", transactionRef),
		)
	}

	var result *PaymentResult
	for attempt := 1; attempt <= completeRetries; attempt++ {
		result, err = s.record(ctx, session, status, transactionRef)
		if !errors.Is(err, store.ErrVersionConflict) {
			break
		}
		s.log.Warn("paymentService.Complete version conflict, retrying",
			zap.String("reference", reference),
			zap.Int("attempt", attempt),
		)
	}

	if errors.Is(err, ErrAlreadyPaid) || errors.Is(err, ErrStageNotPayable) {
		s.log.Error("paymentService.Complete gateway settled a stage that is not payable, holding funds",
			zap.String("reference", reference),
			zap.String("transaction_ref", transactionRef),
			zap.Error(err),
		)
		result, err = s.hold(ctx, session, status, transactionRef)
	}
	if errors.Is(err, store.ErrDuplicate) {
		// a concurrent completion recorded the same transaction first
		dup, derr := s.duplicate(ctx, s.store, session, transactionRef)
		switch {
		case derr == nil && dup != nil:
			result, err = dup, nil
		case errors.Is(derr, ErrInvalidTransition):
			err = derr
		}
	}
	if err == nil {
		return settled(result)
	}
	if errors.Is(err, ErrInvalidTransition) {
		s.log.Error("paymentService.Complete transaction belongs to another checkout",
			zap.String("reference", reference),
			zap.String("transaction_ref", transactionRef),
		)
		return nil, err
	}

	s.log.Error("paymentService.Complete store write failed after gateway success",
		zap.String("reference", reference),
		zap.String("transaction_ref", transactionRef),
		zap.Error(err),
	)
	if enqueue {
		s.enqueueReconcile(ctx, reference, transactionRef)
	}
	return &PaymentResult{Outcome: OutcomeProcessingPending}, fmt.Errorf("%w: %v", ErrProcessingPending, err)
}

// settled turns a recorded result into what the caller sees. Held funds are
// reported as processing pending.
func settled(result *PaymentResult) (*PaymentResult, error) {
	if result.Outcome == OutcomeProcessingPending {
		return result, fmt.Errorf("%w: %w", ErrProcessingPending, ErrPaymentHeld)
	}
	return result, nil
}

// duplicate returns the stored result when transactionRef was already
// recorded for this session's checkout
func (s *PaymentService) duplicate(ctx context.Context, st store.Store, session *models.PaymentSession, transactionRef string) (*PaymentResult, error) {
	existing, err := st.PaymentByTransactionRef(ctx, transactionRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.GatewayReference != session.Reference || existing.RequestID != session.RequestID {
		return nil, fmt.Errorf("%w: transaction %s was recorded for another checkout", ErrInvalidTransition, transactionRef)
	}
	req, err := st.GetRequestByID(ctx, existing.RequestID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	outcome := OutcomePaid
	if existing.PaymentStatus == models.PaymentStatusUnapplied {
		outcome = OutcomeProcessingPending
	}
	return &PaymentResult{Outcome: outcome, Request: req, Payment: existing, Duplicate: true}, nil
}

// record is the atomic unit: payment, transition, history, notification,
// session close and delivery task all commit or none do.
func (s *PaymentService) record(ctx context.Context, session *models.PaymentSession, status *TransactionStatus, transactionRef string) (*PaymentResult, error) {
	var result *PaymentResult
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		dup, err := s.duplicate(ctx, tx, session, transactionRef)
		if err != nil {
			return err
		}
		if dup != nil {
			result = dup
			return nil
		}

		req, err := tx.GetRequestByID(ctx, session.RequestID)
		if err != nil {
			return err
		}
		stage := catalog.Stage(session.Stage)
		if err := ensurePayable(ctx, tx, req, stage); err != nil {
			return err
		}
		amount := session.Amount
		if amount.GreaterThan(req.BalanceDue) {
			return fmt.Errorf("%w: charged %s exceeds balance %s", ErrStageNotPayable, amount, req.BalanceDue)
		}

		now := s.now()
		payment := &models.Payment{
			RequestID:            req.ID,
			PaymentStage:         string(stage),
			Amount:               amount,
			PaymentStatus:        models.PaymentStatusCompleted,
			PaymentMethod:        session.PaymentGateway,
			TransactionReference: transactionRef,
			GatewayReference:     session.Reference,
			ChannelPayment:       status.PaymentType,
			PaymentDate:          now,
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}

		expected := req.Version
		oldStatus := req.Status
		applyPayment(req, stage, amount)
		if err := req.CheckBalance(); err != nil {
			return err
		}
		if err := tx.UpdateRequest(ctx, req, expected); err != nil {
			return err
		}

		stageLabel := catalog.StageOf(catalog.Service(req.Service), stage).Label
		if req.Status != oldStatus {
			err := tx.AppendStatusHistory(ctx, &models.StatusHistory{
				RequestID: req.ID,
				OldStatus: oldStatus,
				NewStatus: req.Status,
				Notes:     fmt.Sprintf("Payment received for %s", stageLabel),
				ChangedBy: systemActor,
			})
			if err != nil {
				return err
			}
		}

		note := &models.Notification{
			RequestID: req.ID,
			UserID:    req.UserID,
			Type:      models.NotificationTypePayment,
			Title:     "Payment received",
			Message: fmt.Sprintf("We received %s %s for %s of request %s.",
				s.cfg.Currency, amount.StringFixed(2), stageLabel, req.RequestNumber),
		}
		if err := tx.CreateNotification(ctx, note); err != nil {
			return err
		}

		session.IsActive = false
		if err := tx.SaveSession(ctx, session); err != nil {
			return err
		}

		if err := enqueueDelivery(ctx, tx, req, note, now); err != nil {
			return err
		}

		result = &PaymentResult{Outcome: OutcomePaid, Request: req, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		s.log.Info("paymentService.Complete recorded payment",
			zap.String("request_number", result.Request.RequestNumber),
			zap.String("stage", result.Payment.PaymentStage),
			zap.String("payment_stage", result.Request.PaymentStage),
			zap.String("balance_due", result.Request.BalanceDue.StringFixed(2)),
		)
	}
	return result, nil
}

// hold stores settled funds the stage can no longer take as an unapplied
// payment. The request is left alone and the payer is told the money arrived.
func (s *PaymentService) hold(ctx context.Context, session *models.PaymentSession, status *TransactionStatus, transactionRef string) (*PaymentResult, error) {
	var result *PaymentResult
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		dup, err := s.duplicate(ctx, tx, session, transactionRef)
		if err != nil {
			return err
		}
		if dup != nil {
			result = dup
			return nil
		}

		req, err := tx.GetRequestByID(ctx, session.RequestID)
		if err != nil {
			return err
		}

		now := s.now()
		payment := &models.Payment{
			RequestID:            req.ID,
			PaymentStage:         session.Stage,
			Amount:               session.Amount,
			PaymentStatus:        models.PaymentStatusUnapplied,
			PaymentMethod:        session.PaymentGateway,
			TransactionReference: transactionRef,
			GatewayReference:     session.Reference,
			ChannelPayment:       status.PaymentType,
			PaymentDate:          now,
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}

		stageLabel := catalog.StageOf(catalog.Service(req.Service), catalog.Stage(session.Stage)).Label
		note := &models.Notification{
			RequestID: req.ID,
			UserID:    req.UserID,
			Type:      models.NotificationTypePayment,
			Title:     "Payment received, under review",
			Message: fmt.Sprintf("We received %s %s for %s of request %s, but the request can no longer accept this payment. Our team will review it and contact you about a refund.",
				session.Currency, session.Amount.StringFixed(2), stageLabel, req.RequestNumber),
		}
		if err := tx.CreateNotification(ctx, note); err != nil {
			return err
		}

		session.IsActive = false
		if err := tx.SaveSession(ctx, session); err != nil {
			return err
		}
		if err := enqueueDelivery(ctx, tx, req, note, now); err != nil {
			return err
		}

		result = &PaymentResult{Outcome: OutcomeProcessingPending, Request: req, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeliveryArgs are the arguments of a send_notification task
type DeliveryArgs struct {
	NotificationID uint   `json:"notification_id"`
	RequestID      uint   `json:"request_id"`
	RequestNumber  string `json:"request_number"`
	UserID         uint   `json:"user_id"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Name           string `json:"name"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
	AttemptCount   int    `json:"attempt_count"`
}

func enqueueDelivery(ctx context.Context, st store.Store, req *models.Request, note *models.Notification, now time.Time) error {
	task, err := models.BuildScheduledTask(models.TaskSendNotification, DeliveryArgs{
		NotificationID: note.ID,
		RequestID:      req.ID,
		RequestNumber:  req.RequestNumber,
		UserID:         req.UserID,
		Email:          req.Email,
		Phone:          req.Phone,
		Name:           req.FullName,
		Subject:        note.Title,
		Message:        note.Message,
	}, now, nil, models.ScheduledTaskTypeOneTime, notifyMaxAttempts)
	if err != nil {
		return err
	}
	return st.CreateTask(ctx, task)
}

// ReconcileArgs are the arguments of a reconcile_payment task
type ReconcileArgs struct {
	Reference      string `json:"reference"`
	TransactionRef string `json:"transaction_ref"`
	AttemptCount   int    `json:"attempt_count"`
}

func (s *PaymentService) enqueueReconcile(ctx context.Context, reference, transactionRef string) {
	task, err := models.BuildScheduledTask(models.TaskReconcilePayment, ReconcileArgs{
		Reference:      reference,
		TransactionRef: transactionRef,
	}, s.now().Add(reconcileDelay), nil, models.ScheduledTaskTypeOneTime, reconcileAttempts)
	if err == nil {
		err = s.store.CreateTask(context.WithoutCancel(ctx), task)
	}
	if err != nil {
		s.log.Error("paymentService.Complete could not queue reconciliation",
			zap.String("reference", reference),
			zap.Error(err),
		)
	}
}

// RequestFor returns the request a checkout reference was opened for
func (s *PaymentService) RequestFor(ctx context.Context, reference string) (*models.Request, error) {
	session, err := s.store.SessionByReference(ctx, reference)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	req, err := s.store.GetRequestByID(ctx, session.RequestID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return req, nil
}

// Cancel handles the payer closing the checkout. Nothing about the request
// changes; the session is closed so the next attempt opens a fresh one.
func (s *PaymentService) Cancel(ctx context.Context, reference string) (Outcome, error) {
	s.log.Info("paymentService.Cancel called", zap.String("reference", reference))

	session, err := s.store.SessionByReference(ctx, reference)
	if errors.Is(err, store.ErrNotFound) {
		return OutcomeCancelled, nil
	}
	if err != nil {
		return "", err
	}
	if !session.IsActive {
		return OutcomeCancelled, nil
	}

	// a payer may close the popup after paying; never drop a paid session
	status, err := s.gateway.Verify(ctx, reference)
	if err == nil && status.State == GatewayStatePaid {
		return OutcomePending, nil
	}
	if err == nil && status.State == GatewayStatePending {
		if cerr := s.gateway.Cancel(ctx, reference); cerr != nil {
			s.log.Warn("paymentService.Cancel gateway cancel failed", zap.String("reference", reference), zap.Error(cerr))
		}
	}
	s.deactivate(ctx, session)
	return OutcomeCancelled, nil
}

// GatewayNotification is the webhook payload of the gateway
type GatewayNotification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
}

// HandleNotification processes a gateway webhook. Every notification is
// logged; only settled ones reach Complete.
func (s *PaymentService) HandleNotification(ctx context.Context, n GatewayNotification) (*PaymentResult, error) {
	raw, _ := json.Marshal(n)
	entry := &models.PaymentCallbackHistory{
		PaymentGateway:    s.gateway.Name(),
		Reference:         n.OrderID,
		TransactionStatus: n.TransactionStatus,
		Status:            models.CallbackStatusReceived,
		Metadata:          raw,
	}
	logEntry := func(status models.CallbackStatus, err error) {
		entry.Status = status
		if err != nil {
			entry.Error = err.Error()
		}
		if lerr := s.store.LogCallback(context.WithoutCancel(ctx), entry); lerr != nil {
			s.log.Warn("paymentService.HandleNotification callback log failed", zap.Error(lerr))
		}
	}

	if !s.gateway.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		logEntry(models.CallbackStatusFailed, ErrUnauthorized)
		return nil, fmt.Errorf("%w: invalid signature", ErrUnauthorized)
	}

	switch MapMidtransStatus(n.TransactionStatus, n.FraudStatus) {
	case GatewayStatePaid:
		result, err := s.Complete(ctx, n.OrderID, n.TransactionID)
		switch {
		case errors.Is(err, ErrNotFound):
			logEntry(models.CallbackStatusIgnored, err)
			return &PaymentResult{Outcome: OutcomePending}, nil
		case errors.Is(err, ErrPaymentHeld):
			logEntry(models.CallbackStatusProcessed, err)
			return result, err
		case err != nil:
			logEntry(models.CallbackStatusFailed, err)
			return result, err
		}
		logEntry(models.CallbackStatusProcessed, nil)
		return result, nil
	case GatewayStateFailed:
		session, err := s.store.SessionByReference(ctx, n.OrderID)
		if err == nil && session.IsActive {
			s.deactivate(ctx, session)
		}
		logEntry(models.CallbackStatusProcessed, nil)
		return &PaymentResult{Outcome: OutcomeCancelled}, nil
	}

	logEntry(models.CallbackStatusIgnored, nil)
	return &PaymentResult{Outcome: OutcomePending}, nil
}

// ExpireStaleSessions closes active sessions older than maxAge that the
// gateway no longer considers open. Paid ones are completed instead.
func (s *PaymentService) ExpireStaleSessions(ctx context.Context, maxAge time.Duration) (expired, completed int, err error) {
	sessions, err := s.store.ActiveSessionsCreatedBefore(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, 0, err
	}

	for i := range sessions {
		session := &sessions[i]
		status, verr := s.gateway.Verify(ctx, session.Reference)
		if verr != nil {
			s.log.Warn("paymentService.ExpireStaleSessions status check failed",
				zap.String("reference", session.Reference),
				zap.Error(verr),
			)
			continue
		}
		if status.State == GatewayStatePaid {
			if _, cerr := s.Complete(ctx, session.Reference, status.TransactionID); cerr == nil {
				completed++
			}
			continue
		}
		if status.State == GatewayStatePending {
			if cerr := s.gateway.Cancel(ctx, session.Reference); cerr != nil {
				s.log.Warn("paymentService.ExpireStaleSessions gateway cancel failed",
					zap.String("reference", session.Reference),
					zap.Error(cerr),
				)
			}
		}
		s.deactivate(ctx, session)
		expired++
	}
	return expired, completed, nil
}
