package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"serviceportal/internal/catalog"
	"serviceportal/internal/models"
	"serviceportal/internal/store"
)

// Checklist is the reviewer's memory aid. It is echoed back and never stored.
type Checklist struct {
	PassportValid     bool `json:"passport_valid"`
	PhotoConform      bool `json:"photo_conform"`
	PaymentReceived   bool `json:"payment_received"`
	DocumentsComplete bool `json:"documents_complete"`
	BankStatementsOK  bool `json:"bank_statements_ok"`
}

type SetStatusInput struct {
	RequestID uint
	NewStatus string
	Notes     string
	ChangedBy string
	// ExpectedVersion, when set, must match the row the admin was looking at
	ExpectedVersion int
	Checklist       *Checklist
}

type EvaluationInput struct {
	RequestID       uint
	Decision        catalog.EvaluationStatus
	Notes           string
	ChangedBy       string
	ExpectedVersion int
}

type ReviewResult struct {
	Request   *models.Request       `json:"request"`
	History   *models.StatusHistory `json:"history"`
	Checklist *Checklist            `json:"checklist,omitempty"`
}

// ReviewService is the admin side of the lifecycle
type ReviewService struct {
	store   store.Store
	pricing *PricingService
	now     func() time.Time
	log     *zap.Logger
}

func NewReviewService(st store.Store, pricing *PricingService, log *zap.Logger) *ReviewService {
	return &ReviewService{store: st, pricing: pricing, now: time.Now, log: orNop(log)}
}

// SetStatus writes the status and its history entry atomically. Status
// codes outside the catalog are accepted.
func (s *ReviewService) SetStatus(ctx context.Context, in SetStatusInput) (*ReviewResult, error) {
	newStatus := strings.TrimSpace(in.NewStatus)
	if newStatus == "" {
		return nil, newValidationError([]string{"status"})
	}

	var result ReviewResult
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		req, err := tx.GetRequestByID(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != 0 && req.Version != in.ExpectedVersion {
			return store.ErrVersionConflict
		}
		if _, known := catalog.ParseStatus(catalog.Service(req.Service), newStatus); !known {
			s.log.Warn("reviewService.SetStatus unknown status code",
				zap.String("request_number", req.RequestNumber),
				zap.String("status", newStatus),
			)
		}

		expected := req.Version
		oldStatus := req.Status
		req.Status = newStatus
		if err := tx.UpdateRequest(ctx, req, expected); err != nil {
			return err
		}

		history, err := s.appendHistory(ctx, tx, req, oldStatus, in.Notes, in.ChangedBy)
		if err != nil {
			return err
		}
		result = ReviewResult{Request: req, History: history, Checklist: in.Checklist}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	s.log.Info("reviewService.SetStatus updated request",
		zap.String("request_number", result.Request.RequestNumber),
		zap.String("old_status", result.History.OldStatus),
		zap.String("new_status", result.History.NewStatus),
		zap.String("changed_by", in.ChangedBy),
	)
	return &result, nil
}

// SetEvaluationStatus records the evaluation decision of a travel request.
// Approval bills the program fee and opens the first tranche.
func (s *ReviewService) SetEvaluationStatus(ctx context.Context, in EvaluationInput) (*ReviewResult, error) {
	if in.Decision != catalog.EvaluationApproved && in.Decision != catalog.EvaluationRejected {
		return nil, newValidationError([]string{"evaluation_status"})
	}

	var result ReviewResult
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		req, err := tx.GetRequestByID(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != 0 && req.Version != in.ExpectedVersion {
			return store.ErrVersionConflict
		}
		if catalog.Service(req.Service) != catalog.ServiceTravel {
			return fmt.Errorf("%w: %s requests have no evaluation", ErrInvalidTransition, req.Service)
		}
		if req.EvaluationStatusValue() != string(catalog.EvaluationPending) {
			return fmt.Errorf("%w: evaluation is %q, expected pending", ErrInvalidTransition, req.EvaluationStatusValue())
		}

		expected := req.Version
		oldStatus := req.Status
		decision := string(in.Decision)
		req.EvaluationStatus = &decision

		if in.Decision == catalog.EvaluationApproved {
			tier, err := s.pricing.Resolve(ctx, catalog.Service(req.Service), req.ProgramType, req.ProjectType, req.Level)
			if err != nil {
				return err
			}
			req.ExtendTotal(tier.ProgramFee)
			req.PaymentStage = string(catalog.StageTranche1)
			req.Status = catalog.StatusEvaluationOK
			if !req.BalanceDue.IsPositive() {
				req.PaymentStage = string(catalog.StageCompleted)
				req.Status = catalog.StatusCompleted
			}
		} else {
			req.Status = catalog.StatusRejected
		}
		if err := req.CheckBalance(); err != nil {
			return err
		}
		if err := tx.UpdateRequest(ctx, req, expected); err != nil {
			return err
		}

		history, err := s.appendHistory(ctx, tx, req, oldStatus, in.Notes, in.ChangedBy)
		if err != nil {
			return err
		}
		result = ReviewResult{Request: req, History: history}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	s.log.Info("reviewService.SetEvaluationStatus decided",
		zap.String("request_number", result.Request.RequestNumber),
		zap.String("decision", string(in.Decision)),
		zap.String("total", result.Request.TotalAmount.StringFixed(2)),
	)
	return &result, nil
}

func (s *ReviewService) appendHistory(ctx context.Context, tx store.Store, req *models.Request, oldStatus, notes, by string) (*models.StatusHistory, error) {
	history := &models.StatusHistory{
		RequestID: req.ID,
		OldStatus: oldStatus,
		NewStatus: req.Status,
		Notes:     strings.TrimSpace(notes),
		ChangedBy: by,
	}
	if err := tx.AppendStatusHistory(ctx, history); err != nil {
		return nil, err
	}

	info := catalog.Status(catalog.Service(req.Service), req.Status)
	message := fmt.Sprintf("Request %s is now: %s.", req.RequestNumber, info.Label)
	if history.Notes != "" {
		message += " " + history.Notes
	}
	note := &models.Notification{
		RequestID: req.ID,
		UserID:    req.UserID,
		Type:      models.NotificationTypeStatus,
		Title:     "Status updated",
		Message:   message,
	}
	if err := tx.CreateNotification(ctx, note); err != nil {
		return nil, err
	}
	if err := enqueueDelivery(ctx, tx, req, note, s.now()); err != nil {
		return nil, err
	}
	return history, nil
}
