package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"serviceportal/internal/catalog"
	"serviceportal/internal/models"
	"serviceportal/internal/store"
)

// CreateRequestInput is the applicant form. Validation is presence only.
type CreateRequestInput struct {
	UserID      uint              `json:"-"`
	Service     string            `json:"service" validate:"required,oneof=travel vap"`
	ProgramType string            `json:"program_type" validate:"required"`
	ProjectType string            `json:"project_type"`
	Level       string            `json:"level"`
	FullName    string            `json:"full_name" validate:"required"`
	Email       string            `json:"email" validate:"required"`
	Phone       string            `json:"phone" validate:"required"`
	Details     map[string]string `json:"details"`
}

// numberAttempts bounds how often Create retries a request number the
// unique index rejected
const numberAttempts = 3

type RequestService struct {
	store    store.Store
	pricing  *PricingService
	seq      Sequencer
	validate *validator.Validate
	now      func() time.Time
	log      *zap.Logger
}

func NewRequestService(st store.Store, pricing *PricingService, seq Sequencer, log *zap.Logger) *RequestService {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestService{
		store:    st,
		pricing:  pricing,
		seq:      seq,
		validate: v,
		now:      time.Now,
		log:      orNop(log),
	}
}

func (s *RequestService) check(in CreateRequestInput) (catalog.ProgramInfo, error) {
	var fields []string
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return catalog.ProgramInfo{}, err
		}
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}
	for name, value := range map[string]string{"full_name": in.FullName, "email": in.Email, "phone": in.Phone} {
		if value != "" && strings.TrimSpace(value) == "" {
			fields = append(fields, name)
		}
	}

	service := catalog.Service(in.Service)
	program := catalog.Program(service, in.ProgramType)
	offered := service == catalog.ServiceTravel || service == catalog.ServiceVAP
	if in.ProgramType != "" && offered && !program.Known {
		fields = append(fields, "program_type")
	}
	for _, f := range program.RequiredFields {
		if strings.TrimSpace(in.Details[f]) == "" {
			fields = append(fields, "details."+f)
		}
	}

	if len(fields) > 0 {
		return program, newValidationError(fields)
	}
	return program, nil
}

// Create validates the form, prices it and persists the request with its
// first history entry. Store errors are returned unchanged.
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*models.Request, error) {
	program, err := s.check(in)
	if err != nil {
		return nil, err
	}

	service := catalog.Service(in.Service)
	tier, err := s.pricing.Resolve(ctx, service, in.ProgramType, in.ProjectType, in.Level)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			fields := []string{"project_type"}
			if service == catalog.ServiceVAP {
				fields = []string{"level"}
			}
			return nil, newValidationError(fields)
		}
		return nil, err
	}

	details, err := json.Marshal(in.Details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}

	now := s.now()
	total := tier.BaseFee
	req := &models.Request{
		CreatedAt:     now,
		UserID:        in.UserID,
		Service:       in.Service,
		ProgramType:   in.ProgramType,
		ProjectType:   in.ProjectType,
		Level:         in.Level,
		FullName:      strings.TrimSpace(in.FullName),
		Email:         strings.TrimSpace(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		Details:       datatypes.JSON(details),
		TotalAmount:   total,
		AmountPaid:    decimal.Zero,
		BalanceDue:    total,
		Status:        program.InitialStatus,
		PaymentStage:  string(catalog.FirstStage(service)),
		Version:       1,
	}
	if err := req.CheckBalance(); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		number, err := s.nextNumber(ctx, service, now, attempt)
		if err != nil {
			return nil, err
		}
		req.ID = 0
		req.RequestNumber = number

		err = s.store.Transaction(ctx, func(tx store.Store) error {
			if err := tx.CreateRequest(ctx, req); err != nil {
				return err
			}
			return tx.AppendStatusHistory(ctx, &models.StatusHistory{
				RequestID: req.ID,
				NewStatus: req.Status,
				Notes:     "Request submitted",
				ChangedBy: req.Email,
			})
		})
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrDuplicate) && attempt+1 < numberAttempts {
			s.log.Warn("requestService.Create request number taken, retrying",
				zap.String("request_number", number),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		s.log.Error("requestService.Create store write failed",
			zap.String("request_number", number),
			zap.Error(err),
		)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrNumberUnavailable, err)
		}
		return nil, err
	}

	s.log.Info("requestService.Create created request",
		zap.String("request_number", req.RequestNumber),
		zap.Uint("request_id", req.ID),
		zap.String("total", req.TotalAmount.StringFixed(2)),
	)
	return req, nil
}

// nextNumber builds PREFIX-YYYYMMDD-NNNN. Uniqueness is left to the
// unique index on request_number; attempt moves the counted fallback past
// numbers found taken.
func (s *RequestService) nextNumber(ctx context.Context, service catalog.Service, now time.Time, attempt int) (string, error) {
	now = now.UTC()
	day := now.Format("20060102")
	prefix := catalog.NumberPrefix(service)

	if s.seq != nil {
		n, err := s.seq.Next(ctx, fmt.Sprintf("request_seq:%s:%s", service, day), 48*time.Hour)
		if err == nil {
			return formatNumber(prefix, day, n), nil
		}
		s.log.Warn("requestService.nextNumber sequence unavailable, counting rows", zap.Error(err))
	}

	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := s.store.CountRequestsSince(ctx, string(service), start)
	if err != nil {
		return "", err
	}
	return formatNumber(prefix, day, count+1+int64(attempt)), nil
}

func formatNumber(prefix, day string, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day, n)
}

// Get returns one request by id
func (s *RequestService) Get(ctx context.Context, id uint) (*models.Request, error) {
	req, err := s.store.GetRequestByID(ctx, id)
	return req, mapStoreErr(err)
}

// ListForUser returns the user's requests, newest first
func (s *RequestService) ListForUser(ctx context.Context, userID uint, page store.Page) ([]models.Request, error) {
	return s.store.ListRequestsForUser(ctx, userID, page)
}

// ListAll is the paginated admin listing
func (s *RequestService) ListAll(ctx context.Context, filter store.RequestFilter, page store.Page) ([]models.Request, int64, error) {
	return s.store.ListRequests(ctx, filter, page)
}

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrVersionConflict):
		return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
	}
	return err
}
