package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"serviceportal/internal/catalog"
	"serviceportal/internal/models"
	"serviceportal/internal/store"
)

type StepState string

const (
	StepDone     StepState = "done"
	StepCurrent  StepState = "current"
	StepUpcoming StepState = "upcoming"
)

type StepView struct {
	Stage catalog.StageInfo `json:"stage"`
	State StepState         `json:"state"`
}

type TimelineEntry struct {
	At        time.Time           `json:"at"`
	From      *catalog.StatusInfo `json:"from,omitempty"`
	Status    catalog.StatusInfo  `json:"status"`
	Notes     string              `json:"notes,omitempty"`
	ChangedBy string              `json:"changed_by,omitempty"`
}

type PaymentView struct {
	Stage     catalog.StageInfo `json:"stage"`
	Amount    decimal.Decimal   `json:"amount"`
	Date      time.Time         `json:"date"`
	Method    string            `json:"method"`
	Channel   string            `json:"channel,omitempty"`
	Reference string            `json:"reference"`
}

// Progress is the read-only projection of one request
type Progress struct {
	Request          *models.Request    `json:"request"`
	Status           catalog.StatusInfo `json:"status"`
	Stage            catalog.StageInfo  `json:"stage"`
	EvaluationStatus string             `json:"evaluation_status,omitempty"`
	Percent          int                `json:"percent"`
	Steps            []StepView         `json:"steps"`
	Timeline         []TimelineEntry    `json:"timeline"`
	Payments         []PaymentView      `json:"payments"`
	MissingDocuments []string           `json:"missing_documents"`
}

// Public returns a copy for anonymous tracking. Contact details, actor
// identities and gateway transaction ids are removed.
func (p *Progress) Public() *Progress {
	out := *p
	req := *p.Request
	req.Email = ""
	req.Phone = ""
	req.Details = nil
	out.Request = &req

	out.Timeline = make([]TimelineEntry, len(p.Timeline))
	for i, e := range p.Timeline {
		e.ChangedBy = ""
		out.Timeline[i] = e
	}
	out.Payments = make([]PaymentView, len(p.Payments))
	for i, pay := range p.Payments {
		pay.Reference = ""
		out.Payments[i] = pay
	}
	return &out
}

type ProgressService struct {
	store store.Store
}

func NewProgressService(st store.Store) *ProgressService {
	return &ProgressService{store: st}
}

// Track looks a request up by its public number, exactly as typed
func (s *ProgressService) Track(ctx context.Context, number string) (*Progress, error) {
	req, err := s.store.GetRequestByNumber(ctx, number)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return s.build(ctx, req)
}

func (s *ProgressService) ForRequest(ctx context.Context, id uint) (*Progress, error) {
	req, err := s.store.GetRequestByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return s.build(ctx, req)
}

func (s *ProgressService) build(ctx context.Context, req *models.Request) (*Progress, error) {
	history, err := s.store.StatusHistory(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.Payments(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Documents(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return Project(req, history, payments, docs), nil
}

// Project maps raw rows through the catalog. It never fails on unknown codes.
func Project(req *models.Request, history []models.StatusHistory, payments []models.Payment, docs []models.Document) *Progress {
	service := catalog.Service(req.Service)
	stage := catalog.StageOf(service, catalog.Stage(req.PaymentStage))

	p := &Progress{
		Request:          req,
		Status:           catalog.Status(service, req.Status),
		Stage:            stage,
		EvaluationStatus: req.EvaluationStatusValue(),
		Steps:            []StepView{},
		Timeline:         []TimelineEntry{},
		Payments:         []PaymentView{},
		MissingDocuments: []string{},
	}

	stages := catalog.Stages(service)
	for _, st := range stages {
		state := StepUpcoming
		switch {
		case stage.Terminal || (stage.Known && st.Ordinal < stage.Ordinal):
			state = StepDone
		case st.Code == stage.Code:
			state = StepCurrent
		}
		p.Steps = append(p.Steps, StepView{Stage: st, State: state})
	}
	if len(stages) > 1 && stage.Known {
		p.Percent = (stage.Ordinal - 1) * 100 / (len(stages) - 1)
	}

	sorted := append([]models.StatusHistory(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
	for _, h := range sorted {
		entry := TimelineEntry{
			At:        h.CreatedAt,
			Status:    catalog.Status(service, h.NewStatus),
			Notes:     h.Notes,
			ChangedBy: h.ChangedBy,
		}
		if h.OldStatus != "" {
			from := catalog.Status(service, h.OldStatus)
			entry.From = &from
		}
		p.Timeline = append(p.Timeline, entry)
	}

	for _, pay := range payments {
		if pay.PaymentStatus != models.PaymentStatusCompleted {
			continue
		}
		p.Payments = append(p.Payments, PaymentView{
			Stage:     catalog.StageOf(service, catalog.Stage(pay.PaymentStage)),
			Amount:    pay.Amount,
			Date:      pay.PaymentDate,
			Method:    string(pay.PaymentMethod),
			Channel:   pay.ChannelPayment,
			Reference: pay.TransactionReference,
		})
	}
	sort.SliceStable(p.Payments, func(i, j int) bool { return p.Payments[i].Date.Before(p.Payments[j].Date) })

	uploaded := map[string]bool{}
	for _, d := range docs {
		uploaded[d.Kind] = true
	}
	for _, kind := range catalog.Program(service, req.ProgramType).RequiredDocuments {
		if !uploaded[kind] {
			p.MissingDocuments = append(p.MissingDocuments, kind)
		}
	}
	return p
}
