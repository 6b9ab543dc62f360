// Package store is the persistence boundary of the portal. Every read goes
// to the database; nothing is cached at this layer.
package store

import (
	"context"
	"errors"
	"time"

	"serviceportal/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a compare-and-swap update lost the race
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when a unique constraint rejects an insert
	ErrDuplicate = errors.New("duplicate record")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of a listing, 1-based
type Page struct {
	Number int
	Size   int
}

// Bounds returns limit and offset for the page
func (p Page) Bounds() (limit, offset int) {
	size := p.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	number := p.Number
	if number < 1 {
		number = 1
	}
	return size, (number - 1) * size
}

// RequestFilter narrows the admin listing
type RequestFilter struct {
	Service string
	Status  string
}

// Store is implemented by the gorm store and by storetest.Memory
type Store interface {
	GetRequestByNumber(ctx context.Context, number string) (*models.Request, error)
	GetRequestByID(ctx context.Context, id uint) (*models.Request, error)
	ListRequestsForUser(ctx context.Context, userID uint, page Page) ([]models.Request, error)
	ListRequests(ctx context.Context, filter RequestFilter, page Page) ([]models.Request, int64, error)
	StatusHistory(ctx context.Context, requestID uint) ([]models.StatusHistory, error)
	Payments(ctx context.Context, requestID uint) ([]models.Payment, error)
	Documents(ctx context.Context, requestID uint) ([]models.Document, error)
	Notifications(ctx context.Context, userID uint) ([]models.Notification, error)

	CreateRequest(ctx context.Context, req *models.Request) error
	// UpdateRequest writes every column of req if the stored version equals
	// expectedVersion, then sets req.Version to expectedVersion+1.
	UpdateRequest(ctx context.Context, req *models.Request, expectedVersion int) error
	CountRequestsSince(ctx context.Context, service string, since time.Time) (int64, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	PaymentForStage(ctx context.Context, requestID uint, stage string) (*models.Payment, error)
	PaymentByTransactionRef(ctx context.Context, ref string) (*models.Payment, error)
	AppendStatusHistory(ctx context.Context, entry *models.StatusHistory) error
	CreateNotification(ctx context.Context, n *models.Notification) error
	MarkNotificationRead(ctx context.Context, userID, id uint) error

	ActiveSession(ctx context.Context, requestID uint, stage string) (*models.PaymentSession, error)
	SessionByReference(ctx context.Context, reference string) (*models.PaymentSession, error)
	SaveSession(ctx context.Context, s *models.PaymentSession) error
	ActiveSessionsCreatedBefore(ctx context.Context, before time.Time) ([]models.PaymentSession, error)
	LogCallback(ctx context.Context, h *models.PaymentCallbackHistory) error

	PricingTier(ctx context.Context, service, programType, projectType, level string) (*models.PricingTier, error)
	ListPricingTiers(ctx context.Context) ([]models.PricingTier, error)
	UpsertPricingTier(ctx context.Context, tier *models.PricingTier) error

	CreateDocument(ctx context.Context, doc *models.Document) error

	GetUser(ctx context.Context, id uint) (*models.User, error)
	UpsertUserByFirebaseUID(ctx context.Context, user *models.User) error
	NotifPreference(ctx context.Context, userID uint) (*models.UserNotifPreference, error)
	SaveNotifPreference(ctx context.Context, pref *models.UserNotifPreference) error

	CreateTask(ctx context.Context, task *models.ScheduledTask) error
	// DueTasks returns active tasks whose due time has passed, oldest first
	DueTasks(ctx context.Context, now time.Time) ([]models.ScheduledTask, error)
	UpdateTask(ctx context.Context, task *models.ScheduledTask) error
	RecordTaskRun(ctx context.Context, run *models.ScheduledTaskHistory) error

	// Transaction runs fn against a Store bound to one database transaction.
	// Returning an error from fn rolls every write back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
