package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"serviceportal/internal/models"
)

// GormStore implements Store on top of gorm/postgres
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) GetRequestByNumber(ctx context.Context, number string) (*models.Request, error) {
	if number == "" {
		return nil, ErrNotFound
	}
	var req models.Request
	if err := s.db.WithContext(ctx).Where("request_number = ?", number).First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *GormStore) GetRequestByID(ctx context.Context, id uint) (*models.Request, error) {
	var req models.Request
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *GormStore) ListRequestsForUser(ctx context.Context, userID uint, page Page) ([]models.Request, error) {
	limit, offset := page.Bounds()
	var reqs []models.Request
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).Offset(offset).
		Find(&reqs).Error
	return reqs, translate(err)
}

func (s *GormStore) ListRequests(ctx context.Context, filter RequestFilter, page Page) ([]models.Request, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Request{})
	if filter.Service != "" {
		query = query.Where("service = ?", filter.Service)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	limit, offset := page.Bounds()
	var reqs []models.Request
	if err := query.Order("created_at desc, id desc").Limit(limit).Offset(offset).Find(&reqs).Error; err != nil {
		return nil, 0, translate(err)
	}
	return reqs, total, nil
}

func (s *GormStore) StatusHistory(ctx context.Context, requestID uint) ([]models.StatusHistory, error) {
	var entries []models.StatusHistory
	err := s.db.WithContext(ctx).Where("request_id = ?", requestID).Order("created_at asc, id asc").Find(&entries).Error
	return entries, translate(err)
}

func (s *GormStore) Payments(ctx context.Context, requestID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).Where("request_id = ?", requestID).Order("payment_date asc, id asc").Find(&payments).Error
	return payments, translate(err)
}

func (s *GormStore) Documents(ctx context.Context, requestID uint) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.WithContext(ctx).Where("request_id = ?", requestID).Order("created_at asc").Find(&docs).Error
	return docs, translate(err)
}

func (s *GormStore) Notifications(ctx context.Context, userID uint) ([]models.Notification, error) {
	var notes []models.Notification
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Limit(MaxPageSize).Find(&notes).Error
	return notes, translate(err)
}

func (s *GormStore) CreateRequest(ctx context.Context, req *models.Request) error {
	if req.Version == 0 {
		req.Version = 1
	}
	return translate(s.db.WithContext(ctx).Create(req).Error)
}

func (s *GormStore) UpdateRequest(ctx context.Context, req *models.Request, expectedVersion int) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Request{}).
		Where("id = ? AND version = ?", req.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":            req.Status,
			"payment_stage":     req.PaymentStage,
			"evaluation_status": req.EvaluationStatus,
			"total_amount":      req.TotalAmount,
			"amount_paid":       req.AmountPaid,
			"balance_due":       req.BalanceDue,
			"version":           expectedVersion + 1,
			"updated_at":        now,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	req.Version = expectedVersion + 1
	req.UpdatedAt = now
	return nil
}

func (s *GormStore) CountRequestsSince(ctx context.Context, service string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Request{}).
		Where("service = ? AND created_at >= ?", service, since).
		Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *GormStore) PaymentForStage(ctx context.Context, requestID uint, stage string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).
		Where("request_id = ? AND payment_stage = ? AND payment_status = ?", requestID, stage, models.PaymentStatusCompleted).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) PaymentByTransactionRef(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).Where("transaction_reference = ?", ref).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) AppendStatusHistory(ctx context.Context, entry *models.StatusHistory) error {
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return translate(s.db.WithContext(ctx).Create(n).Error)
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ActiveSession(ctx context.Context, requestID uint, stage string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := s.db.WithContext(ctx).
		Where("request_id = ? AND stage = ? AND is_active = ?", requestID, stage, true).
		Order("created_at desc").
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *GormStore) SessionByReference(ctx context.Context, reference string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	if err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *GormStore) SaveSession(ctx context.Context, session *models.PaymentSession) error {
	return translate(s.db.WithContext(ctx).Save(session).Error)
}

func (s *GormStore) ActiveSessionsCreatedBefore(ctx context.Context, before time.Time) ([]models.PaymentSession, error) {
	var sessions []models.PaymentSession
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND created_at < ?", true, before).
		Order("created_at asc").
		Find(&sessions).Error
	return sessions, translate(err)
}

func (s *GormStore) LogCallback(ctx context.Context, h *models.PaymentCallbackHistory) error {
	return translate(s.db.WithContext(ctx).Create(h).Error)
}

func (s *GormStore) PricingTier(ctx context.Context, service, programType, projectType, level string) (*models.PricingTier, error) {
	var tier models.PricingTier
	err := s.db.WithContext(ctx).
		Where("service = ? AND program_type = ? AND project_type = ? AND level = ? AND is_active = ?",
			service, programType, projectType, level, true).
		First(&tier).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tier, nil
}

func (s *GormStore) ListPricingTiers(ctx context.Context) ([]models.PricingTier, error) {
	var tiers []models.PricingTier
	err := s.db.WithContext(ctx).Order("service, program_type, project_type, level").Find(&tiers).Error
	return tiers, translate(err)
}

func (s *GormStore) UpsertPricingTier(ctx context.Context, tier *models.PricingTier) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "service"}, {Name: "program_type"}, {Name: "project_type"}, {Name: "level"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_fee", "tranche1_fee", "program_fee", "advance_fee", "is_active", "updated_at",
		}),
	}).Create(tier).Error
	return translate(err)
}

func (s *GormStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	return translate(s.db.WithContext(ctx).Create(doc).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) UpsertUserByFirebaseUID(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "firebase_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return translate(err)
	}
	// the conflict path does not return user_type, reload it
	return translate(s.db.WithContext(ctx).Where("firebase_uid = ?", user.FirebaseUID).First(user).Error)
}

func (s *GormStore) NotifPreference(ctx context.Context, userID uint) (*models.UserNotifPreference, error) {
	var pref models.UserNotifPreference
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error; err != nil {
		return nil, translate(err)
	}
	return &pref, nil
}

func (s *GormStore) SaveNotifPreference(ctx context.Context, pref *models.UserNotifPreference) error {
	return translate(s.db.WithContext(ctx).Save(pref).Error)
}

func (s *GormStore) CreateTask(ctx context.Context, task *models.ScheduledTask) error {
	return translate(s.db.WithContext(ctx).Create(task).Error)
}

func (s *GormStore) DueTasks(ctx context.Context, now time.Time) ([]models.ScheduledTask, error) {
	var tasks []models.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due ASC").
		Find(&tasks).Error
	return tasks, translate(err)
}

// UpdateTask writes the bookkeeping columns touched by a run
func (s *GormStore) UpdateTask(ctx context.Context, task *models.ScheduledTask) error {
	return translate(s.db.WithContext(ctx).Model(task).Updates(map[string]interface{}{
		"status":   task.Status,
		"due":      task.Due,
		"last_run": task.LastRun,
	}).Error)
}

func (s *GormStore) RecordTaskRun(ctx context.Context, run *models.ScheduledTaskHistory) error {
	return translate(s.db.WithContext(ctx).Create(run).Error)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
