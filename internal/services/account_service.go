package services

import (
	"context"
	"errors"
	"strings"

	"serviceportal/internal/models"
	"serviceportal/internal/store"
)

// AccountService covers the signed-in user: identity sync, in-app
// notifications and delivery preferences.
type AccountService struct {
	store store.Store
}

func NewAccountService(st store.Store) *AccountService {
	return &AccountService{store: st}
}

// SyncUser upserts the local user behind a Firebase identity
func (s *AccountService) SyncUser(ctx context.Context, firebaseUID, email, name string) (*models.User, error) {
	if firebaseUID == "" {
		return nil, ErrUnauthorized
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user := &models.User{FirebaseUID: firebaseUID, Email: email, Name: name}
	if err := s.store.UpsertUserByFirebaseUID(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AccountService) User(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	return user, mapStoreErr(err)
}

func (s *AccountService) Notifications(ctx context.Context, userID uint) ([]models.Notification, error) {
	return s.store.Notifications(ctx, userID)
}

func (s *AccountService) MarkRead(ctx context.Context, userID, id uint) error {
	return mapStoreErr(s.store.MarkNotificationRead(ctx, userID, id))
}

// Preference returns the stored preference or the default one
func (s *AccountService) Preference(ctx context.Context, userID uint) (*models.UserNotifPreference, error) {
	pref, err := s.store.NotifPreference(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		def := models.DefaultNotifPreference(userID)
		return &def, nil
	}
	return pref, err
}

func (s *AccountService) SavePreference(ctx context.Context, pref *models.UserNotifPreference) error {
	var fields []string
	switch pref.Channel {
	case models.NotificationChannelEmail, models.NotificationChannelWhatsapp, models.NotificationChannelNone:
	default:
		fields = append(fields, "channel")
	}
	switch pref.WhatsappTargetType {
	case "":
		pref.WhatsappTargetType = models.WhatsappTargetTypePersonal
	case models.WhatsappTargetTypePersonal:
	case models.WhatsappTargetTypeGroup:
		if pref.WhatsappGroupID == "" {
			fields = append(fields, "whatsapp_group_id")
		}
	default:
		fields = append(fields, "whatsapp_target_type")
	}
	if len(fields) > 0 {
		return newValidationError(fields)
	}

	existing, err := s.store.NotifPreference(ctx, pref.UserID)
	if err == nil {
		pref.ID = existing.ID
		pref.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return s.store.SaveNotifPreference(ctx, pref)
}
