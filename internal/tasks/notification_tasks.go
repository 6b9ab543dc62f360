package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"serviceportal/internal/models"
	"serviceportal/internal/services"
	"serviceportal/internal/store"
)

const (
	notificationRetryDelay = 5 * time.Minute
	notificationTemplate   = "Hello $name,\n\n$message\n\nYou can follow your request at $tracking_link\n"
)

type EmailSender interface {
	SendEmail(to []string, subject, body string) error
}

type WhatsappSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// SendNotificationTaskDef delivers an in-app notification over the channel
// the user picked. Failed deliveries are rescheduled as a new task.
type SendNotificationTaskDef struct {
	store    store.Store
	email    EmailSender
	whatsapp WhatsappSender
	appURL   string
	now      func() time.Time
	log      *zap.Logger
}

// TaskID returns the unique identifier for this task
func (t *SendNotificationTaskDef) TaskID() string {
	return models.TaskSendNotification
}

// HandleExecution handles sending one notification based on user preference
func (t *SendNotificationTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args services.DeliveryArgs
	if err := decodeArgs(task.Arguments, &args); err != nil {
		return nil, err
	}

	pref, err := t.store.NotifPreference(ctx, args.UserID)
	if errors.Is(err, store.ErrNotFound) {
		def := models.DefaultNotifPreference(args.UserID)
		pref = &def
	} else if err != nil {
		return nil, fmt.Errorf("load preference for user %d: %w", args.UserID, err)
	}

	result := map[string]interface{}{
		"notification_id": args.NotificationID,
		"channel":         string(pref.Channel),
		"attempt":         args.AttemptCount,
	}

	var sendErr error
	switch pref.Channel {
	case models.NotificationChannelEmail:
		sendErr = t.sendEmail(args)
	case models.NotificationChannelWhatsapp:
		sendErr = t.sendWhatsapp(ctx, args, pref)
	default:
		t.log.Info("task send_notification skipped",
			zap.Uint("notification_id", args.NotificationID),
			zap.String("channel", string(pref.Channel)),
		)
		result["status"] = "skipped"
		return result, nil
	}

	if sendErr == nil {
		result["status"] = "sent"
		return result, nil
	}
	result["error"] = sendErr.Error()

	attempt := args.AttemptCount
	if attempt < task.MaxAttempt {
		t.log.Warn("task send_notification failed, rescheduling",
			zap.Uint("notification_id", args.NotificationID),
			zap.Int("next_attempt", attempt+1),
			zap.Error(sendErr),
		)
		next := args
		next.AttemptCount = attempt + 1
		retry, err := models.BuildScheduledTask(t.TaskID(), next, t.now().Add(notificationRetryDelay), nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
		if err == nil {
			err = t.store.CreateTask(ctx, retry)
		}
		if err != nil {
			return result, fmt.Errorf("reschedule notification %d: %w", args.NotificationID, err)
		}
		result["status"] = "rescheduled"
		return result, nil
	}

	t.log.Error("task send_notification gave up",
		zap.Uint("notification_id", args.NotificationID),
		zap.Int("attempts", attempt+1),
		zap.Error(sendErr),
	)
	return result, fmt.Errorf("max attempts reached for notification %d: %w", args.NotificationID, sendErr)
}

func (t *SendNotificationTaskDef) sendEmail(args services.DeliveryArgs) error {
	if t.email == nil {
		return fmt.Errorf("email delivery is not configured")
	}
	if args.Email == "" {
		return fmt.Errorf("no email address for user %d", args.UserID)
	}
	subject := "Notification"
	if args.Subject != "" {
		subject = args.Subject
	}
	return t.email.SendEmail([]string{args.Email}, subject, replacePlaceholders(notificationTemplate, args, t.appURL))
}

func (t *SendNotificationTaskDef) sendWhatsapp(ctx context.Context, args services.DeliveryArgs, pref *models.UserNotifPreference) error {
	if t.whatsapp == nil {
		return fmt.Errorf("whatsapp delivery is not configured")
	}

	var chatID string
	if pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
		chatID = pref.WhatsappGroupID
		if chatID == "" {
			return fmt.Errorf("group ID is empty")
		}
		if !strings.HasSuffix(chatID, "@g.us") {
			chatID = chatID + "@g.us"
		}
	} else {
		chatID = args.Phone
		if chatID == "" {
			return fmt.Errorf("no phone number for user %d", args.UserID)
		}
	}

	return t.whatsapp.SendMessage(ctx, chatID, replacePlaceholders(notificationTemplate, args, t.appURL))
}

func replacePlaceholders(template string, args services.DeliveryArgs, appURL string) string {
	link := strings.TrimRight(appURL, "/") + "/track/" + url.PathEscape(args.RequestNumber)

	res := strings.ReplaceAll(template, "$name", args.Name)
	res = strings.ReplaceAll(res, "$email", args.Email)
	res = strings.ReplaceAll(res, "$subject", args.Subject)
	res = strings.ReplaceAll(res, "$message", args.Message)
	res = strings.ReplaceAll(res, "$tracking_link", link)
	return res
}
