package tasks

import (
	"time"

	"go.uber.org/zap"

	"serviceportal/internal/services"
	"serviceportal/internal/store"
)

// Deps are the collaborators task handlers need. Email and Whatsapp may be
// nil when the channel is not configured.
type Deps struct {
	Store      store.Store
	Payments   *services.PaymentService
	Email      EmailSender
	Whatsapp   WhatsappSender
	AppURL     string
	SessionAge time.Duration
	Now        func() time.Time
	Log        *zap.Logger
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	logInfo := &LogInfoTaskDef{log: d.Log}
	r.Register(logInfo.TaskID(), logInfo.HandleExecution)

	notify := &SendNotificationTaskDef{
		store:    d.Store,
		email:    d.Email,
		whatsapp: d.Whatsapp,
		appURL:   d.AppURL,
		now:      d.Now,
		log:      d.Log,
	}
	r.Register(notify.TaskID(), notify.HandleExecution)

	reconcile := &ReconcilePaymentTaskDef{payments: d.Payments, store: d.Store, now: d.Now, log: d.Log}
	r.Register(reconcile.TaskID(), reconcile.HandleExecution)

	expire := &ExpireSessionsTaskDef{payments: d.Payments, maxAge: d.SessionAge, log: d.Log}
	r.Register(expire.TaskID(), expire.HandleExecution)
}
