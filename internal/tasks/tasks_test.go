package tasks

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"serviceportal/internal/models"
	"serviceportal/internal/services"
	"serviceportal/internal/store/storetest"
)

var baseTime = time.Date(2026, 1, 18, 9, 0, 0, 0, time.UTC)

type fakeEmail struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeEmail) SendEmail(to []string, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, strings.Join(to, ",")+"|"+subject+"|"+body)
	return nil
}

type fakeWhatsapp struct {
	chats []string
	err   error
}

func (f *fakeWhatsapp) SendMessage(ctx context.Context, chatID, text string) error {
	if f.err != nil {
		return f.err
	}
	f.chats = append(f.chats, chatID)
	return nil
}

// settledGateway reports every reference as paid
type settledGateway struct{}

func (settledGateway) Name() models.PaymentGateway { return models.PaymentGatewayMidtrans }

func (settledGateway) Initialize(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutResponse, error) {
	return &services.CheckoutResponse{Token: "tok-" + req.Reference}, nil
}

func (settledGateway) Verify(ctx context.Context, reference string) (*services.TransactionStatus, error) {
	return &services.TransactionStatus{Reference: reference, State: services.GatewayStatePaid, TransactionID: "tx-" + reference}, nil
}

func (settledGateway) Cancel(ctx context.Context, reference string) error { return nil }

func (settledGateway) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return false
}

func newTestRunner(st *storetest.Memory, deps Deps) (*Runner, *Registry) {
	deps.Store = st
	deps.Now = func() time.Time { return baseTime }
	registry := NewRegistry()
	DefineTasks(registry, deps)
	runner := NewRunner(st, registry, nil)
	runner.now = func() time.Time { return baseTime.Add(time.Hour) }
	return runner, registry
}

func queue(t *testing.T, st *storetest.Memory, name string, args interface{}, taskType models.ScheduledTaskType, rule *string, maxAttempt int) {
	t.Helper()
	task, err := models.BuildScheduledTask(name, args, baseTime, rule, taskType, maxAttempt)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.CreateTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}
}

func TestRegistryNames(t *testing.T) {
	registry := NewRegistry()
	DefineTasks(registry, Deps{Store: storetest.NewMemory()})

	want := []string{models.TaskExpireSessions, models.TaskLogInfo, models.TaskReconcilePayment, models.TaskSendNotification}
	if got := registry.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRunnerBookkeeping(t *testing.T) {
	st := storetest.NewMemory()
	runner, registry := newTestRunner(st, Deps{})
	registry.Register("explode", func(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
		panic("boom")
	})
	registry.Register("fails", func(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
		return nil, errors.New("nope")
	})

	hourly := ExpireSessionsRule
	queue(t, st, models.TaskLogInfo, map[string]string{"message": "hello"}, models.ScheduledTaskTypeOneTime, nil, 1)
	queue(t, st, "missing_handler", nil, models.ScheduledTaskTypeOneTime, nil, 1)
	queue(t, st, "explode", nil, models.ScheduledTaskTypeOneTime, nil, 1)
	queue(t, st, "fails", nil, models.ScheduledTaskTypeRecurring, &hourly, 1)

	ran, err := runner.RunDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ran != 4 {
		t.Fatalf("ran = %d, want 4", ran)
	}

	status := map[string]models.ScheduledTaskStatus{}
	due := map[string]time.Time{}
	for _, task := range st.AllTasks() {
		status[task.TaskName] = task.Status
		due[task.TaskName] = task.Due
	}
	if status[models.TaskLogInfo] != models.ScheduledTaskStatusDone {
		t.Errorf("log_info status = %s", status[models.TaskLogInfo])
	}
	if status["missing_handler"] != models.ScheduledTaskStatusFailure || status["explode"] != models.ScheduledTaskStatusFailure {
		t.Errorf("failure statuses = %v", status)
	}
	if status["fails"] != models.ScheduledTaskStatusActive || !due["fails"].Equal(baseTime.Add(2*time.Hour)) {
		t.Errorf("recurring task status=%s due=%s", status["fails"], due["fails"])
	}

	runs := st.AllTaskRuns()
	if len(runs) != 4 {
		t.Fatalf("history rows = %d, want 4", len(runs))
	}
	if runs[0].Status != "success" || runs[0].Result["message"] != "hello" {
		t.Errorf("log_info run = %+v", runs[0])
	}
	if runs[1].Status != "handler_not_found" || runs[2].Status != "failure" {
		t.Errorf("runs = %+v", runs[1:3])
	}

	// nothing is due any more until the recurring slot
	if ran, _ := runner.RunDue(context.Background()); ran != 0 {
		t.Errorf("second RunDue ran %d tasks", ran)
	}
}

func TestSendNotificationChannels(t *testing.T) {
	args := services.DeliveryArgs{
		NotificationID: 3,
		RequestNumber:  "TRV-20260118-0001",
		UserID:         7,
		Email:          "amina@example.com",
		Phone:          "081200000001",
		Name:           "Amina",
		Subject:        "Payment received",
		Message:        "We received IDR 10000.00.",
	}

	t.Run("default preference is email", func(t *testing.T) {
		st := storetest.NewMemory()
		email := &fakeEmail{}
		runner, _ := newTestRunner(st, Deps{Email: email, AppURL: "https://portal.example/"})
		queue(t, st, models.TaskSendNotification, args, models.ScheduledTaskTypeOneTime, nil, 3)

		if _, err := runner.RunDue(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(email.sent) != 1 {
			t.Fatalf("emails = %d, want 1", len(email.sent))
		}
		for _, want := range []string{"amina@example.com|Payment received|", "Hello Amina", "We received IDR 10000.00.", "https://portal.example/track/TRV-20260118-0001"} {
			if !strings.Contains(email.sent[0], want) {
				t.Errorf("email missing %q: %s", want, email.sent[0])
			}
		}
	})

	t.Run("whatsapp group", func(t *testing.T) {
		st := storetest.NewMemory()
		wa := &fakeWhatsapp{}
		err := st.SaveNotifPreference(context.Background(), &models.UserNotifPreference{
			UserID:             7,
			Channel:            models.NotificationChannelWhatsapp,
			WhatsappTargetType: models.WhatsappTargetTypeGroup,
			WhatsappGroupID:    "1203630",
		})
		if err != nil {
			t.Fatal(err)
		}
		runner, _ := newTestRunner(st, Deps{Whatsapp: wa})
		queue(t, st, models.TaskSendNotification, args, models.ScheduledTaskTypeOneTime, nil, 3)

		if _, err := runner.RunDue(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(wa.chats, []string{"1203630@g.us"}) {
			t.Errorf("chats = %v", wa.chats)
		}
	})

	t.Run("channel none is skipped", func(t *testing.T) {
		st := storetest.NewMemory()
		email := &fakeEmail{}
		if err := st.SaveNotifPreference(context.Background(), &models.UserNotifPreference{UserID: 7, Channel: models.NotificationChannelNone}); err != nil {
			t.Fatal(err)
		}
		runner, _ := newTestRunner(st, Deps{Email: email})
		queue(t, st, models.TaskSendNotification, args, models.ScheduledTaskTypeOneTime, nil, 3)

		if _, err := runner.RunDue(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(email.sent) != 0 || st.AllTaskRuns()[0].Result["status"] != "skipped" {
			t.Errorf("sent=%d runs=%+v", len(email.sent), st.AllTaskRuns())
		}
	})
}

func TestSendNotificationRetries(t *testing.T) {
	st := storetest.NewMemory()
	email := &fakeEmail{err: errors.New("535 auth failed")}
	runner, _ := newTestRunner(st, Deps{Email: email})
	queue(t, st, models.TaskSendNotification, services.DeliveryArgs{UserID: 1, Email: "a@example.com"}, models.ScheduledTaskTypeOneTime, nil, 1)

	// first run reschedules, the retry gives up
	for i := 0; i < 2; i++ {
		runner.now = func() time.Time { return baseTime.Add(time.Duration(i+1) * time.Hour) }
		if _, err := runner.RunDue(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	tasks := st.AllTasks()
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want original plus one retry", len(tasks))
	}
	if tasks[0].Status != models.ScheduledTaskStatusDone || tasks[1].Status != models.ScheduledTaskStatusFailure {
		t.Errorf("statuses = %s, %s", tasks[0].Status, tasks[1].Status)
	}
	if tasks[1].Arguments["attempt_count"] != float64(1) {
		t.Errorf("retry args = %v", tasks[1].Arguments)
	}
	runs := st.AllTaskRuns()
	if runs[0].Result["status"] != "rescheduled" || runs[1].Status != "failure" || runs[1].AttemptNumber != 2 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestReconcilePaymentTask(t *testing.T) {
	ctx := context.Background()
	st := storetest.NewMemory()
	st.SetClock(func() time.Time { return baseTime })

	pricing := services.NewPricingService(st, nil, time.Minute, nil)
	requests := services.NewRequestService(st, pricing, nil, nil)
	payments := services.NewPaymentService(st, settledGateway{}, pricing, nil, services.PaymentConfig{}, nil)

	req, err := requests.Create(ctx, services.CreateRequestInput{
		UserID:      8,
		Service:     "vap",
		ProgramType: "vap",
		Level:       "bts",
		FullName:    "Jean Mbaye",
		Email:       "jean@example.com",
		Phone:       "081200000002",
		Details:     map[string]string{"date_of_birth": "1990-07-01", "nationality": "SN", "last_diploma": "BTS", "target_diploma": "Licence"},
	})
	if err != nil {
		t.Fatal(err)
	}
	checkout, err := payments.Initiate(ctx, services.PayInput{RequestID: req.ID, Stage: "advance"})
	if err != nil {
		t.Fatal(err)
	}

	st.FailOn("CreatePayment", errors.New("connection reset"))
	if _, err := payments.Complete(ctx, checkout.Reference, ""); !errors.Is(err, services.ErrProcessingPending) {
		t.Fatalf("Complete() error = %v, want ErrProcessingPending", err)
	}
	st.FailOn("CreatePayment", nil)

	runner, _ := newTestRunner(st, Deps{Payments: payments, Email: &fakeEmail{}})
	// the reconciliation is queued on the payment service's wall clock
	runner.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := runner.RunDue(ctx); err != nil {
		t.Fatal(err)
	}

	paid := 0
	for _, p := range st.AllPayments() {
		if p.RequestID == req.ID && p.TransactionReference == "tx-"+checkout.Reference {
			paid++
		}
	}
	if paid != 1 {
		t.Fatalf("payments after reconciliation = %d, want 1", paid)
	}
	got, err := st.GetRequestByID(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PaymentStage != "balance" || got.Status != "advance_paid" {
		t.Errorf("request stage=%s status=%s", got.PaymentStage, got.Status)
	}
}

func TestReconcileStopsWhenFundsAreHeld(t *testing.T) {
	ctx := context.Background()
	st := storetest.NewMemory()
	st.SetClock(func() time.Time { return baseTime })

	pricing := services.NewPricingService(st, nil, time.Minute, nil)
	requests := services.NewRequestService(st, pricing, nil, nil)
	payments := services.NewPaymentService(st, settledGateway{}, pricing, nil, services.PaymentConfig{}, nil)

	req, err := requests.Create(ctx, services.CreateRequestInput{
		UserID:      8,
		Service:     "vap",
		ProgramType: "vap",
		Level:       "bts",
		FullName:    "Jean Mbaye",
		Email:       "jean@example.com",
		Phone:       "081200000002",
		Details:     map[string]string{"date_of_birth": "1990-07-01", "nationality": "SN", "last_diploma": "BTS", "target_diploma": "Licence"},
	})
	if err != nil {
		t.Fatal(err)
	}
	checkout, err := payments.Initiate(ctx, services.PayInput{RequestID: req.ID, Stage: "advance"})
	if err != nil {
		t.Fatal(err)
	}

	st.FailOn("CreatePayment", errors.New("connection reset"))
	if _, err := payments.Complete(ctx, checkout.Reference, ""); !errors.Is(err, services.ErrProcessingPending) {
		t.Fatalf("Complete() error = %v, want ErrProcessingPending", err)
	}
	st.FailOn("CreatePayment", nil)

	// rejected before the reconciliation runs
	rejected := *req
	rejected.Status = "rejected"
	if err := st.UpdateRequest(ctx, &rejected, req.Version); err != nil {
		t.Fatal(err)
	}

	runner, _ := newTestRunner(st, Deps{Payments: payments, Email: &fakeEmail{}})
	runner.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := runner.RunDue(ctx); err != nil {
		t.Fatal(err)
	}

	held := 0
	for _, p := range st.AllPayments() {
		if p.RequestID == req.ID && p.PaymentStatus == models.PaymentStatusUnapplied {
			held++
		}
	}
	if held != 1 {
		t.Fatalf("unapplied payments = %d, want 1", held)
	}
	reconciles := 0
	for _, task := range st.AllTasks() {
		if task.TaskName == models.TaskReconcilePayment {
			reconciles++
		}
	}
	if reconciles != 1 {
		t.Errorf("reconcile tasks = %d, want only the original", reconciles)
	}
}

func TestExpireSessionsTaskRule(t *testing.T) {
	def := &ExpireSessionsTaskDef{}
	task, err := def.CreateTask(baseTime)
	if err != nil {
		t.Fatal(err)
	}
	if task.TaskType != models.ScheduledTaskTypeRecurring || task.RecurringInterval == nil {
		t.Fatalf("task = %+v", task)
	}
	if next := task.NextDueAfter(baseTime.Add(90 * time.Minute)); !next.Equal(baseTime.Add(2 * time.Hour)) {
		t.Errorf("next due = %s", next)
	}
}

func TestReplacePlaceholders(t *testing.T) {
	got := replacePlaceholders("$name/$email/$subject/$message/$tracking_link", services.DeliveryArgs{
		Name: "N", Email: "E", Subject: "S", Message: "M", RequestNumber: "VAP-20260118-0001",
	}, "http://localhost:8080")
	if got != "N/E/S/M/http://localhost:8080/track/VAP-20260118-0001" {
		t.Errorf("replacePlaceholders() = %q", got)
	}
}
