package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"serviceportal/internal/middleware"
	"serviceportal/internal/models"
	"serviceportal/internal/services"
	"serviceportal/internal/store/storetest"
)

const serverKey = "test-server-key"

type stubGateway struct {
	mu     sync.Mutex
	states map[string]*services.TransactionStatus
	n      int
}

func newStubGateway() *stubGateway {
	return &stubGateway{states: map[string]*services.TransactionStatus{}}
}

func (g *stubGateway) Name() models.PaymentGateway { return models.PaymentGatewayMidtrans }

func (g *stubGateway) Initialize(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[req.Reference] = &services.TransactionStatus{Reference: req.Reference, State: services.GatewayStatePending}
	return &services.CheckoutResponse{Token: "tok-" + req.Reference, RedirectURL: "https://pay.example/" + req.Reference}, nil
}

func (g *stubGateway) Verify(ctx context.Context, reference string) (*services.TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.states[reference]
	if !ok {
		return &services.TransactionStatus{Reference: reference, State: services.GatewayStateUnknown}, nil
	}
	out := *st
	return &out, nil
}

func (g *stubGateway) Cancel(ctx context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.states[reference]; ok {
		st.State = services.GatewayStateFailed
	}
	return nil
}

func (g *stubGateway) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return services.SignNotification(orderID, statusCode, grossAmount, serverKey) == signature
}

func (g *stubGateway) settle(reference string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	id := fmt.Sprintf("tx-%d", g.n)
	g.states[reference] = &services.TransactionStatus{Reference: reference, State: services.GatewayStatePaid, TransactionID: id}
	return id
}

// stubVerifier accepts cookies named after a Firebase uid
type stubVerifier struct {
	emails map[string]string
}

func (v stubVerifier) VerifySessionCookie(ctx context.Context, cookie string) (*auth.Token, error) {
	email, ok := v.emails[cookie]
	if !ok {
		return nil, errors.New("invalid session cookie")
	}
	return &auth.Token{UID: cookie, Claims: map[string]interface{}{"email": email}}, nil
}

type testServer struct {
	e       *echo.Echo
	store   *storetest.Memory
	gateway *stubGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := storetest.NewMemory()
	gw := newStubGateway()

	st.SeedUser(models.User{FirebaseUID: "admin-uid", Email: "admin@example.com", UserType: models.UserTypeAdmin})

	pricing := services.NewPricingService(st, nil, time.Minute, nil)
	requests := services.NewRequestService(st, pricing, nil, nil)
	payments := services.NewPaymentService(st, gw, pricing, nil, services.PaymentConfig{Currency: "IDR"}, nil)
	reviews := services.NewReviewService(st, pricing, nil)
	progress := services.NewProgressService(st)
	accounts := services.NewAccountService(st)
	documents := services.NewDocumentService(st, memStorage{}, nil)

	e := echo.New()
	e.HTTPErrorHandler = middleware.CustomErrorHandler(nil)
	Routes{
		Auth:        NewAuthHandler(nil, accounts, LoginConfig{}, nil),
		Dashboard:   NewDashboardHandler(requests, accounts),
		Requests:    NewRequestHandler(requests, progress, documents),
		Payments:    NewPaymentHandler(payments, requests, nil),
		Public:      NewPublicHandler(progress, pricing, "IDR"),
		Admin:       NewAdminHandler(requests, reviews, pricing),
		Users:       NewUserHandler(accounts),
		Preferences: NewUserPreferenceHandler(accounts),
		Verifier: stubVerifier{emails: map[string]string{
			"amina-uid": "amina@example.com",
			"jean-uid":  "jean@example.com",
			"admin-uid": "admin@example.com",
		}},
		Accounts: accounts,
	}.Register(e)

	return &testServer{e: e, store: st, gateway: gw}
}

type memStorage struct{}

func (memStorage) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	return "https://files.example/" + key, nil
}

// do sends body as JSON with the session cookie of uid ("" for anonymous)
func (s *testServer) do(t *testing.T, method, path, uid string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = string(raw)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if uid != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: uid})
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func travelBody() map[string]interface{} {
	return map[string]interface{}{
		"service":      "travel",
		"program_type": "general",
		"project_type": "tourism",
		"full_name":    "Amina Diallo",
		"email":        "amina@example.com",
		"phone":        "081200000001",
		"details": map[string]string{
			"passport_number":     "A1234567",
			"passport_expiry":     "2030-05-01",
			"nationality":         "SN",
			"destination_country": "FR",
			"date_of_birth":       "1995-02-11",
		},
	}
}

func (s *testServer) createTravel(t *testing.T) models.Request {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/requests", "amina-uid", travelBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/requests = %d %s", rec.Code, rec.Body.String())
	}
	var req models.Request
	decode(t, rec, &req)
	return req
}

func TestCreateRequestAndTrack(t *testing.T) {
	s := newTestServer(t)
	req := s.createTravel(t)

	if !strings.HasPrefix(req.RequestNumber, "TRV-") {
		t.Errorf("RequestNumber = %q, want TRV- prefix", req.RequestNumber)
	}
	if req.TotalAmount.IntPart() != 10000 || req.PaymentStage != "evaluation" {
		t.Errorf("created request total=%s stage=%s", req.TotalAmount, req.PaymentStage)
	}

	rec := s.do(t, http.MethodGet, "/api/track/"+req.RequestNumber, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/track = %d %s", rec.Code, rec.Body.String())
	}
	var progress services.Progress
	decode(t, rec, &progress)
	if progress.Request.Email != "" || progress.Request.Phone != "" {
		t.Error("public tracking leaked contact details")
	}
	if progress.Stage.Code != "evaluation" {
		t.Errorf("Stage = %q, want evaluation", progress.Stage.Code)
	}

	rec = s.do(t, http.MethodGet, "/track/"+req.RequestNumber, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /track = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), req.RequestNumber) {
		t.Error("tracking page does not show the request number")
	}
	if strings.Contains(rec.Body.String(), "amina@example.com") {
		t.Error("tracking page leaked the email")
	}
}

func TestTrackUnknownNumber(t *testing.T) {
	s := newTestServer(t)
	s.createTravel(t)

	rec := s.do(t, http.MethodGet, "/api/track/TRV-00000000-0000", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]interface{}
	decode(t, rec, &body)
	if body["error"] == nil {
		t.Errorf("error body = %v", body)
	}

	rec = s.do(t, http.MethodGet, "/track/TRV-00000000-0000", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("page status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Page Not Found") {
		t.Error("HTML 404 did not render the error page")
	}
}

func TestTrackSearchRedirects(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/track?number=TRV-20260118-0001", "", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/track/TRV-20260118-0001" {
		t.Errorf("Location = %q", loc)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	s := newTestServer(t)
	body := travelBody()
	delete(body, "full_name")
	body["program_type"] = "space"

	rec := s.do(t, http.MethodPost, "/api/requests", "amina-uid", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	decode(t, rec, &resp)
	want := "full_name,program_type"
	if got := strings.Join(resp.Fields, ","); got != want {
		t.Errorf("fields = %q, want %q", got, want)
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		path string
		uid  string
		want int
	}{
		{"no cookie", "/api/requests", "", http.StatusUnauthorized},
		{"unknown session", "/api/requests", "forged", http.StatusUnauthorized},
		{"applicant", "/api/requests", "amina-uid", http.StatusOK},
		{"applicant on admin", "/api/admin/requests", "amina-uid", http.StatusForbidden},
		{"admin", "/api/admin/requests", "admin-uid", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, tt.uid, nil)
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d (%s)", tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestOtherApplicantsRequestIsHidden(t *testing.T) {
	s := newTestServer(t)
	req := s.createTravel(t)
	path := fmt.Sprintf("/api/requests/%d", req.ID)

	if rec := s.do(t, http.MethodGet, path, "jean-uid", nil); rec.Code != http.StatusNotFound {
		t.Errorf("other applicant = %d, want 404", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, path, "admin-uid", nil); rec.Code != http.StatusOK {
		t.Errorf("admin = %d, want 200", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, path+"/payments", "jean-uid", map[string]string{"stage": "evaluation"}); rec.Code != http.StatusNotFound {
		t.Errorf("other applicant initiate = %d, want 404", rec.Code)
	}
}

func TestStagedPaymentOverHTTP(t *testing.T) {
	s := newTestServer(t)
	req := s.createTravel(t)
	payPath := fmt.Sprintf("/api/requests/%d/payments", req.ID)

	rec := s.do(t, http.MethodPost, payPath, "amina-uid", map[string]string{"stage": "tranche1"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("tranche1 before evaluation = %d, want 422", rec.Code)
	}

	rec = s.do(t, http.MethodPost, payPath, "amina-uid", map[string]string{"stage": "evaluation"})
	if rec.Code != http.StatusOK {
		t.Fatalf("initiate evaluation = %d %s", rec.Code, rec.Body.String())
	}
	var checkout services.Checkout
	decode(t, rec, &checkout)
	if checkout.AmountMinor != 1000000 || checkout.Outcome != services.OutcomePending {
		t.Errorf("checkout = %+v", checkout)
	}

	txID := s.gateway.settle(checkout.Reference)
	rec = s.do(t, http.MethodPost, "/api/payments/"+checkout.Reference+"/complete", "amina-uid", map[string]string{"transaction_id": txID})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete = %d %s", rec.Code, rec.Body.String())
	}
	var result services.PaymentResult
	decode(t, rec, &result)
	if result.Outcome != services.OutcomePaid || result.Request.EvaluationStatusValue() != "pending" {
		t.Errorf("result outcome=%s evaluation=%q", result.Outcome, result.Request.EvaluationStatusValue())
	}

	rec = s.do(t, http.MethodPost, payPath, "amina-uid", map[string]string{"stage": "evaluation"})
	if rec.Code != http.StatusConflict {
		t.Errorf("paying evaluation twice = %d, want 409", rec.Code)
	}

	evalPath := fmt.Sprintf("/api/admin/requests/%d/evaluation", req.ID)
	rec = s.do(t, http.MethodPut, evalPath, "admin-uid", map[string]string{"decision": "approved", "notes": "documents fine"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, payPath, "amina-uid", map[string]string{"stage": "tranche1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("initiate tranche1 = %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &checkout)
	if checkout.AmountMinor != 15000000 {
		t.Errorf("tranche1 amount = %d, want 15000000", checkout.AmountMinor)
	}

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/requests/%d/progress", req.ID), "amina-uid", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("progress = %d", rec.Code)
	}
	var progress services.Progress
	decode(t, rec, &progress)
	if progress.Stage.Code != "tranche1" || len(progress.Payments) != 1 {
		t.Errorf("progress stage=%s payments=%d", progress.Stage.Code, len(progress.Payments))
	}
	if progress.Request.Email == "" {
		t.Error("owner progress should include contact details")
	}
}

func TestCancelCheckout(t *testing.T) {
	s := newTestServer(t)
	req := s.createTravel(t)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/payments", req.ID), "amina-uid", map[string]string{"stage": "evaluation"})
	var checkout services.Checkout
	decode(t, rec, &checkout)

	rec = s.do(t, http.MethodPost, "/api/payments/"+checkout.Reference+"/cancel", "amina-uid", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel = %d %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["outcome"] != string(services.OutcomeCancelled) {
		t.Errorf("outcome = %q, want cancelled", body["outcome"])
	}

	got, err := s.store.GetRequestByID(context.Background(), req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != req.Version || got.PaymentStage != "evaluation" {
		t.Error("cancel changed the request")
	}

	if rec := s.do(t, http.MethodPost, "/api/payments/unknown_1_1/cancel", "amina-uid", nil); rec.Code != http.StatusNotFound {
		t.Errorf("cancel unknown reference = %d, want 404", rec.Code)
	}
}

func TestGatewayNotification(t *testing.T) {
	s := newTestServer(t)
	req := s.createTravel(t)
	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/payments", req.ID), "amina-uid", map[string]string{"stage": "evaluation"})
	var checkout services.Checkout
	decode(t, rec, &checkout)
	txID := s.gateway.settle(checkout.Reference)

	n := services.GatewayNotification{
		TransactionStatus: "settlement",
		TransactionID:     txID,
		StatusCode:        "200",
		OrderID:           checkout.Reference,
		GrossAmount:       "10000.00",
	}
	n.SignatureKey = "bad"
	if rec := s.do(t, http.MethodPost, "/api/payments/notification", "", n); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature = %d, want 401", rec.Code)
	}

	n.SignatureKey = services.SignNotification(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/payments/notification", "", n)
		if rec.Code != http.StatusOK {
			t.Fatalf("notification #%d = %d %s", i+1, rec.Code, rec.Body.String())
		}
	}
	if got := len(s.store.AllPayments()); got != 1 {
		t.Errorf("payments = %d, want 1 after a repeated notification", got)
	}
}

func TestFinishRedirectsToTracking(t *testing.T) {
	s := newTestServer(t)
	req := s.createTravel(t)
	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/payments", req.ID), "amina-uid", map[string]string{"stage": "evaluation"})
	var checkout services.Checkout
	decode(t, rec, &checkout)
	s.gateway.settle(checkout.Reference)

	rec = s.do(t, http.MethodGet, "/payments/finish?order_id="+checkout.Reference, "", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("finish = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/track/"+req.RequestNumber {
		t.Errorf("Location = %q", loc)
	}
	if got := len(s.store.AllPayments()); got != 1 {
		t.Errorf("payments = %d, want 1", got)
	}
}

func TestAdminSetStatus(t *testing.T) {
	s := newTestServer(t)
	req := s.createTravel(t)
	path := fmt.Sprintf("/api/admin/requests/%d/status", req.ID)

	body := map[string]interface{}{
		"status":    "under_evaluation",
		"notes":     "file received",
		"checklist": map[string]bool{"passport_valid": true},
	}
	rec := s.do(t, http.MethodPut, path, "admin-uid", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d %s", rec.Code, rec.Body.String())
	}
	var result services.ReviewResult
	decode(t, rec, &result)
	if result.History.ChangedBy != "admin@example.com" || result.Checklist == nil || !result.Checklist.PassportValid {
		t.Errorf("result = %+v", result)
	}

	body["expected_version"] = 1
	if rec := s.do(t, http.MethodPut, path, "admin-uid", body); rec.Code != http.StatusConflict {
		t.Errorf("stale version = %d, want 409", rec.Code)
	}
	if rec := s.do(t, http.MethodPut, path, "admin-uid", map[string]string{"status": "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank status = %d, want 400", rec.Code)
	}
}

func TestPricingEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/admin/pricing", "admin-uid", map[string]string{
		"service":      "travel",
		"program_type": "general",
		"project_type": "business",
		"base_fee":     "20000",
		"tranche1_fee": "100000",
		"program_fee":  "250000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/pricing", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/pricing = %d", rec.Code)
	}
	var body struct {
		Currency string `json:"currency"`
		Tiers    []struct {
			ProjectType string `json:"project_type"`
			BaseFee     string `json:"base_fee"`
		} `json:"tiers"`
	}
	decode(t, rec, &body)
	found := false
	for _, tier := range body.Tiers {
		if tier.ProjectType == "business" && tier.BaseFee == "20000" {
			found = true
		}
	}
	if body.Currency != "IDR" || !found {
		t.Errorf("pricing = %+v", body)
	}

	if rec := s.do(t, http.MethodPut, "/api/admin/pricing", "amina-uid", map[string]string{"service": "travel"}); rec.Code != http.StatusForbidden {
		t.Errorf("applicant upsert = %d, want 403", rec.Code)
	}
}

func TestPreferencesAndNotifications(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/preferences", "amina-uid", nil)
	var pref models.UserNotifPreference
	decode(t, rec, &pref)
	if pref.Channel != models.NotificationChannelEmail {
		t.Errorf("default channel = %q", pref.Channel)
	}

	rec = s.do(t, http.MethodPut, "/api/preferences", "amina-uid", map[string]string{"channel": "whatsapp", "whatsapp_target_type": "group"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("group without id = %d, want 400", rec.Code)
	}
	rec = s.do(t, http.MethodPut, "/api/preferences", "amina-uid", map[string]string{"channel": "whatsapp"})
	if rec.Code != http.StatusOK {
		t.Fatalf("save preference = %d %s", rec.Code, rec.Body.String())
	}

	req := s.createTravel(t)
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/payments", req.ID), "amina-uid", map[string]string{"stage": "evaluation"})
	var checkout services.Checkout
	decode(t, rec, &checkout)
	s.gateway.settle(checkout.Reference)
	s.do(t, http.MethodPost, "/api/payments/"+checkout.Reference+"/complete", "amina-uid", nil)

	rec = s.do(t, http.MethodGet, "/api/notifications", "amina-uid", nil)
	var notes struct {
		Notifications []models.Notification `json:"notifications"`
	}
	decode(t, rec, &notes)
	if len(notes.Notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes.Notifications))
	}

	id := notes.Notifications[0].ID
	if rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), "jean-uid", nil); rec.Code != http.StatusNotFound {
		t.Errorf("mark other user's notification = %d, want 404", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), "amina-uid", nil); rec.Code != http.StatusNoContent {
		t.Errorf("mark read = %d, want 204", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/dashboard", "amina-uid", nil)
	var dash struct {
		Requests []struct {
			RequestNumber string `json:"request_number"`
		} `json:"requests"`
		Unread int `json:"unread_notifications"`
	}
	decode(t, rec, &dash)
	if len(dash.Requests) != 1 || dash.Unread != 0 {
		t.Errorf("dashboard = %+v", dash)
	}
}

func TestLoginWithoutFirebase(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/auth/login", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("login without firebase = %d, want 503", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/login", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Sign in") {
		t.Errorf("login page = %d", rec.Code)
	}
}

func TestUploadDocument(t *testing.T) {
	s := newTestServer(t)
	req := s.createTravel(t)
	path := fmt.Sprintf("/api/requests/%d/documents", req.ID)

	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("kind", "passport"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", "passport.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, "%PDF-1.4 fake"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	httpReq := httptest.NewRequest(http.MethodPost, path, strings.NewReader(buf.String()))
	httpReq.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	httpReq.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "amina-uid"})
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, httpReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d %s", rec.Code, rec.Body.String())
	}
	var doc models.Document
	decode(t, rec, &doc)
	wantPrefix := "requests/" + req.RequestNumber + "/passport/"
	if !strings.HasPrefix(doc.Path, wantPrefix) || !strings.HasSuffix(doc.Path, ".pdf") {
		t.Errorf("Path = %q, want %s*.pdf", doc.Path, wantPrefix)
	}

	rec = s.do(t, http.MethodGet, path, "amina-uid", nil)
	var list struct {
		Documents []models.Document `json:"documents"`
	}
	decode(t, rec, &list)
	if len(list.Documents) != 1 {
		t.Errorf("documents = %d, want 1", len(list.Documents))
	}

	rec = s.do(t, http.MethodPost, path, "amina-uid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("upload without file = %d, want 400", rec.Code)
	}
}
