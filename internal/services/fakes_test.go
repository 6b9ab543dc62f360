package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"serviceportal/internal/catalog"
	"serviceportal/internal/models"
	"serviceportal/internal/store/storetest"
)

const testServerKey = "server-key"

type fakeGateway struct {
	mu          sync.Mutex
	inits       []CheckoutRequest
	cancels     []string
	verifies    int
	states      map[string]*TransactionStatus
	initErr     error
	verifyErr   error
	cancelErr   error
	transaction int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{states: map[string]*TransactionStatus{}}
}

func (g *fakeGateway) Name() models.PaymentGateway { return models.PaymentGatewayMidtrans }

func (g *fakeGateway) Initialize(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inits = append(g.inits, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.states[req.Reference] = &TransactionStatus{Reference: req.Reference, State: GatewayStatePending, RawStatus: "pending"}
	return &CheckoutResponse{Token: "tok-" + req.Reference, RedirectURL: "https://pay.example/" + req.Reference}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (*TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	st, ok := g.states[reference]
	if !ok {
		return &TransactionStatus{Reference: reference, State: GatewayStateUnknown}, nil
	}
	out := *st
	return &out, nil
}

func (g *fakeGateway) Cancel(ctx context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, reference)
	if g.cancelErr != nil {
		return g.cancelErr
	}
	if st, ok := g.states[reference]; ok {
		st.State = GatewayStateFailed
		st.RawStatus = "cancel"
	}
	return nil
}

func (g *fakeGateway) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return checkSignature(orderID, statusCode, grossAmount, testServerKey, signature)
}

// settle marks reference paid and returns the gateway transaction id
func (g *fakeGateway) settle(reference string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transaction++
	id := fmt.Sprintf("tx-%d", g.transaction)
	st, ok := g.states[reference]
	if !ok {
		st = &TransactionStatus{Reference: reference}
		g.states[reference] = st
	}
	st.State = GatewayStatePaid
	st.RawStatus = "settlement"
	st.TransactionID = id
	st.PaymentType = "bank_transfer"
	return id
}

func (g *fakeGateway) initCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inits)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
	n    int
	err  error
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]string{}} }

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	if _, ok := l.held[key]; ok {
		return "", nil
	}
	l.n++
	token := fmt.Sprintf("lock-%d", l.n)
	l.held[key] = token
	return token, nil
}

func (l *fakeLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

type fakeSequencer struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (s *fakeSequencer) Next(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if s.counts == nil {
		s.counts = map[string]int64{}
	}
	s.counts[key]++
	return s.counts[key], nil
}

var errCacheMiss = errors.New("cache miss")

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]interface{}
	deletes []string
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]interface{}{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return errCacheMiss
	}
	tier, ok := v.(catalog.Tier)
	d, dok := dest.(*catalog.Tier)
	if !ok || !dok {
		return errCacheMiss
	}
	*d = tier
	return nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes = append(c.deletes, key)
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (s *fakeStorage) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return "https://files.example/" + key, nil
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	store    *storetest.Memory
	gateway  *fakeGateway
	locker   *fakeLocker
	pricing  *PricingService
	requests *RequestService
	payments *PaymentService
	review   *ReviewService
	progress *ProgressService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := storetest.NewMemory()
	clock := &stepClock{now: time.Date(2026, 1, 18, 9, 0, 0, 0, time.UTC)}
	st.SetClock(clock.Now)

	h := &harness{
		store:   st,
		gateway: newFakeGateway(),
		locker:  newFakeLocker(),
	}
	h.pricing = NewPricingService(st, nil, time.Minute, nil)
	h.requests = NewRequestService(st, h.pricing, &fakeSequencer{}, nil)
	h.requests.now = clock.Now
	h.payments = NewPaymentService(st, h.gateway, h.pricing, h.locker, PaymentConfig{Currency: "IDR"}, nil)
	h.payments.now = clock.Now
	h.review = NewReviewService(st, h.pricing, nil)
	h.review.now = clock.Now
	h.progress = NewProgressService(st)
	return h
}

func travelInput() CreateRequestInput {
	return CreateRequestInput{
		UserID:      7,
		Service:     "travel",
		ProgramType: "general",
		ProjectType: "tourism",
		FullName:    "Amina Diallo",
		Email:       "amina@example.com",
		Phone:       "081200000001",
		Details: map[string]string{
			"passport_number":     "A1234567",
			"passport_expiry":     "2030-05-01",
			"nationality":         "SN",
			"destination_country": "FR",
			"date_of_birth":       "1995-02-11",
		},
	}
}

func vapInput() CreateRequestInput {
	return CreateRequestInput{
		UserID:      8,
		Service:     "vap",
		ProgramType: "vap",
		Level:       "licence",
		FullName:    "Jean Mbaye",
		Email:       "jean@example.com",
		Phone:       "081200000002",
		Details: map[string]string{
			"date_of_birth":  "1990-07-01",
			"nationality":    "SN",
			"last_diploma":   "BTS",
			"target_diploma": "Licence",
		},
	}
}

func (h *harness) create(t *testing.T, in CreateRequestInput) *models.Request {
	t.Helper()
	req, err := h.requests.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return req
}

// pay runs initiate, gateway settlement and completion for one stage
func (h *harness) pay(t *testing.T, requestID uint, stage catalog.Stage) *PaymentResult {
	t.Helper()
	ctx := context.Background()
	checkout, err := h.payments.Initiate(ctx, PayInput{RequestID: requestID, Stage: stage, PayerEmail: "payer@example.com", PayerName: "Payer"})
	if err != nil {
		t.Fatalf("Initiate(%s) error = %v", stage, err)
	}
	txID := h.gateway.settle(checkout.Reference)
	result, err := h.payments.Complete(ctx, checkout.Reference, txID)
	if err != nil {
		t.Fatalf("Complete(%s) error = %v", stage, err)
	}
	return result
}

func (h *harness) reload(t *testing.T, id uint) *models.Request {
	t.Helper()
	req, err := h.store.GetRequestByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRequestByID() error = %v", err)
	}
	return req
}

func paymentsFor(st *storetest.Memory, requestID uint, stage catalog.Stage) int {
	n := 0
	for _, p := range st.AllPayments() {
		if p.RequestID == requestID && (stage == "" || p.PaymentStage == string(stage)) {
			n++
		}
	}
	return n
}
