// Package storetest provides an in-memory store.Store for service and
// handler tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"serviceportal/internal/models"
	"serviceportal/internal/store"
)

type state struct {
	nextID    uint
	requests  map[uint]models.Request
	history   []models.StatusHistory
	payments  []models.Payment
	documents []models.Document
	notes     []models.Notification
	sessions  map[uint]models.PaymentSession
	callbacks []models.PaymentCallbackHistory
	tiers     map[uint]models.PricingTier
	users     map[uint]models.User
	prefs     map[uint]models.UserNotifPreference
	tasks     []models.ScheduledTask
	runs      []models.ScheduledTaskHistory
}

type shared struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	st    *state
	fails map[string]error
	now   func() time.Time
}

// Memory is a mutex-guarded Store. A transaction works on a view that
// journals its own writes, and rollback undoes only those.
type Memory struct {
	*shared
	undo *[]func(*state)
}

func NewMemory() *Memory {
	return &Memory{shared: &shared{
		st: &state{
			requests: map[uint]models.Request{},
			sessions: map[uint]models.PaymentSession{},
			tiers:    map[uint]models.PricingTier{},
			users:    map[uint]models.User{},
			prefs:    map[uint]models.UserNotifPreference{},
		},
		fails: map[string]error{},
		now:   time.Now,
	}}
}

// FailOn makes every later call to method return err. A nil err clears it.
func (m *Memory) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fails, method)
		return
	}
	m.fails[method] = err
}

// SetClock overrides the time source used for CreatedAt stamps
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) enter(method string) error {
	m.mu.Lock()
	return m.fails[method]
}

func (m *Memory) id() uint {
	m.st.nextID++
	return m.st.nextID
}

// journal records how to revert a write made through a transaction view.
// Callers hold mu.
func (m *Memory) journal(fn func(*state)) {
	if m.undo != nil {
		*m.undo = append(*m.undo, fn)
	}
}

func drop[T any](items []T, match func(T) bool) []T {
	out := items[:0:0]
	for _, it := range items {
		if !match(it) {
			out = append(out, it)
		}
	}
	return out
}

func restore[K comparable, V any](items map[K]V, key K, prev V, had bool) {
	if had {
		items[key] = prev
		return
	}
	delete(items, key)
}

// Snapshot accessors for assertions

func (m *Memory) AllPayments() []models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Payment(nil), m.st.payments...)
}

func (m *Memory) AllNotifications() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Notification(nil), m.st.notes...)
}

func (m *Memory) AllHistory() []models.StatusHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.StatusHistory(nil), m.st.history...)
}

func (m *Memory) AllTasks() []models.ScheduledTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ScheduledTask(nil), m.st.tasks...)
}

func (m *Memory) AllCallbacks() []models.PaymentCallbackHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PaymentCallbackHistory(nil), m.st.callbacks...)
}

func (m *Memory) AllTaskRuns() []models.ScheduledTaskHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ScheduledTaskHistory(nil), m.st.runs...)
}

func (m *Memory) AllSessions() []models.PaymentSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PaymentSession, 0, len(m.st.sessions))
	for _, s := range m.st.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) GetRequestByNumber(ctx context.Context, number string) (*models.Request, error) {
	if err := m.enter("GetRequestByNumber"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	if number == "" {
		return nil, store.ErrNotFound
	}
	for _, r := range m.st.requests {
		if r.RequestNumber == number {
			r := r
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) GetRequestByID(ctx context.Context, id uint) (*models.Request, error) {
	if err := m.enter("GetRequestByID"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	r, ok := m.st.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (m *Memory) sortedRequests(keep func(models.Request) bool) []models.Request {
	var out []models.Request
	for _, r := range m.st.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func window[T any](items []T, page store.Page) []T {
	limit, offset := page.Bounds()
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (m *Memory) ListRequestsForUser(ctx context.Context, userID uint, page store.Page) ([]models.Request, error) {
	if err := m.enter("ListRequestsForUser"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	all := m.sortedRequests(func(r models.Request) bool { return r.UserID == userID })
	return window(all, page), nil
}

func (m *Memory) ListRequests(ctx context.Context, filter store.RequestFilter, page store.Page) ([]models.Request, int64, error) {
	if err := m.enter("ListRequests"); err != nil {
		m.mu.Unlock()
		return nil, 0, err
	}
	defer m.mu.Unlock()
	all := m.sortedRequests(func(r models.Request) bool {
		if filter.Service != "" && r.Service != filter.Service {
			return false
		}
		return filter.Status == "" || r.Status == filter.Status
	})
	return window(all, page), int64(len(all)), nil
}

func (m *Memory) StatusHistory(ctx context.Context, requestID uint) ([]models.StatusHistory, error) {
	if err := m.enter("StatusHistory"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.StatusHistory
	for _, h := range m.st.history {
		if h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *Memory) Payments(ctx context.Context, requestID uint) ([]models.Payment, error) {
	if err := m.enter("Payments"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.Payment
	for _, p := range m.st.payments {
		if p.RequestID == requestID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) Documents(ctx context.Context, requestID uint) ([]models.Document, error) {
	if err := m.enter("Documents"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.st.documents {
		if d.RequestID == requestID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) Notifications(ctx context.Context, userID uint) ([]models.Notification, error) {
	if err := m.enter("Notifications"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.Notification
	for i := len(m.st.notes) - 1; i >= 0; i-- {
		if m.st.notes[i].UserID == userID {
			out = append(out, m.st.notes[i])
		}
	}
	return out, nil
}

func (m *Memory) CreateRequest(ctx context.Context, req *models.Request) error {
	if err := m.enter("CreateRequest"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	for _, r := range m.st.requests {
		if r.RequestNumber == req.RequestNumber {
			return store.ErrDuplicate
		}
	}
	req.ID = m.id()
	if req.Version == 0 {
		req.Version = 1
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = m.now()
	}
	req.UpdatedAt = req.CreatedAt
	m.st.requests[req.ID] = *req
	id := req.ID
	m.journal(func(s *state) { delete(s.requests, id) })
	return nil
}

func (m *Memory) UpdateRequest(ctx context.Context, req *models.Request, expectedVersion int) error {
	if err := m.enter("UpdateRequest"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	cur, ok := m.st.requests[req.ID]
	if !ok || cur.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	req.Version = expectedVersion + 1
	req.UpdatedAt = m.now()
	// creation-time columns are never rewritten
	req.CreatedAt = cur.CreatedAt
	req.RequestNumber = cur.RequestNumber
	m.st.requests[req.ID] = *req
	m.journal(func(s *state) { s.requests[cur.ID] = cur })
	return nil
}

func (m *Memory) CountRequestsSince(ctx context.Context, service string, since time.Time) (int64, error) {
	if err := m.enter("CountRequestsSince"); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.st.requests {
		if r.Service == service && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreatePayment(ctx context.Context, p *models.Payment) error {
	if err := m.enter("CreatePayment"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	for _, existing := range m.st.payments {
		if existing.TransactionReference == p.TransactionReference {
			return store.ErrDuplicate
		}
	}
	p.ID = m.id()
	p.CreatedAt = m.now()
	m.st.payments = append(m.st.payments, *p)
	id := p.ID
	m.journal(func(s *state) {
		s.payments = drop(s.payments, func(x models.Payment) bool { return x.ID == id })
	})
	return nil
}

func (m *Memory) PaymentForStage(ctx context.Context, requestID uint, stage string) (*models.Payment, error) {
	if err := m.enter("PaymentForStage"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	for _, p := range m.st.payments {
		if p.RequestID == requestID && p.PaymentStage == stage && p.PaymentStatus == models.PaymentStatusCompleted {
			p := p
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) PaymentByTransactionRef(ctx context.Context, ref string) (*models.Payment, error) {
	if err := m.enter("PaymentByTransactionRef"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	for _, p := range m.st.payments {
		if p.TransactionReference == ref {
			p := p
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) AppendStatusHistory(ctx context.Context, entry *models.StatusHistory) error {
	if err := m.enter("AppendStatusHistory"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	entry.ID = m.id()
	entry.CreatedAt = m.now()
	m.st.history = append(m.st.history, *entry)
	id := entry.ID
	m.journal(func(s *state) {
		s.history = drop(s.history, func(x models.StatusHistory) bool { return x.ID == id })
	})
	return nil
}

func (m *Memory) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := m.enter("CreateNotification"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	n.ID = m.id()
	n.CreatedAt = m.now()
	m.st.notes = append(m.st.notes, *n)
	id := n.ID
	m.journal(func(s *state) {
		s.notes = drop(s.notes, func(x models.Notification) bool { return x.ID == id })
	})
	return nil
}

func (m *Memory) MarkNotificationRead(ctx context.Context, userID, id uint) error {
	if err := m.enter("MarkNotificationRead"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	for i := range m.st.notes {
		if m.st.notes[i].ID == id && m.st.notes[i].UserID == userID {
			prev := m.st.notes[i].IsRead
			m.st.notes[i].IsRead = true
			m.journal(func(s *state) {
				for j := range s.notes {
					if s.notes[j].ID == id {
						s.notes[j].IsRead = prev
					}
				}
			})
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *Memory) ActiveSession(ctx context.Context, requestID uint, stage string) (*models.PaymentSession, error) {
	if err := m.enter("ActiveSession"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	var found *models.PaymentSession
	for _, s := range m.st.sessions {
		if s.RequestID == requestID && s.Stage == stage && s.IsActive {
			s := s
			if found == nil || s.ID > found.ID {
				found = &s
			}
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (m *Memory) SessionByReference(ctx context.Context, reference string) (*models.PaymentSession, error) {
	if err := m.enter("SessionByReference"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	for _, s := range m.st.sessions {
		if s.Reference == reference {
			s := s
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) SaveSession(ctx context.Context, s *models.PaymentSession) error {
	if err := m.enter("SaveSession"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.id()
		if s.CreatedAt.IsZero() {
			s.CreatedAt = m.now()
		}
	}
	s.UpdatedAt = m.now()
	id := s.ID
	prev, had := m.st.sessions[id]
	m.st.sessions[id] = *s
	m.journal(func(st *state) { restore(st.sessions, id, prev, had) })
	return nil
}

func (m *Memory) ActiveSessionsCreatedBefore(ctx context.Context, before time.Time) ([]models.PaymentSession, error) {
	if err := m.enter("ActiveSessionsCreatedBefore"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.PaymentSession
	for _, s := range m.st.sessions {
		if s.IsActive && s.CreatedAt.Before(before) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) LogCallback(ctx context.Context, h *models.PaymentCallbackHistory) error {
	if err := m.enter("LogCallback"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	h.ID = m.id()
	h.CreatedAt = m.now()
	m.st.callbacks = append(m.st.callbacks, *h)
	id := h.ID
	m.journal(func(s *state) {
		s.callbacks = drop(s.callbacks, func(x models.PaymentCallbackHistory) bool { return x.ID == id })
	})
	return nil
}

func (m *Memory) PricingTier(ctx context.Context, service, programType, projectType, level string) (*models.PricingTier, error) {
	if err := m.enter("PricingTier"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	for _, t := range m.st.tiers {
		if t.IsActive && t.Service == service && t.ProgramType == programType &&
			t.ProjectType == projectType && t.Level == level {
			t := t
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) ListPricingTiers(ctx context.Context) ([]models.PricingTier, error) {
	if err := m.enter("ListPricingTiers"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	out := make([]models.PricingTier, 0, len(m.st.tiers))
	for _, t := range m.st.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpsertPricingTier(ctx context.Context, tier *models.PricingTier) error {
	if err := m.enter("UpsertPricingTier"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	for id, t := range m.st.tiers {
		if t.Service == tier.Service && t.ProgramType == tier.ProgramType &&
			t.ProjectType == tier.ProjectType && t.Level == tier.Level {
			tier.ID = id
			tier.CreatedAt = t.CreatedAt
			tier.UpdatedAt = m.now()
			m.st.tiers[id] = *tier
			prev := t
			m.journal(func(s *state) { s.tiers[prev.ID] = prev })
			return nil
		}
	}
	tier.ID = m.id()
	tier.CreatedAt = m.now()
	tier.UpdatedAt = tier.CreatedAt
	m.st.tiers[tier.ID] = *tier
	id := tier.ID
	m.journal(func(s *state) { delete(s.tiers, id) })
	return nil
}

func (m *Memory) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := m.enter("CreateDocument"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	doc.ID = m.id()
	doc.CreatedAt = m.now()
	m.st.documents = append(m.st.documents, *doc)
	id := doc.ID
	m.journal(func(s *state) {
		s.documents = drop(s.documents, func(x models.Document) bool { return x.ID == id })
	})
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id uint) (*models.User, error) {
	if err := m.enter("GetUser"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	u, ok := m.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) UpsertUserByFirebaseUID(ctx context.Context, user *models.User) error {
	if err := m.enter("UpsertUserByFirebaseUID"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	for id, u := range m.st.users {
		if u.FirebaseUID == user.FirebaseUID {
			prev := u
			m.journal(func(s *state) { s.users[prev.ID] = prev })
			u.Email = user.Email
			u.Name = user.Name
			u.UpdatedAt = m.now()
			m.st.users[id] = u
			*user = u
			return nil
		}
	}
	user.ID = m.id()
	if user.UserType == "" {
		user.UserType = models.UserTypeMember
	}
	user.CreatedAt = m.now()
	m.st.users[user.ID] = *user
	id := user.ID
	m.journal(func(s *state) { delete(s.users, id) })
	return nil
}

func (m *Memory) NotifPreference(ctx context.Context, userID uint) (*models.UserNotifPreference, error) {
	if err := m.enter("NotifPreference"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	p, ok := m.st.prefs[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *Memory) SaveNotifPreference(ctx context.Context, pref *models.UserNotifPreference) error {
	if err := m.enter("SaveNotifPreference"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	if pref.ID == 0 {
		pref.ID = m.id()
	}
	userID := pref.UserID
	prev, had := m.st.prefs[userID]
	m.st.prefs[userID] = *pref
	m.journal(func(s *state) { restore(s.prefs, userID, prev, had) })
	return nil
}

func (m *Memory) CreateTask(ctx context.Context, task *models.ScheduledTask) error {
	if err := m.enter("CreateTask"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	task.ID = m.id()
	task.CreatedAt = m.now()
	m.st.tasks = append(m.st.tasks, *task)
	id := task.ID
	m.journal(func(s *state) {
		s.tasks = drop(s.tasks, func(x models.ScheduledTask) bool { return x.ID == id })
	})
	return nil
}

func (m *Memory) DueTasks(ctx context.Context, now time.Time) ([]models.ScheduledTask, error) {
	if err := m.enter("DueTasks"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.ScheduledTask
	for _, t := range m.st.tasks {
		if t.Status == models.ScheduledTaskStatusActive && !t.Due.After(now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out, nil
}

func (m *Memory) UpdateTask(ctx context.Context, task *models.ScheduledTask) error {
	if err := m.enter("UpdateTask"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	for i := range m.st.tasks {
		if m.st.tasks[i].ID == task.ID {
			prev := m.st.tasks[i]
			m.journal(func(s *state) {
				for j := range s.tasks {
					if s.tasks[j].ID == prev.ID {
						s.tasks[j] = prev
					}
				}
			})
			m.st.tasks[i].Status = task.Status
			m.st.tasks[i].Due = task.Due
			m.st.tasks[i].LastRun = task.LastRun
			m.st.tasks[i].UpdatedAt = m.now()
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *Memory) RecordTaskRun(ctx context.Context, run *models.ScheduledTaskHistory) error {
	if err := m.enter("RecordTaskRun"); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	run.ID = m.id()
	run.CreatedAt = m.now()
	m.st.runs = append(m.st.runs, *run)
	id := run.ID
	m.journal(func(s *state) {
		s.runs = drop(s.runs, func(x models.ScheduledTaskHistory) bool { return x.ID == id })
	})
	return nil
}

// Transaction serializes transactions against each other. Writes made on m
// itself while a transaction is open are visible to it and survive its
// rollback. A rollback does overwrite a concurrent write to a row the
// transaction also wrote, where postgres would have blocked the writer.
func (m *Memory) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := m.enter("Transaction"); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	var undo []func(*state)
	tx := &Memory{shared: m.shared, undo: &undo}
	if err := fn(tx); err != nil {
		m.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i](m.st)
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// SeedUser inserts a user directly, returning its id
func (m *Memory) SeedUser(u models.User) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	if u.UserType == "" {
		u.UserType = models.UserTypeMember
	}
	m.st.users[u.ID] = u
	return u.ID
}

var _ store.Store = (*Memory)(nil)
