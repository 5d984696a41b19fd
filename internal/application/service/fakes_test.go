package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/dispatcher"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/approval"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/event"
)

// In-memory repositories. Records are copied in and out so that a failed
// unit of work leaves nothing behind, as a rolled back transaction would.

type mockUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*entity.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*entity.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockUserRepo) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.User
	for _, u := range m.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserRepo) List(ctx context.Context, filter port.ListFilter) ([]*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.User
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserRepo) SetDelegation(ctx context.Context, userID int64, d *entity.Delegation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return port.ErrNotFound
	}
	if d == nil {
		u.BackupApproverID, u.DelegationStart, u.DelegationEnd = nil, nil, nil
		return nil
	}
	backup, start, end := d.BackupApproverID, d.Start, d.End
	u.BackupApproverID, u.DelegationStart, u.DelegationEnd = &backup, &start, &end
	return nil
}

type mockInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[int64]*entity.Invoice
	nextID   int64
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{invoices: make(map[int64]*entity.Invoice)}
}

func (m *mockInvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	inv.ID, inv.Version = m.nextID, 1
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("failed to get invoice: %w", port.ErrNotFound)
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Invoice, error) {
	return m.GetByID(ctx, id)
}

func (m *mockInvoiceRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.IdempotencyKey != nil && *inv.IdempotencyKey == key {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockInvoiceRepo) CountByInvoiceNumber(ctx context.Context, number string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, inv := range m.invoices {
		if inv.InvoiceNumber == number {
			n++
		}
	}
	return n, nil
}

func (m *mockInvoiceRepo) List(ctx context.Context, filter port.ListFilter) ([]*entity.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range m.invoices {
		if filter.Status == "" || inv.Status == filter.Status {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockInvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.invoices[inv.ID]
	if !ok || stored.Version != inv.Version {
		return port.ErrConflict
	}
	inv.Version++
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

type mockExpenseRepo struct {
	mu       sync.Mutex
	expenses map[int64]*entity.Expense
	nextID   int64
}

func newMockExpenseRepo() *mockExpenseRepo {
	return &mockExpenseRepo{expenses: make(map[int64]*entity.Expense)}
}

func (m *mockExpenseRepo) Create(ctx context.Context, exp *entity.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	exp.ID, exp.Version = m.nextID, 1
	cp := *exp
	m.expenses[exp.ID] = &cp
	return nil
}

func (m *mockExpenseRepo) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expenses[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *exp
	return &cp, nil
}

func (m *mockExpenseRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Expense, error) {
	return m.GetByID(ctx, id)
}

func (m *mockExpenseRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, exp := range m.expenses {
		if exp.IdempotencyKey != nil && *exp.IdempotencyKey == key {
			cp := *exp
			return &cp, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockExpenseRepo) List(ctx context.Context, filter port.ListFilter) ([]*entity.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Expense
	for _, exp := range m.expenses {
		if filter.Status == "" || exp.Status == filter.Status {
			cp := *exp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockExpenseRepo) Update(ctx context.Context, exp *entity.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.expenses[exp.ID]
	if !ok || stored.Version != exp.Version {
		return port.ErrConflict
	}
	exp.Version++
	cp := *exp
	m.expenses[exp.ID] = &cp
	return nil
}

type mockPriceRepo struct {
	mu     sync.Mutex
	prices map[int64]*entity.FuelPrice
	nextID int64
}

func newMockPriceRepo() *mockPriceRepo {
	return &mockPriceRepo{prices: make(map[int64]*entity.FuelPrice)}
}

func (m *mockPriceRepo) Create(ctx context.Context, p *entity.FuelPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID, p.Version = m.nextID, 1
	cp := *p
	m.prices[p.ID] = &cp
	return nil
}

func (m *mockPriceRepo) GetByID(ctx context.Context, id int64) (*entity.FuelPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPriceRepo) GetForUpdate(ctx context.Context, id int64) (*entity.FuelPrice, error) {
	return m.GetByID(ctx, id)
}

func (m *mockPriceRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.FuelPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prices {
		if p.IdempotencyKey != nil && *p.IdempotencyKey == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockPriceRepo) FindOpen(ctx context.Context, fuel entity.FuelType, date time.Time) (*entity.FuelPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.sorted() {
		if p.FuelType == fuel && p.EffectiveDate.Equal(date) && p.Status != entity.StatusRejected && p.ActivatedAt == nil {
			cp := *p
			return &cp, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockPriceRepo) GetActive(ctx context.Context, fuel entity.FuelType) (*entity.FuelPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prices {
		if p.FuelType == fuel && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockPriceRepo) ListDueForActivation(ctx context.Context, asOf time.Time, limit int) ([]*entity.FuelPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.FuelPrice
	for _, p := range m.sorted() {
		if p.Status == entity.StatusApproved && p.ActivatedAt == nil && !p.EffectiveDate.After(asOf) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPriceRepo) List(ctx context.Context, filter port.ListFilter) ([]*entity.FuelPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.FuelPrice
	for _, p := range m.sorted() {
		if filter.Status == "" || p.Status == filter.Status {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPriceRepo) Update(ctx context.Context, p *entity.FuelPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.prices[p.ID]
	if !ok || stored.Version != p.Version {
		return port.ErrConflict
	}
	p.Version++
	cp := *p
	m.prices[p.ID] = &cp
	return nil
}

func (m *mockPriceRepo) sorted() []*entity.FuelPrice {
	out := make([]*entity.FuelPrice, 0, len(m.prices))
	for _, p := range m.prices {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type mockStepRepo struct {
	mu     sync.Mutex
	steps  []*entity.ApprovalStep
	nextID int64

	// appendFunc, when set, runs before the step is stored and may fail it
	appendFunc func(step *entity.ApprovalStep) error
}

func (m *mockStepRepo) Append(ctx context.Context, step *entity.ApprovalStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendFunc != nil {
		if err := m.appendFunc(step); err != nil {
			return err
		}
	}
	for _, s := range m.steps {
		if s.RequestType == step.RequestType && s.RequestID == step.RequestID && s.TierIndex == step.TierIndex {
			return port.ErrConflict
		}
	}
	m.nextID++
	step.ID = m.nextID
	cp := *step
	m.steps = append(m.steps, &cp)
	return nil
}

func (m *mockStepRepo) ListByRequest(ctx context.Context, t entity.RequestType, id int64) ([]*entity.ApprovalStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ApprovalStep
	for _, s := range m.steps {
		if s.RequestType == t && s.RequestID == id {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TierIndex < out[j].TierIndex })
	return out, nil
}

func (m *mockStepRepo) ListByType(ctx context.Context, t entity.RequestType) ([]*entity.ApprovalStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ApprovalStep
	for _, s := range m.steps {
		if s.RequestType == t {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockTxManager struct {
	mu    sync.Mutex
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockMetrics struct {
	mu        sync.Mutex
	outcomes  map[string]int
	denials   map[string]int
	retries   int
	activated int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{outcomes: map[string]int{}, denials: map[string]int{}}
}

func (m *mockMetrics) ActionRecorded(t entity.RequestType, action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[string(t)+"/"+action+"/"+outcome]++
}

func (m *mockMetrics) ActionDenied(t entity.RequestType, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denials[reason]++
}

func (m *mockMetrics) ConflictRetried(entity.RequestType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *mockMetrics) PriceActivated(entity.FuelType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activated++
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fixture wires every service over the in-memory repositories
type fixture struct {
	users    *mockUserRepo
	invoices *mockInvoiceRepo
	expenses *mockExpenseRepo
	prices   *mockPriceRepo
	steps    *mockStepRepo
	tx       *mockTxManager
	metrics  *mockMetrics
	clock    *testClock
	events   *[]event.Type
	bus      dispatcher.Dispatcher

	engine     *ApprovalEngine
	invoiceSvc InvoiceService
	expenseSvc ExpenseService
	priceSvc   PriceService
	userSvc    UserService
	inboxSvc   InboxService
	reportSvc  ReportService
}

func newFixture() *fixture {
	f := &fixture{
		users:    newMockUserRepo(),
		invoices: newMockInvoiceRepo(),
		expenses: newMockExpenseRepo(),
		prices:   newMockPriceRepo(),
		steps:    &mockStepRepo{},
		tx:       &mockTxManager{},
		metrics:  newMockMetrics(),
		clock:    &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		events:   &[]event.Type{},
	}

	var mu sync.Mutex
	events := dispatcher.NewDispatcher()
	events.SubscribeAll("recorder", func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		*f.events = append(*f.events, evt.Type)
		return nil
	})
	f.bus = events

	logger := &mockLogger{}
	f.engine = NewApprovalEngine(
		EngineConfig{Policy: approval.DefaultPolicy(), MaxRetries: 2},
		f.users, f.steps, f.tx, events, f.metrics, logger, f.clock.Now,
	)
	f.invoiceSvc = NewInvoiceService(f.invoices, f.users, f.engine, logger)
	f.expenseSvc = NewExpenseService(f.expenses, f.users, f.engine, logger)
	f.priceSvc = NewPriceService(f.prices, f.users, f.engine, logger)
	f.userSvc = NewUserService(f.users, events, logger)
	f.inboxSvc = NewInboxService(f.invoices, f.expenses, f.prices, f.engine, logger)
	f.reportSvc = NewReportService(f.steps, "", logger)
	return f
}

func (f *fixture) addUser(role entity.Role, lineManager *int64) *entity.User {
	u := &entity.User{
		Email:         fmt.Sprintf("%s-%d@station.example", role, len(f.users.users)+1),
		FullName:      string(role),
		Role:          role,
		IsActive:      true,
		LineManagerID: lineManager,
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fixture) hasEvent(t event.Type) bool {
	for _, e := range *f.events {
		if e == t {
			return true
		}
	}
	return false
}
