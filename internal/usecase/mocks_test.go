//go:build !integration

package usecase

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/model"
	"membership-settlement/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction. Assign
// WithTxFunc for tests that need to observe or fail the transactional path.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Order

	SaveFunc     func(ctx context.Context, tx repository.Tx, o *model.Order) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Order, error)
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{store: make(map[string]*model.Order)}
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func (m *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (m *MockOrderRepo) FindOpenRenewalByParent(ctx context.Context, tx repository.Tx, parentOrderID string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.store {
		if o.Kind == model.OrderKindRenewal &&
			o.Status == model.OrderStatusAwaitingTransfer &&
			o.ParentOrderID != nil && *o.ParentOrderID == parentOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockOrderRepo) ListAwaitingTransfer(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Order
	for _, o := range m.store {
		if o.Status == model.OrderStatusAwaitingTransfer && o.CreatedAt.Before(olderThan) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock PaymentLinkRepository ----

type MockPaymentLinkRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymentLink
}

func NewMockPaymentLinkRepo() *MockPaymentLinkRepo {
	return &MockPaymentLinkRepo{store: make(map[string]*model.PaymentLink)}
}

var _ repository.PaymentLinkRepository = (*MockPaymentLinkRepo)(nil)

func (m *MockPaymentLinkRepo) Save(ctx context.Context, tx repository.Tx, l *model.PaymentLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[l.ID]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *l
	m.store[l.ID] = &cp
	return nil
}

func (m *MockPaymentLinkRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// ---- Mock MembershipRepository ----

type MockMembershipRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Membership

	SaveFunc func(ctx context.Context, tx repository.Tx, mem *model.Membership) error
}

func NewMockMembershipRepo() *MockMembershipRepo {
	return &MockMembershipRepo{store: make(map[string]*model.Membership)}
}

var _ repository.MembershipRepository = (*MockMembershipRepo)(nil)

// Save mirrors the database's UNIQUE(parent_order_id): inserting a second
// membership for the same initiating order fails with ErrAlreadyExists.
func (m *MockMembershipRepo) Save(ctx context.Context, tx repository.Tx, mem *model.Membership) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, mem)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.ParentOrderID == mem.ParentOrderID && existing.ID != mem.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *mem
	m.store[mem.ID] = &cp
	return nil
}

func (m *MockMembershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *MockMembershipRepo) FindByParentOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.store {
		if mem.ParentOrderID == orderID {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockMembershipRepo) FindCurrentByCustomer(ctx context.Context, tx repository.Tx, email string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.Membership
	for _, mem := range m.store {
		if mem.CustomerEmail != email {
			continue
		}
		if mem.Status != model.MembershipStatusActive && mem.Status != model.MembershipStatusDelayed {
			continue
		}
		if best == nil || mem.EndDate.After(best.EndDate) {
			best = mem
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockMembershipRepo) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription

	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

// Save mirrors the database's UNIQUE(parent_order_id).
func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.ParentOrderID == s.ParentOrderID && existing.ID != s.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByParentOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.ParentOrderID == orderID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindActiveByParentOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.ParentOrderID == orderID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) ListDue(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.NextPaymentDate != nil && !s.NextPaymentDate.After(asOf) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextPaymentDate.Before(*out[j].NextPaymentDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSubscriptionRepo) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// ---- Mock CatalogRepository ----

type MockCatalogRepo struct {
	mu         sync.RWMutex
	products   map[string]*model.Product
	extensions map[string]*model.Extension
}

func NewMockCatalogRepo() *MockCatalogRepo {
	return &MockCatalogRepo{
		products:   make(map[string]*model.Product),
		extensions: make(map[string]*model.Extension),
	}
}

var _ repository.CatalogRepository = (*MockCatalogRepo)(nil)

func (m *MockCatalogRepo) SaveProduct(ctx context.Context, tx repository.Tx, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MockCatalogRepo) SaveExtension(ctx context.Context, tx repository.Tx, e *model.Extension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.extensions[e.ID] = &cp
	return nil
}

func (m *MockCatalogRepo) FindProduct(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalogRepo) FindExtension(ctx context.Context, tx repository.Tx, id string) (*model.Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.extensions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}
