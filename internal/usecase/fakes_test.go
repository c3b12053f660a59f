package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chineduo/solarhub/internal/adapters/payments/paystack"
	"github.com/chineduo/solarhub/internal/domain"
)

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
}

func newFakeProductRepo(products ...*domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: map[uuid.UUID]*domain.Product{}}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) Save(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) FindBySlug(_ context.Context, slug string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeProductRepo) List(_ context.Context, _ domain.ProductFilter) ([]domain.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *fakeProductRepo) SetStock(_ context.Context, id uuid.UUID, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Stock = stock
	return nil
}

func (r *fakeProductRepo) AdjustStock(_ context.Context, id uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return domain.NewInsufficientStock(p.Name, -delta, p.Stock)
	}
	p.Stock += delta
	return nil
}

// fakeOrderRepo emulates the transactional semantics of the real store:
// ConfirmPayment and CreatePaid decrement stock conditionally and the
// unique reference rejects duplicate materialization.
type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	products *fakeProductRepo
}

func newFakeOrderRepo(products *fakeProductRepo) *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[uuid.UUID]*domain.Order{}, products: products}
}

func (r *fakeOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.PaystackReference == o.PaystackReference {
			return fmt.Errorf("duplicate key value violates unique constraint")
		}
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) Save(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) FindByNumber(_ context.Context, number string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeOrderRepo) FindByReference(_ context.Context, reference string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByReferenceLocked(reference)
}

func (r *fakeOrderRepo) findByReferenceLocked(reference string) (*domain.Order, error) {
	for _, o := range r.orders {
		if o.PaystackReference == reference {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeOrderRepo) Search(_ context.Context, _ domain.OrderFilter) ([]domain.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) ListCreatedBetween(_ context.Context, from, to time.Time) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if !from.IsZero() && o.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !o.CreatedAt.Before(to) {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (r *fakeOrderRepo) ConfirmPayment(_ context.Context, reference string, fn func(*domain.Order) error) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var target *domain.Order
	for _, o := range r.orders {
		if o.PaystackReference == reference {
			target = o
			break
		}
	}
	if target == nil {
		return nil, false, domain.ErrNotFound
	}
	if err := fn(target); err != nil {
		if errors.Is(err, domain.ErrAlreadyPaid) {
			cp := *target
			return &cp, false, nil
		}
		return nil, false, err
	}
	if err := r.decrementLocked(target.Items); err != nil {
		return nil, false, err
	}
	cp := *target
	return &cp, true, nil
}

func (r *fakeOrderRepo) CreatePaid(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.findByReferenceLocked(o.PaystackReference); err == nil {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	if err := r.decrementLocked(o.Items); err != nil {
		return err
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) decrementLocked(items []domain.OrderItem) error {
	if r.products == nil {
		return nil
	}
	r.products.mu.Lock()
	defer r.products.mu.Unlock()
	for _, it := range items {
		p, ok := r.products.products[it.ProductID]
		if !ok || p.Stock < it.Quantity {
			available := 0
			if ok {
				available = p.Stock
			}
			return domain.NewInsufficientStock(it.ProductName, it.Quantity, available)
		}
	}
	for _, it := range items {
		r.products.products[it.ProductID].Stock -= it.Quantity
	}
	return nil
}

type fakePreOrderRepo struct {
	mu      sync.Mutex
	catalog map[uuid.UUID]*domain.PreOrder
	rows    map[uuid.UUID]*domain.CustomerPreOrder
}

func newFakePreOrderRepo(catalog ...*domain.PreOrder) *fakePreOrderRepo {
	r := &fakePreOrderRepo{catalog: map[uuid.UUID]*domain.PreOrder{}, rows: map[uuid.UUID]*domain.CustomerPreOrder{}}
	for _, c := range catalog {
		r.catalog[c.ID] = c
	}
	return r
}

func (r *fakePreOrderRepo) SaveCatalog(_ context.Context, p *domain.PreOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog[p.ID] = p
	return nil
}

func (r *fakePreOrderRepo) FindCatalogByID(_ context.Context, id uuid.UUID) (*domain.PreOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.catalog[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakePreOrderRepo) ListCatalog(_ context.Context, _ string, _, _ int) ([]domain.PreOrder, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PreOrder
	for _, c := range r.catalog {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (r *fakePreOrderRepo) Create(_ context.Context, p *domain.CustomerPreOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.PaystackReference == p.PaystackReference {
			return fmt.Errorf("duplicate key value violates unique constraint")
		}
	}
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *fakePreOrderRepo) Save(_ context.Context, p *domain.CustomerPreOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *fakePreOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.CustomerPreOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePreOrderRepo) FindByNumber(_ context.Context, number string) (*domain.CustomerPreOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.PreOrderNumber == number {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakePreOrderRepo) FindByReference(_ context.Context, reference string) (*domain.CustomerPreOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.PaystackReference == reference {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakePreOrderRepo) ListByEmail(_ context.Context, email string) ([]domain.CustomerPreOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CustomerPreOrder
	for _, p := range r.rows {
		if p.CustomerEmail == email {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePreOrderRepo) ListCreatedBetween(_ context.Context, from, to time.Time) ([]domain.CustomerPreOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CustomerPreOrder
	for _, p := range r.rows {
		if !from.IsZero() && p.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !p.CreatedAt.Before(to) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePreOrderRepo) ApplyPayment(_ context.Context, reference string, fn func(*domain.CustomerPreOrder) error) (*domain.CustomerPreOrder, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var target *domain.CustomerPreOrder
	for _, p := range r.rows {
		if p.PaystackReference == reference {
			target = p
			break
		}
	}
	if target == nil {
		return nil, false, domain.ErrNotFound
	}
	if err := fn(target); err != nil {
		if errors.Is(err, domain.ErrAlreadyPaid) {
			cp := *target
			return &cp, false, nil
		}
		return nil, false, err
	}
	cp := *target
	return &cp, true, nil
}

type fakePromoRepo struct {
	mu     sync.Mutex
	promos map[string]*domain.Promotion
}

func newFakePromoRepo(promos ...*domain.Promotion) *fakePromoRepo {
	r := &fakePromoRepo{promos: map[string]*domain.Promotion{}}
	for _, p := range promos {
		r.promos[p.PromoCode] = p
	}
	return r
}

func (r *fakePromoRepo) Save(_ context.Context, p *domain.Promotion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promos[p.PromoCode] = p
	return nil
}

func (r *fakePromoRepo) FindByCode(_ context.Context, code string) (*domain.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePromoRepo) List(_ context.Context) ([]domain.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Promotion
	for _, p := range r.promos {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePromoRepo) IncrementUsage(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[code]
	if !ok {
		return domain.ErrNotFound
	}
	p.UsedCount++
	return nil
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	notes []*domain.AdminNotification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.AdminNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *fakeNotificationRepo) List(_ context.Context, _ bool, _, _ int) ([]domain.AdminNotification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AdminNotification
	for _, n := range r.notes {
		out = append(out, *n)
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) UnreadCount(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.notes {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notes {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notes {
		n.Read = true
	}
	return nil
}

func (r *fakeNotificationRepo) countByType(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notes {
		if n.Type == typ {
			count++
		}
	}
	return count
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

// fakeGateway plays Paystack: Initialize hands back canned authorization
// data and Verify answers from a scripted table keyed by reference.
type fakeGateway struct {
	mu        sync.Mutex
	initCalls []paystack.InitRequest
	verifies  map[string]*paystack.Verification
	initErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{verifies: map[string]*paystack.Verification{}}
}

func (g *fakeGateway) Initialize(_ context.Context, req paystack.InitRequest) (*paystack.Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.initCalls = append(g.initCalls, req)
	return &paystack.Authorization{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*paystack.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.verifies[reference]
	if !ok {
		return nil, domain.ErrGatewayFailure
	}
	return v, nil
}

func (g *fakeGateway) scriptSuccess(reference string, metadata map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies[reference] = &paystack.Verification{
		Status:   "success",
		Channel:  "card",
		Metadata: metadata,
		Raw:      []byte(`{"data":{"status":"success"}}`),
	}
}

func (g *fakeGateway) scriptFailure(reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies[reference] = &paystack.Verification{
		Status: "failed",
		Raw:    []byte(`{"data":{"status":"failed"}}`),
	}
}

func (g *fakeGateway) lastInit() paystack.InitRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initCalls[len(g.initCalls)-1]
}
