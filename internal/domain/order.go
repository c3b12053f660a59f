package domain

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// orderTransitions is the fulfillment table. Cancellation is only reachable
// while nothing has shipped; delivered and cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderNumber string    `gorm:"size:40;uniqueIndex"`

	CustomerEmail string `gorm:"size:140;index"`
	CustomerPhone string `gorm:"size:50"`
	FirstName     string `gorm:"size:140"`
	LastName      string `gorm:"size:140"`

	Subtotal       float64 `gorm:"type:decimal(12,2)"`
	ShippingFee    float64 `gorm:"type:decimal(12,2);default:0"`
	DiscountAmount float64 `gorm:"type:decimal(12,2);default:0"`
	TotalAmount    float64 `gorm:"type:decimal(12,2)"`
	Currency       string  `gorm:"size:3;default:NGN"`

	Status        OrderStatus   `gorm:"type:varchar(20);default:pending;index"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);default:pending;index"`

	FulfillmentMethod FulfillmentMethod `gorm:"type:varchar(10)"`
	ShippingAddress   string            `gorm:"type:text"`
	City              string            `gorm:"size:100"`
	State             string            `gorm:"size:100"`
	PickupLocation    string            `gorm:"size:255"`

	PaymentMethod      string `gorm:"size:40;index"`
	PaystackReference  string `gorm:"size:140;uniqueIndex"`
	PaystackAccessCode string `gorm:"size:140"`
	PaystackResponse   []byte `gorm:"type:jsonb"`

	PromoCode string `gorm:"size:60"`

	PaidAt      *time.Time
	DeliveredAt *time.Time

	Items []OrderItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID      uuid.UUID `gorm:"type:uuid;index"`
	ProductID    uuid.UUID `gorm:"type:uuid;index"`
	ProductName  string    `gorm:"size:180"`
	ProductPrice float64   `gorm:"type:decimal(12,2)"`
	Quantity     int       `gorm:"not null"`
	TotalPrice   float64   `gorm:"type:decimal(12,2)"`
	// Snapshot of the product row at purchase time so later catalog edits
	// never rewrite order history.
	ProductSnapshot []byte `gorm:"type:jsonb"`
	CreatedAt       time.Time
}

const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomRef(prefix string, n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = refAlphabet[int(b[i])%len(refAlphabet)]
	}
	return prefix + string(b)
}

func NewOrderNumber() string { return randomRef("ORD-", 8) }

// RecalculateTotals enforces the money invariants on every persist: each
// line total is quantity x unit price and the aggregate total is
// subtotal + shipping - discount. Caller-provided totals are not trusted.
func (o *Order) RecalculateTotals() {
	subtotal := 0.0
	for i := range o.Items {
		o.Items[i].TotalPrice = float64(o.Items[i].Quantity) * o.Items[i].ProductPrice
		subtotal += o.Items[i].TotalPrice
	}
	o.Subtotal = subtotal
	o.TotalAmount = o.Subtotal + o.ShippingFee - o.DiscountAmount
}

func (o *Order) IsPaid() bool { return o.PaymentStatus == PaymentStatusPaid }

func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPaid
}

// MarkPaid is the idempotency guard for payment confirmation: a second call
// for the same order reports ErrAlreadyPaid so callers can skip the stock
// decrement and notifications.
func (o *Order) MarkPaid(now time.Time) error {
	if o.IsPaid() {
		return ErrAlreadyPaid
	}
	o.PaymentStatus = PaymentStatusPaid
	o.Status = OrderStatusPaid
	o.PaidAt = &now
	return nil
}

func (o *Order) MarkPaymentFailed() {
	if o.IsPaid() {
		return
	}
	o.PaymentStatus = PaymentStatusFailed
}

func (o *Order) TransitionStatus(to OrderStatus, now time.Time) error {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == to {
			o.Status = to
			if to == OrderStatusDelivered {
				o.DeliveredAt = &now
			}
			return nil
		}
	}
	return NewInvalidTransition(string(o.Status), string(to))
}

func (o *Order) CustomerName() string { return o.FirstName + " " + o.LastName }

type OrderFilter struct {
	Query         string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
	Page          int
	PageSize      int
}

type OrderRepo interface {
	// Create persists the order and its items in one transaction.
	Create(ctx context.Context, o *Order) error
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByNumber(ctx context.Context, number string) (*Order, error)
	FindByReference(ctx context.Context, reference string) (*Order, error)
	Search(ctx context.Context, f OrderFilter) ([]Order, int64, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]Order, error)

	// ConfirmPayment locks the order row for the duration of the
	// check-and-transition, applies fn, decrements stock for each line item
	// with a conditional update, and persists — all in one transaction.
	// The bool reports whether fn actually transitioned the order (false
	// when the idempotency guard tripped).
	ConfirmPayment(ctx context.Context, reference string, fn func(*Order) error) (*Order, bool, error)

	// CreatePaid materializes a session-first order: the row, its items and
	// the stock decrement commit atomically.
	CreatePaid(ctx context.Context, o *Order) error
}
