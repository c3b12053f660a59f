package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PreOrder is a catalog entry for an item sold on deposit before it is in
// stock. DepositPercentage and PreOrderPrice are frozen into each
// reservation at placement time; editing the catalog never changes what an
// existing customer owes.
type PreOrder struct {
	ID                   uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ProductName          string            `gorm:"size:180"`
	Category             string            `gorm:"size:100"`
	PreOrderPrice        float64           `gorm:"type:decimal(12,2)"`
	DepositPercentage    float64           `gorm:"type:decimal(5,2);default:0"`
	ExpectedAvailability string            `gorm:"size:140"`
	PowerOutput          string            `gorm:"size:60"`
	WarrantyPeriod       string            `gorm:"size:60"`
	Specifications       map[string]string `gorm:"type:jsonb;serializer:json"`
	Images               []string          `gorm:"type:jsonb;serializer:json"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type PreOrderStatus string

const (
	PreOrderStatusPending        PreOrderStatus = "pending"
	PreOrderStatusDepositPaid    PreOrderStatus = "deposit_paid"
	PreOrderStatusFullyPaid      PreOrderStatus = "fully_paid"
	PreOrderStatusReadyForPickup PreOrderStatus = "ready_for_pickup"
	PreOrderStatusCompleted      PreOrderStatus = "completed"
	PreOrderStatusCancelled      PreOrderStatus = "cancelled"
)

type PreOrderPaymentStatus string

const (
	PreOrderPaymentPending     PreOrderPaymentStatus = "pending"
	PreOrderPaymentDepositPaid PreOrderPaymentStatus = "deposit_paid"
	PreOrderPaymentFullyPaid   PreOrderPaymentStatus = "fully_paid"
	PreOrderPaymentFailed      PreOrderPaymentStatus = "failed"
)

type PaymentType string

const (
	PaymentTypeDeposit PaymentType = "deposit"
	PaymentTypeFull    PaymentType = "full"
)

// Admin-driven fulfillment transitions. Payment milestones move status on
// their own rules (see MarkDepositPaid / MarkFullyPaid); completed and
// cancelled are terminal.
var preOrderTransitions = map[PreOrderStatus][]PreOrderStatus{
	PreOrderStatusPending:        {PreOrderStatusDepositPaid, PreOrderStatusCancelled},
	PreOrderStatusDepositPaid:    {PreOrderStatusReadyForPickup, PreOrderStatusCancelled},
	PreOrderStatusFullyPaid:      {PreOrderStatusReadyForPickup, PreOrderStatusCancelled},
	PreOrderStatusReadyForPickup: {PreOrderStatusCompleted, PreOrderStatusCancelled},
	PreOrderStatusCompleted:      {},
	PreOrderStatusCancelled:      {},
}

type CustomerPreOrder struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PreOrderNumber string    `gorm:"size:40;uniqueIndex"`
	PreOrderID     uuid.UUID `gorm:"type:uuid;index"`
	PreOrder       *PreOrder `gorm:"foreignKey:PreOrderID"`

	CustomerEmail string `gorm:"size:140;index"`
	CustomerPhone string `gorm:"size:50"`
	FirstName     string `gorm:"size:140"`
	LastName      string `gorm:"size:140"`

	Quantity        int     `gorm:"default:1"`
	UnitPrice       float64 `gorm:"type:decimal(12,2)"`
	DepositAmount   float64 `gorm:"type:decimal(12,2)"`
	RemainingAmount float64 `gorm:"type:decimal(12,2)"`
	TotalAmount     float64 `gorm:"type:decimal(12,2)"`
	Currency        string  `gorm:"size:3;default:NGN"`

	Status        PreOrderStatus        `gorm:"type:varchar(20);default:pending;index"`
	PaymentStatus PreOrderPaymentStatus `gorm:"type:varchar(20);default:pending;index"`

	FulfillmentMethod FulfillmentMethod `gorm:"type:varchar(10)"`
	ShippingAddress   string            `gorm:"type:text"`
	City              string            `gorm:"size:100"`
	State             string            `gorm:"size:100"`
	PickupLocation    string            `gorm:"size:255"`
	Notes             string            `gorm:"type:text"`

	PaymentMethod      string `gorm:"size:40"`
	PaystackReference  string `gorm:"size:140;uniqueIndex"`
	PaystackAccessCode string `gorm:"size:140"`
	PaystackResponse   []byte `gorm:"type:jsonb"`

	DepositPaidAt *time.Time
	FullyPaidAt   *time.Time
	ReadyAt       *time.Time
	CompletedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPreOrderNumber() string { return randomRef("PRE-", 8) }

// ComputeAmounts freezes the money obligations at reservation time.
// deposit + remaining always reconstructs total.
func (p *CustomerPreOrder) ComputeAmounts(unitPrice float64, quantity int, depositPct float64) {
	p.UnitPrice = unitPrice
	p.Quantity = quantity
	p.TotalAmount = unitPrice * float64(quantity)
	p.DepositAmount = p.TotalAmount * depositPct / 100
	p.RemainingAmount = p.TotalAmount - p.DepositAmount
}

func (p *CustomerPreOrder) IsDepositPaid() bool {
	return p.PaymentStatus == PreOrderPaymentDepositPaid || p.PaymentStatus == PreOrderPaymentFullyPaid
}

func (p *CustomerPreOrder) IsFullyPaid() bool {
	return p.PaymentStatus == PreOrderPaymentFullyPaid
}

// MarkDepositPaid records the deposit milestone. A failed earlier attempt
// does not block it: the gateway confirmed the charge, so the milestone
// applies. Re-invocation after the deposit landed reports ErrAlreadyPaid so
// webhook/verify races stay single-effect.
func (p *CustomerPreOrder) MarkDepositPaid(now time.Time) error {
	if p.IsDepositPaid() {
		return ErrAlreadyPaid
	}
	p.PaymentStatus = PreOrderPaymentDepositPaid
	p.Status = PreOrderStatusDepositPaid
	p.DepositPaidAt = &now
	return nil
}

// MarkFullyPaid records full payment. Paying everything up front advances
// status to fully_paid; settling a remaining balance after a deposit leaves
// the fulfillment status alone, only an admin action moves it forward. Like
// MarkDepositPaid, a failed earlier attempt does not block a confirmed retry.
func (p *CustomerPreOrder) MarkFullyPaid(now time.Time) error {
	switch p.PaymentStatus {
	case PreOrderPaymentPending, PreOrderPaymentFailed:
		p.Status = PreOrderStatusFullyPaid
	case PreOrderPaymentDepositPaid:
		// keep current fulfillment status (typically ready_for_pickup)
	default:
		return ErrAlreadyPaid
	}
	p.PaymentStatus = PreOrderPaymentFullyPaid
	p.FullyPaidAt = &now
	return nil
}

func (p *CustomerPreOrder) MarkPaymentFailed() {
	if p.PaymentStatus == PreOrderPaymentPending {
		p.PaymentStatus = PreOrderPaymentFailed
	}
}

func (p *CustomerPreOrder) TransitionStatus(to PreOrderStatus, now time.Time) error {
	for _, allowed := range preOrderTransitions[p.Status] {
		if allowed == to {
			p.Status = to
			switch to {
			case PreOrderStatusReadyForPickup:
				if p.ReadyAt == nil {
					p.ReadyAt = &now
				}
			case PreOrderStatusCompleted:
				if p.CompletedAt == nil {
					p.CompletedAt = &now
				}
			}
			return nil
		}
	}
	return NewInvalidTransition(string(p.Status), string(to))
}

// AmountDue reports what the customer still owes and the payment type the
// gateway session should be initialized with. A fully paid reservation owes
// nothing.
func (p *CustomerPreOrder) AmountDue() (float64, PaymentType, error) {
	if p.IsFullyPaid() {
		return 0, "", ErrAlreadyPaid
	}
	if p.IsDepositPaid() {
		return p.RemainingAmount, PaymentTypeFull, nil
	}
	return p.TotalAmount, PaymentTypeFull, nil
}

func (p *CustomerPreOrder) CanPayRemaining() bool {
	return p.Status == PreOrderStatusReadyForPickup && p.PaymentStatus == PreOrderPaymentDepositPaid
}

func (p *CustomerPreOrder) CustomerName() string { return p.FirstName + " " + p.LastName }

type PreOrderRepo interface {
	SaveCatalog(ctx context.Context, p *PreOrder) error
	FindCatalogByID(ctx context.Context, id uuid.UUID) (*PreOrder, error)
	ListCatalog(ctx context.Context, query string, page, pageSize int) ([]PreOrder, int64, error)

	Create(ctx context.Context, p *CustomerPreOrder) error
	Save(ctx context.Context, p *CustomerPreOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*CustomerPreOrder, error)
	FindByNumber(ctx context.Context, number string) (*CustomerPreOrder, error)
	FindByReference(ctx context.Context, reference string) (*CustomerPreOrder, error)
	ListByEmail(ctx context.Context, email string) ([]CustomerPreOrder, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]CustomerPreOrder, error)

	// ApplyPayment locks the reservation row keyed by gateway reference,
	// applies fn and persists in one transaction. The bool reports whether
	// fn transitioned the row.
	ApplyPayment(ctx context.Context, reference string, fn func(*CustomerPreOrder) error) (*CustomerPreOrder, bool, error)
}
