package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Promotion struct {
	ID                 uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Name               string       `gorm:"size:140"`
	PromoCode          string       `gorm:"size:60;uniqueIndex"`
	DiscountType       DiscountType `gorm:"type:varchar(12)"`
	DiscountValue      float64      `gorm:"type:decimal(10,2)"`
	StartDate          time.Time
	EndDate            time.Time
	UsageLimit         *int     `gorm:"type:int"`
	MinimumOrderAmount *float64 `gorm:"type:decimal(10,2)"`
	Description        string   `gorm:"type:text"`
	UsedCount          int      `gorm:"default:0"`
	IsActive           bool     `gorm:"default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// dateOnly reduces t to its calendar date in its own location, rebuilt in a
// fixed one so Before/After compare dates rather than absolute instants.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsValid is a pure function of the clock: active flag, date window and
// usage budget are re-evaluated on every check, never cached. The window is
// inclusive of both the start and end calendar dates.
func (p *Promotion) IsValid(now time.Time) bool {
	day := dateOnly(now)
	if !p.IsActive {
		return false
	}
	if day.Before(dateOnly(p.StartDate)) || day.After(dateOnly(p.EndDate)) {
		return false
	}
	return p.UsageLimit == nil || p.UsedCount < *p.UsageLimit
}

func (p *Promotion) CanApplyToAmount(amount float64) bool {
	return p.MinimumOrderAmount == nil || amount >= *p.MinimumOrderAmount
}

// Discount quotes the discount for an order total without consuming a use.
func (p *Promotion) Discount(orderTotal float64) float64 {
	if !p.CanApplyToAmount(orderTotal) {
		return 0
	}
	if p.DiscountType == DiscountPercentage {
		return orderTotal * p.DiscountValue / 100
	}
	if p.DiscountValue > orderTotal {
		return orderTotal
	}
	return p.DiscountValue
}

type PromotionRepo interface {
	Save(ctx context.Context, p *Promotion) error
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	// IncrementUsage consumes one use atomically; applying is a separate,
	// explicit action from validating.
	IncrementUsage(ctx context.Context, code string) error
}
