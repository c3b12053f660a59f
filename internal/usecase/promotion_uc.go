package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chineduo/solarhub/internal/domain"
)

type PromotionUC struct {
	Promos domain.PromotionRepo
	Clock  func() time.Time
}

func (uc *PromotionUC) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now()
}

// Quote is the result of validating a code against an order amount. Nothing
// is consumed; the counter moves only when a payment binds.
type Quote struct {
	PromoCode      string  `json:"promo_code"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalAmount    float64 `json:"final_amount"`
}

func (uc *PromotionUC) Validate(ctx context.Context, code string, orderAmount float64) (*Quote, error) {
	code = strings.TrimSpace(code)
	p, err := uc.Promos.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !p.IsValid(uc.now()) {
		return nil, &domain.ValidationError{Fields: map[string]string{"promo_code": "code is expired or exhausted"}}
	}
	if !p.CanApplyToAmount(orderAmount) {
		return nil, &domain.ValidationError{Fields: map[string]string{"promo_code": "order amount below the code minimum"}}
	}
	discount := p.Discount(orderAmount)
	return &Quote{
		PromoCode:      p.PromoCode,
		DiscountAmount: discount,
		FinalAmount:    orderAmount - discount,
	}, nil
}

func (uc *PromotionUC) Save(ctx context.Context, p *domain.Promotion) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	fields := map[string]string{}
	p.PromoCode = strings.ToUpper(strings.TrimSpace(p.PromoCode))
	if p.PromoCode == "" {
		fields["promo_code"] = "required"
	}
	if p.DiscountType != domain.DiscountPercentage && p.DiscountType != domain.DiscountFixed {
		fields["discount_type"] = "must be percentage or fixed"
	}
	if p.DiscountValue <= 0 {
		fields["discount_value"] = "must be positive"
	}
	if p.DiscountType == domain.DiscountPercentage && p.DiscountValue > 100 {
		fields["discount_value"] = "percentage cannot exceed 100"
	}
	if p.EndDate.Before(p.StartDate) {
		fields["end_date"] = "must not precede start_date"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return uc.Promos.Save(ctx, p)
}

func (uc *PromotionUC) List(ctx context.Context) ([]domain.Promotion, error) {
	return uc.Promos.List(ctx)
}
