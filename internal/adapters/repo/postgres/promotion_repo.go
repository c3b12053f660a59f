package postgres

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/chineduo/solarhub/internal/domain"
)

type PromotionRepo struct {
	db *gorm.DB
}

func NewPromotionRepo(db *gorm.DB) *PromotionRepo { return &PromotionRepo{db: db} }

func (r *PromotionRepo) Save(ctx context.Context, p *domain.Promotion) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PromotionRepo) FindByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	var p domain.Promotion
	if err := r.db.WithContext(ctx).First(&p, "promo_code = ?", strings.ToUpper(code)).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PromotionRepo) List(ctx context.Context) ([]domain.Promotion, error) {
	var promos []domain.Promotion
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&promos).Error
	return promos, err
}

// IncrementUsage moves the counter in one statement so concurrent
// confirmations never read-modify-write each other's count away.
func (r *PromotionRepo) IncrementUsage(ctx context.Context, code string) error {
	res := r.db.WithContext(ctx).Model(&domain.Promotion{}).
		Where("promo_code = ?", strings.ToUpper(code)).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
