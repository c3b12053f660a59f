package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chineduo/solarhub/internal/domain"
)

type PreOrderRepo struct {
	db *gorm.DB
}

func NewPreOrderRepo(db *gorm.DB) *PreOrderRepo { return &PreOrderRepo{db: db} }

func (r *PreOrderRepo) SaveCatalog(ctx context.Context, p *domain.PreOrder) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PreOrderRepo) FindCatalogByID(ctx context.Context, id uuid.UUID) (*domain.PreOrder, error) {
	var p domain.PreOrder
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PreOrderRepo) ListCatalog(ctx context.Context, query string, page, pageSize int) ([]domain.PreOrder, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.PreOrder{})
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("product_name ILIKE ? OR category ILIKE ?", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []domain.PreOrder
	err := q.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error
	return items, total, err
}

func (r *PreOrderRepo) Create(ctx context.Context, p *domain.CustomerPreOrder) error {
	return r.db.WithContext(ctx).Omit("PreOrder").Create(p).Error
}

func (r *PreOrderRepo) Save(ctx context.Context, p *domain.CustomerPreOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

func (r *PreOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.CustomerPreOrder, error) {
	var p domain.CustomerPreOrder
	if err := r.db.WithContext(ctx).Preload("PreOrder").First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PreOrderRepo) FindByNumber(ctx context.Context, number string) (*domain.CustomerPreOrder, error) {
	var p domain.CustomerPreOrder
	if err := r.db.WithContext(ctx).Preload("PreOrder").First(&p, "pre_order_number = ?", number).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PreOrderRepo) FindByReference(ctx context.Context, reference string) (*domain.CustomerPreOrder, error) {
	var p domain.CustomerPreOrder
	if err := r.db.WithContext(ctx).Preload("PreOrder").First(&p, "paystack_reference = ?", reference).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PreOrderRepo) ListByEmail(ctx context.Context, email string) ([]domain.CustomerPreOrder, error) {
	var items []domain.CustomerPreOrder
	err := r.db.WithContext(ctx).Preload("PreOrder").
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

func (r *PreOrderRepo) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.CustomerPreOrder, error) {
	q := r.db.WithContext(ctx).Model(&domain.CustomerPreOrder{})
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at < ?", to)
	}
	var items []domain.CustomerPreOrder
	err := q.Order("created_at DESC").Find(&items).Error
	return items, err
}

// ApplyPayment locks the reservation row for the check-and-transition so a
// webhook and a client verify landing together apply one milestone between
// them. fn returning ErrAlreadyPaid reports the loser's no-op.
func (r *PreOrderRepo) ApplyPayment(ctx context.Context, reference string, fn func(*domain.CustomerPreOrder) error) (*domain.CustomerPreOrder, bool, error) {
	var p domain.CustomerPreOrder
	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "paystack_reference = ?", reference).Error; err != nil {
			return translate(err)
		}
		if err := fn(&p); err != nil {
			if errors.Is(err, domain.ErrAlreadyPaid) {
				return nil
			}
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&p).Error; err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &p, transitioned, nil
}
