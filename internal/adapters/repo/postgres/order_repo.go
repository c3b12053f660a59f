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

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

type OrderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *OrderRepo) Save(ctx context.Context, o *domain.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(o).Error
}

func (r *OrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *OrderRepo) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, "order_number = ?", number).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *OrderRepo) FindByReference(ctx context.Context, reference string) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, "paystack_reference = ?", reference).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *OrderRepo) Search(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Order{})
	if f.Query != "" {
		like := "%" + f.Query + "%"
		q = q.Where("order_number ILIKE ? OR customer_email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?", like, like, like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.DateFrom != nil {
		q = q.Where("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("created_at < ?", *f.DateTo)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []domain.Order
	err := q.Preload("Items").
		Order("created_at DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&orders).Error
	return orders, total, err
}

func (r *OrderRepo) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	q := r.db.WithContext(ctx).Model(&domain.Order{})
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at < ?", to)
	}
	var orders []domain.Order
	err := q.Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// ConfirmPayment serializes concurrent confirmations for the same reference
// behind a row lock, then applies fn and the stock decrements in the same
// transaction. fn returning ErrAlreadyPaid means a prior confirmation won;
// the row is returned unchanged with transitioned=false.
func (r *OrderRepo) ConfirmPayment(ctx context.Context, reference string, fn func(*domain.Order) error) (*domain.Order, bool, error) {
	var o domain.Order
	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&o, "paystack_reference = ?", reference).Error; err != nil {
			return translate(err)
		}
		if err := tx.Find(&o.Items, "order_id = ?", o.ID).Error; err != nil {
			return err
		}
		if err := fn(&o); err != nil {
			if errors.Is(err, domain.ErrAlreadyPaid) {
				return nil
			}
			return err
		}
		if err := decrementStock(tx, o.Items); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&o).Error; err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &o, transitioned, nil
}

// CreatePaid materializes a session-first order: row, items and stock
// decrement commit together or not at all.
func (r *OrderRepo) CreatePaid(ctx context.Context, o *domain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		return decrementStock(tx, o.Items)
	})
}

// decrementStock takes each line's quantity off the shelf with a
// conditional update; zero rows affected means someone else got there first
// and the whole transaction rolls back.
func decrementStock(tx *gorm.DB, items []domain.OrderItem) error {
	for _, it := range items {
		res := tx.Model(&domain.Product{}).
			Where("id = ? AND stock >= ?", it.ProductID, it.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var available int
			tx.Model(&domain.Product{}).Where("id = ?", it.ProductID).Pluck("stock", &available)
			return domain.NewInsufficientStock(it.ProductName, it.Quantity, available)
		}
	}
	return nil
}
