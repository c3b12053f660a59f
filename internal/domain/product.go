package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Slug           string            `gorm:"uniqueIndex;size:140"`
	Name           string            `gorm:"size:180"`
	Price          float64           `gorm:"type:decimal(12,2)"`
	Category       string            `gorm:"size:100"`
	ShortDesc      string            `gorm:"type:text"`
	PowerOutput    string            `gorm:"size:60"`
	WarrantyPeriod string            `gorm:"size:60"`
	Specifications map[string]string `gorm:"type:jsonb;serializer:json"`
	Images         []string          `gorm:"type:jsonb;serializer:json"`
	Stock          int               `gorm:"type:int;default:0"`
	Active         bool              `gorm:"default:true;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ProductFilter struct {
	Category string
	Query    string
	Active   *bool
	Page     int
	PageSize int
}

type ProductRepo interface {
	Save(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	// SetStock overwrites the stock level, AdjustStock applies a signed delta.
	SetStock(ctx context.Context, id uuid.UUID, stock int) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}
