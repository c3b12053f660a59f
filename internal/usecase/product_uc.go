package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chineduo/solarhub/internal/domain"
)

type ProductUC struct {
	Products domain.ProductRepo
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func (uc *ProductUC) Save(ctx context.Context, p *domain.Product) error {
	fields := map[string]string{}
	if strings.TrimSpace(p.Name) == "" {
		fields["name"] = "required"
	}
	if p.Price <= 0 {
		fields["price"] = "must be positive"
	}
	if p.Stock < 0 {
		fields["stock"] = "cannot be negative"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Slug == "" {
		p.Slug = slugify(p.Name)
	}
	if err := uc.Products.Save(ctx, p); err != nil {
		return err
	}
	log.Info().Str("slug", p.Slug).Int("stock", p.Stock).Msg("product saved")
	return nil
}

func (uc *ProductUC) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return uc.Products.FindByID(ctx, id)
}

func (uc *ProductUC) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return uc.Products.FindBySlug(ctx, slug)
}

func (uc *ProductUC) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
	return uc.Products.List(ctx, f)
}

// SetStock overwrites the shelf count; AdjustStock applies a signed delta
// for received shipments or damaged units. The delta path is atomic at the
// repository so concurrent adjustments never lose writes.
func (uc *ProductUC) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		return &domain.ValidationError{Fields: map[string]string{"stock": "cannot be negative"}}
	}
	return uc.Products.SetStock(ctx, id, stock)
}

func (uc *ProductUC) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	return uc.Products.AdjustStock(ctx, id, delta)
}
