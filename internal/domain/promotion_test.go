package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPromotionIsValid(t *testing.T) {
	base := Promotion{
		PromoCode:     "SOLAR10",
		DiscountType:  DiscountPercentage,
		DiscountValue: 10,
		StartDate:     day(2025, 6, 1),
		EndDate:       day(2025, 6, 30),
		IsActive:      true,
	}

	t.Run("inside window", func(t *testing.T) {
		assert.True(t, base.IsValid(day(2025, 6, 15)))
	})
	t.Run("window is date-inclusive on both ends", func(t *testing.T) {
		assert.True(t, base.IsValid(time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)))
		assert.True(t, base.IsValid(time.Date(2025, 6, 1, 0, 30, 0, 0, time.UTC)))
	})
	t.Run("non-UTC boundaries compare by calendar date", func(t *testing.T) {
		lagos := time.FixedZone("WAT", 3600)
		p := base
		p.StartDate = time.Date(2025, 6, 1, 0, 0, 0, 0, lagos)
		p.EndDate = time.Date(2025, 6, 30, 0, 0, 0, 0, lagos)

		// EndDate's instant is 2025-06-29T23:00Z; the June 30 date still counts
		assert.True(t, p.IsValid(time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)))
		assert.True(t, p.IsValid(time.Date(2025, 6, 30, 23, 30, 0, 0, lagos)))
		assert.False(t, p.IsValid(time.Date(2025, 7, 1, 0, 30, 0, 0, lagos)))
	})
	t.Run("outside window", func(t *testing.T) {
		assert.False(t, base.IsValid(day(2025, 7, 1)))
		assert.False(t, base.IsValid(day(2025, 5, 31)))
	})
	t.Run("inactive", func(t *testing.T) {
		p := base
		p.IsActive = false
		assert.False(t, p.IsValid(day(2025, 6, 15)))
	})
	t.Run("usage budget", func(t *testing.T) {
		p := base
		p.UsageLimit = intPtr(5)
		p.UsedCount = 4
		assert.True(t, p.IsValid(day(2025, 6, 15)))
		p.UsedCount = 5
		assert.False(t, p.IsValid(day(2025, 6, 15)))
	})
	t.Run("nil limit is unlimited", func(t *testing.T) {
		p := base
		p.UsedCount = 1000000
		assert.True(t, p.IsValid(day(2025, 6, 15)))
	})
}

func TestPromotionDiscount(t *testing.T) {
	t.Run("percentage", func(t *testing.T) {
		p := Promotion{DiscountType: DiscountPercentage, DiscountValue: 10}
		assert.Equal(t, 5000.0, p.Discount(50000))
	})
	t.Run("fixed", func(t *testing.T) {
		p := Promotion{DiscountType: DiscountFixed, DiscountValue: 2000}
		assert.Equal(t, 2000.0, p.Discount(50000))
	})
	t.Run("fixed capped at order total", func(t *testing.T) {
		p := Promotion{DiscountType: DiscountFixed, DiscountValue: 2000}
		assert.Equal(t, 1500.0, p.Discount(1500))
	})
	t.Run("minimum order amount", func(t *testing.T) {
		p := Promotion{DiscountType: DiscountPercentage, DiscountValue: 10, MinimumOrderAmount: floatPtr(10000)}
		assert.False(t, p.CanApplyToAmount(9999))
		assert.True(t, p.CanApplyToAmount(10000))
		assert.Equal(t, 0.0, p.Discount(9999))
	})
}
