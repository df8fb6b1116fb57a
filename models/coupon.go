package models

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a cached read copy used for preview math only. The
// reservation service owns the authoritative row and its usage counter;
// CurrentUses here may be stale by the time the user submits.
type Coupon struct {
	ID            int          `json:"id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue float64      `json:"discount_value"`
	MinOrderValue *float64     `json:"min_order_value,omitempty"`
	MaxDiscount   *float64     `json:"max_discount,omitempty"`
	MaxUses       *int         `json:"max_uses,omitempty"`
	CurrentUses   int          `json:"current_uses"`
	ValidFrom     *time.Time   `json:"valid_from,omitempty"`
	ValidUntil    *time.Time   `json:"valid_until,omitempty"`
	IsActive      bool         `json:"is_active"`
}

// DiscountFor computes the discount this coupon grants on the given
// subtotal, honoring the max-discount cap. Returns 0 when the subtotal
// is below the coupon's minimum order value.
func (c *Coupon) DiscountFor(subtotal float64) float64 {
	if c.MinOrderValue != nil && subtotal < *c.MinOrderValue {
		return 0
	}

	var discount float64
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal * c.DiscountValue / 100
	case DiscountFixed:
		discount = c.DiscountValue
	}

	if c.MaxDiscount != nil && discount > *c.MaxDiscount {
		discount = *c.MaxDiscount
	}
	if discount > subtotal {
		discount = subtotal
	}
	return Round2(discount)
}
