package models

import "testing"

func ptr[T any](v T) *T { return &v }

func TestCoupon_DiscountFor_PercentageWithCap(t *testing.T) {
	coupon := Coupon{
		DiscountType:  DiscountPercentage,
		DiscountValue: 10,
		MaxDiscount:   ptr(20.0),
	}

	if got := coupon.DiscountFor(100); got != 10 {
		t.Errorf("Expected discount 10, got %v", got)
	}

	// Cap kicks in once 10% exceeds the max discount.
	if got := coupon.DiscountFor(500); got != 20 {
		t.Errorf("Expected capped discount 20, got %v", got)
	}
}

func TestCoupon_DiscountFor_Fixed(t *testing.T) {
	coupon := Coupon{DiscountType: DiscountFixed, DiscountValue: 15}

	if got := coupon.DiscountFor(100); got != 15 {
		t.Errorf("Expected discount 15, got %v", got)
	}

	// Fixed discount never exceeds the subtotal.
	if got := coupon.DiscountFor(10); got != 10 {
		t.Errorf("Expected discount clamped to 10, got %v", got)
	}
}

func TestCoupon_DiscountFor_BelowMinOrderValue(t *testing.T) {
	coupon := Coupon{
		DiscountType:  DiscountPercentage,
		DiscountValue: 10,
		MinOrderValue: ptr(50.0),
	}

	if got := coupon.DiscountFor(40); got != 0 {
		t.Errorf("Expected no discount below minimum order value, got %v", got)
	}
}

func TestSubtotalAndTotal(t *testing.T) {
	lines := []CartLine{
		{ProductID: "1", UnitPrice: 30, Quantity: 2},
		{ProductID: "2", UnitPrice: 40, Quantity: 1},
	}

	subtotal := Subtotal(lines)
	if subtotal != 100 {
		t.Fatalf("Expected subtotal 100, got %v", subtotal)
	}

	coupon := Coupon{DiscountType: DiscountPercentage, DiscountValue: 10, MaxDiscount: ptr(20.0)}
	discount := coupon.DiscountFor(subtotal)
	total := Round2(subtotal - discount + 15.90)

	if total != 105.90 {
		t.Errorf("Expected total 105.90, got %v", total)
	}
}
