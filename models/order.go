package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

const (
	PaymentMethodDirectTransfer = "direct_transfer"
	PaymentMethodGateway        = "gateway"
)

// Gateway billing sub-types.
const (
	BillingTypeTransfer = "transfer"
	BillingTypeVoucher  = "voucher"
	BillingTypeCard     = "card"
)

type Order struct {
	ID                 int           `json:"id"`
	UserID             int           `json:"user_id"`
	TotalAmount        float64       `json:"total_amount"`
	Status             OrderStatus   `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	PaymentMethod      string        `json:"payment_method"`
	ShippingCarrier    string        `json:"shipping_carrier"`
	ShippingService    string        `json:"shipping_service"`
	ShippingCost       float64       `json:"shipping_cost"`
	ShippingName       string        `json:"shipping_name"`
	ShippingPhone      string        `json:"shipping_phone"`
	ShippingPostalCode string        `json:"shipping_postal_code"`
	ShippingStreet     string        `json:"shipping_street"`
	ShippingNumber     string        `json:"shipping_number"`
	ShippingCity       string        `json:"shipping_city"`
	ShippingState      string        `json:"shipping_state"`
	CouponID           *int          `json:"coupon_id,omitempty"`
	DiscountAmount     float64       `json:"discount_amount"`
	TrackingCode       string        `json:"tracking_code,omitempty"`
	GatewayPaymentID   string        `json:"gateway_payment_id,omitempty"`
	GatewayPaymentLink string        `json:"gateway_payment_link,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	AttemptKey         string        `json:"attempt_key"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// OrderItem snapshots one cart line at purchase time. ProductID is nil
// when the cart line carried a malformed product reference.
type OrderItem struct {
	ID        int       `json:"id"`
	OrderID   int       `json:"order_id"`
	ProductID *int      `json:"product_id,omitempty"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderEvent struct {
	OrderID       int     `json:"order_id"`
	UserID        int     `json:"user_id"`
	TotalAmount   float64 `json:"total_amount"`
	PaymentMethod string  `json:"payment_method"`
	EventType     string  `json:"event_type"` // order_created, order_compensated, payment_initiated, payment_confirmed
}

// OperatorNotification is the fire-and-forget side channel sent after a
// direct-transfer payment is generated.
type OperatorNotification struct {
	OrderID      int     `json:"order_id"`
	Amount       float64 `json:"amount"`
	CustomerName string  `json:"customer_name"`
	Phone        string  `json:"phone"`
	City         string  `json:"city"`
}
