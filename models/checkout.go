package models

import "math"

type CheckoutStep string

const (
	StepShipping               CheckoutStep = "shipping"
	StepProcessing             CheckoutStep = "processing"
	StepAwaitingDirectTransfer CheckoutStep = "awaiting_direct_transfer"
	StepAwaitingGateway        CheckoutStep = "awaiting_gateway"
	StepConfirmation           CheckoutStep = "confirmation"
)

// CheckoutState is a tagged union over the checkout steps. Exactly one
// payload field is non-nil, matching Step; use the constructors below
// instead of building values by hand.
type CheckoutState struct {
	Step           CheckoutStep           `json:"step"`
	FieldErrors    map[string]string      `json:"field_errors,omitempty"`
	Error          string                 `json:"error,omitempty"`
	DirectTransfer *DirectTransferPayment `json:"direct_transfer,omitempty"`
	Gateway        *GatewayPayment        `json:"gateway,omitempty"`
	Confirmation   *Confirmation          `json:"confirmation,omitempty"`
	OrderID        int                    `json:"order_id,omitempty"`
}

// Confirmation is the terminal step payload.
type Confirmation struct {
	OrderID       int     `json:"order_id"`
	TotalAmount   float64 `json:"total_amount"`
	PaymentMethod string  `json:"payment_method"`
	PaymentLink   string  `json:"payment_link,omitempty"`
}

func ShippingState() CheckoutState {
	return CheckoutState{Step: StepShipping}
}

func ShippingStateWithErrors(fieldErrors map[string]string, msg string) CheckoutState {
	return CheckoutState{Step: StepShipping, FieldErrors: fieldErrors, Error: msg}
}

func ProcessingState() CheckoutState {
	return CheckoutState{Step: StepProcessing}
}

func AwaitingDirectTransferState(orderID int, payment *DirectTransferPayment) CheckoutState {
	return CheckoutState{Step: StepAwaitingDirectTransfer, OrderID: orderID, DirectTransfer: payment}
}

func AwaitingGatewayState(orderID int, payment *GatewayPayment) CheckoutState {
	return CheckoutState{Step: StepAwaitingGateway, OrderID: orderID, Gateway: payment}
}

func ConfirmationState(orderID int, total float64, method, paymentLink string) CheckoutState {
	return CheckoutState{
		Step:    StepConfirmation,
		OrderID: orderID,
		Confirmation: &Confirmation{
			OrderID:       orderID,
			TotalAmount:   total,
			PaymentMethod: method,
			PaymentLink:   paymentLink,
		},
	}
}

// CartLine is a client-held cart entry. ProductID arrives as a string
// from the client; lines whose id does not parse are still ordered,
// with a null product reference on the item row.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
}

type ShippingSelection struct {
	Carrier          string  `json:"carrier"`
	Service          string  `json:"service"`
	Price            float64 `json:"price"`
	DeliveryTimeDays int     `json:"delivery_time_days"`
}

// ShippingForm carries the customer-entered checkout form.
type ShippingForm struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	PostalCode string `json:"postal_code"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`

	// Required when the billing gateway rail is selected.
	TaxID string `json:"tax_id"`

	// Card fields, required only for the gateway card sub-method.
	CardNumber string `json:"card_number"`
	CardHolder string `json:"card_holder"`
	CardExpiry string `json:"card_expiry"`
	CardCVV    string `json:"card_cvv"`

	Installments int `json:"installments"`
}

func Subtotal(lines []CartLine) float64 {
	var subtotal float64
	for _, line := range lines {
		subtotal += line.UnitPrice * float64(line.Quantity)
	}
	return Round2(subtotal)
}

// Round2 rounds to two decimal places. All money math in this service
// goes through it so computed totals compare exactly.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
