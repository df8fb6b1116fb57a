package models

import "time"

// Gateway card charge statuses, as reported by the billing gateway.
const (
	CardStatusApproved = "APPROVED"
	CardStatusPending  = "PENDING"
	CardStatusRejected = "REJECTED"
)

// Poll statuses that terminate the watcher successfully.
const (
	PollStatusConfirmed = "CONFIRMED"
	PollStatusReceived  = "RECEIVED"
	PollStatusPending   = "PENDING"
)

// DirectTransferPayment is the descriptor returned by the
// direct-transfer rail, scoped to a single order.
type DirectTransferPayment struct {
	ID            string    `json:"id"`
	TransferKey   string    `json:"transfer_key"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// TransferQR is the in-app QR descriptor for gateway transfer payments.
type TransferQR struct {
	EncodedImage string `json:"encoded_image"`
	Payload      string `json:"payload"`
	Expiration   string `json:"expiration"`
}

type GatewayPayment struct {
	ID         string      `json:"id"`
	InvoiceURL string      `json:"invoice_url"`
	VoucherURL string      `json:"voucher_url,omitempty"`
	TransferQR *TransferQR `json:"transfer_qr,omitempty"`
	Status     string      `json:"status"`
}

// CardChargeResult is the billing gateway's answer to a card charge.
type CardChargeResult struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"` // APPROVED, PENDING, REJECTED
	PaymentID string `json:"payment_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
