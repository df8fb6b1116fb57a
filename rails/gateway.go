package rails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"checkout-svc/circuitbreaker"
	"checkout-svc/models"

	"go.uber.org/zap"
)

// GatewayClient talks to the billing gateway: payment initiation for
// the transfer and voucher sub-types, card charges, and the
// status-query endpoint the polling watcher uses.
type GatewayClient struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func InitGatewayClient(logger *zap.Logger) *GatewayClient {
	return &GatewayClient{
		baseURL:        getEnv("GATEWAY_RAIL_URL", "http://localhost:8092"),
		apiKey:         getEnv("GATEWAY_API_KEY", ""),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		circuitBreaker: circuitbreaker.NewCircuitBreaker("billing-gateway", 5, 30*time.Second),
		logger:         logger,
	}
}

type GatewayPaymentRequest struct {
	OrderID       int     `json:"order_id"`
	Amount        float64 `json:"amount"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	CustomerPhone string  `json:"customer_phone"`
	TaxID         string  `json:"tax_id"`
	BillingType   string  `json:"billing_type"` // transfer, voucher, card
}

type gatewayPaymentResponse struct {
	Success bool                   `json:"success"`
	Payment *models.GatewayPayment `json:"payment"`
	Error   string                 `json:"error"`
}

type CardChargeRequest struct {
	OrderID       int     `json:"order_id"`
	Amount        float64 `json:"amount"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	CustomerPhone string  `json:"customer_phone"`
	TaxID         string  `json:"tax_id"`
	PostalCode    string  `json:"postal_code"`
	Street        string  `json:"street"`
	Number        string  `json:"number"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	CardNumber    string  `json:"card_number"`
	CardHolder    string  `json:"card_holder"`
	CardExpiry    string  `json:"card_expiry"`
	CardCVV       string  `json:"card_cvv"`
	Installments  int     `json:"installments"`
}

// CreatePayment initiates a transfer or voucher payment.
func (c *GatewayClient) CreatePayment(ctx context.Context, req GatewayPaymentRequest) (*models.GatewayPayment, error) {
	var payment *models.GatewayPayment

	err := c.circuitBreaker.Execute(ctx, func() error {
		var out gatewayPaymentResponse
		if err := c.post(ctx, "/payments", req, &out); err != nil {
			return err
		}
		if !out.Success || out.Payment == nil {
			c.logger.Warn("Gateway refused payment initiation",
				zap.Int("order_id", req.OrderID),
				zap.String("billing_type", req.BillingType),
				zap.String("error", out.Error),
			)
			return ErrRailRefused
		}
		payment = out.Payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	return payment, nil
}

// ChargeCard submits a tokenless card charge. The caller interprets the
// returned status; only transport and decode problems are errors here.
func (c *GatewayClient) ChargeCard(ctx context.Context, req CardChargeRequest) (*models.CardChargeResult, error) {
	var result models.CardChargeResult

	err := c.circuitBreaker.Execute(ctx, func() error {
		return c.post(ctx, "/payments/card", req, &result)
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// PaymentStatus queries the gateway for the current status of a
// payment. Bypasses the circuit breaker: the polling watcher has its
// own attempt ceiling.
func (c *GatewayClient) PaymentStatus(ctx context.Context, paymentID string) (string, error) {
	endpoint := fmt.Sprintf("%s/payments/status?id=%s", c.baseURL, url.QueryEscape(paymentID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gateway status query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway status query returned status %d", resp.StatusCode)
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode status response: %w", err)
	}
	return out.Status, nil
}

func (c *GatewayClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("billing gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("billing gateway returned status %d: %w", resp.StatusCode, ErrRailRefused)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

func (c *GatewayClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
