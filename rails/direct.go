package rails

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"checkout-svc/circuitbreaker"
	"checkout-svc/models"

	"go.uber.org/zap"
)

var ErrRailRefused = errors.New("payment rail refused the request")

// DirectClient talks to the direct-transfer payment generator.
type DirectClient struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func InitDirectClient(logger *zap.Logger) *DirectClient {
	baseURL := getEnv("DIRECT_RAIL_URL", "http://localhost:8091")

	return &DirectClient{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		circuitBreaker: circuitbreaker.NewCircuitBreaker("direct-transfer", 5, 30*time.Second),
		logger:         logger,
	}
}

type DirectPaymentRequest struct {
	OrderID       int     `json:"order_id"`
	Amount        float64 `json:"amount"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	CustomerPhone string  `json:"customer_phone"`
}

type directPaymentResponse struct {
	Success bool                          `json:"success"`
	Payment *models.DirectTransferPayment `json:"payment"`
	Error   string                        `json:"error"`
}

// GeneratePayment asks the rail for a one-time transfer key tied to the
// order. A success:false body or a non-2xx status both count as
// initiation failure.
func (c *DirectClient) GeneratePayment(ctx context.Context, req DirectPaymentRequest) (*models.DirectTransferPayment, error) {
	var payment *models.DirectTransferPayment

	err := c.circuitBreaker.Execute(ctx, func() error {
		body, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal direct payment request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("direct-transfer rail unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("direct-transfer rail returned status %d: %w", resp.StatusCode, ErrRailRefused)
		}

		var out directPaymentResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("failed to decode direct-transfer response: %w", err)
		}
		if !out.Success || out.Payment == nil {
			c.logger.Warn("Direct-transfer rail refused payment",
				zap.Int("order_id", req.OrderID),
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
