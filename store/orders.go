package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"checkout-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderStore owns the orders and order_items tables. Only the
// operations the checkout saga needs exist here; fulfillment updates
// orders elsewhere.
type OrderStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderStore(db *sql.DB, logger *zap.Logger) *OrderStore {
	return &OrderStore{db: db, logger: logger}
}

// CreateOrder inserts the order row. The insert is idempotent on the
// attempt key: a resubmission with the same key returns the existing
// row (reported via the second return value) instead of a duplicate.
func (s *OrderStore) CreateOrder(ctx context.Context, order *models.Order) (bool, error) {
	ctx, span := otel.Tracer("checkout-svc").Start(ctx, "CreateOrder")
	defer span.End()

	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO orders (user_id, total_amount, status, payment_status, payment_method,
			shipping_carrier, shipping_service, shipping_cost, shipping_name, shipping_phone,
			shipping_postal_code, shipping_street, shipping_number, shipping_city, shipping_state,
			coupon_id, discount_amount, attempt_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (attempt_key) DO NOTHING
		RETURNING id, created_at, updated_at`,
		order.UserID, order.TotalAmount, order.Status, order.PaymentStatus, order.PaymentMethod,
		order.ShippingCarrier, order.ShippingService, order.ShippingCost, order.ShippingName,
		order.ShippingPhone, order.ShippingPostalCode, order.ShippingStreet, order.ShippingNumber,
		order.ShippingCity, order.ShippingState, order.CouponID, order.DiscountAmount, order.AttemptKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict on attempt_key: a previous submission already
		// created this order.
		err = s.db.QueryRowContext(ctx,
			"SELECT id, total_amount, created_at, updated_at FROM orders WHERE attempt_key = $1",
			order.AttemptKey,
		).Scan(&order.ID, &order.TotalAmount, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return false, fmt.Errorf("failed to load existing order for attempt key: %w", err)
		}
		span.SetAttributes(attribute.Int("order.id", order.ID), attribute.Bool("order.duplicate", true))
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create order: %w", err)
	}

	span.SetAttributes(attribute.Int("order.id", order.ID))
	return false, nil
}

// CreateItems inserts one item row per cart line. Lines whose product
// reference does not parse get a null product_id rather than failing
// the batch.
func (s *OrderStore) CreateItems(ctx context.Context, orderID int, lines []models.CartLine) error {
	ctx, span := otel.Tracer("checkout-svc").Start(ctx, "CreateOrderItems")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", orderID), attribute.Int("items.count", len(lines)))

	for _, line := range lines {
		var productID *int
		if id, err := strconv.Atoi(line.ProductID); err == nil {
			productID = &id
		} else {
			s.logger.Warn("Malformed product reference on cart line, inserting item without it",
				zap.String("product_id", line.ProductID),
				zap.Int("order_id", orderID),
			)
		}

		_, err := s.db.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)",
			orderID, productID, line.Quantity, line.UnitPrice,
		)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

// DeleteOrder removes the order row and, via ON DELETE CASCADE, any
// items already written for it. This is the saga's compensation.
func (s *OrderStore) DeleteOrder(ctx context.Context, orderID int) error {
	ctx, span := otel.Tracer("checkout-svc").Start(ctx, "DeleteOrder")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", orderID))

	if _, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID int) (*models.Order, error) {
	var order models.Order
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, total_amount, status, payment_status, payment_method,
			shipping_cost, coupon_id, discount_amount, created_at, updated_at
		FROM orders WHERE id = $1`,
		orderID,
	).Scan(&order.ID, &order.UserID, &order.TotalAmount, &order.Status, &order.PaymentStatus,
		&order.PaymentMethod, &order.ShippingCost, &order.CouponID, &order.DiscountAmount,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &order, nil
}
