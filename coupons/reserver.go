package coupons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Reservation is the reservation service's verdict. Message is surfaced
// verbatim to the user on refusal.
type Reservation struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Reserver atomically validates a coupon and increments its usage
// counter. It is the single authority on whether a coupon is still
// usable; callers must never simulate the counter locally.
type Reserver struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewReserver(db *sql.DB, logger *zap.Logger) *Reserver {
	return &Reserver{db: db, logger: logger}
}

// Reserve performs the atomic check-and-increment. Concurrent callers
// race only inside the database: the conditional UPDATE either claims a
// use or matches no row, so current_uses never exceeds max_uses.
func (r *Reserver) Reserve(ctx context.Context, couponID int) (Reservation, error) {
	ctx, span := otel.Tracer("checkout-svc").Start(ctx, "ReserveCoupon")
	defer span.End()
	span.SetAttributes(attribute.Int("coupon.id", couponID))

	res, err := r.db.ExecContext(ctx,
		`UPDATE coupons SET current_uses = current_uses + 1
		WHERE id = $1
			AND is_active
			AND (valid_from IS NULL OR valid_from <= NOW())
			AND (valid_until IS NULL OR valid_until >= NOW())
			AND (max_uses IS NULL OR current_uses < max_uses)`,
		couponID,
	)
	if err != nil {
		span.RecordError(err)
		return Reservation{}, fmt.Errorf("failed to reserve coupon: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to read reservation result: %w", err)
	}

	if affected == 0 {
		// Distinguish "never existed" from "no longer usable" for the
		// user-facing message.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM coupons WHERE id = $1)", couponID,
		).Scan(&exists); err != nil && !errors.Is(err, sql.ErrNoRows) {
			span.RecordError(err)
			return Reservation{}, fmt.Errorf("failed to check coupon: %w", err)
		}

		msg := "Cupom esgotado ou expirado"
		if !exists {
			msg = "Cupom não encontrado"
		}
		r.logger.Info("Coupon reservation refused", zap.Int("coupon_id", couponID), zap.String("reason", msg))
		span.SetAttributes(attribute.Bool("coupon.reserved", false))
		return Reservation{Success: false, Message: msg}, nil
	}

	span.SetAttributes(attribute.Bool("coupon.reserved", true))
	return Reservation{Success: true, Message: "Cupom aplicado"}, nil
}

// Release decrements the usage counter. It is the compensation for
// Reserve: the saga calls it when a step after the reservation fails,
// so an abandoned order does not burn a limited-use coupon.
func (r *Reserver) Release(ctx context.Context, couponID int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE coupons SET current_uses = GREATEST(current_uses - 1, 0) WHERE id = $1",
		couponID,
	)
	if err != nil {
		return fmt.Errorf("failed to release coupon: %w", err)
	}
	return nil
}
