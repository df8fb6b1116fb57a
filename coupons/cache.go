package coupons

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"checkout-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrCouponNotFound = errors.New("coupon not found")

const cacheTTL = 5 * time.Minute

func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// Lookup serves read-through coupon lookups by code for checkout
// preview math. The copy it returns may be stale; only Reserve decides
// whether the coupon is actually still usable.
type Lookup struct {
	db     *sql.DB
	rdb    *redis.Client
	logger *zap.Logger
}

func NewLookup(db *sql.DB, rdb *redis.Client, logger *zap.Logger) *Lookup {
	return &Lookup{db: db, rdb: rdb, logger: logger}
}

func (l *Lookup) ByCode(ctx context.Context, code string) (*models.Coupon, error) {
	key := fmt.Sprintf("coupon:%s", code)

	if l.rdb != nil {
		if data, err := l.rdb.Get(ctx, key).Bytes(); err == nil {
			var coupon models.Coupon
			if err := json.Unmarshal(data, &coupon); err == nil {
				return &coupon, nil
			}
		}
	}

	var coupon models.Coupon
	err := l.db.QueryRowContext(ctx,
		`SELECT id, code, discount_type, discount_value, min_order_value, max_discount,
			max_uses, current_uses, valid_from, valid_until, is_active
		FROM coupons WHERE code = $1`,
		code,
	).Scan(&coupon.ID, &coupon.Code, &coupon.DiscountType, &coupon.DiscountValue,
		&coupon.MinOrderValue, &coupon.MaxDiscount, &coupon.MaxUses, &coupon.CurrentUses,
		&coupon.ValidFrom, &coupon.ValidUntil, &coupon.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}

	if l.rdb != nil {
		data, err := json.Marshal(&coupon)
		if err == nil {
			if err := l.rdb.Set(ctx, key, data, cacheTTL).Err(); err != nil {
				l.logger.Warn("Failed to cache coupon", zap.String("code", code), zap.Error(err))
			}
		}
	}

	return &coupon, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
