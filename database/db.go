package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(logger *zap.Logger) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "checkoutdb")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	createTableQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		total_amount DECIMAL(10, 2) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		payment_status VARCHAR(50) NOT NULL DEFAULT 'pending',
		payment_method VARCHAR(50) NOT NULL,
		shipping_carrier VARCHAR(100),
		shipping_service VARCHAR(100),
		shipping_cost DECIMAL(10, 2) NOT NULL DEFAULT 0,
		shipping_name VARCHAR(255),
		shipping_phone VARCHAR(50),
		shipping_postal_code VARCHAR(20),
		shipping_street VARCHAR(255),
		shipping_number VARCHAR(20),
		shipping_city VARCHAR(100),
		shipping_state VARCHAR(2),
		coupon_id INTEGER,
		discount_amount DECIMAL(10, 2) NOT NULL DEFAULT 0,
		tracking_code VARCHAR(100),
		gateway_payment_id VARCHAR(255),
		gateway_payment_link TEXT,
		notes TEXT,
		attempt_key UUID NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id INTEGER,
		quantity INTEGER NOT NULL,
		unit_price DECIMAL(10, 2) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS coupons (
		id SERIAL PRIMARY KEY,
		code VARCHAR(50) NOT NULL UNIQUE,
		discount_type VARCHAR(20) NOT NULL,
		discount_value DECIMAL(10, 2) NOT NULL,
		min_order_value DECIMAL(10, 2),
		max_discount DECIMAL(10, 2),
		max_uses INTEGER,
		current_uses INTEGER NOT NULL DEFAULT 0,
		valid_from TIMESTAMP,
		valid_until TIMESTAMP,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
