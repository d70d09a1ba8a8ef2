// Package dbtest opens throwaway in-memory sqlite databases for repository
// and service tests. The DDL here mirrors pkg/migrate/migrations, translated
// to sqlite types (TEXT ids, NUMERIC decimals, INTEGER booleans).
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a fresh in-memory database with the given tables created.
// Each call gets its own database, so tests never see each other's rows.
func Open(t *testing.T, tables ...string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range tables {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

const Users = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL,
  phone TEXT,
  role TEXT NOT NULL DEFAULT 'customer',
  wallet_balance NUMERIC NOT NULL DEFAULT 0,
  wallet_pin_hash TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`

const Products = `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  image_url TEXT,
  price NUMERIC NOT NULL,
  discount_rate NUMERIC NOT NULL DEFAULT 0,
  available_qty INTEGER NOT NULL DEFAULT 0,
  initial_qty INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`

const CartItems = `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, product_id)
);`

const Orders = `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  total NUMERIC NOT NULL,
  is_test INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`

const OrderItems = `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  base_price NUMERIC NOT NULL,
  discount_rate NUMERIC NOT NULL DEFAULT 0,
  unit_price_after_discount NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`

const WalletTransactions = `
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_id TEXT,
  type TEXT NOT NULL,
  method TEXT NOT NULL DEFAULT 'wallet',
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`

const NetsTransactions = `
CREATE TABLE IF NOT EXISTS nets_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_id TEXT UNIQUE,
  txn_id TEXT NOT NULL,
  retrieval_ref TEXT NOT NULL UNIQUE,
  qr_id TEXT,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  response_code TEXT,
  network_status INTEGER,
  txn_status INTEGER,
  error_message TEXT,
  raw_response TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

const PaypalTransactions = `
CREATE TABLE IF NOT EXISTS paypal_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_id TEXT UNIQUE,
  paypal_order_id TEXT NOT NULL UNIQUE,
  capture_id TEXT,
  payer_id TEXT,
  payer_email TEXT,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'SGD',
  status TEXT NOT NULL DEFAULT 'pending',
  refund_status TEXT,
  refund_id TEXT,
  raw_response TEXT,
  refund_response TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

const StripeTransactions = `
CREATE TABLE IF NOT EXISTS stripe_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_id TEXT UNIQUE,
  session_id TEXT NOT NULL UNIQUE,
  payment_intent_id TEXT,
  customer_email TEXT,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'sgd',
  status TEXT NOT NULL DEFAULT 'pending',
  refund_status TEXT,
  refund_id TEXT,
  raw_response TEXT,
  refund_response TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

const RefundRequests = `
CREATE TABLE IF NOT EXISTS refund_requests (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  method TEXT NOT NULL,
  reason TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  admin_message TEXT,
  resolved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
