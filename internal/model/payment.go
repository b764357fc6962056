package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment records a wallet charge taken for an order.
type Payment struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     PaymentStatus   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Wallet is a customer's prepaid balance.
type Wallet struct {
	CustomerID string          `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Promotion is a promo code redeemable at placement.
type Promotion struct {
	Code        string          `json:"code" yaml:"code"`
	Percent     decimal.Decimal `json:"percent" yaml:"percent"`
	Flat        decimal.Decimal `json:"flat" yaml:"flat"`
	MinSubtotal decimal.Decimal `json:"min_subtotal" yaml:"min_subtotal"`
	MaxDiscount decimal.Decimal `json:"max_discount" yaml:"max_discount"`
}
