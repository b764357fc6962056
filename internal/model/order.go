package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	CustomerID    string          `json:"customer_id"`
	Items         []OrderItem     `json:"items"`
	Address       Address         `json:"address"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	Discount      decimal.Decimal `json:"discount"`
	Tip           decimal.Decimal `json:"tip"`
	Total         decimal.Decimal `json:"total"`
	PromoCode     string          `json:"promo_code,omitempty"`
	GiftWrap      bool            `json:"gift_wrap,omitempty"`
	Instructions  string          `json:"instructions,omitempty"`
	Status        OrderStatus     `json:"status"`
	History       []StatusChange  `json:"history,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderItem is a line item. Name, Category, Unit and UnitPrice are
// snapshots taken when the order was placed.
type OrderItem struct {
	ProductID  string          `json:"product_id"`
	SupplierID string          `json:"supplier_id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Unit       string          `json:"unit,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	Picked     bool            `json:"picked,omitempty"`
	Packed     bool            `json:"packed,omitempty"`
	Fragile    bool            `json:"fragile,omitempty"`
}

type Address struct {
	Ward     int       `json:"ward"`
	Area     string    `json:"area"`
	Street   string    `json:"street"`
	Landmark string    `json:"landmark,omitempty"`
	Location *GeoPoint `json:"location,omitempty"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentWallet PaymentMethod = "wallet"
	PaymentOnline PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentWallet, PaymentOnline:
		return true
	}
	return false
}

// StatusChange is one entry of an order's audit trail.
type StatusChange struct {
	From  OrderStatus `json:"from,omitempty"`
	To    OrderStatus `json:"to"`
	Actor string      `json:"actor,omitempty"`
	Note  string      `json:"note,omitempty"`
	At    time.Time   `json:"at"`
}

// NewOrderItem builds a line item with LineTotal = unitPrice × quantity.
func NewOrderItem(p Product, quantity int) OrderItem {
	return OrderItem{
		ProductID:  p.ID,
		SupplierID: p.SupplierID,
		Name:       p.Name,
		Category:   p.Category,
		Unit:       p.Unit,
		Quantity:   quantity,
		UnitPrice:  p.Price,
		LineTotal:  p.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// ItemsSubtotal recomputes the sum of unit price × quantity over all items.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// SupplierIDs returns the distinct suppliers owning a line item, in item order.
func (o *Order) SupplierIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, item := range o.Items {
		if item.SupplierID == "" || seen[item.SupplierID] {
			continue
		}
		seen[item.SupplierID] = true
		ids = append(ids, item.SupplierID)
	}
	return ids
}

func (o *Order) AllPicked() bool {
	for _, item := range o.Items {
		if !item.Picked {
			return false
		}
	}
	return len(o.Items) > 0
}

func (o *Order) AllPacked() bool {
	for _, item := range o.Items {
		if !item.Packed {
			return false
		}
	}
	return len(o.Items) > 0
}

// PickProgress reports how many items are flagged picked out of the total.
func (o *Order) PickProgress() (done, total int) {
	for _, item := range o.Items {
		if item.Picked {
			done++
		}
	}
	return done, len(o.Items)
}

func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}
