package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Product struct {
	ID              string          `json:"id"`
	SupplierID      string          `json:"supplier_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Category        string          `json:"category"`
	SKU             string          `json:"sku,omitempty"`
	Price           decimal.Decimal `json:"price"`
	ComparePrice    decimal.Decimal `json:"compare_price"`
	Stock           int             `json:"stock"`
	Unit            string          `json:"unit"`
	MinOrder        int             `json:"min_order"`
	MaxOrder        int             `json:"max_order"`
	Active          bool            `json:"active"`
	Approval        ApprovalStatus  `json:"approval"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Visibility string

const (
	VisibilityHidden     Visibility = "hidden"
	VisibilityAvailable  Visibility = "available"
	VisibilityOutOfStock Visibility = "out_of_stock"
)

// Visibility classifies the product for the customer catalog: hidden unless
// active, approved and stock >= 0; visible-but-unorderable at zero stock.
func (p *Product) Visibility() Visibility {
	if !p.Active || p.Approval != ApprovalApproved || p.Stock < 0 {
		return VisibilityHidden
	}
	if p.Stock == 0 {
		return VisibilityOutOfStock
	}
	return VisibilityAvailable
}

func (p *Product) IsVisible() bool {
	return p.Visibility() != VisibilityHidden
}

func (p *Product) IsOrderable() bool {
	return p.Visibility() == VisibilityAvailable
}

// AcceptsQuantity checks qty against the product's min/max order bounds.
// MaxOrder of zero means unlimited.
func (p *Product) AcceptsQuantity(qty int) bool {
	minOrder := p.MinOrder
	if minOrder < 1 {
		minOrder = 1
	}
	if qty < minOrder {
		return false
	}
	return p.MaxOrder == 0 || qty <= p.MaxOrder
}

// HasDiscount reports whether a compare-at price above the selling price is set.
func (p *Product) HasDiscount() bool {
	return !p.ComparePrice.IsZero() && p.ComparePrice.GreaterThan(p.Price)
}
