// Package validation checks form input before anything is written to the
// store. Failures are reported per field so callers can show them inline.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects field failures. A nil or empty Errors is not an error.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e Errors) Is(target error) bool {
	return target == model.ErrValidation
}

// Field returns the message for field, if any.
func (e Errors) Field(name string) (string, bool) {
	for _, fe := range e {
		if fe.Field == name {
			return fe.Message, true
		}
	}
	return "", false
}

func (e *Errors) add(field, format string, args ...any) {
	*e = append(*e, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns e as an error, or nil when empty.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Units accepted for products.
var Units = []string{"kg", "g", "l", "ml", "pcs", "pack", "dozen", "bundle"}

var skuPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,31}$`)

type ProductInput struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	SKU          string          `json:"sku"`
	Price        decimal.Decimal `json:"price"`
	ComparePrice decimal.Decimal `json:"compare_price"`
	Stock        int             `json:"stock"`
	Unit         string          `json:"unit"`
	MinOrder     int             `json:"min_order"`
	MaxOrder     int             `json:"max_order"`
}

func Product(in ProductInput) error {
	var errs Errors

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		errs.add("name", "is required")
	case len(name) > 120:
		errs.add("name", "must be at most 120 characters")
	}
	if strings.TrimSpace(in.Category) == "" {
		errs.add("category", "is required")
	}
	if in.SKU != "" && !skuPattern.MatchString(in.SKU) {
		errs.add("sku", "must be 3-32 upper-case letters, digits or dashes")
	}
	if !in.Price.IsPositive() {
		errs.add("price", "must be greater than zero")
	}
	if !in.ComparePrice.IsZero() && !in.ComparePrice.GreaterThan(in.Price) {
		errs.add("compare_price", "must be greater than the selling price")
	}
	if in.Stock < 0 {
		errs.add("stock", "cannot be negative")
	}
	if !knownUnit(in.Unit) {
		errs.add("unit", "must be one of %s", strings.Join(Units, ", "))
	}
	if in.MinOrder < 0 {
		errs.add("min_order", "cannot be negative")
	}
	minOrder := in.MinOrder
	if minOrder == 0 {
		minOrder = 1
	}
	if in.MaxOrder < 0 {
		errs.add("max_order", "cannot be negative")
	} else if in.MaxOrder != 0 && in.MaxOrder < minOrder {
		errs.add("max_order", "must not be less than the minimum order quantity")
	}

	return errs.Err()
}

func knownUnit(u string) bool {
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

// Address validates a delivery address; wards are numbered 1..maxWard.
func Address(addr model.Address, maxWard int) error {
	var errs Errors
	if addr.Ward < 1 || (maxWard > 0 && addr.Ward > maxWard) {
		errs.add("address.ward", "must be between 1 and %d", maxWard)
	}
	if strings.TrimSpace(addr.Area) == "" {
		errs.add("address.area", "is required")
	}
	if strings.TrimSpace(addr.Street) == "" {
		errs.add("address.street", "is required")
	}
	if loc := addr.Location; loc != nil {
		if loc.Lat < -90 || loc.Lat > 90 {
			errs.add("address.location.lat", "must be within [-90, 90]")
		}
		if loc.Lon < -180 || loc.Lon > 180 {
			errs.add("address.location.lon", "must be within [-180, 180]")
		}
	}
	return errs.Err()
}

type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlacementInput struct {
	CustomerID    string              `json:"customer_id"`
	Items         []LineInput         `json:"items"`
	Address       model.Address       `json:"address"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	Tip           decimal.Decimal     `json:"tip"`
	PromoCode     string              `json:"promo_code"`
	GiftWrap      bool                `json:"gift_wrap"`
	Instructions  string              `json:"instructions"`
}

// Placement validates an order placement request.
func Placement(in PlacementInput, maxWard int) error {
	var errs Errors
	if strings.TrimSpace(in.CustomerID) == "" {
		errs.add("customer_id", "is required")
	}
	if len(in.Items) == 0 {
		errs.add("items", "at least one item is required")
	}
	seen := make(map[string]bool)
	for i, line := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if line.ProductID == "" {
			errs.add(field+".product_id", "is required")
		} else if seen[line.ProductID] {
			errs.add(field+".product_id", "duplicate product %s", line.ProductID)
		}
		seen[line.ProductID] = true
		if line.Quantity <= 0 {
			errs.add(field+".quantity", "must be greater than zero")
		}
	}
	if !in.PaymentMethod.Valid() {
		errs.add("payment_method", "unknown payment method %q", in.PaymentMethod)
	}
	if in.Tip.IsNegative() {
		errs.add("tip", "cannot be negative")
	}
	if len(in.Instructions) > 500 {
		errs.add("instructions", "must be at most 500 characters")
	}
	if err := Address(in.Address, maxWard); err != nil {
		errs = append(errs, err.(Errors)...)
	}
	return errs.Err()
}
