package service

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/validation"
)

var hundred = decimal.NewFromInt(100)

// PromoService redeems promo codes. Codes are case-insensitive and can be
// replaced wholesale while serving.
type PromoService struct {
	mu     sync.RWMutex
	promos map[string]model.Promotion
}

func NewPromoService(promos []model.Promotion) *PromoService {
	s := &PromoService{}
	s.Load(promos)
	return s
}

func (s *PromoService) Load(promos []model.Promotion) {
	m := make(map[string]model.Promotion, len(promos))
	for _, p := range promos {
		m[strings.ToUpper(p.Code)] = p
	}
	s.mu.Lock()
	s.promos = m
	s.mu.Unlock()
}

func (s *PromoService) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0, len(s.promos))
	for code := range s.promos {
		codes = append(codes, code)
	}
	return codes
}

// ApplyDiscount returns the discount code grants on subtotal. An empty code
// grants nothing.
func (s *PromoService) ApplyDiscount(_ context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, nil
	}

	s.mu.RLock()
	promo, exists := s.promos[strings.ToUpper(code)]
	s.mu.RUnlock()
	if !exists {
		return decimal.Zero, validation.Errors{{Field: "promo_code", Message: "unknown promo code"}}
	}
	if subtotal.LessThan(promo.MinSubtotal) {
		return decimal.Zero, validation.Errors{{
			Field:   "promo_code",
			Message: "requires a subtotal of at least " + promo.MinSubtotal.StringFixed(2),
		}}
	}

	amount := subtotal.Mul(promo.Percent).Div(hundred).Add(promo.Flat).Round(2)
	if promo.MaxDiscount.IsPositive() && amount.GreaterThan(promo.MaxDiscount) {
		amount = promo.MaxDiscount
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return amount, nil
}
