package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/validation"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPromos() []model.Promotion {
	return []model.Promotion{
		{Code: "DASHAIN10", Percent: d("10"), MaxDiscount: d("150")},
		{Code: "FLAT50", Flat: d("50"), MinSubtotal: d("300")},
		{Code: "HUGE", Flat: d("5000")},
	}
}

func TestPromoService_ApplyDiscount(t *testing.T) {
	s := NewPromoService(testPromos())
	ctx := context.Background()

	tests := []struct {
		name     string
		code     string
		subtotal string
		want     string
	}{
		{"no code", "", "500", "0"},
		{"percent", "DASHAIN10", "500", "50"},
		{"case insensitive", "dashain10", "500", "50"},
		{"percent capped", "DASHAIN10", "2000", "150"},
		{"flat", "FLAT50", "300", "50"},
		{"capped at subtotal", "HUGE", "120", "120"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ApplyDiscount(ctx, tt.code, d(tt.subtotal))
			require.NoError(t, err)
			assert.True(t, d(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestPromoService_Rejections(t *testing.T) {
	s := NewPromoService(testPromos())
	ctx := context.Background()

	_, err := s.ApplyDiscount(ctx, "NOPE", d("100"))
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("Expected validation error, got: %v", err)
	}
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	msg, ok := verrs.Field("promo_code")
	require.True(t, ok)
	assert.Equal(t, "unknown promo code", msg)

	_, err = s.ApplyDiscount(ctx, "FLAT50", d("299.99"))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPromoService_Load(t *testing.T) {
	s := NewPromoService(testPromos())
	assert.ElementsMatch(t, []string{"DASHAIN10", "FLAT50", "HUGE"}, s.Codes())

	s.Load([]model.Promotion{{Code: "tihar", Percent: d("5")}})
	assert.Equal(t, []string{"TIHAR"}, s.Codes())

	_, err := s.ApplyDiscount(context.Background(), "DASHAIN10", d("500"))
	assert.Error(t, err)
}
