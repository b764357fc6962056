package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProduct_Visibility(t *testing.T) {
	base := Product{Active: true, Approval: ApprovalApproved, Stock: 10}

	tests := []struct {
		name      string
		mutate    func(p *Product)
		want      Visibility
		orderable bool
	}{
		{"available", func(p *Product) {}, VisibilityAvailable, true},
		{"inactive", func(p *Product) { p.Active = false }, VisibilityHidden, false},
		{"pending approval", func(p *Product) { p.Approval = ApprovalPending }, VisibilityHidden, false},
		{"rejected", func(p *Product) { p.Approval = ApprovalRejected }, VisibilityHidden, false},
		{"zero stock", func(p *Product) { p.Stock = 0 }, VisibilityOutOfStock, false},
		{"negative stock", func(p *Product) { p.Stock = -1 }, VisibilityHidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			assert.Equal(t, tt.want, p.Visibility())
			assert.Equal(t, tt.want != VisibilityHidden, p.IsVisible())
			assert.Equal(t, tt.orderable, p.IsOrderable())
		})
	}
}

func TestProduct_AcceptsQuantity(t *testing.T) {
	p := Product{MinOrder: 2, MaxOrder: 5}
	assert.False(t, p.AcceptsQuantity(1))
	assert.True(t, p.AcceptsQuantity(2))
	assert.True(t, p.AcceptsQuantity(5))
	assert.False(t, p.AcceptsQuantity(6))

	unlimited := Product{}
	assert.False(t, unlimited.AcceptsQuantity(0))
	assert.True(t, unlimited.AcceptsQuantity(500))
}

func TestOrder_ItemsSubtotal(t *testing.T) {
	rice := Product{ID: "rice", SupplierID: "s1", Price: decimal.RequireFromString("120.50")}
	milk := Product{ID: "milk", SupplierID: "s2", Price: decimal.NewFromInt(95)}
	eggs := Product{ID: "eggs", SupplierID: "s1", Price: decimal.RequireFromString("18.25")}

	order := Order{Items: []OrderItem{
		NewOrderItem(rice, 2),
		NewOrderItem(milk, 3),
		NewOrderItem(eggs, 12),
	}}

	sum := decimal.Zero
	for _, item := range order.Items {
		assert.True(t, item.LineTotal.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))),
			"line total for %s", item.ProductID)
		sum = sum.Add(item.LineTotal)
	}
	assert.Equal(t, "745", order.ItemsSubtotal().String())
	assert.True(t, sum.Equal(order.ItemsSubtotal()))
	assert.Equal(t, []string{"s1", "s2"}, order.SupplierIDs())
	assert.Equal(t, 17, order.ItemCount())
}

func TestOrder_PickAndPackFlags(t *testing.T) {
	order := Order{Items: []OrderItem{{ProductID: "a"}, {ProductID: "b"}}}
	assert.False(t, order.AllPicked())

	order.Items[0].Picked = true
	done, total := order.PickProgress()
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, total)

	order.Items[1].Picked = true
	assert.True(t, order.AllPicked())
	assert.False(t, order.AllPacked())

	empty := Order{}
	assert.False(t, empty.AllPicked(), "an order without items is never fully picked")
}
