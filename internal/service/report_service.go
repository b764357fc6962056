package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vs-yayo-m/zalldi/internal/aggregate"
	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/store"
)

type ReportService struct {
	orders *store.Orders
	loc    *time.Location
	topN   int
}

func NewReportService(orders *store.Orders, loc *time.Location, topN int) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{orders: orders, loc: loc, topN: topN}
}

type ReportRequest struct {
	From           time.Time
	To             time.Time
	TopN           int
	TotalCustomers int
	// SupplierID scopes the report to one supplier's line items.
	SupplierID string
	CustomerID string
}

// Summary loads the orders in the window and rolls them up. The whole batch
// is fetched and filtered client-side.
func (s *ReportService) Summary(ctx context.Context, req ReportRequest) (aggregate.Rollup, error) {
	if !req.From.Before(req.To) {
		return aggregate.Rollup{}, fmt.Errorf("report window %s..%s is empty: %w",
			req.From.Format(time.RFC3339), req.To.Format(time.RFC3339), model.ErrValidation)
	}

	orders, err := s.orders.List(ctx, store.OrderFilter{
		From:       req.From,
		To:         req.To,
		SupplierID: req.SupplierID,
		CustomerID: req.CustomerID,
	})
	if err != nil {
		return aggregate.Rollup{}, fmt.Errorf("load orders for report: %w", err)
	}
	if req.SupplierID != "" {
		orders = supplierView(orders, req.SupplierID)
	}

	topN := req.TopN
	if topN == 0 {
		topN = s.topN
	}
	return aggregate.Aggregate(orders, req.From, req.To, aggregate.Options{
		TopN:           topN,
		TotalCustomers: req.TotalCustomers,
		Location:       s.loc,
	}), nil
}

// supplierView keeps only supplierID's line items and re-totals each order
// to those lines, so revenue reflects what the supplier sold.
func supplierView(orders []model.Order, supplierID string) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		var items []model.OrderItem
		total := decimal.Zero
		for _, item := range o.Items {
			if item.SupplierID == supplierID {
				items = append(items, item)
				total = total.Add(item.LineTotal)
			}
		}
		if len(items) == 0 {
			continue
		}
		o.Items = items
		o.Subtotal = total
		o.Total = total
		o.Tip = decimal.Zero
		o.DeliveryFee = decimal.Zero
		o.Discount = decimal.Zero
		out = append(out, o)
	}
	return out
}
