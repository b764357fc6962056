package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/service"
	"github.com/vs-yayo-m/zalldi/internal/store"
	"github.com/vs-yayo-m/zalldi/internal/validation"
)

var demoPlacements int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run concurrent placements against an in-memory store",
	Long: `Seeds a small catalog and wallet balances, fires concurrent order
placements against limited stock, then walks one order from pending to
delivered and prints the resulting summary.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().IntVarP(&demoPlacements, "placements", "n", 100, "number of concurrent placements")
}

func runDemo(cmd *cobra.Command, args []string) error {
	demoCfg := cfg
	demoCfg.Store.Driver = "memory"
	a, err := newApp(demoCfg, logger)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(cmd.Context()))
	ctx := cmd.Context()

	products := store.NewProducts(a.db)
	for _, p := range []model.Product{
		{ID: "apple", SupplierID: "sup-fresh", Name: "Fuji Apple", Category: "fruits", Price: decimal.NewFromInt(100), Stock: 30, Unit: "kg"},
		{ID: "milk", SupplierID: "sup-dairy", Name: "Toned Milk", Category: "dairy", Price: decimal.NewFromInt(60), Stock: 200, Unit: "l", MaxOrder: 4},
	} {
		p.Active = true
		p.Approval = model.ApprovalApproved
		if err := products.Save(ctx, &p); err != nil {
			return err
		}
	}

	customers := []string{"dasha", "nastya", "tom"}
	var succeeded, failed, stockFailures, fundFailures int32
	var first atomic.Pointer[model.Order]
	var wg sync.WaitGroup
	for i := 0; i < demoPlacements; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			customerID := fmt.Sprintf("%s-%d", customers[index%len(customers)], index)
			balance := decimal.NewFromInt(500)
			if index%3 == 0 {
				balance = decimal.NewFromInt(50)
			}
			if err := a.wallet.SetBalance(ctx, customerID, balance); err != nil {
				logger.Warn("seed wallet", zap.String("customer_id", customerID), zap.Error(err))
				return
			}

			result := a.placement.PlaceOrder(ctx, validation.PlacementInput{
				CustomerID: customerID,
				Items: []validation.LineInput{
					{ProductID: "apple", Quantity: 1},
					{ProductID: "milk", Quantity: 1 + index%4},
				},
				Address:       model.Address{Ward: 1 + index%32, Area: "Baneshwor", Street: "Shantinagar Marg"},
				PaymentMethod: model.PaymentWallet,
			})
			if result.Success {
				atomic.AddInt32(&succeeded, 1)
				first.CompareAndSwap(nil, result.Order)
				return
			}
			atomic.AddInt32(&failed, 1)
			switch {
			case errors.Is(result.Error, model.ErrInsufficientStock):
				atomic.AddInt32(&stockFailures, 1)
			case errors.Is(result.Error, model.ErrInsufficientFunds):
				atomic.AddInt32(&fundFailures, 1)
			}
		}(i)
	}
	wg.Wait()

	fmt.Printf("placed %d orders, %d failed (stock: %d, funds: %d)\n", succeeded, failed, stockFailures, fundFailures)

	order := first.Load()
	if order == nil {
		return nil
	}
	if err := walkLifecycle(ctx, a.orders, order); err != nil {
		return err
	}

	now := time.Now()
	rollup, err := a.reports.Summary(ctx, service.ReportRequest{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil {
		return err
	}
	fmt.Printf("revenue %s from %d delivered, %d active\n", rollup.TotalRevenue.StringFixed(2), rollup.DeliveredOrders, rollup.ActiveOrders)
	return nil
}

// walkLifecycle advances one order through every status, ticking the
// pick and pack flags the gates require.
func walkLifecycle(ctx context.Context, orders *service.OrderService, order *model.Order) error {
	staff := model.Actor{ID: "ops-1", Role: model.RoleAdmin}
	steps := []func() (*model.Order, error){
		func() (*model.Order, error) { return orders.Confirm(ctx, order.ID, staff) },
		func() (*model.Order, error) { return orders.StartPicking(ctx, order.ID, staff) },
		func() (*model.Order, error) { return setAll(ctx, orders, order, service.FlagPicked) },
		func() (*model.Order, error) { return orders.StartPacking(ctx, order.ID, staff) },
		func() (*model.Order, error) { return setAll(ctx, orders, order, service.FlagPacked) },
		func() (*model.Order, error) { return orders.Dispatch(ctx, order.ID, staff) },
		func() (*model.Order, error) { return orders.Deliver(ctx, order.ID, staff) },
	}
	for _, step := range steps {
		updated, err := step()
		if err != nil {
			return fmt.Errorf("order %s: %w", order.OrderNumber, err)
		}
		fmt.Printf("%s -> %s\n", updated.OrderNumber, updated.Status)
	}
	return nil
}

func setAll(ctx context.Context, orders *service.OrderService, order *model.Order, flag service.ItemFlag) (*model.Order, error) {
	var updated *model.Order
	for i := range order.Items {
		var err error
		if updated, err = orders.SetItemFlag(ctx, order.ID, i, flag, true); err != nil {
			return nil, err
		}
	}
	return updated, nil
}
