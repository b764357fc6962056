package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/service"
	"github.com/vs-yayo-m/zalldi/internal/store"
	"github.com/vs-yayo-m/zalldi/internal/validation"
)

type fixture struct {
	db           *store.MemoryStore
	orchestrator *Orchestrator
	orders       *service.OrderService
	inventory    *service.InventoryService
	wallet       *service.WalletService
}

func createTestOrchestrator(t *testing.T) *fixture {
	t.Helper()
	db := store.NewMemoryStore()
	t.Cleanup(func() { db.Close() })

	products := store.NewProducts(db)
	for _, p := range []model.Product{
		{ID: "product1", SupplierID: "sup-1", Name: "Rice", Category: "grains", Price: decimal.NewFromInt(100), Stock: 100, Unit: "kg", MinOrder: 1},
		{ID: "product2", SupplierID: "sup-2", Name: "Milk", Category: "dairy", Price: decimal.NewFromInt(200), Stock: 50, Unit: "l", MinOrder: 1, MaxOrder: 5},
		{ID: "soldout", SupplierID: "sup-1", Name: "Ghee", Category: "dairy", Price: decimal.NewFromInt(900), Stock: 0, Unit: "l"},
	} {
		p.Active = true
		p.Approval = model.ApprovalApproved
		require.NoError(t, products.Save(context.Background(), &p))
	}
	pending := model.Product{ID: "unapproved", SupplierID: "sup-1", Name: "Honey", Price: decimal.NewFromInt(500), Stock: 10, Approval: model.ApprovalPending}
	require.NoError(t, products.Save(context.Background(), &pending))

	orders := service.NewOrderService(store.NewOrders(db), nil, service.OrderConfig{DeliveryFee: decimal.NewFromInt(50)}, nil)
	inventory := service.NewInventoryService(products, store.NewReservations(db), nil)
	promos := service.NewPromoService([]model.Promotion{{Code: "SAVE10", Percent: decimal.NewFromInt(10)}})
	wallet := service.NewWalletService(store.NewWallets(db), store.NewPayments(db), nil)

	return &fixture{
		db:           db,
		orchestrator: NewOrchestrator(orders, products, inventory, promos, wallet, 32, nil),
		orders:       orders,
		inventory:    inventory,
		wallet:       wallet,
	}
}

func placement(method model.PaymentMethod, lines ...validation.LineInput) validation.PlacementInput {
	return validation.PlacementInput{
		CustomerID:    "user1",
		Items:         lines,
		Address:       model.Address{Ward: 4, Area: "Thamel", Street: "Chaksibari Marg"},
		PaymentMethod: method,
	}
}

func (f *fixture) balance(t *testing.T, customerID string) string {
	t.Helper()
	b, err := f.wallet.Balance(context.Background(), customerID)
	require.NoError(t, err)
	return b.String()
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	n, err := f.inventory.GetStock(context.Background(), id)
	require.NoError(t, err)
	return n
}

func TestOrchestrator_SuccessfulOrder(t *testing.T) {
	f := createTestOrchestrator(t)
	in := placement(model.PaymentCOD,
		validation.LineInput{ProductID: "product1", Quantity: 2},
		validation.LineInput{ProductID: "product2", Quantity: 1},
	)

	result := f.orchestrator.PlaceOrder(context.Background(), in)
	if !result.Success {
		t.Fatalf("Expected success, got error: %v", result.Error)
	}
	if result.Execution.Status != StatusCompleted {
		t.Errorf("Expected status %s, got %s", StatusCompleted, result.Execution.Status)
	}

	var names []string
	for _, step := range result.Execution.Steps {
		if step.Status != StepStatusCompleted {
			t.Errorf("Step %s should be completed, got %s", step.Name, step.Status)
		}
		names = append(names, step.Name)
	}
	assert.Equal(t, []string{StepValidate, StepResolveItems, StepReserveInventory, StepApplyPromo, StepCreateOrder}, names)

	order, err := f.orders.Get(context.Background(), result.Execution.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, "400", order.Subtotal.String())
	assert.Equal(t, "450", order.Total.String())
	assert.Equal(t, "Rice", order.Items[0].Name)

	assert.Equal(t, 98, f.stock(t, "product1"))
	assert.Equal(t, 49, f.stock(t, "product2"))
}

func TestOrchestrator_ValidationFailureWritesNothing(t *testing.T) {
	f := createTestOrchestrator(t)
	in := placement(model.PaymentMethod("barter"), validation.LineInput{ProductID: "product1", Quantity: 0})
	in.Address.Ward = 99

	result := f.orchestrator.PlaceOrder(context.Background(), in)
	require.False(t, result.Success)
	assert.ErrorIs(t, result.Error, model.ErrValidation)
	assert.Equal(t, StatusFailed, result.Execution.Status)
	require.Len(t, result.Execution.Steps, 1)

	var verrs validation.Errors
	require.True(t, errors.As(result.Error, &verrs))
	for _, field := range []string{"items[0].quantity", "payment_method", "address.ward"} {
		_, ok := verrs.Field(field)
		assert.True(t, ok, "missing error for %s", field)
	}

	docs, err := f.db.Query(context.Background(), store.Query{Collection: store.CollectionOrders})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 100, f.stock(t, "product1"))
}

func TestOrchestrator_UnorderableProducts(t *testing.T) {
	f := createTestOrchestrator(t)
	in := placement(model.PaymentCOD,
		validation.LineInput{ProductID: "soldout", Quantity: 1},
		validation.LineInput{ProductID: "unapproved", Quantity: 1},
		validation.LineInput{ProductID: "product2", Quantity: 6},
		validation.LineInput{ProductID: "missing", Quantity: 1},
	)

	result := f.orchestrator.PlaceOrder(context.Background(), in)
	require.False(t, result.Success)

	var verrs validation.Errors
	require.True(t, errors.As(result.Error, &verrs))
	assert.Len(t, verrs, 4)
	msg, _ := verrs.Field("items[2].quantity")
	assert.Equal(t, "must be between 1 and 5", msg)
	msg, _ = verrs.Field("items[3].product_id")
	assert.Equal(t, "unknown product", msg)
}

func TestOrchestrator_InventoryFailure(t *testing.T) {
	f := createTestOrchestrator(t)
	in := placement(model.PaymentCOD,
		validation.LineInput{ProductID: "product1", Quantity: 10},
		validation.LineInput{ProductID: "product2", Quantity: 2},
	)
	// product2 stays orderable with one unit left, so the second line fails at reservation.
	_, err := f.inventory.ReserveItems(context.Background(), "other", []model.OrderItem{{ProductID: "product2", Quantity: 49}})
	require.NoError(t, err)

	result := f.orchestrator.PlaceOrder(context.Background(), in)
	require.False(t, result.Success)
	assert.ErrorIs(t, result.Error, model.ErrInsufficientStock)
	assert.Equal(t, 100, f.stock(t, "product1"))
	assert.Equal(t, 1, f.stock(t, "product2"))

	_, err = f.orders.Get(context.Background(), result.Execution.OrderID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOrchestrator_PromoFailureReleasesStock(t *testing.T) {
	f := createTestOrchestrator(t)
	in := placement(model.PaymentCOD, validation.LineInput{ProductID: "product1", Quantity: 3})
	in.PromoCode = "BOGUS"

	result := f.orchestrator.PlaceOrder(context.Background(), in)
	require.False(t, result.Success)
	assert.ErrorIs(t, result.Error, model.ErrValidation)
	assert.Equal(t, StatusCompensated, result.Execution.Status)
	assert.Equal(t, 100, f.stock(t, "product1"))
}

func TestOrchestrator_WalletPayment(t *testing.T) {
	f := createTestOrchestrator(t)
	require.NoError(t, f.wallet.SetBalance(context.Background(), "user1", decimal.NewFromInt(1000)))
	in := placement(model.PaymentWallet, validation.LineInput{ProductID: "product1", Quantity: 5})
	in.PromoCode = "save10"
	in.Tip = decimal.NewFromInt(20)

	result := f.orchestrator.PlaceOrder(context.Background(), in)
	require.True(t, result.Success, "unexpected error: %v", result.Error)

	// 500 - 50 discount + 50 delivery + 20 tip
	assert.Equal(t, "520", result.Order.Total.String())
	assert.Equal(t, "480", f.balance(t, "user1"))
}

func TestOrchestrator_PaymentFailure(t *testing.T) {
	f := createTestOrchestrator(t)
	require.NoError(t, f.wallet.SetBalance(context.Background(), "user1", decimal.NewFromInt(100)))
	in := placement(model.PaymentWallet, validation.LineInput{ProductID: "product1", Quantity: 5})

	result := f.orchestrator.PlaceOrder(context.Background(), in)
	if result.Success {
		t.Fatal("Expected failure because of insufficient funds")
	}
	if !errors.Is(result.Error, model.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got: %v", result.Error)
	}
	if result.Execution.Status != StatusCompensated {
		t.Errorf("Expected status %s, got %s", StatusCompensated, result.Execution.Status)
	}
	assert.Equal(t, 100, f.stock(t, "product1"))
	assert.Equal(t, "100", f.balance(t, "user1"))
}

func TestOrchestrator_GetExecution(t *testing.T) {
	f := createTestOrchestrator(t)
	result := f.orchestrator.PlaceOrder(context.Background(), placement(model.PaymentCOD, validation.LineInput{ProductID: "product1", Quantity: 1}))
	require.True(t, result.Success)

	execution, err := f.orchestrator.GetExecution(result.Execution.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Execution.OrderID, execution.OrderID)
	assert.WithinDuration(t, time.Now(), execution.UpdatedAt, time.Minute)
	assert.Len(t, f.orchestrator.Executions(), 1)

	_, err = f.orchestrator.GetExecution("nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOrchestrator_HistoryLimit(t *testing.T) {
	f := createTestOrchestrator(t)
	f.orchestrator.SetHistoryLimit(3)

	stuck := &Execution{ID: "stuck", Status: StatusInProgress, CreatedAt: time.Now()}
	f.orchestrator.mu.Lock()
	f.orchestrator.executions[stuck.ID] = stuck
	f.orchestrator.history = append(f.orchestrator.history, stuck.ID)
	f.orchestrator.mu.Unlock()

	var ids []string
	for i := 0; i < 6; i++ {
		result := f.orchestrator.PlaceOrder(context.Background(), placement(model.PaymentCOD, validation.LineInput{ProductID: "missing", Quantity: 1}))
		require.False(t, result.Success)
		ids = append(ids, result.Execution.ID)
	}

	assert.Len(t, f.orchestrator.Executions(), 3)

	_, err := f.orchestrator.GetExecution(stuck.ID)
	assert.NoError(t, err, "executions in progress are never dropped")
	for _, id := range ids[:4] {
		_, err := f.orchestrator.GetExecution(id)
		assert.ErrorIs(t, err, model.ErrNotFound)
	}
	for _, id := range ids[4:] {
		_, err := f.orchestrator.GetExecution(id)
		assert.NoError(t, err)
	}
}
