package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/notify"
	"github.com/vs-yayo-m/zalldi/internal/store"
)

var (
	admin     = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	supplier1 = model.Actor{ID: "sup-1", Role: model.RoleSupplier}
	supplier2 = model.Actor{ID: "sup-2", Role: model.RoleSupplier}
	picker    = model.Actor{ID: "picker-1", Role: model.RoleAdmin}
)

type env struct {
	db        *store.MemoryStore
	orders    *OrderService
	products  *ProductService
	inventory *InventoryService
	wallet    *WalletService
	recorder  *notify.Recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := store.NewMemoryStore()
	t.Cleanup(func() { db.Close() })

	rec := &notify.Recorder{}
	e := &env{db: db, recorder: rec}
	e.orders = NewOrderService(store.NewOrders(db), rec, OrderConfig{
		NumberPrefix:     "ZLD",
		DeliveryFee:      decimal.NewFromInt(50),
		FreeDeliveryOver: decimal.NewFromInt(1000),
		Location:         time.UTC,
	}, nil)
	e.products = NewProductService(store.NewProducts(db), rec, nil)
	e.inventory = NewInventoryService(store.NewProducts(db), store.NewReservations(db), nil)
	e.wallet = NewWalletService(store.NewWallets(db), store.NewPayments(db), nil)
	e.orders.OnTransition(e.inventory.ReleaseOnCancel)
	e.orders.OnTransition(e.wallet.RefundOnCancel)
	return e
}

// addProduct stores an approved, active product directly.
func (e *env) addProduct(t *testing.T, id, supplierID string, price int64, stock int) model.Product {
	t.Helper()
	p := model.Product{
		ID:         id,
		SupplierID: supplierID,
		Name:       id,
		Category:   "grocery",
		Price:      decimal.NewFromInt(price),
		Stock:      stock,
		Unit:       "pcs",
		MinOrder:   1,
		Active:     true,
		Approval:   model.ApprovalApproved,
	}
	if err := store.NewProducts(e.db).Save(context.Background(), &p); err != nil {
		t.Fatalf("Expected no error saving product, got: %v", err)
	}
	return p
}

func (e *env) createOrder(t *testing.T, customerID string, items ...model.OrderItem) *model.Order {
	t.Helper()
	order, err := e.orders.Create(context.Background(), NewOrder{
		CustomerID:    customerID,
		Items:         items,
		Address:       model.Address{Ward: 10, Area: "Baneshwor", Street: "Shankhamul Road"},
		PaymentMethod: model.PaymentCOD,
		Tip:           decimal.Zero,
	})
	if err != nil {
		t.Fatalf("Expected no error creating order, got: %v", err)
	}
	return order
}

// fund sets a customer's wallet balance.
func (e *env) fund(t *testing.T, customerID string, amount int64) {
	t.Helper()
	if err := e.wallet.SetBalance(context.Background(), customerID, decimal.NewFromInt(amount)); err != nil {
		t.Fatalf("Expected no error funding wallet, got: %v", err)
	}
}

func (e *env) balance(t *testing.T, customerID string) string {
	t.Helper()
	b, err := e.wallet.Balance(context.Background(), customerID)
	if err != nil {
		t.Fatalf("Expected no error reading balance, got: %v", err)
	}
	return b.String()
}
