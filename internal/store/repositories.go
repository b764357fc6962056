package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

const (
	CollectionOrders       = "orders"
	CollectionProducts     = "products"
	CollectionReservations = "reservations"
	CollectionPayments     = "payments"
	CollectionWallets      = "wallets"
)

// Orders is the typed view of the orders collection.
type Orders struct {
	db DocumentStore
}

func NewOrders(db DocumentStore) *Orders {
	return &Orders{db: db}
}

type OrderFilter struct {
	CustomerID string
	SupplierID string
	Statuses   []model.OrderStatus
	From       time.Time // inclusive
	To         time.Time // exclusive
	Limit      int
}

func (f OrderFilter) Query() Query {
	q := Query{Collection: CollectionOrders, OrderBy: "created_at", Descending: true, Limit: f.Limit}
	if f.CustomerID != "" {
		q.Filters = append(q.Filters, Eq("customer_id", f.CustomerID))
	}
	if f.SupplierID != "" {
		q.Filters = append(q.Filters, Contains("items.supplier_id", f.SupplierID))
	}
	if len(f.Statuses) > 0 {
		q.Filters = append(q.Filters, In("status", f.Statuses))
	}
	if !f.From.IsZero() {
		q.Filters = append(q.Filters, Gte("created_at", f.From))
	}
	if !f.To.IsZero() {
		q.Filters = append(q.Filters, Lt("created_at", f.To))
	}
	return q
}

func (r *Orders) Get(ctx context.Context, id string) (*model.Order, error) {
	doc, err := r.db.Get(ctx, CollectionOrders, id)
	if err != nil {
		return nil, err
	}
	return DecodeOrder(doc)
}

func (r *Orders) Save(ctx context.Context, order *model.Order) error {
	_, err := r.db.Put(ctx, CollectionOrders, order.ID, order)
	return err
}

func (r *Orders) List(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	docs, err := r.db.Query(ctx, f.Query())
	if err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0, len(docs))
	for _, d := range docs {
		o, err := DecodeOrder(d)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (r *Orders) Watch(ctx context.Context, f OrderFilter) (*Subscription, error) {
	q := f.Query()
	q.Limit = 0
	return r.db.Subscribe(ctx, q)
}

func DecodeOrder(doc Document) (*model.Order, error) {
	var o model.Order
	if err := doc.Decode(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Products is the typed view of the products collection.
type Products struct {
	db DocumentStore
}

func NewProducts(db DocumentStore) *Products {
	return &Products{db: db}
}

type ProductFilter struct {
	SupplierID string
	Category   string
	Approval   model.ApprovalStatus
	ActiveOnly bool
}

func (f ProductFilter) Query() Query {
	q := Query{Collection: CollectionProducts, OrderBy: "name"}
	if f.SupplierID != "" {
		q.Filters = append(q.Filters, Eq("supplier_id", f.SupplierID))
	}
	if f.Category != "" {
		q.Filters = append(q.Filters, Eq("category", f.Category))
	}
	if f.Approval != "" {
		q.Filters = append(q.Filters, Eq("approval", f.Approval))
	}
	if f.ActiveOnly {
		q.Filters = append(q.Filters, Eq("active", true))
	}
	return q
}

func (r *Products) Get(ctx context.Context, id string) (*model.Product, error) {
	doc, err := r.db.Get(ctx, CollectionProducts, id)
	if err != nil {
		return nil, err
	}
	var p model.Product
	if err := doc.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Products) Save(ctx context.Context, p *model.Product) error {
	_, err := r.db.Put(ctx, CollectionProducts, p.ID, p)
	return err
}

func (r *Products) Delete(ctx context.Context, id string) error {
	return r.db.Delete(ctx, CollectionProducts, id)
}

func (r *Products) List(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	docs, err := r.db.Query(ctx, f.Query())
	if err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		var p model.Product
		if err := d.Decode(&p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// Reservations stores stock held for orders.
type Reservations struct {
	db DocumentStore
}

func NewReservations(db DocumentStore) *Reservations {
	return &Reservations{db: db}
}

func (r *Reservations) Save(ctx context.Context, res *model.InventoryReservation) error {
	_, err := r.db.Put(ctx, CollectionReservations, res.ID, res)
	return err
}

func (r *Reservations) ByOrder(ctx context.Context, orderID string) ([]model.InventoryReservation, error) {
	docs, err := r.db.Query(ctx, Query{
		Collection: CollectionReservations,
		Filters:    []Filter{Eq("order_id", orderID)},
		OrderBy:    "created_at",
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.InventoryReservation, 0, len(docs))
	for _, d := range docs {
		var res model.InventoryReservation
		if err := d.Decode(&res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Payments stores wallet charges.
type Payments struct {
	db DocumentStore
}

func NewPayments(db DocumentStore) *Payments {
	return &Payments{db: db}
}

func (r *Payments) Save(ctx context.Context, p *model.Payment) error {
	_, err := r.db.Put(ctx, CollectionPayments, p.ID, p)
	return err
}

func (r *Payments) ByOrder(ctx context.Context, orderID string) ([]model.Payment, error) {
	docs, err := r.db.Query(ctx, Query{
		Collection: CollectionPayments,
		Filters:    []Filter{Eq("order_id", orderID)},
		OrderBy:    "created_at",
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Payment, 0, len(docs))
	for _, d := range docs {
		var p model.Payment
		if err := d.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Wallets stores customer balances keyed by customer id.
type Wallets struct {
	db DocumentStore
}

func NewWallets(db DocumentStore) *Wallets {
	return &Wallets{db: db}
}

// Get returns the customer's wallet. A customer without one has an empty
// wallet, not an error.
func (r *Wallets) Get(ctx context.Context, customerID string) (*model.Wallet, error) {
	doc, err := r.db.Get(ctx, CollectionWallets, customerID)
	if errors.Is(err, model.ErrNotFound) {
		return &model.Wallet{CustomerID: customerID, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	var w model.Wallet
	if err := doc.Decode(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Wallets) Save(ctx context.Context, w *model.Wallet) error {
	_, err := r.db.Put(ctx, CollectionWallets, w.CustomerID, w)
	return err
}
