package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/notify"
	"github.com/vs-yayo-m/zalldi/internal/store"
)

type OrderConfig struct {
	NumberPrefix     string
	DeliveryFee      decimal.Decimal
	FreeDeliveryOver decimal.Decimal
	Location         *time.Location
}

// TransitionHook runs after a transition has been written. Errors are
// logged; the transition stands.
type TransitionHook func(ctx context.Context, order *model.Order, from model.OrderStatus) error

type OrderService struct {
	// mu serializes read-modify-write cycles on orders within this process.
	mu sync.Mutex

	orders   *store.Orders
	notifier notify.Notifier
	numbers  *NumberGenerator
	cfg      OrderConfig
	logger   *zap.Logger
	now      func() time.Time
	hooks    []TransitionHook
}

func NewOrderService(orders *store.Orders, notifier notify.Notifier, cfg OrderConfig, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NotifierFunc(func(context.Context, string, model.Notification) error { return nil })
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "ORD"
	}
	return &OrderService{
		orders:   orders,
		notifier: notifier,
		numbers:  NewNumberGenerator(cfg.NumberPrefix, cfg.Location),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// OnTransition registers a hook that runs after every successful transition.
func (s *OrderService) OnTransition(hook TransitionHook) {
	s.hooks = append(s.hooks, hook)
}

type NewOrder struct {
	ID            string
	CustomerID    string
	Items         []model.OrderItem
	Address       model.Address
	PaymentMethod model.PaymentMethod
	Discount      decimal.Decimal
	PromoCode     string
	Tip           decimal.Decimal
	GiftWrap      bool
	Instructions  string
}

type Pricing struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Tip         decimal.Decimal `json:"tip"`
	Total       decimal.Decimal `json:"total"`
}

// Price computes order totals: subtotal + delivery fee + tip − discount,
// with the discount capped at the subtotal.
func (s *OrderService) Price(items []model.OrderItem, discount, tip decimal.Decimal) Pricing {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}

	fee := s.cfg.DeliveryFee
	if s.cfg.FreeDeliveryOver.IsPositive() && subtotal.GreaterThanOrEqual(s.cfg.FreeDeliveryOver) {
		fee = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return Pricing{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Discount:    discount,
		Tip:         tip,
		Total:       subtotal.Add(fee).Add(tip).Sub(discount),
	}
}

// Create persists a new pending order and notifies the customer and every
// supplier with a line item in it.
func (s *OrderService) Create(ctx context.Context, in NewOrder) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("create order: no items: %w", model.ErrValidation)
	}

	now := s.now()
	price := s.Price(in.Items, in.Discount, in.Tip)
	order := &model.Order{
		ID:            in.ID,
		OrderNumber:   s.numbers.Next(now),
		CustomerID:    in.CustomerID,
		Items:         in.Items,
		Address:       in.Address,
		PaymentMethod: in.PaymentMethod,
		Subtotal:      price.Subtotal,
		DeliveryFee:   price.DeliveryFee,
		Discount:      price.Discount,
		Tip:           price.Tip,
		Total:         price.Total,
		PromoCode:     in.PromoCode,
		GiftWrap:      in.GiftWrap,
		Instructions:  in.Instructions,
		Status:        model.OrderStatusPending,
		History: []model.StatusChange{{
			To:    model.OrderStatusPending,
			Actor: in.CustomerID,
			At:    now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("customer_id", order.CustomerID),
		zap.String("total", order.Total.String()))

	s.notify(ctx, order.CustomerID, model.Notification{
		Title:     "Order placed",
		Message:   fmt.Sprintf("We received order %s.", order.OrderNumber),
		Type:      model.NotificationOrder,
		ActionURL: orderURL(order.ID),
	})
	for _, supplierID := range order.SupplierIDs() {
		s.notify(ctx, supplierID, model.Notification{
			Title:     "New order",
			Message:   fmt.Sprintf("Order %s includes your products.", order.OrderNumber),
			Type:      model.NotificationOrder,
			ActionURL: "/supplier" + orderURL(order.ID),
		})
	}
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*model.Order, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *OrderService) List(ctx context.Context, f store.OrderFilter) ([]model.Order, error) {
	return s.orders.List(ctx, f)
}

// Watch subscribes to orders matching f. The caller must Close the
// subscription when done.
func (s *OrderService) Watch(ctx context.Context, f store.OrderFilter) (*store.Subscription, error) {
	return s.orders.Watch(ctx, f)
}

type TransitionOptions struct {
	Actor model.Actor
	Note  string
	// Precondition, when set, is checked against the stored order under the
	// service lock, before the transition is validated or written.
	Precondition func(*model.Order) error
}

// Transition moves an order to target. The write happens before the
// returned order is produced, so callers never see unconfirmed state.
func (s *OrderService) Transition(ctx context.Context, orderID string, target model.OrderStatus, opts TransitionOptions) (*model.Order, error) {
	s.mu.Lock()
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if opts.Precondition != nil {
		if err := opts.Precondition(order); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	from := order.Status
	if err := model.ValidateTransition(from, target); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := fulfilmentGate(order, target); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	now := s.now()
	order.Status = target
	order.UpdatedAt = now
	order.History = append(order.History, model.StatusChange{
		From:  from,
		To:    target,
		Actor: opts.Actor.String(),
		Note:  opts.Note,
		At:    now,
	})
	if target == model.OrderStatusCancelled {
		order.CancelReason = opts.Note
	}

	if err := s.orders.Save(ctx, order); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("transition order %s: %w", orderID, err)
	}
	s.mu.Unlock()

	s.logger.Info("order transitioned",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", opts.Actor.String()))

	// The transition is committed; hooks must finish even if the caller left.
	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range s.hooks {
		if err := hook(hookCtx, order, from); err != nil {
			s.logger.Error("transition hook failed",
				zap.String("order_id", order.ID),
				zap.String("to", string(target)),
				zap.Error(err))
		}
	}

	s.notify(ctx, order.CustomerID, statusNotification(order))
	return order, nil
}

func fulfilmentGate(order *model.Order, target model.OrderStatus) error {
	switch target {
	case model.OrderStatusPacking:
		if !order.AllPicked() {
			done, total := order.PickProgress()
			return fmt.Errorf("order %s: %d of %d items picked: %w", order.ID, done, total, model.ErrFulfilmentIncomplete)
		}
	case model.OrderStatusOutForDelivery:
		if !order.AllPacked() {
			return fmt.Errorf("order %s: not every item is packed: %w", order.ID, model.ErrFulfilmentIncomplete)
		}
	}
	return nil
}

func (s *OrderService) Confirm(ctx context.Context, orderID string, actor model.Actor) (*model.Order, error) {
	return s.Transition(ctx, orderID, model.OrderStatusConfirmed, TransitionOptions{Actor: actor})
}

func (s *OrderService) StartPicking(ctx context.Context, orderID string, actor model.Actor) (*model.Order, error) {
	return s.Transition(ctx, orderID, model.OrderStatusPicking, TransitionOptions{Actor: actor})
}

func (s *OrderService) StartPacking(ctx context.Context, orderID string, actor model.Actor) (*model.Order, error) {
	return s.Transition(ctx, orderID, model.OrderStatusPacking, TransitionOptions{Actor: actor})
}

func (s *OrderService) Dispatch(ctx context.Context, orderID string, actor model.Actor) (*model.Order, error) {
	return s.Transition(ctx, orderID, model.OrderStatusOutForDelivery, TransitionOptions{Actor: actor})
}

func (s *OrderService) Deliver(ctx context.Context, orderID string, actor model.Actor) (*model.Order, error) {
	return s.Transition(ctx, orderID, model.OrderStatusDelivered, TransitionOptions{Actor: actor})
}

func (s *OrderService) Cancel(ctx context.Context, orderID string, actor model.Actor, reason string) (*model.Order, error) {
	return s.Transition(ctx, orderID, model.OrderStatusCancelled, TransitionOptions{Actor: actor, Note: reason})
}

type ItemFlag string

const (
	FlagPicked  ItemFlag = "picked"
	FlagPacked  ItemFlag = "packed"
	FlagFragile ItemFlag = "fragile"
)

func (f ItemFlag) allowedIn(status model.OrderStatus) bool {
	switch f {
	case FlagPicked:
		return status == model.OrderStatusPicking
	case FlagPacked:
		return status == model.OrderStatusPacking
	case FlagFragile:
		return status == model.OrderStatusPicking || status == model.OrderStatusPacking
	}
	return false
}

// SetItemFlag records per-item fulfilment progress on the order document,
// so progress survives reloads.
func (s *OrderService) SetItemFlag(ctx context.Context, orderID string, index int, flag ItemFlag, value bool) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(order.Items) {
		return nil, fmt.Errorf("order %s item %d: %w", orderID, index, model.ErrNotFound)
	}
	if !flag.allowedIn(order.Status) {
		return nil, fmt.Errorf("order %s: cannot set %s while %s: %w", orderID, flag, order.Status, model.ErrConflict)
	}

	item := &order.Items[index]
	switch flag {
	case FlagPicked:
		item.Picked = value
	case FlagPacked:
		item.Packed = value
	case FlagFragile:
		item.Fragile = value
	}
	order.UpdatedAt = s.now()

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("flag order %s item %d: %w", orderID, index, err)
	}
	return order, nil
}

func (s *OrderService) notify(ctx context.Context, userID string, n model.Notification) {
	if err := s.notifier.Notify(ctx, userID, n); err != nil {
		s.logger.Warn("notification failed",
			zap.String("user_id", userID),
			zap.String("title", n.Title),
			zap.Error(err))
	}
}

func orderURL(id string) string {
	return "/orders/" + id
}

func statusNotification(o *model.Order) model.Notification {
	n := model.Notification{Type: model.NotificationOrder, ActionURL: orderURL(o.ID)}
	switch o.Status {
	case model.OrderStatusConfirmed:
		n.Title = "Order confirmed"
		n.Message = fmt.Sprintf("Your order %s has been confirmed.", o.OrderNumber)
	case model.OrderStatusPicking:
		n.Title = "Picking started"
		n.Message = fmt.Sprintf("We are picking the items for order %s.", o.OrderNumber)
	case model.OrderStatusPacking:
		n.Title = "Packing"
		n.Message = fmt.Sprintf("Order %s is being packed.", o.OrderNumber)
	case model.OrderStatusOutForDelivery:
		n.Title = "Out for delivery"
		n.Message = fmt.Sprintf("Order %s is on its way to ward %d.", o.OrderNumber, o.Address.Ward)
	case model.OrderStatusDelivered:
		n.Title = "Delivered"
		n.Message = fmt.Sprintf("Order %s was delivered. Enjoy!", o.OrderNumber)
	case model.OrderStatusCancelled:
		n.Title = "Order cancelled"
		n.Message = fmt.Sprintf("Order %s was cancelled.", o.OrderNumber)
		if o.CancelReason != "" {
			n.Message += " Reason: " + o.CancelReason
		}
	}
	return n
}

// NumberGenerator issues human-readable order numbers PREFIX-YYYYMMDD-NNNN
// with a random suffix. Numbers are unique only up to date+suffix collisions.
type NumberGenerator struct {
	prefix string
	loc    *time.Location

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewNumberGenerator(prefix string, loc *time.Location) *NumberGenerator {
	seed := uint64(time.Now().UnixNano())
	return &NumberGenerator{
		prefix: prefix,
		loc:    loc,
		rnd:    rand.New(rand.NewSource(int64(seed))),
	}
}

func (g *NumberGenerator) Next(t time.Time) string {
	g.mu.Lock()
	n := g.rnd.Intn(10000)
	g.mu.Unlock()
	return fmt.Sprintf("%s-%s-%04d", g.prefix, t.In(g.loc).Format("20060102"), n)
}
