// Package saga places orders as a sequence of steps, each paired with a
// compensation that undoes it if a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/service"
	"github.com/vs-yayo-m/zalldi/internal/store"
	"github.com/vs-yayo-m/zalldi/internal/validation"
)

type Orchestrator struct {
	orders    *service.OrderService
	products  *store.Products
	inventory *service.InventoryService
	promos    *service.PromoService
	wallet    *service.WalletService
	maxWard   int
	logger    *zap.Logger

	mu           sync.RWMutex
	executions   map[string]*Execution
	history      []string // execution ids, oldest first
	historyLimit int
}

// DefaultHistoryLimit is how many executions are kept for inspection.
const DefaultHistoryLimit = 1024

type Execution struct {
	ID            string
	OrderID       string
	CustomerID    string
	Status        Status
	Steps         []Step
	Compensations []Compensation
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Status string

const (
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCompensated Status = "compensated"
)

type Step struct {
	Name   string
	Status StepStatus
	Error  error
	Result any
}

type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

type Compensation struct {
	Name   string
	Action func(ctx context.Context) error
}

type Result struct {
	Success   bool
	Order     *model.Order
	Error     error
	Execution *Execution
}

// Step names, in execution order.
const (
	StepValidate         = "validate"
	StepResolveItems     = "resolve_items"
	StepReserveInventory = "reserve_inventory"
	StepApplyPromo       = "apply_promo"
	StepChargeWallet     = "charge_wallet"
	StepCreateOrder      = "create_order"
)

func NewOrchestrator(
	orders *service.OrderService,
	products *store.Products,
	inventory *service.InventoryService,
	promos *service.PromoService,
	wallet *service.WalletService,
	maxWard int,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		orders:     orders,
		products:   products,
		inventory:  inventory,
		promos:     promos,
		wallet:     wallet,
		maxWard:    maxWard,
		logger:     logger,
		executions:   make(map[string]*Execution),
		historyLimit: DefaultHistoryLimit,
	}
}

// SetHistoryLimit changes how many executions are retained. Finished
// executions beyond the limit are forgotten oldest first; executions still
// in progress are always kept.
func (o *Orchestrator) SetHistoryLimit(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.historyLimit = max(n, 1)
	o.prune()
}

// PlaceOrder validates the request and then runs the placement steps.
// Nothing is written when validation fails. When a later step fails, the
// completed steps are undone in reverse order.
func (o *Orchestrator) PlaceOrder(ctx context.Context, in validation.PlacementInput) *Result {
	now := time.Now()
	execution := &Execution{
		ID:         uuid.New().String(),
		OrderID:    uuid.New().String(),
		CustomerID: in.CustomerID,
		Status:     StatusInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	o.mu.Lock()
	o.executions[execution.ID] = execution
	o.history = append(o.history, execution.ID)
	o.prune()
	o.mu.Unlock()

	order, err := o.execute(ctx, execution, in)
	return &Result{
		Success:   err == nil,
		Order:     order,
		Error:     err,
		Execution: o.snapshot(execution),
	}
}

func (o *Orchestrator) execute(ctx context.Context, execution *Execution, in validation.PlacementInput) (*model.Order, error) {
	if err := o.step(execution, StepValidate, func() (any, error) {
		return nil, validation.Placement(in, o.maxWard)
	}); err != nil {
		o.finish(execution, StatusFailed)
		return nil, err
	}

	var items []model.OrderItem
	if err := o.step(execution, StepResolveItems, func() (any, error) {
		var err error
		items, err = o.resolveItems(ctx, in.Items)
		return items, err
	}); err != nil {
		o.finish(execution, StatusFailed)
		return nil, err
	}

	if err := o.step(execution, StepReserveInventory, func() (any, error) {
		return o.inventory.ReserveItems(ctx, execution.OrderID, items)
	}); err != nil {
		o.fail(ctx, execution)
		return nil, err
	}
	o.addCompensation(execution, "release_inventory", func(ctx context.Context) error {
		return o.inventory.ReleaseItems(ctx, execution.OrderID)
	})

	discount := decimal.Zero
	if err := o.step(execution, StepApplyPromo, func() (any, error) {
		if o.promos == nil || in.PromoCode == "" {
			return discount, nil
		}
		subtotal := o.orders.Price(items, decimal.Zero, decimal.Zero).Subtotal
		var err error
		discount, err = o.promos.ApplyDiscount(ctx, in.PromoCode, subtotal)
		return discount, err
	}); err != nil {
		o.fail(ctx, execution)
		return nil, err
	}

	if in.PaymentMethod == model.PaymentWallet {
		price := o.orders.Price(items, discount, in.Tip)
		if err := o.step(execution, StepChargeWallet, func() (any, error) {
			if o.wallet == nil {
				return nil, errors.New("wallet payments are not available")
			}
			return o.wallet.Charge(ctx, execution.OrderID, in.CustomerID, price.Total)
		}); err != nil {
			o.fail(ctx, execution)
			return nil, err
		}
		o.addCompensation(execution, "refund_wallet", func(ctx context.Context) error {
			return o.wallet.RefundByOrderID(ctx, execution.OrderID)
		})
	}

	var order *model.Order
	if err := o.step(execution, StepCreateOrder, func() (any, error) {
		var err error
		order, err = o.orders.Create(ctx, service.NewOrder{
			ID:            execution.OrderID,
			CustomerID:    in.CustomerID,
			Items:         items,
			Address:       in.Address,
			PaymentMethod: in.PaymentMethod,
			Discount:      discount,
			PromoCode:     in.PromoCode,
			Tip:           in.Tip,
			GiftWrap:      in.GiftWrap,
			Instructions:  in.Instructions,
		})
		return order, err
	}); err != nil {
		o.fail(ctx, execution)
		return nil, err
	}

	o.finish(execution, StatusCompleted)
	return order, nil
}

// resolveItems snapshots each requested product into a line item. Every
// line is checked before any error is returned.
func (o *Orchestrator) resolveItems(ctx context.Context, lines []validation.LineInput) ([]model.OrderItem, error) {
	var errs validation.Errors
	items := make([]model.OrderItem, 0, len(lines))
	for i, line := range lines {
		field := fmt.Sprintf("items[%d]", i)
		p, err := o.products.Get(ctx, line.ProductID)
		if errors.Is(err, model.ErrNotFound) {
			errs = append(errs, validation.FieldError{Field: field + ".product_id", Message: "unknown product"})
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.IsOrderable() {
			errs = append(errs, validation.FieldError{Field: field + ".product_id", Message: p.Name + " is not available"})
			continue
		}
		if !p.AcceptsQuantity(line.Quantity) {
			errs = append(errs, validation.FieldError{Field: field + ".quantity", Message: quantityMessage(p)})
			continue
		}
		items = append(items, model.NewOrderItem(*p, line.Quantity))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func quantityMessage(p *model.Product) string {
	minOrder := max(p.MinOrder, 1)
	if p.MaxOrder == 0 {
		return fmt.Sprintf("must be at least %d", minOrder)
	}
	return fmt.Sprintf("must be between %d and %d", minOrder, p.MaxOrder)
}

func (o *Orchestrator) step(execution *Execution, name string, fn func() (any, error)) error {
	result, err := fn()
	step := Step{Name: name, Status: StepStatusCompleted, Result: result}
	if err != nil {
		step = Step{Name: name, Status: StepStatusFailed, Error: err}
		o.logger.Warn("placement step failed",
			zap.String("execution_id", execution.ID),
			zap.String("step", name),
			zap.Error(err))
	}

	o.mu.Lock()
	execution.Steps = append(execution.Steps, step)
	execution.UpdatedAt = time.Now()
	o.mu.Unlock()
	return err
}

func (o *Orchestrator) addCompensation(execution *Execution, name string, action func(context.Context) error) {
	o.mu.Lock()
	execution.Compensations = append(execution.Compensations, Compensation{Name: name, Action: action})
	o.mu.Unlock()
}

func (o *Orchestrator) finish(execution *Execution, status Status) {
	o.mu.Lock()
	execution.Status = status
	execution.UpdatedAt = time.Now()
	o.mu.Unlock()
}

// fail undoes completed steps newest first. Compensations run even when
// ctx has been cancelled.
func (o *Orchestrator) fail(ctx context.Context, execution *Execution) {
	ctx = context.WithoutCancel(ctx)

	o.mu.RLock()
	compensations := append([]Compensation(nil), execution.Compensations...)
	o.mu.RUnlock()

	status := StatusCompensated
	for i := len(compensations) - 1; i >= 0; i-- {
		c := compensations[i]
		if err := c.Action(ctx); err != nil {
			status = StatusFailed
			o.logger.Error("compensation failed",
				zap.String("execution_id", execution.ID),
				zap.String("compensation", c.Name),
				zap.Error(err))
		}
	}
	o.finish(execution, status)
}

// prune drops the oldest finished executions while over the limit.
// Callers hold o.mu.
func (o *Orchestrator) prune() {
	excess := len(o.history) - o.historyLimit
	if excess <= 0 {
		return
	}
	kept := o.history[:0]
	for _, id := range o.history {
		if excess > 0 && o.executions[id].Status != StatusInProgress {
			delete(o.executions, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	o.history = kept
}

func (o *Orchestrator) snapshot(execution *Execution) *Execution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	cp := *execution
	cp.Steps = append([]Step(nil), execution.Steps...)
	cp.Compensations = append([]Compensation(nil), execution.Compensations...)
	return &cp
}

func (o *Orchestrator) GetExecution(id string) (*Execution, error) {
	o.mu.RLock()
	execution, exists := o.executions[id]
	o.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("saga execution %s: %w", id, model.ErrNotFound)
	}
	return o.snapshot(execution), nil
}

func (o *Orchestrator) Executions() []*Execution {
	o.mu.RLock()
	ids := make([]string, 0, len(o.executions))
	for id := range o.executions {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	out := make([]*Execution, 0, len(ids))
	for _, id := range ids {
		if e, err := o.GetExecution(id); err == nil {
			out = append(out, e)
		}
	}
	return out
}
