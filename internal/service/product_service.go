package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/notify"
	"github.com/vs-yayo-m/zalldi/internal/store"
	"github.com/vs-yayo-m/zalldi/internal/validation"
)

// ProductService owns the catalog and the supplier approval queue.
// Supplier submissions start pending and inactive; an admin approves or
// rejects them. A rejected product returns to pending when its supplier
// edits or resubmits it.
type ProductService struct {
	products *store.Products
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewProductService(products *store.Products, notifier notify.Notifier, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NotifierFunc(func(context.Context, string, model.Notification) error { return nil })
	}
	return &ProductService{products: products, notifier: notifier, logger: logger, now: time.Now}
}

func (s *ProductService) Submit(ctx context.Context, actor model.Actor, in validation.ProductInput) (*model.Product, error) {
	if actor.Role != model.RoleSupplier && !actor.IsAdmin() {
		return nil, fmt.Errorf("submit product as %s: %w", actor, model.ErrForbidden)
	}
	if err := validation.Product(in); err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Product{
		ID:         uuid.New().String(),
		SupplierID: actor.ID,
		Approval:   model.ApprovalPending,
		CreatedAt:  now,
	}
	applyInput(p, in)
	p.UpdatedAt = now

	if err := s.products.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("submit product: %w", err)
	}
	s.logger.Info("product submitted",
		zap.String("product_id", p.ID),
		zap.String("supplier_id", p.SupplierID),
		zap.String("name", p.Name))
	return p, nil
}

func applyInput(p *model.Product, in validation.ProductInput) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Category = strings.ToLower(strings.TrimSpace(in.Category))
	p.SKU = in.SKU
	p.Price = in.Price
	p.ComparePrice = in.ComparePrice
	p.Stock = in.Stock
	p.Unit = in.Unit
	p.MinOrder = in.MinOrder
	if p.MinOrder == 0 {
		p.MinOrder = 1
	}
	p.MaxOrder = in.MaxOrder
}

// Update replaces the editable fields. Only the owning supplier or an admin
// may edit.
func (s *ProductService) Update(ctx context.Context, actor model.Actor, id string, in validation.ProductInput) (*model.Product, error) {
	if err := validation.Product(in); err != nil {
		return nil, err
	}
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	applyInput(p, in)
	if p.Approval == model.ApprovalRejected && !actor.IsAdmin() {
		p.Approval = model.ApprovalPending
		p.Active = false
	}
	p.UpdatedAt = s.now()

	if err := s.products.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return p, nil
}

// Resubmit sends a rejected product back to the approval queue.
func (s *ProductService) Resubmit(ctx context.Context, actor model.Actor, id string) (*model.Product, error) {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Approval != model.ApprovalRejected {
		return nil, fmt.Errorf("product %s is %s, only rejected products can be resubmitted: %w", id, p.Approval, model.ErrConflict)
	}

	p.Approval = model.ApprovalPending
	p.Active = false
	p.UpdatedAt = s.now()
	if err := s.products.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("resubmit product %s: %w", id, err)
	}
	return p, nil
}

func (s *ProductService) Approve(ctx context.Context, actor model.Actor, id string) (*model.Product, error) {
	p, err := s.adminGet(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	p.Approval = model.ApprovalApproved
	p.Active = true
	p.RejectionReason = ""
	p.UpdatedAt = s.now()
	if err := s.products.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("approve product %s: %w", id, err)
	}

	s.logger.Info("product approved", zap.String("product_id", id), zap.String("actor", actor.String()))
	s.notifySupplier(ctx, p, "Product approved", fmt.Sprintf("%s is now live in the catalog.", p.Name))
	return p, nil
}

func (s *ProductService) Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.Product, error) {
	p, err := s.adminGet(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	p.Approval = model.ApprovalRejected
	p.Active = false
	p.RejectionReason = reason
	p.UpdatedAt = s.now()
	if err := s.products.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("reject product %s: %w", id, err)
	}

	s.logger.Info("product rejected", zap.String("product_id", id), zap.String("reason", reason))
	msg := fmt.Sprintf("%s was not approved.", p.Name)
	if reason != "" {
		msg += " Reason: " + reason
	}
	s.notifySupplier(ctx, p, "Product rejected", msg)
	return p, nil
}

// SetActive soft-enables or disables a product. Only approved products can
// be activated.
func (s *ProductService) SetActive(ctx context.Context, actor model.Actor, id string, active bool) (*model.Product, error) {
	p, err := s.adminGet(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if active && p.Approval != model.ApprovalApproved {
		return nil, fmt.Errorf("product %s is %s: %w", id, p.Approval, model.ErrConflict)
	}

	p.Active = active
	p.UpdatedAt = s.now()
	if err := s.products.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("set product %s active=%v: %w", id, active, err)
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, actor model.Actor, id string) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("delete product as %s: %w", actor, model.ErrForbidden)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id), zap.String("actor", actor.String()))
	return nil
}

// AdjustStock adds delta (negative to remove) to the product's stock.
func (s *ProductService) AdjustStock(ctx context.Context, actor model.Actor, id string, delta int) (*model.Product, error) {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Stock+delta < 0 {
		return nil, fmt.Errorf("product %s: stock %d cannot drop by %d: %w", id, p.Stock, -delta, model.ErrInsufficientStock)
	}
	p.Stock += delta
	p.UpdatedAt = s.now()
	if err := s.products.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("adjust stock %s: %w", id, err)
	}
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	return s.products.Get(ctx, id)
}

// Catalog lists what customers can see: active, approved, non-negative
// stock. Out-of-stock products are included and flagged by Visibility.
func (s *ProductService) Catalog(ctx context.Context, category string) ([]model.Product, error) {
	all, err := s.products.List(ctx, store.ProductFilter{
		Category:   strings.ToLower(category),
		Approval:   model.ApprovalApproved,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	visible := all[:0]
	for _, p := range all {
		if p.IsVisible() {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

func (s *ProductService) PendingApproval(ctx context.Context) ([]model.Product, error) {
	return s.products.List(ctx, store.ProductFilter{Approval: model.ApprovalPending})
}

func (s *ProductService) BySupplier(ctx context.Context, supplierID string) ([]model.Product, error) {
	return s.products.List(ctx, store.ProductFilter{SupplierID: supplierID})
}

func (s *ProductService) owned(ctx context.Context, actor model.Actor, id string) (*model.Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (actor.Role != model.RoleSupplier || p.SupplierID != actor.ID) {
		return nil, fmt.Errorf("product %s belongs to another supplier: %w", id, model.ErrForbidden)
	}
	return p, nil
}

func (s *ProductService) adminGet(ctx context.Context, actor model.Actor, id string) (*model.Product, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%s is not an admin: %w", actor, model.ErrForbidden)
	}
	return s.products.Get(ctx, id)
}

func (s *ProductService) notifySupplier(ctx context.Context, p *model.Product, title, message string) {
	err := s.notifier.Notify(ctx, p.SupplierID, model.Notification{
		Title:     title,
		Message:   message,
		Type:      model.NotificationProduct,
		ActionURL: "/supplier/products/" + p.ID,
	})
	if err != nil {
		s.logger.Warn("notification failed", zap.String("supplier_id", p.SupplierID), zap.Error(err))
	}
}
