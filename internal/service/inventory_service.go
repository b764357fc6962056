package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/store"
)

// InventoryService holds stock for orders. Reservations are persisted so a
// later cancellation can put the stock back.
type InventoryService struct {
	mu           sync.Mutex
	products     *store.Products
	reservations *store.Reservations
	logger       *zap.Logger
	now          func() time.Time
}

func NewInventoryService(products *store.Products, reservations *store.Reservations, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		products:     products,
		reservations: reservations,
		logger:       logger,
		now:          time.Now,
	}
}

// ReserveItems decrements stock for every item or for none of them. A
// failure part way through is rolled back even when ctx is already done.
func (s *InventoryService) ReserveItems(ctx context.Context, orderID string, items []model.OrderItem) ([]model.InventoryReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		taken        []model.OrderItem
		reservations = make([]model.InventoryReservation, 0, len(items))
	)
	undo := func() {
		rollback := context.WithoutCancel(ctx)
		for _, item := range taken {
			if err := s.addStock(rollback, item.ProductID, item.Quantity); err != nil {
				s.logger.Error("failed to restore stock",
					zap.String("order_id", orderID),
					zap.String("product_id", item.ProductID), zap.Error(err))
			}
		}
		for _, res := range reservations {
			res.Status = model.ReservationStatusReleased
			if err := s.reservations.Save(rollback, &res); err != nil {
				s.logger.Error("failed to release reservation",
					zap.String("reservation_id", res.ID), zap.Error(err))
			}
		}
	}

	for _, item := range items {
		product, err := s.products.Get(ctx, item.ProductID)
		if err != nil {
			undo()
			return nil, err
		}
		if product.Stock < item.Quantity {
			undo()
			return nil, fmt.Errorf("product %s: requested %d, available %d: %w",
				item.ProductID, item.Quantity, product.Stock, model.ErrInsufficientStock)
		}
		product.Stock -= item.Quantity
		product.UpdatedAt = s.now()
		if err := s.products.Save(ctx, product); err != nil {
			undo()
			return nil, fmt.Errorf("reserve %s: %w", item.ProductID, err)
		}
		taken = append(taken, item)
	}

	for _, item := range items {
		res := model.InventoryReservation{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Status:    model.ReservationStatusReserved,
			CreatedAt: s.now(),
		}
		if err := s.reservations.Save(ctx, &res); err != nil {
			undo()
			return nil, fmt.Errorf("record reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	return reservations, nil
}

// ReleaseItems returns the stock held for orderID. Releasing twice is a no-op.
func (s *InventoryService) ReleaseItems(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservations, err := s.reservations.ByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, res := range reservations {
		if res.Status != model.ReservationStatusReserved {
			continue
		}
		if err := s.addStock(ctx, res.ProductID, res.Quantity); err != nil {
			return err
		}
		res.Status = model.ReservationStatusReleased
		if err := s.reservations.Save(ctx, &res); err != nil {
			return fmt.Errorf("release reservation %s: %w", res.ID, err)
		}
	}
	return nil
}

func (s *InventoryService) addStock(ctx context.Context, productID string, qty int) error {
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return err
	}
	product.Stock += qty
	product.UpdatedAt = s.now()
	return s.products.Save(ctx, product)
}

func (s *InventoryService) GetStock(ctx context.Context, productID string) (int, error) {
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return product.Stock, nil
}

// ReleaseOnCancel is an order transition hook returning stock when an order
// is cancelled.
func (s *InventoryService) ReleaseOnCancel(ctx context.Context, order *model.Order, _ model.OrderStatus) error {
	if order.Status != model.OrderStatusCancelled {
		return nil
	}
	return s.ReleaseItems(ctx, order.ID)
}
