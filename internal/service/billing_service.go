package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/store"
)

// WalletService charges prepaid customer wallets for wallet-paid orders.
// Balances are wallet documents; charges are recorded in the payments
// collection.
type WalletService struct {
	mu       sync.Mutex
	wallets  *store.Wallets
	payments *store.Payments
	logger   *zap.Logger
	now      func() time.Time
}

func NewWalletService(wallets *store.Wallets, payments *store.Payments, logger *zap.Logger) *WalletService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{
		wallets:  wallets,
		payments: payments,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *WalletService) Balance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	w, err := s.wallets.Get(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// SetBalance overwrites a balance. Used for seeding and corrections.
func (s *WalletService) SetBalance(ctx context.Context, customerID string, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("wallet balance cannot be negative: %w", model.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets.Save(ctx, &model.Wallet{CustomerID: customerID, Balance: balance, UpdatedAt: s.now()})
}

// Credit tops up a wallet by a positive amount.
func (s *WalletService) Credit(ctx context.Context, customerID string, amount decimal.Decimal) (*model.Wallet, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("credit amount must be greater than zero: %w", model.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.add(ctx, customerID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("wallet credited",
		zap.String("customer_id", customerID),
		zap.String("amount", amount.String()),
		zap.String("balance", w.Balance.String()))
	return w, nil
}

func (s *WalletService) add(ctx context.Context, customerID string, amount decimal.Decimal) (*model.Wallet, error) {
	w, err := s.wallets.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = s.now()
	if err := s.wallets.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("update wallet %s: %w", customerID, err)
	}
	return w, nil
}

func (s *WalletService) Charge(ctx context.Context, orderID, customerID string, amount decimal.Decimal) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.wallets.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if w.Balance.LessThan(amount) {
		return nil, fmt.Errorf("wallet balance %s, required %s: %w",
			w.Balance.StringFixed(2), amount.StringFixed(2), model.ErrInsufficientFunds)
	}

	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = s.now()
	if err := s.wallets.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("debit wallet %s: %w", customerID, err)
	}

	payment := &model.Payment{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		CustomerID: customerID,
		Amount:     amount,
		Status:     model.PaymentStatusCompleted,
		CreatedAt:  s.now(),
	}
	if err := s.payments.Save(ctx, payment); err != nil {
		if _, rerr := s.add(context.WithoutCancel(ctx), customerID, amount); rerr != nil {
			s.logger.Error("failed to restore wallet after unrecorded charge",
				zap.String("customer_id", customerID),
				zap.String("amount", amount.String()),
				zap.Error(rerr))
		}
		return nil, fmt.Errorf("record payment: %w", err)
	}
	return payment, nil
}

// RefundByOrderID credits back every completed charge for orderID.
func (s *WalletService) RefundByOrderID(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payments, err := s.payments.ByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.Status != model.PaymentStatusCompleted {
			continue
		}
		p.Status = model.PaymentStatusRefunded
		if err := s.payments.Save(ctx, &p); err != nil {
			return fmt.Errorf("refund payment %s: %w", p.ID, err)
		}
		if _, err := s.add(ctx, p.CustomerID, p.Amount); err != nil {
			return fmt.Errorf("refund payment %s: %w", p.ID, err)
		}
		s.logger.Info("wallet refunded",
			zap.String("order_id", orderID),
			zap.String("customer_id", p.CustomerID),
			zap.String("amount", p.Amount.String()))
	}
	return nil
}

// RefundOnCancel is an order transition hook refunding wallet orders.
func (s *WalletService) RefundOnCancel(ctx context.Context, order *model.Order, _ model.OrderStatus) error {
	if order.Status != model.OrderStatusCancelled || order.PaymentMethod != model.PaymentWallet {
		return nil
	}
	return s.RefundByOrderID(ctx, order.ID)
}
