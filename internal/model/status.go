package model

import "fmt"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPicking        OrderStatus = "picking"
	OrderStatusPacking        OrderStatus = "packing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPicking,
	OrderStatusPacking,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// forward maps each non-terminal status to its single successor.
// Cancellation is allowed from every non-terminal status.
var forward = map[OrderStatus]OrderStatus{
	OrderStatusPending:        OrderStatusConfirmed,
	OrderStatusConfirmed:      OrderStatusPicking,
	OrderStatusPicking:        OrderStatusPacking,
	OrderStatusPacking:        OrderStatusOutForDelivery,
	OrderStatusOutForDelivery: OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsActive reports whether the order is still in flight.
func (s OrderStatus) IsActive() bool {
	return s.Valid() && !s.IsTerminal()
}

// Next returns the forward successor, if any.
func (s OrderStatus) Next() (OrderStatus, bool) {
	next, ok := forward[s]
	return next, ok
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s.IsTerminal() || !s.Valid() {
		return false
	}
	if target == OrderStatusCancelled {
		return true
	}
	return forward[s] == target
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func ValidateTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return &TransitionError{From: from, To: to}
	}
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
