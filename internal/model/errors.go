package model

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrValidation           = errors.New("validation failed")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrFulfilmentIncomplete = errors.New("fulfilment incomplete")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientFunds    = errors.New("insufficient funds")
)
