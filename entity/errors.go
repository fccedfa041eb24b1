package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientInventory  = errors.New("insufficient inventory")
	ErrCategoryNotOnSale      = errors.New("category not on sale")
	ErrInvalidAccessToken     = errors.New("invalid or expired access token")
	ErrPromoCodeNotFound      = errors.New("promo code not found")
	ErrPromoCodeExpired       = errors.New("promo code expired")
	ErrPromoCodeNotYetValid   = errors.New("promo code not yet valid")
	ErrPromoCodeNotApplicable = errors.New("promo code not applicable")
	ErrPromoCodeExhausted     = errors.New("promo code exhausted")
	ErrValidationFailed       = errors.New("validation failed")
	ErrStateConflict          = errors.New("reservation no longer available")
	ErrPaymentFailed          = errors.New("payment failed")
	ErrConfiguration          = errors.New("configuration error")
)

type InsufficientInventoryError struct {
	CategoryID int64
	Requested  int
	Available  int
}

func (e InsufficientInventoryError) Error() string {
	return fmt.Sprintf("not enough tickets in category %d: tickets available %d, tickets requested %d",
		e.CategoryID, e.Available, e.Requested)
}

func (e InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

type FieldError struct {
	Field string `json:"field"`
	Code  string `json:"code"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, code string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code})
}

// Err returns nil when no field failed.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return *e
}

func (e ValidationError) Error() string {
	fields := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = f.Field + ": " + f.Code
	}
	return "validation failed: " + strings.Join(fields, ", ")
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

type StateConflictError struct {
	ReservationID string
	Expected      []ReservationStatus
	Actual        ReservationStatus
}

func (e StateConflictError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = string(s)
	}
	return fmt.Sprintf("reservation %s is %s, expected one of [%s]",
		e.ReservationID, e.Actual, strings.Join(expected, ", "))
}

func (e StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}

type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func (e ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
