package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingField     = errors.New("missing required field")
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
	ErrInvalidValue     = errors.New("invalid field value")
)

// MissingFieldError reports the keys a product record lacks, out of the
// Required set checked.
type MissingFieldError struct {
	Required []string
	Fields   []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: product data must include keys [%s], missing [%s]",
		ErrMissingField, strings.Join(e.Required, ", "), strings.Join(e.Fields, ", "))
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// NegativeQuantityError is returned when a quantity update would go below zero.
type NegativeQuantityError struct {
	ID  int64
	Qty int
}

func (e *NegativeQuantityError) Error() string {
	return fmt.Sprintf("%s: product %d, qty %d", ErrNegativeQuantity, e.ID, e.Qty)
}

func (e *NegativeQuantityError) Is(target error) bool { return target == ErrNegativeQuantity }
