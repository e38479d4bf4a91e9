package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
)

// ErrConflict marks a settlement attempt that lost a race with another
// transaction (lock timeout, deadlock, serialization failure). It is safe to
// retry the whole settlement.
var ErrConflict = errors.New("settlement conflict")

type InsufficientStockError struct {
	ProductID uuid.UUID
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product: %s", e.Name)
}

func (e *InsufficientStockError) Kind() apperr.Kind { return apperr.InsufficientStock }

func ErrUnknownProducts() error {
	return apperr.Invalidf("one or more products do not exist")
}

func ErrNotFound() error {
	return apperr.NotFoundf("no order with the given ID exists")
}
