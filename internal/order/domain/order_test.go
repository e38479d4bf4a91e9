package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
)

func TestNormalizeItems(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	got, err := NormalizeItems([]ItemRequest{{a, 2}, {b, 1}, {a, 3}})
	require.NoError(t, err)
	assert.Equal(t, []ItemRequest{{a, 5}, {b, 1}}, got)

	tests := []struct {
		name  string
		items []ItemRequest
	}{
		{"empty", nil},
		{"zero quantity", []ItemRequest{{a, 0}}},
		{"negative quantity", []ItemRequest{{a, -2}}},
		{"nil product", []ItemRequest{{uuid.Nil, 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeItems(tc.items)
			assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
		})
	}
}

func TestNewOrderTotals(t *testing.T) {
	boots := catalog.Product{ID: uuid.New(), Name: "Hiking Boots", Price: decimal.RequireFromString("129.99"), Stock: 25}
	mouse := catalog.Product{ID: uuid.New(), Name: "Mouse", Price: decimal.RequireFromString("0.10"), Stock: 200}

	lines := []LineItem{NewLineItem(boots, 3), NewLineItem(mouse, 7)}
	o, err := NewOrder(uuid.New(), time.Now(), lines)
	require.NoError(t, err)

	assert.Equal(t, "390.67", o.TotalAmount.StringFixed(2))
	assert.True(t, o.Balanced())

	lines[0].Quantity = 100
	assert.Equal(t, 3, o.Items[0].Quantity, "order must not alias the caller's slice")

	c := o.Clone()
	c.Items[0].Quantity = 42
	assert.Equal(t, 3, o.Items[0].Quantity)

	_, err = NewOrder(uuid.New(), time.Now(), nil)
	assert.True(t, apperr.Is(err, apperr.Invalid))
}

func TestCheckStock(t *testing.T) {
	p := catalog.Product{ID: uuid.New(), Name: "Tent", Stock: 2}
	assert.NoError(t, CheckStock(p, 2))

	err := CheckStock(p, 5)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, p.ID, stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, apperr.InsufficientStock, apperr.KindOf(err))
	assert.Equal(t, "insufficient stock for product: Tent", err.Error())
}
