package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewProductValidate(t *testing.T) {
	valid := NewProduct{Name: "Tent", Description: "4-person", Price: price("250.00"), Stock: 15}

	tests := []struct {
		name   string
		mutate func(*NewProduct)
		ok     bool
	}{
		{"valid", func(*NewProduct) {}, true},
		{"zero stock is fine", func(p *NewProduct) { p.Stock = 0 }, true},
		{"blank name", func(p *NewProduct) { p.Name = "  " }, false},
		{"blank description", func(p *NewProduct) { p.Description = "" }, false},
		{"zero price", func(p *NewProduct) { p.Price = decimal.Zero }, false},
		{"negative price", func(p *NewProduct) { p.Price = price("-1") }, false},
		{"three decimals", func(p *NewProduct) { p.Price = price("1.005") }, false},
		{"trailing zeros are fine", func(p *NewProduct) { p.Price = price("1.500") }, true},
		{"too large", func(p *NewProduct) { p.Price = price("10000000") }, false},
		{"negative stock", func(p *NewProduct) { p.Stock = -1 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			err := p.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
		})
	}
}

func TestPatch(t *testing.T) {
	assert.Error(t, Patch{}.Validate())

	newPrice := price("9.00")
	newStock := 3
	p := Product{Name: "Mouse", Price: price("5.00"), Stock: 10}

	got := p.Apply(Patch{Price: &newPrice})
	assert.True(t, got.Price.Equal(newPrice))
	assert.Equal(t, 10, got.Stock)
	assert.True(t, p.Price.Equal(price("5.00")), "apply must not mutate the receiver")

	got = p.Apply(Patch{Stock: &newStock})
	assert.Equal(t, 3, got.Stock)
	assert.NoError(t, Patch{Stock: &newStock}.Validate())
}
