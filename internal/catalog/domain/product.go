package domain

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
)

// MaxPrice is the largest value a NUMERIC(9,2) price column holds.
var MaxPrice = decimal.RequireFromString("9999999.99")

type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

type NewProduct struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// Patch carries the optional fields of a product update.
type Patch struct {
	Price *decimal.Decimal
	Stock *int
}

func (p NewProduct) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.Invalidf("name is required")
	}
	if strings.TrimSpace(p.Description) == "" {
		return apperr.Invalidf("description is required")
	}
	if err := ValidatePrice(p.Price); err != nil {
		return err
	}
	return ValidateStock(p.Stock)
}

func (p Patch) Validate() error {
	if p.Price == nil && p.Stock == nil {
		return apperr.Invalidf("at least one of price or stock must be provided")
	}
	if p.Price != nil {
		if err := ValidatePrice(*p.Price); err != nil {
			return err
		}
	}
	if p.Stock != nil {
		return ValidateStock(*p.Stock)
	}
	return nil
}

func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return apperr.Invalidf("price must be greater than zero")
	}
	if !price.Equal(price.Round(2)) {
		return apperr.Invalidf("price must have at most two decimal places")
	}
	if price.GreaterThan(MaxPrice) {
		return apperr.Invalidf("price must not exceed %s", MaxPrice.StringFixed(2))
	}
	return nil
}

func ValidateStock(stock int) error {
	if stock < 0 {
		return apperr.Invalidf("stock must not be negative")
	}
	if stock > math.MaxInt32 {
		return apperr.Invalidf("stock must not exceed %d", math.MaxInt32)
	}
	return nil
}

// Apply returns a copy of p with the patch applied.
func (p Product) Apply(patch Patch) Product {
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	return p
}

func ErrNotFound() error {
	return apperr.NotFoundf("no product with the given ID exists")
}

func ErrDuplicateName() error {
	return apperr.Invalidf("a product with the same name already exists")
}
