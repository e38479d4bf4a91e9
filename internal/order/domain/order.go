package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
)

// ItemRequest is one requested (product, quantity) pair.
type ItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// LineItem is immutable once its order is persisted. Name and description
// are snapshotted together with the price so history survives catalog edits.
type LineItem struct {
	ProductID   uuid.UUID
	Name        string
	Description string
	Quantity    int
	PriceAtSale decimal.Decimal
}

type Order struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	TotalAmount decimal.Decimal
	Items       []LineItem
}

func NewLineItem(p catalog.Product, quantity int) LineItem {
	return LineItem{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Quantity:    quantity,
		PriceAtSale: p.Price,
	}
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.PriceAtSale.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func NewOrder(id uuid.UUID, createdAt time.Time, items []LineItem) (Order, error) {
	if len(items) == 0 {
		return Order{}, apperr.Invalidf("order must contain at least one item")
	}
	lines := make([]LineItem, len(items))
	copy(lines, items)
	return Order{
		ID:          id,
		CreatedAt:   createdAt,
		TotalAmount: Total(lines),
		Items:       lines,
	}, nil
}

// Balanced reports whether the stored total matches the line items.
func (o Order) Balanced() bool {
	return o.TotalAmount.Equal(Total(o.Items))
}

// Clone returns a copy that shares no slice with o.
func (o Order) Clone() Order {
	o.Items = append([]LineItem(nil), o.Items...)
	return o
}

// NormalizeItems validates a request and merges lines for the same product,
// keeping first-occurrence order.
func NormalizeItems(items []ItemRequest) ([]ItemRequest, error) {
	if len(items) == 0 {
		return nil, apperr.Invalidf("order must contain at least one item")
	}
	out := make([]ItemRequest, 0, len(items))
	pos := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, apperr.Invalidf("product id is required")
		}
		if item.Quantity < 1 {
			return nil, apperr.Invalidf("quantity must be at least 1")
		}
		if i, ok := pos[item.ProductID]; ok {
			if out[i].Quantity > math.MaxInt32-item.Quantity {
				return nil, apperr.Invalidf("quantity is too large")
			}
			out[i].Quantity += item.Quantity
			continue
		}
		if item.Quantity > math.MaxInt32 {
			return nil, apperr.Invalidf("quantity is too large")
		}
		pos[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out, nil
}

func ProductIDs(items []ItemRequest) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// CheckStock fails with InsufficientStockError when p cannot cover quantity.
func CheckStock(p catalog.Product, quantity int) error {
	if quantity > p.Stock {
		return &InsufficientStockError{
			ProductID: p.ID,
			Name:      p.Name,
			Requested: quantity,
			Available: p.Stock,
		}
	}
	return nil
}
