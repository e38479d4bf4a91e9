package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AggregateType     = "order"
	EventOrderCreated = "OrderCreated"
)

type OrderCreated struct {
	OrderID     string             `json:"order_id"`
	CreatedAt   time.Time          `json:"created_at"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Items       []OrderCreatedItem `json:"items"`
}

type OrderCreatedItem struct {
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"price_at_sale"`
}

func NewOrderCreated(o Order) OrderCreated {
	items := make([]OrderCreatedItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderCreatedItem{
			ProductID:   item.ProductID.String(),
			Quantity:    item.Quantity,
			PriceAtSale: item.PriceAtSale,
		})
	}
	return OrderCreated{
		OrderID:     o.ID.String(),
		CreatedAt:   o.CreatedAt,
		TotalAmount: o.TotalAmount,
		Items:       items,
	}
}
