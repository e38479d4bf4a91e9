package application

import (
	"context"

	"github.com/google/uuid"

	catalog "github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	"github.com/dmehra2102/inventory-order-system/internal/order/domain"
	"github.com/dmehra2102/inventory-order-system/pkg/outbox"
)

type OrderStore interface {
	// FindProducts returns the products that exist among ids, in any order.
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error)
	// Settle runs fn inside one all-or-nothing transaction. The handle is
	// released on every exit path; nothing fn wrote is visible unless Settle
	// returns nil. Lost races come back wrapped in domain.ErrConflict.
	Settle(ctx context.Context, fn func(ctx context.Context, tx SettlementTx) error) error
	FetchOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	FetchAllOrders(ctx context.Context) ([]domain.Order, error)
}

type SettlementTx interface {
	// LockProducts locks the rows for ids in ascending id order and returns
	// their current state. Missing ids are left out.
	LockProducts(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error)
	// DecrementStock applies every guarded decrement or fails with
	// *domain.InsufficientStockError naming the product that ran short.
	DecrementStock(ctx context.Context, items []domain.ItemRequest) error
	PersistOrder(ctx context.Context, o domain.Order) error
	Enqueue(ctx context.Context, ev outbox.Event) error
}
