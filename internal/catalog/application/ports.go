package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
)

type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	NameExists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, p domain.Product) error
	Update(ctx context.Context, id uuid.UUID, patch domain.Patch) (domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductCache holds the full product listing. Every Invalidate bumps a
// generation; Set stores nothing unless the generation still matches the
// one read before the listing was loaded.
type ProductCache interface {
	Get(ctx context.Context) ([]domain.Product, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, gen int64, products []domain.Product) error
	Invalidate(ctx context.Context) error
}

type NoCache struct{}

func (NoCache) Get(context.Context) ([]domain.Product, bool, error) { return nil, false, nil }
func (NoCache) Generation(context.Context) (int64, error)           { return 0, nil }
func (NoCache) Set(context.Context, int64, []domain.Product) error   { return nil }
func (NoCache) Invalidate(context.Context) error                     { return nil }
