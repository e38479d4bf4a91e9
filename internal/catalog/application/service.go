package application

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
)

type Service struct {
	log   *slog.Logger
	repo  ProductRepository
	cache ProductCache
}

func NewService(log *slog.Logger, repo ProductRepository, cache ProductCache) *Service {
	if cache == nil {
		cache = NoCache{}
	}
	return &Service{log: log, repo: repo, cache: cache}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.log.Warn("product cache read failed", "err", err)
	}
	if ok {
		return products, nil
	}

	gen, genErr := s.cache.Generation(ctx)
	products, err = s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		s.log.Warn("product cache read failed", "err", genErr)
		return products, nil
	}
	if err := s.cache.Set(ctx, gen, products); err != nil {
		s.log.Warn("product cache write failed", "err", err)
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, np domain.NewProduct) (domain.Product, error) {
	np.Name = strings.TrimSpace(np.Name)
	np.Description = strings.TrimSpace(np.Description)
	if err := np.Validate(); err != nil {
		return domain.Product{}, err
	}

	exists, err := s.repo.NameExists(ctx, np.Name)
	if err != nil {
		return domain.Product{}, err
	}
	if exists {
		return domain.Product{}, domain.ErrDuplicateName()
	}

	p := domain.Product{
		ID:          uuid.New(),
		Name:        np.Name,
		Description: np.Description,
		Price:       np.Price,
		Stock:       np.Stock,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx)
	s.log.Info("product created", "product_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, patch domain.Patch) (domain.Product, error) {
	if err := patch.Validate(); err != nil {
		return domain.Product{}, err
	}
	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// SeedIfEmpty inserts products only into an empty catalog and reports how many it wrote.
func (s *Service) SeedIfEmpty(ctx context.Context, products []domain.NewProduct) (int, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, np := range products {
		if _, err := s.CreateProduct(ctx, np); err != nil {
			return i, err
		}
	}
	return len(products), nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("product cache invalidation failed", "err", err)
	}
}
