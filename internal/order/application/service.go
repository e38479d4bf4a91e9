package application

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	catalogapp "github.com/dmehra2102/inventory-order-system/internal/catalog/application"
	catalog "github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	"github.com/dmehra2102/inventory-order-system/internal/order/domain"
	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
	"github.com/dmehra2102/inventory-order-system/pkg/outbox"
	"github.com/dmehra2102/inventory-order-system/pkg/tracing"
)

type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Now         func() time.Time

	// ProductCache is invalidated after every settled order so listings
	// show the decremented stock.
	ProductCache catalogapp.ProductCache
}

type Service struct {
	log    *slog.Logger
	store  OrderStore
	opts   Options
	tracer trace.Tracer
}

func NewService(log *slog.Logger, store OrderStore, opts Options) *Service {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 20 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ProductCache == nil {
		opts.ProductCache = catalogapp.NoCache{}
	}
	return &Service{
		log:    log,
		store:  store,
		opts:   opts,
		tracer: otel.Tracer("order-service"),
	}
}

// CreateOrder resolves, validates and settles items. On any error nothing
// has been written.
func (s *Service) CreateOrder(ctx context.Context, items []domain.ItemRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CreateOrder")
	defer span.End()

	order, err := s.createOrder(ctx, items)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.kind", apperr.KindOf(err).String()))
		return domain.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID.String()))
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, items []domain.ItemRequest) (domain.Order, error) {
	items, err := domain.NormalizeItems(items)
	if err != nil {
		return domain.Order{}, err
	}
	ids := domain.ProductIDs(items)

	products, err := s.store.FindProducts(ctx, ids)
	if err != nil {
		return domain.Order{}, err
	}
	byID, err := index(products, ids)
	if err != nil {
		return domain.Order{}, err
	}
	for _, item := range items {
		if err := domain.CheckStock(byID[item.ProductID], item.Quantity); err != nil {
			return domain.Order{}, err
		}
	}

	var order domain.Order
	settle := func(ctx context.Context, tx SettlementTx) error {
		o, err := s.settle(ctx, tx, items)
		if err != nil {
			return err
		}
		order = o
		return nil
	}

	for attempt := 1; ; attempt++ {
		err = s.store.Settle(ctx, settle)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Order{}, err
		}
		if attempt >= s.opts.MaxAttempts {
			s.log.Error("settlement retries exhausted", "attempts", attempt, "err", err)
			return domain.Order{}, apperr.Wrap(apperr.Conflict, "order could not be settled due to concurrent updates, retry", err)
		}
		s.log.Warn("settlement conflict, retrying", "attempt", attempt, "err", err)
		if err := s.backoff(ctx, attempt); err != nil {
			return domain.Order{}, err
		}
	}

	if err := s.opts.ProductCache.Invalidate(ctx); err != nil {
		s.log.Warn("product cache invalidation failed", "order_id", order.ID, "err", err)
	}
	s.log.Info("order created", "order_id", order.ID, "total", order.TotalAmount.StringFixed(2), "items", len(order.Items))
	return order, nil
}

// settle is the body of the settlement transaction: re-check under lock,
// decrement, snapshot prices, total, persist.
func (s *Service) settle(ctx context.Context, tx SettlementTx, items []domain.ItemRequest) (domain.Order, error) {
	ids := domain.ProductIDs(items)
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })

	locked, err := tx.LockProducts(ctx, sorted)
	if err != nil {
		return domain.Order{}, err
	}
	byID, err := index(locked, ids)
	if err != nil {
		return domain.Order{}, err
	}

	lines := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		p := byID[item.ProductID]
		if err := domain.CheckStock(p, item.Quantity); err != nil {
			return domain.Order{}, err
		}
		lines = append(lines, domain.NewLineItem(p, item.Quantity))
	}
	if err := tx.DecrementStock(ctx, items); err != nil {
		return domain.Order{}, err
	}

	o, err := domain.NewOrder(uuid.New(), s.opts.Now().UTC().Truncate(time.Microsecond), lines)
	if err != nil {
		return domain.Order{}, err
	}
	if err := tx.PersistOrder(ctx, o); err != nil {
		return domain.Order{}, err
	}

	ev, err := outbox.NewEvent(domain.AggregateType, o.ID.String(), domain.EventOrderCreated,
		domain.NewOrderCreated(o), map[string]string{"source": "order-service"}, tracing.Traceparent(ctx))
	if err != nil {
		return domain.Order{}, err
	}
	if err := tx.Enqueue(ctx, ev); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "GetOrder")
	defer span.End()
	return s.store.FetchOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ListOrders")
	defer span.End()
	return s.store.FetchAllOrders(ctx)
}

func (s *Service) backoff(ctx context.Context, attempt int) error {
	exp := s.opts.BaseBackoff * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int64N(int64(exp/2) + 1))
	t := time.NewTimer(exp + jitter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func index(products []catalog.Product, want []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	byID := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range want {
		if _, ok := byID[id]; !ok {
			return nil, domain.ErrUnknownProducts()
		}
	}
	return byID, nil
}
