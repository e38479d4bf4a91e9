package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalog "github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	"github.com/dmehra2102/inventory-order-system/internal/order/application"
	"github.com/dmehra2102/inventory-order-system/internal/order/domain"
	platformpg "github.com/dmehra2102/inventory-order-system/internal/platform/postgres"
	"github.com/dmehra2102/inventory-order-system/pkg/outbox"
)

type Repository struct {
	log         *slog.Logger
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{log: log, pool: pool, lockTimeout: lockTimeout}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func collectProducts(rows pgx.Rows) ([]catalog.Product, error) {
	defer rows.Close()
	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, price, stock
		FROM products
		WHERE id = ANY($1::uuid[])`, idStrings(ids))
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (r *Repository) Settle(ctx context.Context, fn func(ctx context.Context, tx application.SettlementTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if r.lockTimeout > 0 {
		ms := r.lockTimeout.Milliseconds()
		if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL lock_timeout = %d`, ms)); err != nil {
			return err
		}
	}

	if err := fn(ctx, &settlementTx{tx: tx}); err != nil {
		return contention(err)
	}
	return contention(tx.Commit(ctx))
}

func contention(err error) error {
	if err != nil && platformpg.IsContention(err) {
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}

type settlementTx struct {
	tx pgx.Tx
}

func (s *settlementTx) LockProducts(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT id, name, description, price, stock
		FROM products
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE`, idStrings(ids))
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *settlementTx) DecrementStock(ctx context.Context, items []domain.ItemRequest) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`, item.ProductID, item.Quantity)
	}
	br := s.tx.SendBatch(ctx, batch)

	short := -1
	for i := range items {
		ct, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return err
		}
		if ct.RowsAffected() == 0 && short < 0 {
			short = i
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	if short < 0 {
		return nil
	}

	item := items[short]
	var p catalog.Product
	err := s.tx.QueryRow(ctx, `SELECT id, name, stock FROM products WHERE id = $1`, item.ProductID).Scan(&p.ID, &p.Name, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUnknownProducts()
	}
	if err != nil {
		return err
	}
	if err := domain.CheckStock(p, item.Quantity); err != nil {
		return err
	}
	return fmt.Errorf("stock guard rejected product %s", item.ProductID)
}

func (s *settlementTx) PersistOrder(ctx context.Context, o domain.Order) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO orders (id, created_at, total_amount) VALUES ($1,$2,$3)`,
		o.ID, o.CreatedAt, o.TotalAmount)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, position, product_id, product_name, product_description, quantity, price_at_sale)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, i, item.ProductID, item.Name, item.Description, item.Quantity, item.PriceAtSale)
	}
	return s.tx.SendBatch(ctx, batch).Close()
}

func (s *settlementTx) Enqueue(ctx context.Context, ev outbox.Event) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		ev.AggregateType, ev.AggregateID, ev.Type, ev.Payload, ev.Headers, ev.Traceparent)
	return err
}

func (r *Repository) FetchOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `SELECT id, created_at, total_amount FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.CreatedAt, &o.TotalAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound()
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT order_id, product_id, product_name, product_description, quantity, price_at_sale
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`, id)
	if err != nil {
		return domain.Order{}, err
	}
	items, err := collectItems(rows)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[o.ID]
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

// FetchAllOrders reads orders and their items from one snapshot, so an order
// committed between the two queries cannot appear without its items.
func (r *Repository) FetchAllOrders(ctx context.Context) ([]domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `SELECT id, created_at, total_amount FROM orders ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	orders := []domain.Order{}
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.CreatedAt, &o.TotalAmount); err != nil {
			rows.Close()
			return nil, err
		}
		o.CreatedAt = o.CreatedAt.UTC()
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `
		SELECT order_id, product_id, product_name, product_description, quantity, price_at_sale
		FROM order_items
		ORDER BY order_id, position`)
	if err != nil {
		return nil, err
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, tx.Commit(ctx)
}

func collectItems(rows pgx.Rows) (map[uuid.UUID][]domain.LineItem, error) {
	defer rows.Close()
	items := map[uuid.UUID][]domain.LineItem{}
	for rows.Next() {
		var orderID uuid.UUID
		var li domain.LineItem
		if err := rows.Scan(&orderID, &li.ProductID, &li.Name, &li.Description, &li.Quantity, &li.PriceAtSale); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], li)
	}
	return items, rows.Err()
}
