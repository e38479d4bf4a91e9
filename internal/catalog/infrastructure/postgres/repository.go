package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	platformpg "github.com/dmehra2102/inventory-order-system/internal/platform/postgres"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const productColumns = `id, name, description, price, stock`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock)
	return p, err
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE lower(name) = lower($1))`, name).Scan(&exists)
	return exists, err
}

func (r *Repository) Create(ctx context.Context, p domain.Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO products (id, name, description, price, stock) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.Description, p.Price, p.Stock)
	if platformpg.HasCode(err, platformpg.CodeUniqueViolation) {
		return domain.ErrDuplicateName()
	}
	return err
}

// Update writes the patch in one statement; the row lock it takes
// serialises it with any settlement holding the same product.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, patch domain.Patch) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE products
		SET price = COALESCE($2::numeric, price),
		    stock = COALESCE($3::integer, stock)
		WHERE id = $1
		RETURNING `+productColumns,
		id, patch.Price, patch.Stock)

	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound()
	}
	return p, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound()
	}
	return nil
}
