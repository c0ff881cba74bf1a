package store

import (
	"context"
	"errors"
	"fmt"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE raised when a unique constraint is broken.
const pgUniqueViolation = "23505"

// PgProductStore is a ProductStore backed by PostgreSQL.
type PgProductStore struct {
	db *pgxpool.Pool
}

// NewPgProductStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgProductStore(dbp *pgxpool.Pool) *PgProductStore {
	return &PgProductStore{db: dbp}
}

func (p *PgProductStore) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := p.db.Query(ctx, `SELECT id, name, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindProduct, err)
	}
	products, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Product])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindProduct, err)
	}
	return products, nil
}

func (p *PgProductStore) FindByID(ctx context.Context, id int64) (*Product, error) {
	row := p.db.QueryRow(ctx, `SELECT id, name, quantity FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (p *PgProductStore) FindByName(ctx context.Context, name string) (*Product, error) {
	row := p.db.QueryRow(ctx, `SELECT id, name, quantity FROM products WHERE name = $1`, name)
	return scanProduct(row)
}

func (p *PgProductStore) Create(ctx context.Context, name string, quantity int32) (*Product, error) {
	var product Product
	err := p.db.QueryRow(ctx,
		`INSERT INTO products (name, quantity) VALUES ($1, $2) RETURNING id, name, quantity`,
		name, quantity,
	).Scan(&product.ID, &product.Name, &product.Quantity)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, storeerrors.ErrProductExists
		}
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrCreateProduct, err)
	}
	return &product, nil
}

func (p *PgProductStore) Update(ctx context.Context, product Product) (*Product, error) {
	var updated Product
	err := p.db.QueryRow(ctx,
		`UPDATE products SET name = $1, quantity = $2 WHERE id = $3 RETURNING id, name, quantity`,
		product.Name, product.Quantity, product.ID,
	).Scan(&updated.ID, &updated.Name, &updated.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storeerrors.ErrProductNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, storeerrors.ErrProductExists
		}
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrUpdateProduct, err)
	}
	return &updated, nil
}

func (p *PgProductStore) DeleteByID(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrDeleteProduct, err)
	}
	if tag.RowsAffected() == 0 {
		return storeerrors.ErrProductNotFound
	}
	return nil
}

func (p *PgProductStore) HasEnoughStock(ctx context.Context, item SaleItem) (bool, error) {
	var quantity int32
	err := p.db.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, item.ProductID).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, storeerrors.ErrProductNotFound
		}
		return false, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindProduct, err)
	}
	return item.Quantity <= quantity, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var product Product
	if err := row.Scan(&product.ID, &product.Name, &product.Quantity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storeerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindProduct, err)
	}
	return &product, nil
}
