package store

import (
	"context"
	"fmt"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// PgSaleStore is a SaleStore backed by PostgreSQL.
type PgSaleStore struct {
	db *pgxpool.Pool
}

// NewPgSaleStore creates a new instance of SaleStore using a PostgreSQL connection pool.
func NewPgSaleStore(dbp *pgxpool.Pool) *PgSaleStore {
	return &PgSaleStore{db: dbp}
}

func (p *PgSaleStore) FindAll(ctx context.Context) ([]SaleLine, error) {
	rows, err := p.db.Query(ctx, `
		SELECT sp.sale_id, sp.product_id, s.date, sp.quantity
		FROM sales s
		INNER JOIN sales_products sp ON s.id = sp.sale_id
		ORDER BY sp.sale_id, sp.product_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindSale, err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowToStructByPos[SaleLine])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindSale, err)
	}
	return lines, nil
}

func (p *PgSaleStore) FindByID(ctx context.Context, saleID int64) ([]SaleLine, error) {
	rows, err := p.db.Query(ctx, `
		SELECT sp.sale_id, sp.product_id, s.date, sp.quantity
		FROM sales s
		INNER JOIN sales_products sp ON s.id = sp.sale_id
		WHERE sp.sale_id = $1
		ORDER BY sp.product_id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindSale, err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowToStructByPos[SaleLine])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindSale, err)
	}
	if len(lines) == 0 {
		return nil, storeerrors.ErrSaleNotFound
	}
	return lines, nil
}

// Create inserts the header first, then all line items concurrently.
// If any line insert fails the header is removed, taking the inserted lines with it.
func (p *PgSaleStore) Create(ctx context.Context, items []SaleItem) (*CreatedSale, error) {
	var saleID int64
	if err := p.db.QueryRow(ctx, `INSERT INTO sales (date) VALUES (NOW()) RETURNING id`).Scan(&saleID); err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrCreateSale, err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, item := range items {
		g.Go(func() error {
			_, err := p.db.Exec(gCtx,
				`INSERT INTO sales_products (sale_id, product_id, quantity) VALUES ($1, $2, $3)`,
				saleID, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("%w: %w", storeerrors.ErrCreateSaleItem, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if _, delErr := p.db.Exec(context.WithoutCancel(ctx), `DELETE FROM sales WHERE id = $1`, saleID); delErr != nil {
			return nil, fmt.Errorf("%w (cleanup failed: %v)", err, delErr)
		}
		return nil, err
	}

	return &CreatedSale{ID: saleID, ItemsSold: items}, nil
}

func (p *PgSaleStore) Update(ctx context.Context, saleID int64, items []SaleItem) (*UpdatedSale, error) {
	g, gCtx := errgroup.WithContext(ctx)
	for _, item := range items {
		g.Go(func() error {
			_, err := p.db.Exec(gCtx,
				`UPDATE sales_products SET quantity = $1 WHERE sale_id = $2 AND product_id = $3`,
				item.Quantity, saleID, item.ProductID)
			if err != nil {
				return fmt.Errorf("%w: %w", storeerrors.ErrUpdateSaleItem, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &UpdatedSale{SaleID: saleID, ItemUpdated: items}, nil
}

func (p *PgSaleStore) DeleteByID(ctx context.Context, saleID int64) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	if err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrDeleteSale, err)
	}
	if tag.RowsAffected() == 0 {
		return storeerrors.ErrSaleNotFound
	}
	return nil
}
