package store

import (
	"context"
	"database/sql"
	"fmt"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"golang.org/x/sync/errgroup"
)

// MySQLSaleStore is a SaleStore backed by MySQL.
// The connection must be opened with parseTime enabled so sale dates scan into time.Time.
type MySQLSaleStore struct {
	db *sql.DB
}

// NewMySQLSaleStore creates a new instance of SaleStore using a MySQL connection pool.
func NewMySQLSaleStore(db *sql.DB) *MySQLSaleStore {
	return &MySQLSaleStore{db: db}
}

func (m *MySQLSaleStore) FindAll(ctx context.Context) ([]SaleLine, error) {
	return m.queryLines(ctx, `
		SELECT sp.sale_id, sp.product_id, s.date, sp.quantity
		FROM sales s
		INNER JOIN sales_products sp ON s.id = sp.sale_id
		ORDER BY sp.sale_id, sp.product_id`)
}

func (m *MySQLSaleStore) FindByID(ctx context.Context, saleID int64) ([]SaleLine, error) {
	lines, err := m.queryLines(ctx, `
		SELECT sp.sale_id, sp.product_id, s.date, sp.quantity
		FROM sales s
		INNER JOIN sales_products sp ON s.id = sp.sale_id
		WHERE sp.sale_id = ?
		ORDER BY sp.product_id`, saleID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, storeerrors.ErrSaleNotFound
	}
	return lines, nil
}

func (m *MySQLSaleStore) Create(ctx context.Context, items []SaleItem) (*CreatedSale, error) {
	result, err := m.db.ExecContext(ctx, `INSERT INTO sales (date) VALUES (NOW())`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrCreateSale, err)
	}
	saleID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrCreateSale, err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, item := range items {
		g.Go(func() error {
			_, err := m.db.ExecContext(gCtx,
				`INSERT INTO sales_products (sale_id, product_id, quantity) VALUES (?, ?, ?)`,
				saleID, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("%w: %w", storeerrors.ErrCreateSaleItem, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if _, delErr := m.db.ExecContext(context.WithoutCancel(ctx), `DELETE FROM sales WHERE id = ?`, saleID); delErr != nil {
			return nil, fmt.Errorf("%w (cleanup failed: %v)", err, delErr)
		}
		return nil, err
	}

	return &CreatedSale{ID: saleID, ItemsSold: items}, nil
}

func (m *MySQLSaleStore) Update(ctx context.Context, saleID int64, items []SaleItem) (*UpdatedSale, error) {
	g, gCtx := errgroup.WithContext(ctx)
	for _, item := range items {
		g.Go(func() error {
			_, err := m.db.ExecContext(gCtx,
				`UPDATE sales_products SET quantity = ? WHERE sale_id = ? AND product_id = ?`,
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

func (m *MySQLSaleStore) DeleteByID(ctx context.Context, saleID int64) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, saleID)
	if err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrDeleteSale, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storeerrors.ErrSaleNotFound
	}
	return nil
}

func (m *MySQLSaleStore) queryLines(ctx context.Context, query string, args ...any) ([]SaleLine, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindSale, err)
	}
	defer rows.Close()

	lines := make([]SaleLine, 0)
	for rows.Next() {
		var line SaleLine
		if err := rows.Scan(&line.SaleID, &line.ProductID, &line.Date, &line.Quantity); err != nil {
			return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindSale, err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindSale, err)
	}
	return lines, nil
}
