package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is the server error number for a broken unique key.
const mysqlDuplicateEntry = 1062

// MySQLProductStore is a ProductStore backed by MySQL.
type MySQLProductStore struct {
	db *sql.DB
}

// NewMySQLProductStore creates a new instance of ProductStore using a MySQL connection pool.
func NewMySQLProductStore(db *sql.DB) *MySQLProductStore {
	return &MySQLProductStore{db: db}
}

func (m *MySQLProductStore) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindProduct, err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var product Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Quantity); err != nil {
			return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindProduct, err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindProduct, err)
	}
	return products, nil
}

func (m *MySQLProductStore) FindByID(ctx context.Context, id int64) (*Product, error) {
	row := m.db.QueryRowContext(ctx, `SELECT id, name, quantity FROM products WHERE id = ?`, id)
	return scanSQLProduct(row)
}

func (m *MySQLProductStore) FindByName(ctx context.Context, name string) (*Product, error) {
	row := m.db.QueryRowContext(ctx, `SELECT id, name, quantity FROM products WHERE name = ?`, name)
	return scanSQLProduct(row)
}

func (m *MySQLProductStore) Create(ctx context.Context, name string, quantity int32) (*Product, error) {
	result, err := m.db.ExecContext(ctx, `INSERT INTO products (name, quantity) VALUES (?, ?)`, name, quantity)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, storeerrors.ErrProductExists
		}
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrCreateProduct, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrCreateProduct, err)
	}
	return &Product{ID: id, Name: name, Quantity: quantity}, nil
}

// Update checks existence first because MySQL reports zero affected rows for unchanged values.
func (m *MySQLProductStore) Update(ctx context.Context, product Product) (*Product, error) {
	if _, err := m.FindByID(ctx, product.ID); err != nil {
		return nil, err
	}
	_, err := m.db.ExecContext(ctx,
		`UPDATE products SET name = ?, quantity = ? WHERE id = ?`,
		product.Name, product.Quantity, product.ID)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, storeerrors.ErrProductExists
		}
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrUpdateProduct, err)
	}
	return &product, nil
}

func (m *MySQLProductStore) DeleteByID(ctx context.Context, id int64) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrDeleteProduct, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return storeerrors.ErrProductNotFound
	}
	return nil
}

func (m *MySQLProductStore) HasEnoughStock(ctx context.Context, item SaleItem) (bool, error) {
	var quantity int32
	err := m.db.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = ?`, item.ProductID).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, storeerrors.ErrProductNotFound
		}
		return false, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindProduct, err)
	}
	return item.Quantity <= quantity, nil
}

func scanSQLProduct(row *sql.Row) (*Product, error) {
	var product Product
	if err := row.Scan(&product.ID, &product.Name, &product.Quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storeerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrFailedToFindProduct, err)
	}
	return &product, nil
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
