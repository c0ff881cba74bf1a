// Package store provides interfaces and implementations for product and sale storage.
package store

import (
	"context"
	"time"
)

// Product is a stocked item.
type Product struct {
	ID       int64
	Name     string
	Quantity int32
}

// SaleItem is a requested line of a sale: a product and how many units of it.
type SaleItem struct {
	ProductID int64
	Quantity  int32
}

// SaleLine is a line item joined with its sale header.
type SaleLine struct {
	SaleID    int64
	ProductID int64
	Date      time.Time
	Quantity  int32
}

// CreatedSale is the result of persisting a new sale.
type CreatedSale struct {
	ID        int64
	ItemsSold []SaleItem
}

// UpdatedSale is the result of overwriting line item quantities of a sale.
type UpdatedSale struct {
	SaleID      int64
	ItemUpdated []SaleItem
}

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// FindAll returns all products ordered by id.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]Product, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*Product, error)

	// FindByName retrieves a single product by its name.
	// Returns ErrProductNotFound if no product exists with the given name.
	FindByName(ctx context.Context, name string) (*Product, error)

	// Create adds a new product to the store.
	Create(ctx context.Context, name string, quantity int32) (*Product, error)

	// Update overwrites name and quantity of an existing product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, product Product) (*Product, error)

	// DeleteByID removes a product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) error

	// HasEnoughStock reports whether the product holds at least item.Quantity units.
	// Returns ErrProductNotFound if the product does not exist.
	HasEnoughStock(ctx context.Context, item SaleItem) (bool, error)
}

// SaleStore is an interface for sale storage operations.
// Implementations join sale headers with their line items.
type SaleStore interface {
	// FindAll returns every line item of every sale ordered by sale id and product id.
	FindAll(ctx context.Context) ([]SaleLine, error)

	// FindByID returns the line items of a sale ordered by product id.
	// Returns ErrSaleNotFound if the sale has no line items.
	FindByID(ctx context.Context, saleID int64) ([]SaleLine, error)

	// Create inserts a sale header stamped with the current time and one line item per item.
	Create(ctx context.Context, items []SaleItem) (*CreatedSale, error)

	// Update overwrites the quantity of each matching (sale, product) line item.
	Update(ctx context.Context, saleID int64, items []SaleItem) (*UpdatedSale, error)

	// DeleteByID removes a sale header together with its line items.
	DeleteByID(ctx context.Context, saleID int64) error
}
