// Package service provides the product and sale business logic.
package service

import (
	"context"
	"errors"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/internal/store"
)

// ProductService defines the methods for managing products.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// FindAll returns all products ordered by id.
	FindAll(ctx context.Context) ([]ProductDto, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*ProductDto, error)

	// Create adds a new product to the system.
	// Returns ErrProductExists if a product with the same name already exists.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// Update overwrites name and quantity of an existing product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id int64, product ProductUpdateDto) (*ProductDto, error)

	// DeleteByID removes a product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) error
}

// Service implements ProductService.
type Service struct {
	store store.ProductStore
	locks *ProductLocks
}

// NewService creates a new instance of ProductService.
// locks must be the same table the sale workflow uses so manual stock edits do not interleave with sales.
func NewService(productStore store.ProductStore, locks *ProductLocks) *Service {
	return &Service{
		store: productStore,
		locks: locks,
	}
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

// ProductCreateDto represents the data transfer object for creating a new product.
type ProductCreateDto struct {
	Name     string
	Quantity int32
}

// ProductUpdateDto represents the data transfer object for updating an existing product.
type ProductUpdateDto struct {
	Name     string
	Quantity int32
}

func (s *Service) FindAll(ctx context.Context) ([]ProductDto, error) {
	products, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]ProductDto, len(products))
	for i, p := range products {
		dtos[i] = toProductDto(p)
	}
	return dtos, nil
}

func (s *Service) FindByID(ctx context.Context, id int64) (*ProductDto, error) {
	product, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toProductDto(*product)
	return &dto, nil
}

func (s *Service) Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error) {
	_, err := s.store.FindByName(ctx, product.Name)
	switch {
	case err == nil:
		return nil, storeerrors.ErrProductExists
	case !errors.Is(err, storeerrors.ErrProductNotFound):
		return nil, err
	}

	created, err := s.store.Create(ctx, product.Name, product.Quantity)
	if err != nil {
		return nil, err
	}
	dto := toProductDto(*created)
	return &dto, nil
}

func (s *Service) Update(ctx context.Context, id int64, product ProductUpdateDto) (*ProductDto, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	updated, err := s.store.Update(ctx, store.Product{ID: id, Name: product.Name, Quantity: product.Quantity})
	if err != nil {
		return nil, err
	}
	dto := toProductDto(*updated)
	return &dto, nil
}

func (s *Service) DeleteByID(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.store.DeleteByID(ctx, id)
}

func toProductDto(p store.Product) ProductDto {
	return ProductDto{ID: p.ID, Name: p.Name, Quantity: p.Quantity}
}
