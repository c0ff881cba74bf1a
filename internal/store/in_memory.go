package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"golang.org/x/sync/errgroup"
)

// MemoryDB holds products, sale headers and line items in process memory.
// It mirrors the relational schema: names are unique, line items reference an
// existing sale and product, and deleting a sale or product removes its line items.
type MemoryDB struct {
	mu            sync.RWMutex
	products      map[int64]Product
	nextProductID int64
	sales         map[int64]time.Time
	nextSaleID    int64
	lines         map[int64]map[int64]int32 // sale id -> product id -> quantity
}

// NewMemoryDB creates an empty MemoryDB.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		products: make(map[int64]Product),
		sales:    make(map[int64]time.Time),
		lines:    make(map[int64]map[int64]int32),
	}
}

// InMemoryProductStore is a ProductStore over a MemoryDB.
type InMemoryProductStore struct {
	db *MemoryDB
}

// NewInMemoryProductStore creates a ProductStore sharing the given MemoryDB.
func NewInMemoryProductStore(db *MemoryDB) *InMemoryProductStore {
	return &InMemoryProductStore{db: db}
}

func (s *InMemoryProductStore) FindAll(_ context.Context) ([]Product, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	products := make([]Product, 0, len(s.db.products))
	for _, p := range s.db.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b Product) int { return cmp.Compare(a.ID, b.ID) })
	return products, nil
}

func (s *InMemoryProductStore) FindByID(_ context.Context, id int64) (*Product, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	p, ok := s.db.products[id]
	if !ok {
		return nil, storeerrors.ErrProductNotFound
	}
	return &p, nil
}

func (s *InMemoryProductStore) FindByName(_ context.Context, name string) (*Product, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, p := range s.db.products {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, storeerrors.ErrProductNotFound
}

func (s *InMemoryProductStore) Create(_ context.Context, name string, quantity int32) (*Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.db.nameTaken(name, 0) {
		return nil, storeerrors.ErrProductExists
	}
	s.db.nextProductID++
	p := Product{ID: s.db.nextProductID, Name: name, Quantity: quantity}
	s.db.products[p.ID] = p
	return &p, nil
}

func (s *InMemoryProductStore) Update(_ context.Context, product Product) (*Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.products[product.ID]; !ok {
		return nil, storeerrors.ErrProductNotFound
	}
	if s.db.nameTaken(product.Name, product.ID) {
		return nil, storeerrors.ErrProductExists
	}
	s.db.products[product.ID] = product
	return &product, nil
}

func (s *InMemoryProductStore) DeleteByID(_ context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.products[id]; !ok {
		return storeerrors.ErrProductNotFound
	}
	delete(s.db.products, id)
	for _, items := range s.db.lines {
		delete(items, id)
	}
	return nil
}

func (s *InMemoryProductStore) HasEnoughStock(_ context.Context, item SaleItem) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	p, ok := s.db.products[item.ProductID]
	if !ok {
		return false, storeerrors.ErrProductNotFound
	}
	return item.Quantity <= p.Quantity, nil
}

// InMemorySaleStore is a SaleStore over a MemoryDB.
type InMemorySaleStore struct {
	db *MemoryDB
}

// NewInMemorySaleStore creates a SaleStore sharing the given MemoryDB.
func NewInMemorySaleStore(db *MemoryDB) *InMemorySaleStore {
	return &InMemorySaleStore{db: db}
}

func (s *InMemorySaleStore) FindAll(_ context.Context) ([]SaleLine, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	lines := make([]SaleLine, 0)
	for saleID := range s.db.lines {
		lines = append(lines, s.db.saleLines(saleID)...)
	}
	slices.SortFunc(lines, func(a, b SaleLine) int {
		if c := cmp.Compare(a.SaleID, b.SaleID); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return lines, nil
}

func (s *InMemorySaleStore) FindByID(_ context.Context, saleID int64) ([]SaleLine, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	lines := s.db.saleLines(saleID)
	if len(lines) == 0 {
		return nil, storeerrors.ErrSaleNotFound
	}
	slices.SortFunc(lines, func(a, b SaleLine) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return lines, nil
}

func (s *InMemorySaleStore) Create(ctx context.Context, items []SaleItem) (*CreatedSale, error) {
	s.db.mu.Lock()
	s.db.nextSaleID++
	saleID := s.db.nextSaleID
	s.db.sales[saleID] = time.Now().UTC()
	s.db.lines[saleID] = make(map[int64]int32)
	s.db.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, item := range items {
		g.Go(func() error {
			return s.db.insertLine(saleID, item)
		})
	}
	if err := g.Wait(); err != nil {
		s.db.deleteSale(saleID)
		return nil, err
	}
	return &CreatedSale{ID: saleID, ItemsSold: items}, nil
}

func (s *InMemorySaleStore) Update(_ context.Context, saleID int64, items []SaleItem) (*UpdatedSale, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	lines := s.db.lines[saleID]
	for _, item := range items {
		if _, ok := lines[item.ProductID]; ok {
			lines[item.ProductID] = item.Quantity
		}
	}
	return &UpdatedSale{SaleID: saleID, ItemUpdated: items}, nil
}

func (s *InMemorySaleStore) DeleteByID(_ context.Context, saleID int64) error {
	if !s.db.deleteSale(saleID) {
		return storeerrors.ErrSaleNotFound
	}
	return nil
}

func (db *MemoryDB) insertLine(saleID int64, item SaleItem) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.products[item.ProductID]; !ok {
		return fmt.Errorf("%w: product %d does not exist", storeerrors.ErrCreateSaleItem, item.ProductID)
	}
	lines, ok := db.lines[saleID]
	if !ok {
		return fmt.Errorf("%w: sale %d does not exist", storeerrors.ErrCreateSaleItem, saleID)
	}
	if _, dup := lines[item.ProductID]; dup {
		return fmt.Errorf("%w: duplicate product %d", storeerrors.ErrCreateSaleItem, item.ProductID)
	}
	lines[item.ProductID] = item.Quantity
	return nil
}

func (db *MemoryDB) deleteSale(saleID int64) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sales[saleID]; !ok {
		return false
	}
	delete(db.sales, saleID)
	delete(db.lines, saleID)
	return true
}

// saleLines must be called with mu held.
func (db *MemoryDB) saleLines(saleID int64) []SaleLine {
	date := db.sales[saleID]
	lines := make([]SaleLine, 0, len(db.lines[saleID]))
	for productID, quantity := range db.lines[saleID] {
		lines = append(lines, SaleLine{SaleID: saleID, ProductID: productID, Date: date, Quantity: quantity})
	}
	return lines
}

// nameTaken must be called with mu held.
func (db *MemoryDB) nameTaken(name string, exceptID int64) bool {
	for id, p := range db.products {
		if p.Name == name && id != exceptID {
			return true
		}
	}
	return false
}
