package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/internal/store"
	"github.com/abgdnv/storemanager/pkg/messaging"
	"github.com/abgdnv/storemanager/pkg/messaging/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// SaleService defines the sale workflow: stock validation and mutation around sale records.
type SaleService interface {
	// FindAll returns every line item of every sale.
	FindAll(ctx context.Context) ([]SaleDto, error)

	// FindByID returns the line items of one sale.
	// Returns ErrSaleNotFound if the sale has no line items.
	FindByID(ctx context.Context, id int64) ([]SaleLineDto, error)

	// Create checks stock for all items, decrements it and records the sale.
	// Returns ErrInsufficientStock without mutating anything if any item exceeds its product stock.
	Create(ctx context.Context, items []SaleItemDto) (*SaleCreatedDto, error)

	// Update overwrites line item quantities. Stock is neither re-validated nor adjusted.
	// Returns ErrSaleNotFound if the sale has no line items.
	Update(ctx context.Context, id int64, items []SaleItemDto) (*SaleUpdatedDto, error)

	// DeleteByID restores the stock of every line item and removes the sale.
	// Returns ErrSaleNotFound if the sale has no line items.
	DeleteByID(ctx context.Context, id int64) error
}

// SaleItemDto is one requested line of a sale.
type SaleItemDto struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

// SaleDto is a sale line item as listed across all sales.
type SaleDto struct {
	SaleID    int64     `json:"saleId"`
	ProductID int64     `json:"productId"`
	Date      time.Time `json:"date"`
	Quantity  int32     `json:"quantity"`
}

// SaleLineDto is a sale line item as returned for a single sale.
type SaleLineDto struct {
	ProductID int64     `json:"productId"`
	Date      time.Time `json:"date"`
	Quantity  int32     `json:"quantity"`
}

type SaleCreatedDto struct {
	ID        int64         `json:"id"`
	ItemsSold []SaleItemDto `json:"itemsSold"`
}

type SaleUpdatedDto struct {
	SaleID      int64         `json:"saleId"`
	ItemUpdated []SaleItemDto `json:"itemUpdated"`
}

// SaleWorkflow implements SaleService.
type SaleWorkflow struct {
	products      store.ProductStore
	sales         store.SaleStore
	locks         *ProductLocks
	publisher     messaging.Publisher
	salesCreated  metric.Int64Counter
	salesRejected metric.Int64Counter
	salesDeleted  metric.Int64Counter
}

// NewSaleWorkflow creates a SaleWorkflow. A nil publisher discards events.
func NewSaleWorkflow(products store.ProductStore, sales store.SaleStore, locks *ProductLocks, publisher messaging.Publisher) *SaleWorkflow {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	meter := otel.Meter("storemanager")
	return &SaleWorkflow{
		products:      products,
		sales:         sales,
		locks:         locks,
		publisher:     publisher,
		salesCreated:  mustCounter(meter, "sales_created", "Total number of created sales"),
		salesRejected: mustCounter(meter, "sales_rejected", "Total number of sales rejected for insufficient stock"),
		salesDeleted:  mustCounter(meter, "sales_deleted", "Total number of deleted sales"),
	}
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

func (w *SaleWorkflow) FindAll(ctx context.Context) ([]SaleDto, error) {
	lines, err := w.sales.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]SaleDto, len(lines))
	for i, l := range lines {
		dtos[i] = SaleDto{SaleID: l.SaleID, ProductID: l.ProductID, Date: l.Date, Quantity: l.Quantity}
	}
	return dtos, nil
}

func (w *SaleWorkflow) FindByID(ctx context.Context, id int64) ([]SaleLineDto, error) {
	lines, err := w.sales.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dtos := make([]SaleLineDto, len(lines))
	for i, l := range lines {
		dtos[i] = SaleLineDto{ProductID: l.ProductID, Date: l.Date, Quantity: l.Quantity}
	}
	return dtos, nil
}

func (w *SaleWorkflow) Create(ctx context.Context, items []SaleItemDto) (*SaleCreatedDto, error) {
	if len(items) == 0 {
		return nil, storeerrors.ErrSaleItemsRequired
	}
	// Repeated products are merged so each product is checked, decremented and stored once.
	perProduct, ok := mergeByProduct(items)
	if !ok {
		slog.WarnContext(ctx, "Sale rejected, merged quantity out of range", "items", items)
		w.salesRejected.Add(ctx, 1)
		return nil, storeerrors.ErrInsufficientStock
	}

	unlock := w.locks.Lock(productIDs(perProduct)...)
	defer unlock()

	enough, err := w.checkStock(ctx, perProduct)
	if err != nil {
		return nil, err
	}
	if !enough {
		slog.WarnContext(ctx, "Sale rejected, insufficient stock", "items", items)
		w.salesRejected.Add(ctx, 1)
		return nil, storeerrors.ErrInsufficientStock
	}

	if applied, err := w.adjustStock(ctx, perProduct, -1); err != nil {
		w.rollbackStock(ctx, applied, 1)
		return nil, err
	}

	created, err := w.sales.Create(ctx, perProduct)
	if err != nil {
		w.rollbackStock(ctx, perProduct, 1)
		return nil, err
	}

	event := events.SaleCreatedEvent{SaleID: created.ID, Items: toEventItems(perProduct), CreatedAt: time.Now().UTC()}
	if err := w.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish SaleCreatedEvent", "sale_id", created.ID, "error", err)
	}
	w.salesCreated.Add(ctx, 1)

	return &SaleCreatedDto{ID: created.ID, ItemsSold: items}, nil
}

func (w *SaleWorkflow) Update(ctx context.Context, id int64, items []SaleItemDto) (*SaleUpdatedDto, error) {
	if len(items) == 0 {
		return nil, storeerrors.ErrSaleItemsRequired
	}
	if _, err := w.sales.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if _, err := w.sales.Update(ctx, id, toStoreItems(items)); err != nil {
		return nil, err
	}
	return &SaleUpdatedDto{SaleID: id, ItemUpdated: items}, nil
}

func (w *SaleWorkflow) DeleteByID(ctx context.Context, id int64) error {
	lines, err := w.sales.FindByID(ctx, id)
	if err != nil {
		return err
	}
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	unlock := w.locks.Lock(ids...)
	defer unlock()

	// Re-read under the locks: a concurrent delete of the same sale must not restore stock twice.
	lines, err = w.sales.FindByID(ctx, id)
	if err != nil {
		return err
	}
	restore := make([]store.SaleItem, len(lines))
	for i, l := range lines {
		restore[i] = store.SaleItem{ProductID: l.ProductID, Quantity: l.Quantity}
	}

	if applied, err := w.adjustStock(ctx, restore, 1); err != nil {
		w.rollbackStock(ctx, applied, -1)
		return err
	}
	if err := w.sales.DeleteByID(ctx, id); err != nil {
		w.rollbackStock(ctx, restore, -1)
		return err
	}

	event := events.SaleDeletedEvent{SaleID: id, ItemsRestored: toEventItems(restore), DeletedAt: time.Now().UTC()}
	if err := w.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish SaleDeletedEvent", "sale_id", id, "error", err)
	}
	w.salesDeleted.Add(ctx, 1)
	return nil
}

// checkStock runs one stock check per item concurrently and reports whether all of them passed.
func (w *SaleWorkflow) checkStock(ctx context.Context, items []store.SaleItem) (bool, error) {
	results := make([]bool, len(items))
	g, gCtx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			ok, err := w.products.HasEnoughStock(gCtx, item)
			if err != nil {
				return err
			}
			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return !slices.Contains(results, false), nil
}

// adjustStock adds sign*quantity to every product concurrently and returns the items that were written.
// Once writes start they run to completion on a context that neither a sibling failure nor the caller
// can cancel, so every committed write is reported in the result.
func (w *SaleWorkflow) adjustStock(ctx context.Context, items []store.SaleItem, sign int32) ([]store.SaleItem, error) {
	var mu sync.Mutex
	applied := make([]store.SaleItem, 0, len(items))

	writeCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for _, item := range items {
		g.Go(func() error {
			product, err := w.products.FindByID(writeCtx, item.ProductID)
			if err != nil {
				return err
			}
			quantity := int64(product.Quantity) + int64(sign)*int64(item.Quantity)
			if quantity < 0 {
				return storeerrors.ErrInsufficientStock
			}
			if quantity > math.MaxInt32 {
				return fmt.Errorf("product %d: %w", item.ProductID, storeerrors.ErrStockOutOfRange)
			}
			product.Quantity = int32(quantity)
			if _, err := w.products.Update(writeCtx, *product); err != nil {
				return err
			}
			mu.Lock()
			applied = append(applied, item)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return applied, err
}

// rollbackStock reverts stock writes after a later step failed. Failures are logged only.
func (w *SaleWorkflow) rollbackStock(ctx context.Context, items []store.SaleItem, sign int32) {
	if len(items) == 0 {
		return
	}
	if _, err := w.adjustStock(context.WithoutCancel(ctx), items, sign); err != nil {
		slog.ErrorContext(ctx, "Failed to roll back stock", "items", items, "error", err)
	}
}

// mergeByProduct sums the quantities of repeated products. It reports false when a sum does not
// fit a product quantity, which no stock can cover.
func mergeByProduct(items []SaleItemDto) ([]store.SaleItem, bool) {
	totals := make(map[int64]int64, len(items))
	order := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := totals[item.ProductID]; !ok {
			order = append(order, item.ProductID)
		}
		totals[item.ProductID] += int64(item.Quantity)
	}
	merged := make([]store.SaleItem, len(order))
	for i, id := range order {
		total := totals[id]
		if total < 0 || total > math.MaxInt32 {
			return nil, false
		}
		merged[i] = store.SaleItem{ProductID: id, Quantity: int32(total)}
	}
	return merged, true
}

func productIDs(items []store.SaleItem) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	return ids
}

func toStoreItems(items []SaleItemDto) []store.SaleItem {
	out := make([]store.SaleItem, len(items))
	for i, item := range items {
		out[i] = store.SaleItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}

func toEventItems(items []store.SaleItem) []events.SaleItem {
	out := make([]events.SaleItem, len(items))
	for i, item := range items {
		out[i] = events.SaleItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}
