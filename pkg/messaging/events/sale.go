// Package events contains the sale lifecycle events.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/storemanager/pkg/messaging"
)

type SaleItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

// SaleCreatedEvent is published after a sale has been stored and stock decremented.
type SaleCreatedEvent struct {
	SaleID    int64      `json:"sale_id"`
	Items     []SaleItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

func (e SaleCreatedEvent) Subject() string {
	return messaging.SalesCreatedSubject
}

func (e SaleCreatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// SaleDeletedEvent is published after a sale has been removed and its stock restored.
type SaleDeletedEvent struct {
	SaleID        int64      `json:"sale_id"`
	ItemsRestored []SaleItem `json:"items_restored"`
	DeletedAt     time.Time  `json:"deleted_at"`
}

func (e SaleDeletedEvent) Subject() string {
	return messaging.SalesDeletedSubject
}

func (e SaleDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
