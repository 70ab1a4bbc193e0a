package events

import (
	"context"
	"time"
)

// Event names published to the inventory events topic.
const (
	ReservationCreated   = "inventory.reservation.created"
	ReservationReleased  = "inventory.reservation.released"
	ReservationConsumed  = "inventory.reservation.consumed"
	OfflineSaleProcessed = "inventory.offline_sale.processed"
	AuditCreated         = "inventory.audit.created"
	AuditCompleted       = "inventory.audit.completed"
)

// Event is the envelope for every message on the inventory events topic.
// Partitioning keys on OrderID when present, falling back to ShopID, so all
// events of one order land on the same partition in order.
type Event struct {
	Name       string      `json:"name"`
	SellerID   string      `json:"seller_id"`
	ShopID     string      `json:"shop_id,omitempty"`
	OrderID    string      `json:"order_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload,omitempty"`
}

type ReservationPayload struct {
	ReservationID string  `json:"reservation_id"`
	Status        string  `json:"status"`
	TotalQuantity float64 `json:"total_quantity"`
}

type OfflineSaleLine struct {
	ProductID string  `json:"product_id"`
	Requested float64 `json:"requested"`
	Sold      float64 `json:"sold"`
	Shortfall float64 `json:"shortfall"`
}

type OfflineSalePayload struct {
	ReceiptID    string            `json:"receipt_id,omitempty"`
	Lines        []OfflineSaleLine `json:"lines"`
	ForcedOrders []string          `json:"forced_orders,omitempty"`
}

// Publisher abstracts the event transport. Failing to publish never fails the
// business operation; implementations log and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher drops events. Used in tests and when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
