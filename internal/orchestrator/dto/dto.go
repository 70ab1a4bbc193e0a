package dto

import (
	ledgerdto "github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	resdto "github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
)

type ReserveForOrderInput struct {
	SellerID   string                  `json:"seller_id"`
	OrderID    string                  `json:"order_id"`
	CustomerID string                  `json:"customer_id"`
	ShopID     string                  `json:"shop_id"`
	ShopName   string                  `json:"shop_name"`
	Type       model.ReservationType   `json:"type"`
	TTLMinutes int                     `json:"ttl_minutes"`
	Products   []resdto.ProductRequest `json:"products"`
}

type ConsumeReservationInput struct {
	OrderID             string             `json:"order_id"`
	ConfirmedQuantities map[string]float64 `json:"confirmed_quantities,omitempty"`
}

// OfflineSaleInput carries one walk-in receipt. All lines settle in a single
// transaction; a failure on any line rolls back the whole receipt.
type OfflineSaleInput struct {
	SellerID string                  `json:"seller_id"`
	ShopID   string                  `json:"shop_id"`
	Products []resdto.ProductRequest `json:"products"`
	// Override lets the walk-in sale win over online holds: the deficit is
	// force-released from reservations before consuming.
	Override    bool   `json:"override"`
	ReceiptID   string `json:"receipt_id"`
	ProcessedBy string `json:"processed_by"`
}

// OrderConflict names one order whose active hold overlaps a requested
// offline sale.
type OrderConflict struct {
	OrderID       string  `json:"order_id"`
	ReservationID string  `json:"reservation_id"`
	HeldQuantity  float64 `json:"held_quantity"`
}

type ProductConflict struct {
	ProductID   string          `json:"product_id"`
	Available   float64         `json:"available"`
	Requested   float64         `json:"requested"`
	Sufficient  bool            `json:"sufficient"`
	Conflicting []OrderConflict `json:"conflicting_orders,omitempty"`
}

type ConflictCheckResult struct {
	Sufficient bool              `json:"sufficient"`
	Products   []ProductConflict `json:"products"`
}

// ProductSale is the outcome of one receipt line.
type ProductSale struct {
	ProductID     string                      `json:"product_id"`
	Requested     float64                     `json:"requested"`
	Sold          float64                     `json:"sold"`
	Shortfall     float64                     `json:"shortfall,omitempty"`
	ForcedOrders  []string                    `json:"forced_orders,omitempty"`
	ForceReleased float64                     `json:"force_released,omitempty"`
	Consumed      []ledgerdto.FefoConsumption `json:"consumed"`
}

type OfflineSaleResult struct {
	Sold          float64       `json:"sold"`
	Shortfall     float64       `json:"shortfall,omitempty"`
	ForcedOrders  []string      `json:"forced_orders,omitempty"`
	ForceReleased float64       `json:"force_released,omitempty"`
	Products      []ProductSale `json:"products"`
}
