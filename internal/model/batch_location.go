package model

import "time"

type LocationType string

const (
	LocationShop      LocationType = "SHOP"
	LocationWarehouse LocationType = "WAREHOUSE"
)

type BatchLocationStatus string

const (
	BatchLocationActive      BatchLocationStatus = "ACTIVE"
	BatchLocationDepleted    BatchLocationStatus = "DEPLETED"
	BatchLocationTransferred BatchLocationStatus = "TRANSFERRED"
)

// ChangeReason is the closed enumeration of why a batch-location quantity (or
// reserved quantity) changed. Every mutation writes exactly one entry.
type ChangeReason string

const (
	ReasonReceiving          ChangeReason = "RECEIVING"
	ReasonSale               ChangeReason = "SALE"
	ReasonWriteOff           ChangeReason = "WRITE_OFF"
	ReasonTransferOut        ChangeReason = "TRANSFER_OUT"
	ReasonTransferIn         ChangeReason = "TRANSFER_IN"
	ReasonReturn             ChangeReason = "RETURN"
	ReasonAdjustment         ChangeReason = "INVENTORY_ADJUSTMENT"
	ReasonReservation        ChangeReason = "RESERVATION"
	ReasonReleaseReservation ChangeReason = "RELEASE_RESERVATION"
	ReasonShrinkage          ChangeReason = "SHRINKAGE"
	ReasonMixing             ChangeReason = "MIXING"
)

// ChangeLogLimit bounds the per-row change history; oldest entries are trimmed.
const ChangeLogLimit = 100

// BatchLocation is the quantity of one batch physically present at one shop or
// warehouse. reserved_quantity <= quantity holds at all times and quantity
// never goes negative; both are enforced in the ledger usecase, the single
// write path.
type BatchLocation struct {
	ID                      string              `db:"id" json:"id"`
	BatchID                 string              `db:"batch_id" json:"batch_id"`
	SellerID                string              `db:"seller_id" json:"seller_id"`
	ProductID               string              `db:"product_id" json:"product_id"`
	LocationType            LocationType        `db:"location_type" json:"location_type"`
	ShopID                  *string             `db:"shop_id" json:"shop_id"`
	WarehouseID             *string             `db:"warehouse_id" json:"warehouse_id"`
	LocationName            *string             `db:"location_name" json:"location_name"`
	Quantity                float64             `db:"quantity" json:"quantity"`
	ReservedQuantity        float64             `db:"reserved_quantity" json:"reserved_quantity"`
	EffectiveExpirationDate time.Time           `db:"effective_expiration_date" json:"effective_expiration_date"`
	FreshnessRemaining      float64             `db:"freshness_remaining" json:"freshness_remaining"`
	DegradationCoefficient  float64             `db:"degradation_coefficient" json:"degradation_coefficient"`
	ArrivedAt               time.Time           `db:"arrived_at" json:"arrived_at"`
	PurchasePrice           *float64            `db:"purchase_price" json:"purchase_price"`
	Status                  BatchLocationStatus `db:"status" json:"status"`
	CreatedAt               time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time           `db:"updated_at" json:"updated_at"`
}

// AvailableQuantity is the portion not promised to anyone.
func (bl *BatchLocation) AvailableQuantity() float64 {
	avail := bl.Quantity - bl.ReservedQuantity
	if avail < 0 {
		return 0
	}
	return avail
}

// LocationID returns the shop or warehouse id matching the location type.
func (bl *BatchLocation) LocationID() string {
	if bl.LocationType == LocationShop && bl.ShopID != nil {
		return *bl.ShopID
	}
	if bl.LocationType == LocationWarehouse && bl.WarehouseID != nil {
		return *bl.WarehouseID
	}
	return ""
}

// ChangeLogEntry is one append-only change record for a batch-location row.
// ReservedDelta carries reservation movements as a structured number; the
// order id lives in ReferenceID.
type ChangeLogEntry struct {
	ID              string       `db:"id" json:"id"`
	BatchLocationID string       `db:"batch_location_id" json:"batch_location_id"`
	ChangedAt       time.Time    `db:"changed_at" json:"changed_at"`
	Reason          ChangeReason `db:"reason" json:"reason"`
	QuantityDelta   float64      `db:"quantity_delta" json:"quantity_delta"`
	QuantityBefore  float64      `db:"quantity_before" json:"quantity_before"`
	QuantityAfter   float64      `db:"quantity_after" json:"quantity_after"`
	ReservedDelta   float64      `db:"reserved_delta" json:"reserved_delta"`
	ChangedBy       *string      `db:"changed_by" json:"changed_by"`
	ReferenceID     *string      `db:"reference_id" json:"reference_id"`
	ReferenceType   *string      `db:"reference_type" json:"reference_type"`
	Comment         *string      `db:"comment" json:"comment"`
}
