package dto

import "time"

// FefoConsumption records how much was taken from one batch-location row
// during a FEFO pass and what the row holds afterwards.
type FefoConsumption struct {
	BatchLocationID string  `json:"batch_location_id"`
	BatchID         string  `json:"batch_id"`
	Consumed        float64 `json:"consumed"`
	Remaining       float64 `json:"remaining"`
}

type ConsumeResult struct {
	Consumed      []FefoConsumption `json:"consumed"`
	TotalConsumed float64           `json:"total_consumed"`
	FullyConsumed bool              `json:"fully_consumed"`
	Shortfall     float64           `json:"shortfall,omitempty"`
}

type FefoReservation struct {
	BatchLocationID string  `json:"batch_location_id"`
	BatchID         string  `json:"batch_id"`
	Reserved        float64 `json:"reserved"`
}

type ReserveResult struct {
	Success          bool              `json:"success"`
	ReservedQuantity float64           `json:"reserved_quantity"`
	Reservations     []FefoReservation `json:"reservations"`
	Shortfall        float64           `json:"shortfall,omitempty"`
}

type ReleaseDetail struct {
	BatchLocationID string  `json:"batch_location_id"`
	Released        float64 `json:"released"`
}

type ReleaseResult struct {
	Released      []ReleaseDetail `json:"released"`
	TotalReleased float64         `json:"total_released"`
}

type TransferResult struct {
	SourceID    string  `json:"source_id"`
	TargetID    string  `json:"target_id"`
	Transferred float64 `json:"transferred"`
}

// ReservedStock is one row's outstanding hold attributable to an order.
type ReservedStock struct {
	BatchLocationID string  `json:"batch_location_id"`
	BatchID         string  `json:"batch_id"`
	ProductID       string  `json:"product_id"`
	Reserved        float64 `json:"reserved"`
}

// ProductStock aggregates all active batch-location rows of one product in
// one location.
type ProductStock struct {
	ProductID         string     `db:"product_id" json:"product_id"`
	TotalQuantity     float64    `db:"total_quantity" json:"total_quantity"`
	TotalReserved     float64    `db:"total_reserved" json:"total_reserved"`
	AvailableQuantity float64    `db:"available_quantity" json:"available_quantity"`
	BatchCount        int        `db:"batch_count" json:"batch_count"`
	NearestExpiration *time.Time `db:"nearest_expiration" json:"nearest_expiration"`
	AvgFreshness      float64    `db:"avg_freshness" json:"avg_freshness"`
	AvgPurchasePrice  *float64   `db:"avg_purchase_price" json:"avg_purchase_price"`
}

type AvailabilityResult struct {
	Requested  float64 `json:"requested"`
	Available  float64 `json:"available"`
	Sufficient bool    `json:"sufficient"`
}

type LocationStatistics struct {
	ProductCount      int     `db:"product_count" json:"product_count"`
	BatchCount        int     `db:"batch_count" json:"batch_count"`
	TotalQuantity     float64 `db:"total_quantity" json:"total_quantity"`
	TotalReserved     float64 `db:"total_reserved" json:"total_reserved"`
	AvailableQuantity float64 `db:"available_quantity" json:"available_quantity"`
	ExpiringWithin7d  int     `db:"expiring_within_7_days" json:"expiring_within_7_days"`
	LowStockProducts  int     `db:"low_stock_products" json:"low_stock_products"`
}
