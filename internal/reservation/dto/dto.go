package dto

import "github.com/fekuna/omnipos-inventory-service/internal/model"

// ProductShortage reports the slice of one product's request that could not be
// held. Shortages are data, not errors; the caller decides the policy.
type ProductShortage struct {
	ProductID string  `json:"product_id"`
	Requested float64 `json:"requested"`
	Reserved  float64 `json:"reserved"`
	Shortfall float64 `json:"shortfall"`
}

type FefoReservationResult struct {
	Reservation *model.Reservation `json:"reservation"`
	Shortages   []ProductShortage  `json:"shortages,omitempty"`
}

type ReservationStatistics struct {
	Active             int     `db:"active" json:"active"`
	PartiallyConfirmed int     `db:"partially_confirmed" json:"partially_confirmed"`
	Confirmed          int     `db:"confirmed" json:"confirmed"`
	Cancelled          int     `db:"cancelled" json:"cancelled"`
	Expired            int     `db:"expired" json:"expired"`
	ActiveHeldQuantity float64 `db:"active_held_quantity" json:"active_held_quantity"`
}
