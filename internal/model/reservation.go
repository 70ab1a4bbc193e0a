package model

import "time"

type ReservationStatus string

const (
	ReservationActive             ReservationStatus = "ACTIVE"
	ReservationPartiallyConfirmed ReservationStatus = "PARTIALLY_CONFIRMED"
	ReservationConfirmed          ReservationStatus = "CONFIRMED"
	ReservationCancelled          ReservationStatus = "CANCELLED"
	ReservationExpired            ReservationStatus = "EXPIRED"
)

type ReservationType string

const (
	ReservationTypeOrder    ReservationType = "ORDER"
	ReservationTypePreorder ReservationType = "PREORDER"
	ReservationTypeCart     ReservationType = "CART"
)

type CancelReason string

const (
	CancelOrderCancelled    CancelReason = "ORDER_CANCELLED"
	CancelOrderDeclined     CancelReason = "ORDER_DECLINED"
	CancelExpired           CancelReason = "EXPIRED"
	CancelInsufficientStock CancelReason = "INSUFFICIENT_STOCK"
	CancelManual            CancelReason = "MANUAL"
)

// Reservation is a time-bounded hold on stock attributable to one order.
// Exactly one reservation may exist per order.
type Reservation struct {
	ID            string            `db:"id" json:"id"`
	SellerID      string            `db:"seller_id" json:"seller_id"`
	OrderID       string            `db:"order_id" json:"order_id"`
	CustomerID    *string           `db:"customer_id" json:"customer_id"`
	ShopID        string            `db:"shop_id" json:"shop_id"`
	ShopName      *string           `db:"shop_name" json:"shop_name"`
	Type          ReservationType   `db:"type" json:"type"`
	Status        ReservationStatus `db:"status" json:"status"`
	ExpiresAt     time.Time         `db:"expires_at" json:"expires_at"`
	ConfirmedAt   *time.Time        `db:"confirmed_at" json:"confirmed_at"`
	CancelledAt   *time.Time        `db:"cancelled_at" json:"cancelled_at"`
	CancelReason  *CancelReason     `db:"cancel_reason" json:"cancel_reason"`
	CancelComment *string           `db:"cancel_comment" json:"cancel_comment"`
	Items         []ReservationItem `db:"-" json:"items"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// ReservationItem holds one batch-location's share of the reservation. The
// expiration and freshness snapshots freeze what was promised at reservation
// time; later batch mutations do not rewrite them.
type ReservationItem struct {
	ID                 string            `db:"id" json:"id"`
	ReservationID      string            `db:"reservation_id" json:"reservation_id"`
	BatchID            string            `db:"batch_id" json:"batch_id"`
	BatchLocationID    string            `db:"batch_location_id" json:"batch_location_id"`
	ProductID          string            `db:"product_id" json:"product_id"`
	Quantity           float64           `db:"quantity" json:"quantity"`
	ConfirmedQuantity  *float64          `db:"confirmed_quantity" json:"confirmed_quantity"`
	Status             ReservationStatus `db:"status" json:"status"`
	ExpirationSnapshot time.Time         `db:"expiration_snapshot" json:"expiration_snapshot"`
	FreshnessSnapshot  float64           `db:"freshness_snapshot" json:"freshness_snapshot"`
}

// IsTerminal reports whether the reservation can no longer change state.
func (r *Reservation) IsTerminal() bool {
	switch r.Status {
	case ReservationConfirmed, ReservationCancelled, ReservationExpired:
		return true
	}
	return false
}

// CanModify reports whether items may still be added, resized or removed.
func (r *Reservation) CanModify() bool {
	return r.Status == ReservationActive
}

// CanCancel reports whether the reservation may still be cancelled.
func (r *Reservation) CanCancel() bool {
	return r.Status == ReservationActive || r.Status == ReservationPartiallyConfirmed
}

// IsExpired reports whether the TTL has elapsed for a still-active reservation.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationActive && now.After(r.ExpiresAt)
}
