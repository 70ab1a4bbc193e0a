package dto

import "github.com/fekuna/omnipos-inventory-service/internal/model"

type ItemInput struct {
	BatchID         string  `json:"batch_id"`
	BatchLocationID string  `json:"batch_location_id"`
	ProductID       string  `json:"product_id"`
	Quantity        float64 `json:"quantity"`
}

type CreateInput struct {
	SellerID   string
	OrderID    string
	CustomerID string
	ShopID     string
	ShopName   string
	Type       model.ReservationType
	TTLMinutes int
	Items      []ItemInput
}

type ProductRequest struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

type ReserveByFefoInput struct {
	SellerID   string
	OrderID    string
	CustomerID string
	ShopID     string
	ShopName   string
	Type       model.ReservationType
	TTLMinutes int
	Products   []ProductRequest
}

type PartialConfirmItem struct {
	ItemID   string  `json:"item_id"`
	Quantity float64 `json:"quantity"`
}

type ReservationFilters struct {
	Status   model.ReservationStatus
	Type     model.ReservationType
	Page     int
	PageSize int
}
