package dto

import (
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

// Location is the scope every ledger operation runs in: one shop or one
// warehouse.
type Location struct {
	Type model.LocationType `json:"type"`
	ID   string             `json:"id"`
}

type CreateBatchLocationInput struct {
	BatchID                 string
	SellerID                string
	ProductID               string
	Location                Location
	LocationName            string
	Quantity                float64
	EffectiveExpirationDate time.Time
	FreshnessRemaining      float64
	DegradationCoefficient  float64
	ArrivedAt               time.Time
	PurchasePrice           *float64
	Reason                  model.ChangeReason
	ReferenceID             string
	ReferenceType           string
	ChangedBy               string
}

type ChangeQuantityInput struct {
	ID            string
	Delta         float64
	Reason        model.ChangeReason
	ChangedBy     string
	ReferenceID   string
	ReferenceType string
	Comment       string
}

type ConsumeInput struct {
	SellerID  string
	ProductID string
	Location  Location
	Quantity  float64
	Reason    model.ChangeReason
	// UseAvailableOnly restricts consumption to quantity minus reserved.
	// Privileged flows clear it to eat into reserved stock.
	UseAvailableOnly bool
	ReferenceID      string
	ReferenceType    string
	ChangedBy        string
}

type ReserveInput struct {
	SellerID  string
	ProductID string
	Location  Location
	Quantity  float64
	OrderID   string
}

type ForceReleaseInput struct {
	SellerID  string
	ProductID string
	Location  Location
	Quantity  float64
	Reason    string
	ChangedBy string
}

type TransferInput struct {
	SourceID                  string
	TargetLocation            Location
	TargetLocationName        string
	Quantity                  float64
	NewDegradationCoefficient *float64
	ReferenceID               string
	ChangedBy                 string
}

type SyncFromBatchInput struct {
	BatchID                 string
	EffectiveExpirationDate time.Time
	FreshnessRemaining      float64
	DegradationCoefficient  float64
}

type ShrinkageInput struct {
	ID        string
	Quantity  float64
	Comment   string
	ChangedBy string
}

type StockFilters struct {
	SellerID  string
	ProductID string
	Page      int
	PageSize  int
}
