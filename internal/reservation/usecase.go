package reservation

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
)

// UseCase is the reservation port: order-facing lifecycle over stock held in
// the ledger. The reservation manager never writes reserved quantities
// directly; every hold and release goes through ledger calls so the change
// log stays the single source of truth.
type UseCase interface {
	Create(ctx context.Context, input *dto.CreateInput) (*model.Reservation, error)
	ReserveByFefo(ctx context.Context, input *dto.ReserveByFefoInput) (*dto.FefoReservationResult, error)
	AddItem(ctx context.Context, reservationID string, item dto.ItemInput) (*model.Reservation, error)
	UpdateItemQuantity(ctx context.Context, reservationID, itemID string, quantity float64) (*model.Reservation, error)
	RemoveItem(ctx context.Context, reservationID, itemID string) (*model.Reservation, error)
	Confirm(ctx context.Context, reservationID string, confirmedQuantities map[string]float64) (*model.Reservation, error)
	PartiallyConfirm(ctx context.Context, reservationID string, items []dto.PartialConfirmItem) (*model.Reservation, error)
	Cancel(ctx context.Context, reservationID string, reason model.CancelReason, comment string) (*model.Reservation, error)
	CancelByOrder(ctx context.Context, orderID string, reason model.CancelReason) (*model.Reservation, error)
	Extend(ctx context.Context, reservationID string, additional time.Duration) (*model.Reservation, error)
	// MarkExpired releases held stock for every timed-out ACTIVE reservation
	// and returns how many were processed. Safe to run repeatedly.
	MarkExpired(ctx context.Context) (int, error)

	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetByOrder(ctx context.Context, orderID string) (*model.Reservation, error)
	GetByShop(ctx context.Context, shopID string, f *dto.ReservationFilters) ([]model.Reservation, int, error)
	GetBySeller(ctx context.Context, sellerID string, f *dto.ReservationFilters) ([]model.Reservation, int, error)
	GetActiveForBatchLocation(ctx context.Context, batchLocationID string) ([]model.Reservation, error)
	GetActiveForProduct(ctx context.Context, shopID, productID string) ([]model.Reservation, error)
	GetExpired(ctx context.Context) ([]model.Reservation, error)
	GetReservedQuantityForProduct(ctx context.Context, shopID, productID string) (float64, error)
	GetReservedQuantityForBatchLocation(ctx context.Context, batchLocationID string) (float64, error)
	GetStatistics(ctx context.Context, sellerID string) (*dto.ReservationStatistics, error)
}
