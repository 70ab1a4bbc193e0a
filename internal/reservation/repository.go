package reservation

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
)

// Repository persists reservations and their items. Lookups return (nil, nil)
// when absent; loaded reservations always carry their items.
type Repository interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetByOrder(ctx context.Context, orderID string) (*model.Reservation, error)
	// GetByIDForUpdate and GetByOrderForUpdate lock the reservation row for
	// the surrounding transaction so concurrent state transitions serialize.
	GetByIDForUpdate(ctx context.Context, id string) (*model.Reservation, error)
	GetByOrderForUpdate(ctx context.Context, orderID string) (*model.Reservation, error)
	ListByShop(ctx context.Context, shopID string, f *dto.ReservationFilters) ([]model.Reservation, int, error)
	ListBySeller(ctx context.Context, sellerID string, f *dto.ReservationFilters) ([]model.Reservation, int, error)
	// ListExpired returns ACTIVE reservations whose TTL elapsed before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
	ListActiveForBatchLocation(ctx context.Context, batchLocationID string) ([]model.Reservation, error)
	ListActiveForProduct(ctx context.Context, shopID, productID string) ([]model.Reservation, error)

	Update(ctx context.Context, res *model.Reservation) error
	InsertItem(ctx context.Context, item *model.ReservationItem) error
	UpdateItem(ctx context.Context, item *model.ReservationItem) error
	DeleteItem(ctx context.Context, itemID string) error

	ReservedQuantityForProduct(ctx context.Context, shopID, productID string) (float64, error)
	ReservedQuantityForBatchLocation(ctx context.Context, batchLocationID string) (float64, error)
	Statistics(ctx context.Context, sellerID string) (*dto.ReservationStatistics, error)
}
