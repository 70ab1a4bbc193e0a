package orchestrator

import (
	"context"

	ledgerdto "github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/orchestrator/dto"
	resdto "github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
)

// UseCase coordinates the ledger and the reservation manager for the flows
// that span both: the order lifecycle and offline (walk-in) sales competing
// with online holds.
type UseCase interface {
	ReserveForOrder(ctx context.Context, input *dto.ReserveForOrderInput) (*resdto.FefoReservationResult, error)
	ReleaseOrderReservation(ctx context.Context, orderID string, reason model.CancelReason) (*model.Reservation, error)
	ConsumeReservation(ctx context.Context, input *dto.ConsumeReservationInput) (*model.Reservation, error)

	CheckOfflineSaleConflict(ctx context.Context, sellerID, shopID string, products []resdto.ProductRequest) (*dto.ConflictCheckResult, error)
	ProcessOfflineSale(ctx context.Context, input *dto.OfflineSaleInput) (*dto.OfflineSaleResult, error)

	GetLocationStock(ctx context.Context, loc ledgerdto.Location, f *ledgerdto.StockFilters) ([]model.BatchLocation, int, error)
	GetProductStock(ctx context.Context, sellerID, productID string, loc ledgerdto.Location) ([]model.BatchLocation, error)
}
