package ledger

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

// UseCase is the ledger port consumed by the reservation manager, the
// orchestrator and the peripheral document workflows (receiving, transfer,
// write-off, return, audit).
type UseCase interface {
	// Commands
	Create(ctx context.Context, input *dto.CreateBatchLocationInput) (*model.BatchLocation, error)
	ChangeQuantity(ctx context.Context, input *dto.ChangeQuantityInput) (*model.BatchLocation, error)
	ConsumeByFefo(ctx context.Context, input *dto.ConsumeInput) (*dto.ConsumeResult, error)
	ReserveByFefo(ctx context.Context, input *dto.ReserveInput) (*dto.ReserveResult, error)
	ReleaseReservation(ctx context.Context, orderID string, batchLocationIDs []string, reason string) (*dto.ReleaseResult, error)
	ForceReleaseReservation(ctx context.Context, input *dto.ForceReleaseInput) (*dto.ReleaseResult, error)
	TransferToLocation(ctx context.Context, input *dto.TransferInput) (*dto.TransferResult, error)
	SyncFromBatch(ctx context.Context, input *dto.SyncFromBatchInput) (int64, error)
	ApplyShrinkage(ctx context.Context, input *dto.ShrinkageInput) (*model.BatchLocation, error)
	MarkDepleted(ctx context.Context, id, changedBy string) (*model.BatchLocation, error)

	// Row-level reservation primitives used by the reservation manager.
	Reserve(ctx context.Context, batchLocationID string, quantity float64, orderID string) error
	ReleaseReserve(ctx context.Context, batchLocationID string, quantity float64, orderID string) error
	ConfirmReserve(ctx context.Context, batchLocationID string, quantity float64, orderID string) error

	// Queries
	GetByID(ctx context.Context, id string) (*model.BatchLocation, error)
	GetByBatch(ctx context.Context, batchID string) ([]model.BatchLocation, error)
	GetBatchInLocation(ctx context.Context, batchID string, loc dto.Location) (*model.BatchLocation, error)
	GetProductStockInLocation(ctx context.Context, sellerID, productID string, loc dto.Location) ([]model.BatchLocation, error)
	GetAggregatedStock(ctx context.Context, sellerID string, loc dto.Location) ([]dto.ProductStock, error)
	GetAllStockInLocation(ctx context.Context, loc dto.Location, f *dto.StockFilters) ([]model.BatchLocation, int, error)
	GetReservedByOrder(ctx context.Context, orderID string) ([]dto.ReservedStock, error)
	CheckAvailability(ctx context.Context, sellerID, productID string, loc dto.Location, quantity float64) (*dto.AvailabilityResult, error)
	GetLowStock(ctx context.Context, sellerID string, loc dto.Location, threshold float64) ([]dto.ProductStock, error)
	GetLocationStatistics(ctx context.Context, sellerID string, loc dto.Location) (*dto.LocationStatistics, error)
	ListChanges(ctx context.Context, batchLocationID string, page, pageSize int) ([]model.ChangeLogEntry, int, error)
}
