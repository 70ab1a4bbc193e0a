package ledger

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

// Repository persists batch-location rows and their change log. Lookup methods
// return (nil, nil) when no row matches; the usecase maps that to ErrNotFound.
type Repository interface {
	Create(ctx context.Context, bl *model.BatchLocation) error
	GetByID(ctx context.Context, id string) (*model.BatchLocation, error)
	// GetByIDForUpdate locks the row for the duration of the surrounding
	// transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*model.BatchLocation, error)
	GetByBatch(ctx context.Context, batchID string) ([]model.BatchLocation, error)
	GetBatchInLocation(ctx context.Context, batchID string, loc dto.Location) (*model.BatchLocation, error)
	// ListActiveFefo returns ACTIVE rows with quantity > 0 for the scope,
	// sorted ascending by effective expiration date with a stable tie-break.
	ListActiveFefo(ctx context.Context, sellerID, productID string, loc dto.Location, forUpdate bool) ([]model.BatchLocation, error)
	// ListReservedDesc returns rows with reserved quantity > 0 for the scope,
	// sorted by furthest expiration first.
	ListReservedDesc(ctx context.Context, sellerID, productID string, loc dto.Location, forUpdate bool) ([]model.BatchLocation, error)
	ListAllInLocation(ctx context.Context, loc dto.Location, f *dto.StockFilters) ([]model.BatchLocation, int, error)
	Update(ctx context.Context, bl *model.BatchLocation) error
	// SyncBatchFields overwrites the denormalized decay fields on every row of
	// the batch and returns the number of rows touched.
	SyncBatchFields(ctx context.Context, batchID string, expiration time.Time, freshness, degradation float64) (int64, error)

	// AppendChange writes one change-log entry and trims history beyond
	// model.ChangeLogLimit.
	AppendChange(ctx context.Context, entry *model.ChangeLogEntry) error
	ListChanges(ctx context.Context, batchLocationID string, limit, offset int) ([]model.ChangeLogEntry, int, error)
	// NetReservedForOrder sums reserved deltas per batch-location for an order:
	// positive RESERVATION entries minus RELEASE_RESERVATION entries.
	NetReservedForOrder(ctx context.Context, orderID string) (map[string]float64, error)

	AggregateStock(ctx context.Context, sellerID string, loc dto.Location, productID string) ([]dto.ProductStock, error)
	LowStock(ctx context.Context, sellerID string, loc dto.Location, threshold float64) ([]dto.ProductStock, error)
	LocationStatistics(ctx context.Context, sellerID string, loc dto.Location) (*dto.LocationStatistics, error)
}
