package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/events"
	"github.com/fekuna/omnipos-inventory-service/internal/ledger"
	ledgerdto "github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/orchestrator"
	"github.com/fekuna/omnipos-inventory-service/internal/orchestrator/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	resdto "github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/fekuna/omnipos-inventory-service/pkg/postgres"
	"go.uber.org/zap"
)

const productStockCacheTTL = 30 * time.Second

type orchestratorUseCase struct {
	reservations reservation.UseCase
	ledger       ledger.UseCase
	txm          postgres.TxManager
	publisher    events.Publisher
	cache        *cache.RedisClient
	logger       logger.ZapLogger
}

// NewOrchestratorUseCase wires the cross-domain flows. cache may be nil;
// product stock reads then always hit the database.
func NewOrchestratorUseCase(
	reservations reservation.UseCase,
	ledgerUC ledger.UseCase,
	txm postgres.TxManager,
	publisher events.Publisher,
	redisCache *cache.RedisClient,
	log logger.ZapLogger,
) orchestrator.UseCase {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &orchestratorUseCase{
		reservations: reservations,
		ledger:       ledgerUC,
		txm:          txm,
		publisher:    publisher,
		cache:        redisCache,
		logger:       log,
	}
}

func heldQuantity(res *model.Reservation) float64 {
	total := 0.0
	for _, item := range res.Items {
		if item.Status == model.ReservationActive {
			total += item.Quantity
		}
	}
	return total
}

func (uc *orchestratorUseCase) ReserveForOrder(ctx context.Context, input *dto.ReserveForOrderInput) (*resdto.FefoReservationResult, error) {
	result, err := uc.reservations.ReserveByFefo(ctx, &resdto.ReserveByFefoInput{
		SellerID:   input.SellerID,
		OrderID:    input.OrderID,
		CustomerID: input.CustomerID,
		ShopID:     input.ShopID,
		ShopName:   input.ShopName,
		Type:       input.Type,
		TTLMinutes: input.TTLMinutes,
		Products:   input.Products,
	})
	if err != nil {
		return nil, err
	}

	uc.publisher.Publish(ctx, events.Event{
		Name:     events.ReservationCreated,
		SellerID: input.SellerID,
		ShopID:   input.ShopID,
		OrderID:  input.OrderID,
		Payload: events.ReservationPayload{
			ReservationID: result.Reservation.ID,
			Status:        string(result.Reservation.Status),
			TotalQuantity: heldQuantity(result.Reservation),
		},
	})

	return result, nil
}

func (uc *orchestratorUseCase) ReleaseOrderReservation(ctx context.Context, orderID string, reason model.CancelReason) (*model.Reservation, error) {
	res, err := uc.reservations.CancelByOrder(ctx, orderID, reason)
	if err != nil {
		return nil, err
	}

	uc.publisher.Publish(ctx, events.Event{
		Name:     events.ReservationReleased,
		SellerID: res.SellerID,
		ShopID:   res.ShopID,
		OrderID:  orderID,
		Payload: events.ReservationPayload{
			ReservationID: res.ID,
			Status:        string(res.Status),
		},
	})

	return res, nil
}

// ConsumeReservation turns the order's holds into sales when the order ships.
// The lookup and the confirmation share one transaction so a concurrent
// cancel cannot slip between them.
func (uc *orchestratorUseCase) ConsumeReservation(ctx context.Context, input *dto.ConsumeReservationInput) (*model.Reservation, error) {
	var result *model.Reservation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := uc.reservations.GetByOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		confirmed, err := uc.reservations.Confirm(ctx, res.ID, input.ConfirmedQuantities)
		if err != nil {
			return err
		}
		result = confirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.publisher.Publish(ctx, events.Event{
		Name:     events.ReservationConsumed,
		SellerID: result.SellerID,
		ShopID:   result.ShopID,
		OrderID:  input.OrderID,
		Payload: events.ReservationPayload{
			ReservationID: result.ID,
			Status:        string(result.Status),
		},
	})

	return result, nil
}

func (uc *orchestratorUseCase) CheckOfflineSaleConflict(ctx context.Context, sellerID, shopID string, products []resdto.ProductRequest) (*dto.ConflictCheckResult, error) {
	loc := ledgerdto.Location{Type: model.LocationShop, ID: shopID}
	result := &dto.ConflictCheckResult{Sufficient: true}

	for _, line := range products {
		availability, err := uc.ledger.CheckAvailability(ctx, sellerID, line.ProductID, loc, line.Quantity)
		if err != nil {
			return nil, err
		}

		pc := dto.ProductConflict{
			ProductID:  line.ProductID,
			Available:  availability.Available,
			Requested:  line.Quantity,
			Sufficient: availability.Sufficient,
		}

		if !availability.Sufficient {
			result.Sufficient = false

			holders, err := uc.reservations.GetActiveForProduct(ctx, shopID, line.ProductID)
			if err != nil {
				return nil, err
			}
			for i := range holders {
				res := &holders[i]
				held := 0.0
				for _, item := range res.Items {
					if item.ProductID == line.ProductID && item.Status == model.ReservationActive {
						held += item.Quantity
					}
				}
				if held > 0 {
					pc.Conflicting = append(pc.Conflicting, dto.OrderConflict{
						OrderID:       res.OrderID,
						ReservationID: res.ID,
						HeldQuantity:  held,
					})
				}
			}
		}

		result.Products = append(result.Products, pc)
	}

	return result, nil
}

// ProcessOfflineSale settles a walk-in receipt against stock that may be held
// for online orders. All lines share one transaction. Without override each
// line only takes unreserved stock and reports the shortfall. With override
// the deficit is force-released from holds first, starting with the furthest
// expiration, so the most urgent online promises survive.
func (uc *orchestratorUseCase) ProcessOfflineSale(ctx context.Context, input *dto.OfflineSaleInput) (*dto.OfflineSaleResult, error) {
	if len(input.Products) == 0 {
		return nil, fmt.Errorf("%w: offline sale needs at least one product", model.ErrInvariantViolation)
	}

	loc := ledgerdto.Location{Type: model.LocationShop, ID: input.ShopID}
	result := &dto.OfflineSaleResult{}

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		forced := map[string]bool{}
		for _, line := range input.Products {
			sale, err := uc.sellOfflineLine(ctx, input, loc, line)
			if err != nil {
				return err
			}

			result.Products = append(result.Products, *sale)
			result.Sold += sale.Sold
			result.Shortfall += sale.Shortfall
			result.ForceReleased += sale.ForceReleased
			for _, orderID := range sale.ForcedOrders {
				if !forced[orderID] {
					forced[orderID] = true
					result.ForcedOrders = append(result.ForcedOrders, orderID)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lines := make([]events.OfflineSaleLine, len(result.Products))
	for i, p := range result.Products {
		lines[i] = events.OfflineSaleLine{
			ProductID: p.ProductID,
			Requested: p.Requested,
			Sold:      p.Sold,
			Shortfall: p.Shortfall,
		}
	}
	uc.publisher.Publish(ctx, events.Event{
		Name:     events.OfflineSaleProcessed,
		SellerID: input.SellerID,
		ShopID:   input.ShopID,
		Payload: events.OfflineSalePayload{
			ReceiptID:    input.ReceiptID,
			Lines:        lines,
			ForcedOrders: result.ForcedOrders,
		},
	})

	return result, nil
}

// sellOfflineLine settles one receipt line inside the shared transaction.
func (uc *orchestratorUseCase) sellOfflineLine(ctx context.Context, input *dto.OfflineSaleInput, loc ledgerdto.Location, line resdto.ProductRequest) (*dto.ProductSale, error) {
	sale := &dto.ProductSale{ProductID: line.ProductID, Requested: line.Quantity}

	availability, err := uc.ledger.CheckAvailability(ctx, input.SellerID, line.ProductID, loc, line.Quantity)
	if err != nil {
		return nil, err
	}

	if !availability.Sufficient && input.Override {
		deficit := line.Quantity - availability.Available

		holders, err := uc.reservations.GetActiveForProduct(ctx, input.ShopID, line.ProductID)
		if err != nil {
			return nil, err
		}
		for i := range holders {
			sale.ForcedOrders = append(sale.ForcedOrders, holders[i].OrderID)
		}

		released, err := uc.ledger.ForceReleaseReservation(ctx, &ledgerdto.ForceReleaseInput{
			SellerID:  input.SellerID,
			ProductID: line.ProductID,
			Location:  loc,
			Quantity:  deficit,
			Reason:    fmt.Sprintf("offline sale %s", input.ReceiptID),
			ChangedBy: input.ProcessedBy,
		})
		if err != nil {
			return nil, err
		}
		sale.ForceReleased = released.TotalReleased
	}

	consumed, err := uc.ledger.ConsumeByFefo(ctx, &ledgerdto.ConsumeInput{
		SellerID:         input.SellerID,
		ProductID:        line.ProductID,
		Location:         loc,
		Quantity:         line.Quantity,
		Reason:           model.ReasonSale,
		UseAvailableOnly: true,
		ReferenceID:      input.ReceiptID,
		ReferenceType:    "offline_sale",
		ChangedBy:        input.ProcessedBy,
	})
	if err != nil {
		return nil, err
	}

	sale.Sold = consumed.TotalConsumed
	sale.Shortfall = consumed.Shortfall
	sale.Consumed = consumed.Consumed
	return sale, nil
}

func (uc *orchestratorUseCase) GetLocationStock(ctx context.Context, loc ledgerdto.Location, f *ledgerdto.StockFilters) ([]model.BatchLocation, int, error) {
	return uc.ledger.GetAllStockInLocation(ctx, loc, f)
}

// GetProductStock is the hot read of the checkout path; rows are cached
// briefly to absorb bursts. The TTL is short enough that a stale read only
// delays visibility of a mutation by seconds.
func (uc *orchestratorUseCase) GetProductStock(ctx context.Context, sellerID, productID string, loc ledgerdto.Location) ([]model.BatchLocation, error) {
	key := fmt.Sprintf("stock:product:%s:%s:%s:%s", sellerID, productID, loc.Type, loc.ID)

	if uc.cache != nil {
		var rows []model.BatchLocation
		if uc.cache.GetJSON(ctx, key, &rows) {
			return rows, nil
		}
	}

	rows, err := uc.ledger.GetProductStockInLocation(ctx, sellerID, productID, loc)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		uc.cache.SetJSON(ctx, key, rows, productStockCacheTTL)
		uc.logger.Debug("product stock cached", zap.String("key", key))
	}

	return rows, nil
}

var _ orchestrator.UseCase = (*orchestratorUseCase)(nil)
