package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/ledger"
	"github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/fekuna/omnipos-inventory-service/pkg/postgres"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	lockTTL        = 5 * time.Second
	lockRetries    = 3
	lockRetryDelay = 100 * time.Millisecond
)

type ledgerUseCase struct {
	repo   ledger.Repository
	txm    postgres.TxManager
	cache  *cache.RedisClient
	logger logger.ZapLogger
}

// NewLedgerUseCase wires the batch-location ledger. cache may be nil; stock
// scope locking is then skipped (single-process deployments and tests).
func NewLedgerUseCase(repo ledger.Repository, txm postgres.TxManager, cache *cache.RedisClient, log logger.ZapLogger) ledger.UseCase {
	return &ledgerUseCase{
		repo:   repo,
		txm:    txm,
		cache:  cache,
		logger: log,
	}
}

// lockScope serializes FEFO passes over one (seller, product, location) scope
// across processes. The row locks inside the transaction protect correctness;
// this lock keeps concurrent passes from starving each other on conflicts.
func (uc *ledgerUseCase) lockScope(ctx context.Context, sellerID, productID string, loc dto.Location) (func(), error) {
	if uc.cache == nil {
		return func() {}, nil
	}

	lockKey := fmt.Sprintf("lock:stock:%s:%s:%s:%s", sellerID, productID, loc.Type, loc.ID)
	lockValue := uuid.New().String()

	for i := 0; i < lockRetries; i++ {
		ok, err := uc.cache.AcquireLock(ctx, lockKey, lockValue, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire stock lock", zap.Error(err))
		}
		if ok {
			return func() {
				_ = uc.cache.ReleaseLock(context.Background(), lockKey, lockValue)
			}, nil
		}
		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("stock scope busy, please retry: %s", lockKey)
}

// save persists the row and appends its change-log entry. Every mutation in
// this package funnels through here so the log stays complete.
func (uc *ledgerUseCase) save(ctx context.Context, bl *model.BatchLocation, entry *model.ChangeLogEntry) error {
	bl.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, bl); err != nil {
		return err
	}
	return uc.repo.AppendChange(ctx, entry)
}

func newChange(bl *model.BatchLocation, reason model.ChangeReason, qtyDelta, before, after, reservedDelta float64) *model.ChangeLogEntry {
	return &model.ChangeLogEntry{
		ID:              uuid.New().String(),
		BatchLocationID: bl.ID,
		ChangedAt:       time.Now(),
		Reason:          reason,
		QuantityDelta:   qtyDelta,
		QuantityBefore:  before,
		QuantityAfter:   after,
		ReservedDelta:   reservedDelta,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (uc *ledgerUseCase) Create(ctx context.Context, input *dto.CreateBatchLocationInput) (*model.BatchLocation, error) {
	now := time.Now()
	bl := &model.BatchLocation{
		ID:                      uuid.New().String(),
		BatchID:                 input.BatchID,
		SellerID:                input.SellerID,
		ProductID:               input.ProductID,
		LocationType:            input.Location.Type,
		LocationName:            optional(input.LocationName),
		Quantity:                input.Quantity,
		EffectiveExpirationDate: input.EffectiveExpirationDate,
		FreshnessRemaining:      input.FreshnessRemaining,
		DegradationCoefficient:  input.DegradationCoefficient,
		ArrivedAt:               input.ArrivedAt,
		PurchasePrice:           input.PurchasePrice,
		Status:                  model.BatchLocationActive,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if bl.ArrivedAt.IsZero() {
		bl.ArrivedAt = now
	}
	switch input.Location.Type {
	case model.LocationShop:
		bl.ShopID = &input.Location.ID
	case model.LocationWarehouse:
		bl.WarehouseID = &input.Location.ID
	default:
		return nil, fmt.Errorf("%w: unknown location type %q", model.ErrInvariantViolation, input.Location.Type)
	}

	reason := input.Reason
	if reason == "" {
		reason = model.ReasonReceiving
	}

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := uc.repo.GetBatchInLocation(ctx, input.BatchID, input.Location)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: batch %s already present in %s %s", model.ErrInvariantViolation, input.BatchID, input.Location.Type, input.Location.ID)
		}
		if err := uc.repo.Create(ctx, bl); err != nil {
			return err
		}
		entry := newChange(bl, reason, input.Quantity, 0, input.Quantity, 0)
		entry.ChangedBy = optional(input.ChangedBy)
		entry.ReferenceID = optional(input.ReferenceID)
		entry.ReferenceType = optional(input.ReferenceType)
		return uc.repo.AppendChange(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	return bl, nil
}

// ChangeQuantity is the single choke-point for quantity mutation: floor at
// zero, reserved clamped to quantity, auto-depletion, one log entry.
func (uc *ledgerUseCase) ChangeQuantity(ctx context.Context, input *dto.ChangeQuantityInput) (*model.BatchLocation, error) {
	var result *model.BatchLocation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		bl, err := uc.repo.GetByIDForUpdate(ctx, input.ID)
		if err != nil {
			return err
		}
		if bl == nil {
			return fmt.Errorf("%w: batch location %s", model.ErrNotFound, input.ID)
		}

		before := bl.Quantity
		after := before + input.Delta
		if after < 0 {
			after = 0
		}
		bl.Quantity = after

		reservedDelta := 0.0
		if bl.ReservedQuantity > bl.Quantity {
			reservedDelta = bl.Quantity - bl.ReservedQuantity
			bl.ReservedQuantity = bl.Quantity
		}

		if bl.Quantity == 0 && bl.Status == model.BatchLocationActive {
			bl.Status = model.BatchLocationDepleted
		}

		entry := newChange(bl, input.Reason, after-before, before, after, reservedDelta)
		entry.ChangedBy = optional(input.ChangedBy)
		entry.ReferenceID = optional(input.ReferenceID)
		entry.ReferenceType = optional(input.ReferenceType)
		entry.Comment = optional(input.Comment)

		if err := uc.save(ctx, bl, entry); err != nil {
			return err
		}
		result = bl
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *ledgerUseCase) ConsumeByFefo(ctx context.Context, input *dto.ConsumeInput) (*dto.ConsumeResult, error) {
	release, err := uc.lockScope(ctx, input.SellerID, input.ProductID, input.Location)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &dto.ConsumeResult{}

	err = uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		rows, err := uc.repo.ListActiveFefo(ctx, input.SellerID, input.ProductID, input.Location, true)
		if err != nil {
			return err
		}

		remaining := input.Quantity
		for i := range rows {
			if remaining <= 0 {
				break
			}
			bl := &rows[i]

			usable := bl.Quantity
			if input.UseAvailableOnly {
				usable = bl.AvailableQuantity()
			}
			if usable <= 0 {
				continue
			}

			take := usable
			if take > remaining {
				take = remaining
			}

			before := bl.Quantity
			bl.Quantity -= take

			// Privileged consumption can eat into held stock; the clamp keeps
			// reserved <= quantity.
			reservedDelta := 0.0
			if bl.ReservedQuantity > bl.Quantity {
				reservedDelta = bl.Quantity - bl.ReservedQuantity
				bl.ReservedQuantity = bl.Quantity
			}

			if bl.Quantity == 0 {
				bl.Status = model.BatchLocationDepleted
			}

			entry := newChange(bl, input.Reason, -take, before, bl.Quantity, reservedDelta)
			entry.ChangedBy = optional(input.ChangedBy)
			entry.ReferenceID = optional(input.ReferenceID)
			entry.ReferenceType = optional(input.ReferenceType)
			if err := uc.save(ctx, bl, entry); err != nil {
				return err
			}

			remaining -= take
			result.Consumed = append(result.Consumed, dto.FefoConsumption{
				BatchLocationID: bl.ID,
				BatchID:         bl.BatchID,
				Consumed:        take,
				Remaining:       bl.Quantity,
			})
			result.TotalConsumed += take
		}

		result.FullyConsumed = remaining <= 0
		if remaining > 0 {
			result.Shortfall = remaining
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *ledgerUseCase) ReserveByFefo(ctx context.Context, input *dto.ReserveInput) (*dto.ReserveResult, error) {
	release, err := uc.lockScope(ctx, input.SellerID, input.ProductID, input.Location)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &dto.ReserveResult{}

	err = uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		rows, err := uc.repo.ListActiveFefo(ctx, input.SellerID, input.ProductID, input.Location, true)
		if err != nil {
			return err
		}

		remaining := input.Quantity
		for i := range rows {
			if remaining <= 0 {
				break
			}
			bl := &rows[i]

			avail := bl.AvailableQuantity()
			if avail <= 0 {
				continue
			}

			take := avail
			if take > remaining {
				take = remaining
			}

			bl.ReservedQuantity += take
			entry := newChange(bl, model.ReasonReservation, 0, bl.Quantity, bl.Quantity, take)
			entry.ReferenceID = optional(input.OrderID)
			entry.ReferenceType = optional("order")
			if err := uc.save(ctx, bl, entry); err != nil {
				return err
			}

			remaining -= take
			result.Reservations = append(result.Reservations, dto.FefoReservation{
				BatchLocationID: bl.ID,
				BatchID:         bl.BatchID,
				Reserved:        take,
			})
			result.ReservedQuantity += take
		}

		result.Success = remaining <= 0
		if remaining > 0 {
			result.Shortfall = remaining
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ReleaseReservation returns an order's outstanding holds to the available
// pool. The held amount per row is reconstructed from the structured
// reserved_delta log entries, never from comment text.
func (uc *ledgerUseCase) ReleaseReservation(ctx context.Context, orderID string, batchLocationIDs []string, reason string) (*dto.ReleaseResult, error) {
	only := map[string]bool{}
	for _, id := range batchLocationIDs {
		only[id] = true
	}

	result := &dto.ReleaseResult{}

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		held, err := uc.repo.NetReservedForOrder(ctx, orderID)
		if err != nil {
			return err
		}

		for blID, amount := range held {
			if amount <= 0 {
				continue
			}
			if len(only) > 0 && !only[blID] {
				continue
			}

			bl, err := uc.repo.GetByIDForUpdate(ctx, blID)
			if err != nil {
				return err
			}
			if bl == nil {
				continue
			}

			releaseQty := amount
			if releaseQty > bl.ReservedQuantity {
				releaseQty = bl.ReservedQuantity
			}
			if releaseQty <= 0 {
				continue
			}

			bl.ReservedQuantity -= releaseQty
			entry := newChange(bl, model.ReasonReleaseReservation, 0, bl.Quantity, bl.Quantity, -releaseQty)
			entry.ReferenceID = optional(orderID)
			entry.ReferenceType = optional("order")
			entry.Comment = optional(reason)
			if err := uc.save(ctx, bl, entry); err != nil {
				return err
			}

			result.Released = append(result.Released, dto.ReleaseDetail{BatchLocationID: blID, Released: releaseQty})
			result.TotalReleased += releaseQty
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ForceReleaseReservation frees reserved capacity starting from the rows
// furthest from expiring, so holds on soon-to-expire stock survive. Release is
// by scope, not by owning order: an authorized in-person sale outranks any
// online hold.
func (uc *ledgerUseCase) ForceReleaseReservation(ctx context.Context, input *dto.ForceReleaseInput) (*dto.ReleaseResult, error) {
	release, err := uc.lockScope(ctx, input.SellerID, input.ProductID, input.Location)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &dto.ReleaseResult{}

	err = uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		rows, err := uc.repo.ListReservedDesc(ctx, input.SellerID, input.ProductID, input.Location, true)
		if err != nil {
			return err
		}

		remaining := input.Quantity
		for i := range rows {
			if remaining <= 0 {
				break
			}
			bl := &rows[i]
			if bl.ReservedQuantity <= 0 {
				continue
			}

			releaseQty := bl.ReservedQuantity
			if releaseQty > remaining {
				releaseQty = remaining
			}

			bl.ReservedQuantity -= releaseQty
			entry := newChange(bl, model.ReasonReleaseReservation, 0, bl.Quantity, bl.Quantity, -releaseQty)
			entry.ChangedBy = optional(input.ChangedBy)
			entry.Comment = optional(input.Reason)
			if err := uc.save(ctx, bl, entry); err != nil {
				return err
			}

			remaining -= releaseQty
			result.Released = append(result.Released, dto.ReleaseDetail{BatchLocationID: bl.ID, Released: releaseQty})
			result.TotalReleased += releaseQty
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *ledgerUseCase) TransferToLocation(ctx context.Context, input *dto.TransferInput) (*dto.TransferResult, error) {
	result := &dto.TransferResult{Transferred: input.Quantity}

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		src, err := uc.repo.GetByIDForUpdate(ctx, input.SourceID)
		if err != nil {
			return err
		}
		if src == nil {
			return fmt.Errorf("%w: batch location %s", model.ErrNotFound, input.SourceID)
		}
		if src.Quantity < input.Quantity {
			return fmt.Errorf("%w: transfer of %.3f exceeds on-hand %.3f", model.ErrInvariantViolation, input.Quantity, src.Quantity)
		}

		before := src.Quantity
		src.Quantity -= input.Quantity
		reservedDelta := 0.0
		if src.ReservedQuantity > src.Quantity {
			reservedDelta = src.Quantity - src.ReservedQuantity
			src.ReservedQuantity = src.Quantity
		}
		if src.Quantity == 0 {
			src.Status = model.BatchLocationTransferred
		}

		outEntry := newChange(src, model.ReasonTransferOut, -input.Quantity, before, src.Quantity, reservedDelta)
		outEntry.ChangedBy = optional(input.ChangedBy)
		outEntry.ReferenceID = optional(input.ReferenceID)
		outEntry.ReferenceType = optional("transfer")
		if err := uc.save(ctx, src, outEntry); err != nil {
			return err
		}
		result.SourceID = src.ID

		tgt, err := uc.repo.GetBatchInLocation(ctx, src.BatchID, input.TargetLocation)
		if err != nil {
			return err
		}
		if tgt != nil && tgt.Status != model.BatchLocationActive {
			// The unique index allows one row per batch and location, so a
			// DEPLETED or TRANSFERRED row blocks the insert.
			return fmt.Errorf("%w: batch %s already has a %s row in the target location", model.ErrInvariantViolation, src.BatchID, tgt.Status)
		}

		if tgt != nil {
			tgtBefore := tgt.Quantity
			tgt.Quantity += input.Quantity
			inEntry := newChange(tgt, model.ReasonTransferIn, input.Quantity, tgtBefore, tgt.Quantity, 0)
			inEntry.ChangedBy = optional(input.ChangedBy)
			inEntry.ReferenceID = optional(input.ReferenceID)
			inEntry.ReferenceType = optional("transfer")
			if err := uc.save(ctx, tgt, inEntry); err != nil {
				return err
			}
			result.TargetID = tgt.ID
			return nil
		}

		now := time.Now()
		degradation := src.DegradationCoefficient
		if input.NewDegradationCoefficient != nil {
			degradation = *input.NewDegradationCoefficient
		}
		tgt = &model.BatchLocation{
			ID:                      uuid.New().String(),
			BatchID:                 src.BatchID,
			SellerID:                src.SellerID,
			ProductID:               src.ProductID,
			LocationType:            input.TargetLocation.Type,
			LocationName:            optional(input.TargetLocationName),
			Quantity:                input.Quantity,
			EffectiveExpirationDate: src.EffectiveExpirationDate,
			FreshnessRemaining:      src.FreshnessRemaining,
			DegradationCoefficient:  degradation,
			ArrivedAt:               now,
			PurchasePrice:           src.PurchasePrice,
			Status:                  model.BatchLocationActive,
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		switch input.TargetLocation.Type {
		case model.LocationShop:
			tgt.ShopID = &input.TargetLocation.ID
		case model.LocationWarehouse:
			tgt.WarehouseID = &input.TargetLocation.ID
		default:
			return fmt.Errorf("%w: unknown location type %q", model.ErrInvariantViolation, input.TargetLocation.Type)
		}
		if err := uc.repo.Create(ctx, tgt); err != nil {
			return err
		}

		inEntry := newChange(tgt, model.ReasonTransferIn, input.Quantity, 0, input.Quantity, 0)
		inEntry.ChangedBy = optional(input.ChangedBy)
		inEntry.ReferenceID = optional(input.ReferenceID)
		inEntry.ReferenceType = optional("transfer")
		if err := uc.repo.AppendChange(ctx, inEntry); err != nil {
			return err
		}
		result.TargetID = tgt.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// SyncFromBatch overwrites the denormalized decay fields for every row of the
// batch. The batch registry owns decay; the ledger never computes it.
func (uc *ledgerUseCase) SyncFromBatch(ctx context.Context, input *dto.SyncFromBatchInput) (int64, error) {
	count, err := uc.repo.SyncBatchFields(ctx, input.BatchID, input.EffectiveExpirationDate, input.FreshnessRemaining, input.DegradationCoefficient)
	if err != nil {
		return 0, err
	}
	uc.logger.Debug("synced batch fields",
		zap.String("batch_id", input.BatchID),
		zap.Int64("rows", count),
	)
	return count, nil
}

func (uc *ledgerUseCase) ApplyShrinkage(ctx context.Context, input *dto.ShrinkageInput) (*model.BatchLocation, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: shrinkage quantity must be positive", model.ErrInvariantViolation)
	}
	return uc.ChangeQuantity(ctx, &dto.ChangeQuantityInput{
		ID:        input.ID,
		Delta:     -input.Quantity,
		Reason:    model.ReasonShrinkage,
		ChangedBy: input.ChangedBy,
		Comment:   input.Comment,
	})
}

func (uc *ledgerUseCase) MarkDepleted(ctx context.Context, id, changedBy string) (*model.BatchLocation, error) {
	var result *model.BatchLocation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		bl, err := uc.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if bl == nil {
			return fmt.Errorf("%w: batch location %s", model.ErrNotFound, id)
		}
		if bl.Status != model.BatchLocationActive {
			return fmt.Errorf("%w: cannot deplete %s batch location", model.ErrInvalidTransition, bl.Status)
		}

		before := bl.Quantity
		reservedBefore := bl.ReservedQuantity
		bl.Quantity = 0
		bl.ReservedQuantity = 0
		bl.Status = model.BatchLocationDepleted

		entry := newChange(bl, model.ReasonAdjustment, -before, before, 0, -reservedBefore)
		entry.ChangedBy = optional(changedBy)
		entry.Comment = optional("marked depleted")
		if err := uc.save(ctx, bl, entry); err != nil {
			return err
		}
		result = bl
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *ledgerUseCase) Reserve(ctx context.Context, batchLocationID string, quantity float64, orderID string) error {
	return uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		bl, err := uc.repo.GetByIDForUpdate(ctx, batchLocationID)
		if err != nil {
			return err
		}
		if bl == nil {
			return fmt.Errorf("%w: batch location %s", model.ErrNotFound, batchLocationID)
		}
		if bl.Status != model.BatchLocationActive {
			return fmt.Errorf("%w: batch location %s is %s", model.ErrInsufficientStock, batchLocationID, bl.Status)
		}
		if bl.AvailableQuantity() < quantity {
			return fmt.Errorf("%w: requested %.3f, available %.3f on %s", model.ErrInsufficientStock, quantity, bl.AvailableQuantity(), batchLocationID)
		}

		bl.ReservedQuantity += quantity
		entry := newChange(bl, model.ReasonReservation, 0, bl.Quantity, bl.Quantity, quantity)
		entry.ReferenceID = optional(orderID)
		entry.ReferenceType = optional("order")
		return uc.save(ctx, bl, entry)
	})
}

func (uc *ledgerUseCase) ReleaseReserve(ctx context.Context, batchLocationID string, quantity float64, orderID string) error {
	return uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		bl, err := uc.repo.GetByIDForUpdate(ctx, batchLocationID)
		if err != nil {
			return err
		}
		if bl == nil {
			return fmt.Errorf("%w: batch location %s", model.ErrNotFound, batchLocationID)
		}

		releaseQty := quantity
		if releaseQty > bl.ReservedQuantity {
			releaseQty = bl.ReservedQuantity
		}
		if releaseQty <= 0 {
			return nil
		}

		bl.ReservedQuantity -= releaseQty
		entry := newChange(bl, model.ReasonReleaseReservation, 0, bl.Quantity, bl.Quantity, -releaseQty)
		entry.ReferenceID = optional(orderID)
		entry.ReferenceType = optional("order")
		return uc.save(ctx, bl, entry)
	})
}

// ConfirmReserve converts a hold into an actual sale: quantity and reserved
// quantity drop together.
func (uc *ledgerUseCase) ConfirmReserve(ctx context.Context, batchLocationID string, quantity float64, orderID string) error {
	return uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		bl, err := uc.repo.GetByIDForUpdate(ctx, batchLocationID)
		if err != nil {
			return err
		}
		if bl == nil {
			return fmt.Errorf("%w: batch location %s", model.ErrNotFound, batchLocationID)
		}
		if bl.Quantity < quantity {
			return fmt.Errorf("%w: confirming %.3f exceeds on-hand %.3f on %s", model.ErrInvariantViolation, quantity, bl.Quantity, batchLocationID)
		}

		before := bl.Quantity
		bl.Quantity -= quantity
		releaseQty := quantity
		if releaseQty > bl.ReservedQuantity {
			releaseQty = bl.ReservedQuantity
		}
		bl.ReservedQuantity -= releaseQty

		if bl.Quantity == 0 {
			bl.Status = model.BatchLocationDepleted
		}

		entry := newChange(bl, model.ReasonSale, -quantity, before, bl.Quantity, -releaseQty)
		entry.ReferenceID = optional(orderID)
		entry.ReferenceType = optional("order")
		return uc.save(ctx, bl, entry)
	})
}

func (uc *ledgerUseCase) GetByID(ctx context.Context, id string) (*model.BatchLocation, error) {
	bl, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bl == nil {
		return nil, fmt.Errorf("%w: batch location %s", model.ErrNotFound, id)
	}
	return bl, nil
}

func (uc *ledgerUseCase) GetByBatch(ctx context.Context, batchID string) ([]model.BatchLocation, error) {
	return uc.repo.GetByBatch(ctx, batchID)
}

func (uc *ledgerUseCase) GetBatchInLocation(ctx context.Context, batchID string, loc dto.Location) (*model.BatchLocation, error) {
	bl, err := uc.repo.GetBatchInLocation(ctx, batchID, loc)
	if err != nil {
		return nil, err
	}
	if bl == nil {
		return nil, fmt.Errorf("%w: batch %s in %s %s", model.ErrNotFound, batchID, loc.Type, loc.ID)
	}
	return bl, nil
}

func (uc *ledgerUseCase) GetProductStockInLocation(ctx context.Context, sellerID, productID string, loc dto.Location) ([]model.BatchLocation, error) {
	return uc.repo.ListActiveFefo(ctx, sellerID, productID, loc, false)
}

func (uc *ledgerUseCase) GetAggregatedStock(ctx context.Context, sellerID string, loc dto.Location) ([]dto.ProductStock, error) {
	return uc.repo.AggregateStock(ctx, sellerID, loc, "")
}

func (uc *ledgerUseCase) GetAllStockInLocation(ctx context.Context, loc dto.Location, f *dto.StockFilters) ([]model.BatchLocation, int, error) {
	return uc.repo.ListAllInLocation(ctx, loc, f)
}

func (uc *ledgerUseCase) GetReservedByOrder(ctx context.Context, orderID string) ([]dto.ReservedStock, error) {
	held, err := uc.repo.NetReservedForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var out []dto.ReservedStock
	for blID, amount := range held {
		if amount <= 0 {
			continue
		}
		bl, err := uc.repo.GetByID(ctx, blID)
		if err != nil {
			return nil, err
		}
		if bl == nil {
			continue
		}
		out = append(out, dto.ReservedStock{
			BatchLocationID: blID,
			BatchID:         bl.BatchID,
			ProductID:       bl.ProductID,
			Reserved:        amount,
		})
	}
	return out, nil
}

func (uc *ledgerUseCase) CheckAvailability(ctx context.Context, sellerID, productID string, loc dto.Location, quantity float64) (*dto.AvailabilityResult, error) {
	rows, err := uc.repo.ListActiveFefo(ctx, sellerID, productID, loc, false)
	if err != nil {
		return nil, err
	}

	available := 0.0
	for i := range rows {
		available += rows[i].AvailableQuantity()
	}

	return &dto.AvailabilityResult{
		Requested:  quantity,
		Available:  available,
		Sufficient: available >= quantity,
	}, nil
}

func (uc *ledgerUseCase) GetLowStock(ctx context.Context, sellerID string, loc dto.Location, threshold float64) ([]dto.ProductStock, error) {
	return uc.repo.LowStock(ctx, sellerID, loc, threshold)
}

func (uc *ledgerUseCase) GetLocationStatistics(ctx context.Context, sellerID string, loc dto.Location) (*dto.LocationStatistics, error) {
	return uc.repo.LocationStatistics(ctx, sellerID, loc)
}

func (uc *ledgerUseCase) ListChanges(ctx context.Context, batchLocationID string, page, pageSize int) ([]model.ChangeLogEntry, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return uc.repo.ListChanges(ctx, batchLocationID, pageSize, (page-1)*pageSize)
}
