package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/ledger"
	ledgerdto "github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/fekuna/omnipos-inventory-service/pkg/postgres"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultTTL     = 60 * time.Minute
	expiredBatch   = 100
	defaultResType = model.ReservationTypeOrder
)

type reservationUseCase struct {
	repo   reservation.Repository
	ledger ledger.UseCase
	txm    postgres.TxManager
	ttl    time.Duration
	logger logger.ZapLogger
}

func NewReservationUseCase(repo reservation.Repository, ledgerUC ledger.UseCase, txm postgres.TxManager, ttl time.Duration, log logger.ZapLogger) reservation.UseCase {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &reservationUseCase{
		repo:   repo,
		ledger: ledgerUC,
		txm:    txm,
		ttl:    ttl,
		logger: log,
	}
}

func (uc *reservationUseCase) expiry(ttlMinutes int) time.Time {
	ttl := uc.ttl
	if ttlMinutes > 0 {
		ttl = time.Duration(ttlMinutes) * time.Minute
	}
	return time.Now().Add(ttl)
}

func newReservation(sellerID, orderID, customerID, shopID, shopName string, resType model.ReservationType, expiresAt time.Time) *model.Reservation {
	now := time.Now()
	if resType == "" {
		resType = defaultResType
	}
	res := &model.Reservation{
		ID:        uuid.New().String(),
		SellerID:  sellerID,
		OrderID:   orderID,
		ShopID:    shopID,
		Type:      resType,
		Status:    model.ReservationActive,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if customerID != "" {
		res.CustomerID = &customerID
	}
	if shopName != "" {
		res.ShopName = &shopName
	}
	return res
}

func (uc *reservationUseCase) newItem(reservationID string, bl *model.BatchLocation, productID string, qty float64) model.ReservationItem {
	return model.ReservationItem{
		ID:                 uuid.New().String(),
		ReservationID:      reservationID,
		BatchID:            bl.BatchID,
		BatchLocationID:    bl.ID,
		ProductID:          productID,
		Quantity:           qty,
		Status:             model.ReservationActive,
		ExpirationSnapshot: bl.EffectiveExpirationDate,
		FreshnessSnapshot:  bl.FreshnessRemaining,
	}
}

// Create holds stock for every requested item. Any failed hold aborts the
// transaction, rolling back the holds already taken; no partial reservation
// survives.
func (uc *reservationUseCase) Create(ctx context.Context, input *dto.CreateInput) (*model.Reservation, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: reservation needs at least one item", model.ErrInvariantViolation)
	}

	res := newReservation(input.SellerID, input.OrderID, input.CustomerID, input.ShopID, input.ShopName, input.Type, uc.expiry(input.TTLMinutes))

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := uc.repo.GetByOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: order %s", model.ErrDuplicateOrder, input.OrderID)
		}

		for _, in := range input.Items {
			if err := uc.ledger.Reserve(ctx, in.BatchLocationID, in.Quantity, input.OrderID); err != nil {
				return err
			}
			bl, err := uc.ledger.GetByID(ctx, in.BatchLocationID)
			if err != nil {
				return err
			}
			res.Items = append(res.Items, uc.newItem(res.ID, bl, in.ProductID, in.Quantity))
		}

		return uc.repo.Create(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ReserveByFefo is the order-facing entry point. Row selection happens here
// rather than in the ledger so batch snapshots can be attached to each item.
// Shortfalls never fail the call; the reservation covers whatever could be
// held and the shortages travel back as data.
func (uc *reservationUseCase) ReserveByFefo(ctx context.Context, input *dto.ReserveByFefoInput) (*dto.FefoReservationResult, error) {
	if len(input.Products) == 0 {
		return nil, fmt.Errorf("%w: reservation needs at least one product", model.ErrInvariantViolation)
	}

	res := newReservation(input.SellerID, input.OrderID, input.CustomerID, input.ShopID, input.ShopName, input.Type, uc.expiry(input.TTLMinutes))
	result := &dto.FefoReservationResult{Reservation: res}
	loc := ledgerdto.Location{Type: model.LocationShop, ID: input.ShopID}

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := uc.repo.GetByOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: order %s", model.ErrDuplicateOrder, input.OrderID)
		}

		for _, req := range input.Products {
			rows, err := uc.ledger.GetProductStockInLocation(ctx, input.SellerID, req.ProductID, loc)
			if err != nil {
				return err
			}

			remaining := req.Quantity
			reserved := 0.0
			for i := range rows {
				if remaining <= 0 {
					break
				}
				bl := &rows[i]
				take := bl.AvailableQuantity()
				if take <= 0 {
					continue
				}
				if take > remaining {
					take = remaining
				}

				if err := uc.ledger.Reserve(ctx, bl.ID, take, input.OrderID); err != nil {
					// A concurrent consumer may have taken the snapshot row;
					// skip it and keep walking the FEFO order.
					if errors.Is(err, model.ErrInsufficientStock) {
						continue
					}
					return err
				}

				res.Items = append(res.Items, uc.newItem(res.ID, bl, req.ProductID, take))
				remaining -= take
				reserved += take
			}

			if remaining > 0 {
				result.Shortages = append(result.Shortages, dto.ProductShortage{
					ProductID: req.ProductID,
					Requested: req.Quantity,
					Reserved:  reserved,
					Shortfall: remaining,
				})
			}
		}

		return uc.repo.Create(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *reservationUseCase) load(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: reservation %s", model.ErrNotFound, id)
	}
	return res, nil
}

// loadForUpdate locks the reservation row for the surrounding transaction.
// Every mutating command goes through it: without the lock two concurrent
// confirms would both read ACTIVE and consume the same hold twice.
func (uc *reservationUseCase) loadForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := uc.repo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: reservation %s", model.ErrNotFound, id)
	}
	return res, nil
}

func (uc *reservationUseCase) AddItem(ctx context.Context, reservationID string, item dto.ItemInput) (*model.Reservation, error) {
	var result *model.Reservation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := uc.loadForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if !res.CanModify() {
			return fmt.Errorf("%w: can only add items to ACTIVE reservations, got %s", model.ErrInvalidTransition, res.Status)
		}

		if err := uc.ledger.Reserve(ctx, item.BatchLocationID, item.Quantity, res.OrderID); err != nil {
			return err
		}
		bl, err := uc.ledger.GetByID(ctx, item.BatchLocationID)
		if err != nil {
			return err
		}

		newItem := uc.newItem(res.ID, bl, item.ProductID, item.Quantity)
		if err := uc.repo.InsertItem(ctx, &newItem); err != nil {
			return err
		}
		res.Items = append(res.Items, newItem)
		res.UpdatedAt = time.Now()
		if err := uc.repo.Update(ctx, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *reservationUseCase) UpdateItemQuantity(ctx context.Context, reservationID, itemID string, quantity float64) (*model.Reservation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", model.ErrInvariantViolation)
	}

	var result *model.Reservation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := uc.loadForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if !res.CanModify() {
			return fmt.Errorf("%w: can only update items of ACTIVE reservations, got %s", model.ErrInvalidTransition, res.Status)
		}

		var item *model.ReservationItem
		for i := range res.Items {
			if res.Items[i].ID == itemID {
				item = &res.Items[i]
				break
			}
		}
		if item == nil {
			return fmt.Errorf("%w: reservation item %s", model.ErrNotFound, itemID)
		}

		delta := quantity - item.Quantity
		if delta > 0 {
			if err := uc.ledger.Reserve(ctx, item.BatchLocationID, delta, res.OrderID); err != nil {
				return err
			}
		} else if delta < 0 {
			if err := uc.ledger.ReleaseReserve(ctx, item.BatchLocationID, -delta, res.OrderID); err != nil {
				return err
			}
		}

		item.Quantity = quantity
		if err := uc.repo.UpdateItem(ctx, item); err != nil {
			return err
		}
		res.UpdatedAt = time.Now()
		if err := uc.repo.Update(ctx, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *reservationUseCase) RemoveItem(ctx context.Context, reservationID, itemID string) (*model.Reservation, error) {
	var result *model.Reservation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := uc.loadForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if !res.CanModify() {
			return fmt.Errorf("%w: can only remove items from ACTIVE reservations, got %s", model.ErrInvalidTransition, res.Status)
		}

		idx := -1
		for i := range res.Items {
			if res.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: reservation item %s", model.ErrNotFound, itemID)
		}

		item := res.Items[idx]
		if err := uc.ledger.ReleaseReserve(ctx, item.BatchLocationID, item.Quantity, res.OrderID); err != nil {
			return err
		}
		if err := uc.repo.DeleteItem(ctx, itemID); err != nil {
			return err
		}

		res.Items = append(res.Items[:idx], res.Items[idx+1:]...)
		res.UpdatedAt = time.Now()
		if err := uc.repo.Update(ctx, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// confirmItem converts one item's hold into consumption, releasing whatever
// part of the hold was not taken.
func (uc *reservationUseCase) confirmItem(ctx context.Context, res *model.Reservation, item *model.ReservationItem, confirmed float64) error {
	if confirmed < 0 {
		confirmed = 0
	}
	if confirmed > item.Quantity {
		confirmed = item.Quantity
	}

	if confirmed > 0 {
		if err := uc.ledger.ConfirmReserve(ctx, item.BatchLocationID, confirmed, res.OrderID); err != nil {
			return err
		}
	}
	if rest := item.Quantity - confirmed; rest > 0 {
		if err := uc.ledger.ReleaseReserve(ctx, item.BatchLocationID, rest, res.OrderID); err != nil {
			return err
		}
	}

	item.ConfirmedQuantity = &confirmed
	item.Status = model.ReservationConfirmed
	return uc.repo.UpdateItem(ctx, item)
}

func (uc *reservationUseCase) Confirm(ctx context.Context, reservationID string, confirmedQuantities map[string]float64) (*model.Reservation, error) {
	var result *model.Reservation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := uc.loadForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationActive && res.Status != model.ReservationPartiallyConfirmed {
			return fmt.Errorf("%w: can only confirm ACTIVE or PARTIALLY_CONFIRMED reservations, got %s", model.ErrInvalidTransition, res.Status)
		}

		for i := range res.Items {
			item := &res.Items[i]
			if item.Status != model.ReservationActive {
				continue
			}
			confirmed := item.Quantity
			if v, ok := confirmedQuantities[item.ID]; ok {
				confirmed = v
			}
			if err := uc.confirmItem(ctx, res, item, confirmed); err != nil {
				return err
			}
		}

		now := time.Now()
		res.Status = model.ReservationConfirmed
		res.ConfirmedAt = &now
		res.UpdatedAt = now
		if err := uc.repo.Update(ctx, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *reservationUseCase) PartiallyConfirm(ctx context.Context, reservationID string, items []dto.PartialConfirmItem) (*model.Reservation, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: nothing to confirm", model.ErrInvariantViolation)
	}

	var result *model.Reservation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := uc.loadForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationActive && res.Status != model.ReservationPartiallyConfirmed {
			return fmt.Errorf("%w: can only confirm ACTIVE or PARTIALLY_CONFIRMED reservations, got %s", model.ErrInvalidTransition, res.Status)
		}

		byID := map[string]*model.ReservationItem{}
		for i := range res.Items {
			byID[res.Items[i].ID] = &res.Items[i]
		}

		for _, in := range items {
			item, ok := byID[in.ItemID]
			if !ok {
				return fmt.Errorf("%w: reservation item %s", model.ErrNotFound, in.ItemID)
			}
			if item.Status != model.ReservationActive {
				continue
			}
			if err := uc.confirmItem(ctx, res, item, in.Quantity); err != nil {
				return err
			}
		}

		allDone := true
		for i := range res.Items {
			if res.Items[i].Status == model.ReservationActive {
				allDone = false
				break
			}
		}

		now := time.Now()
		if allDone {
			res.Status = model.ReservationConfirmed
			res.ConfirmedAt = &now
		} else {
			res.Status = model.ReservationPartiallyConfirmed
		}
		res.UpdatedAt = now
		if err := uc.repo.Update(ctx, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *reservationUseCase) cancelLocked(ctx context.Context, res *model.Reservation, reason model.CancelReason, comment string) error {
	if !res.CanCancel() {
		return fmt.Errorf("%w: can only cancel ACTIVE or PARTIALLY_CONFIRMED reservations, got %s", model.ErrInvalidTransition, res.Status)
	}

	for i := range res.Items {
		item := &res.Items[i]
		if item.Status != model.ReservationActive {
			continue
		}
		if err := uc.ledger.ReleaseReserve(ctx, item.BatchLocationID, item.Quantity, res.OrderID); err != nil {
			return err
		}
		item.Status = model.ReservationCancelled
		if err := uc.repo.UpdateItem(ctx, item); err != nil {
			return err
		}
	}

	now := time.Now()
	res.Status = model.ReservationCancelled
	res.CancelledAt = &now
	res.UpdatedAt = now
	if reason != "" {
		res.CancelReason = &reason
	}
	if comment != "" {
		res.CancelComment = &comment
	}
	return uc.repo.Update(ctx, res)
}

func (uc *reservationUseCase) Cancel(ctx context.Context, reservationID string, reason model.CancelReason, comment string) (*model.Reservation, error) {
	var result *model.Reservation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := uc.loadForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := uc.cancelLocked(ctx, res, reason, comment); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CancelByOrder tolerates already-terminal reservations: callers retrying a
// cancellation get the existing document back instead of an error.
func (uc *reservationUseCase) CancelByOrder(ctx context.Context, orderID string, reason model.CancelReason) (*model.Reservation, error) {
	var result *model.Reservation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := uc.repo.GetByOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("%w: reservation for order %s", model.ErrNotFound, orderID)
		}
		if res.IsTerminal() {
			result = res
			return nil
		}
		if err := uc.cancelLocked(ctx, res, reason, ""); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *reservationUseCase) Extend(ctx context.Context, reservationID string, additional time.Duration) (*model.Reservation, error) {
	if additional <= 0 {
		return nil, fmt.Errorf("%w: extension must be positive", model.ErrInvariantViolation)
	}

	var result *model.Reservation

	err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := uc.loadForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationActive {
			return fmt.Errorf("%w: can only extend ACTIVE reservations, got %s", model.ErrInvalidTransition, res.Status)
		}

		res.ExpiresAt = res.ExpiresAt.Add(additional)
		res.UpdatedAt = time.Now()
		if err := uc.repo.Update(ctx, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// MarkExpired is the explicit sweep that bounds how long stock can be held.
// Holds are released through the ledger before the reservation flips to
// EXPIRED; a storage-level TTL delete would leak reserved quantity.
func (uc *reservationUseCase) MarkExpired(ctx context.Context) (int, error) {
	expired, err := uc.repo.ListExpired(ctx, time.Now(), expiredBatch)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range expired {
		res := &expired[i]
		err := uc.txm.WithinTx(ctx, func(ctx context.Context) error {
			for j := range res.Items {
				item := &res.Items[j]
				if item.Status != model.ReservationActive {
					continue
				}
				if err := uc.ledger.ReleaseReserve(ctx, item.BatchLocationID, item.Quantity, res.OrderID); err != nil {
					return err
				}
				item.Status = model.ReservationExpired
				if err := uc.repo.UpdateItem(ctx, item); err != nil {
					return err
				}
			}

			now := time.Now()
			reason := model.CancelExpired
			res.Status = model.ReservationExpired
			res.CancelReason = &reason
			res.CancelledAt = &now
			res.UpdatedAt = now
			return uc.repo.Update(ctx, res)
		})
		if err != nil {
			uc.logger.Error("failed to expire reservation",
				zap.String("reservation_id", res.ID),
				zap.Error(err),
			)
			continue
		}
		processed++
	}

	return processed, nil
}

func (uc *reservationUseCase) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	return uc.load(ctx, id)
}

func (uc *reservationUseCase) GetByOrder(ctx context.Context, orderID string) (*model.Reservation, error) {
	res, err := uc.repo.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: reservation for order %s", model.ErrNotFound, orderID)
	}
	return res, nil
}

func (uc *reservationUseCase) GetByShop(ctx context.Context, shopID string, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	return uc.repo.ListByShop(ctx, shopID, f)
}

func (uc *reservationUseCase) GetBySeller(ctx context.Context, sellerID string, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	return uc.repo.ListBySeller(ctx, sellerID, f)
}

func (uc *reservationUseCase) GetActiveForBatchLocation(ctx context.Context, batchLocationID string) ([]model.Reservation, error) {
	return uc.repo.ListActiveForBatchLocation(ctx, batchLocationID)
}

func (uc *reservationUseCase) GetActiveForProduct(ctx context.Context, shopID, productID string) ([]model.Reservation, error) {
	return uc.repo.ListActiveForProduct(ctx, shopID, productID)
}

func (uc *reservationUseCase) GetExpired(ctx context.Context) ([]model.Reservation, error) {
	return uc.repo.ListExpired(ctx, time.Now(), expiredBatch)
}

func (uc *reservationUseCase) GetReservedQuantityForProduct(ctx context.Context, shopID, productID string) (float64, error) {
	return uc.repo.ReservedQuantityForProduct(ctx, shopID, productID)
}

func (uc *reservationUseCase) GetReservedQuantityForBatchLocation(ctx context.Context, batchLocationID string) (float64, error) {
	return uc.repo.ReservedQuantityForBatchLocation(ctx, batchLocationID)
}

func (uc *reservationUseCase) GetStatistics(ctx context.Context, sellerID string) (*dto.ReservationStatistics, error) {
	return uc.repo.Statistics(ctx, sellerID)
}
