package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/ledger"
	ledgermock "github.com/fekuna/omnipos-inventory-service/internal/ledger/mock"
	ledgeruc "github.com/fekuna/omnipos-inventory-service/internal/ledger/usecase"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	resmock "github.com/fekuna/omnipos-inventory-service/internal/reservation/mock"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/fekuna/omnipos-inventory-service/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSeller  = "seller-1"
	testProduct = "product-1"
	testShop    = "shop-1"
)

type fixture struct {
	ledgerRepo *ledgermock.Repository
	resRepo    *resmock.Repository
	ledgerUC   ledger.UseCase
	uc         reservation.UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledgerRepo := ledgermock.NewRepository()
	resRepo := resmock.NewRepository()
	ledgerUC := ledgeruc.NewLedgerUseCase(ledgerRepo, postgres.NoOpTxManager{}, nil, logger.NewNop())
	uc := NewReservationUseCase(resRepo, ledgerUC, postgres.NoOpTxManager{}, time.Hour, logger.NewNop())
	return &fixture{ledgerRepo: ledgerRepo, resRepo: resRepo, ledgerUC: ledgerUC, uc: uc}
}

func (f *fixture) seedStock(id string, expiresIn time.Duration, qty float64) {
	shopID := testShop
	now := time.Now()
	f.ledgerRepo.Seed(&model.BatchLocation{
		ID:                      id,
		BatchID:                 "batch-" + id,
		SellerID:                testSeller,
		ProductID:               testProduct,
		LocationType:            model.LocationShop,
		ShopID:                  &shopID,
		Quantity:                qty,
		EffectiveExpirationDate: now.Add(expiresIn),
		FreshnessRemaining:      9,
		DegradationCoefficient:  1,
		ArrivedAt:               now.Add(-time.Hour),
		Status:                  model.BatchLocationActive,
		CreatedAt:               now,
		UpdatedAt:               now,
	})
}

func (f *fixture) reserved(t *testing.T, blID string) float64 {
	t.Helper()
	bl, err := f.ledgerRepo.GetByID(context.Background(), blID)
	require.NoError(t, err)
	require.NotNil(t, bl)
	return bl.ReservedQuantity
}

func (f *fixture) quantity(t *testing.T, blID string) float64 {
	t.Helper()
	bl, err := f.ledgerRepo.GetByID(context.Background(), blID)
	require.NoError(t, err)
	require.NotNil(t, bl)
	return bl.Quantity
}

func createInput(orderID string, items ...dto.ItemInput) *dto.CreateInput {
	return &dto.CreateInput{
		SellerID: testSeller,
		OrderID:  orderID,
		ShopID:   testShop,
		Items:    items,
	}
}

func TestCreate_HoldsStockAndSnapshotsBatch(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 8},
	))
	require.NoError(t, err)

	assert.Equal(t, model.ReservationActive, res.Status)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 8.0, res.Items[0].Quantity)
	assert.Equal(t, "batch-b1", res.Items[0].BatchID)
	assert.False(t, res.Items[0].ExpirationSnapshot.IsZero())
	assert.Equal(t, 9.0, res.Items[0].FreshnessSnapshot)

	assert.Equal(t, 8.0, f.reserved(t, "b1"))
	assert.Equal(t, 20.0, f.quantity(t, "b1"), "a hold must not move quantity")
}

func TestCreate_RejectsDuplicateOrder(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	item := dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 2}
	_, err := f.uc.Create(context.Background(), createInput("order-1", item))
	require.NoError(t, err)

	_, err = f.uc.Create(context.Background(), createInput("order-1", item))
	assert.ErrorIs(t, err, model.ErrDuplicateOrder)
}

func TestCreate_InsufficientStockFails(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 5)

	_, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 6},
	))
	assert.ErrorIs(t, err, model.ErrInsufficientStock)
}

func TestReserveByFefo_WalksExpirationOrder(t *testing.T) {
	f := newFixture(t)
	f.seedStock("late", 72*time.Hour, 10)
	f.seedStock("soon", 24*time.Hour, 10)

	result, err := f.uc.ReserveByFefo(context.Background(), &dto.ReserveByFefoInput{
		SellerID: testSeller,
		OrderID:  "order-1",
		ShopID:   testShop,
		Products: []dto.ProductRequest{{ProductID: testProduct, Quantity: 12}},
	})
	require.NoError(t, err)

	assert.Empty(t, result.Shortages)
	require.Len(t, result.Reservation.Items, 2)
	assert.Equal(t, "soon", result.Reservation.Items[0].BatchLocationID)
	assert.Equal(t, 10.0, result.Reservation.Items[0].Quantity)
	assert.Equal(t, "late", result.Reservation.Items[1].BatchLocationID)
	assert.Equal(t, 2.0, result.Reservation.Items[1].Quantity)

	assert.Equal(t, 10.0, f.reserved(t, "soon"))
	assert.Equal(t, 2.0, f.reserved(t, "late"))
}

func TestReserveByFefo_ShortageIsReportedNotFatal(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 7)

	result, err := f.uc.ReserveByFefo(context.Background(), &dto.ReserveByFefoInput{
		SellerID: testSeller,
		OrderID:  "order-1",
		ShopID:   testShop,
		Products: []dto.ProductRequest{{ProductID: testProduct, Quantity: 10}},
	})
	require.NoError(t, err)

	require.Len(t, result.Shortages, 1)
	assert.Equal(t, 10.0, result.Shortages[0].Requested)
	assert.Equal(t, 7.0, result.Shortages[0].Reserved)
	assert.Equal(t, 3.0, result.Shortages[0].Shortfall)

	assert.Equal(t, model.ReservationActive, result.Reservation.Status)
	require.Len(t, result.Reservation.Items, 1)
	assert.Equal(t, 7.0, result.Reservation.Items[0].Quantity)
}

func TestReserveByFefo_RejectsEmptyProducts(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.ReserveByFefo(context.Background(), &dto.ReserveByFefoInput{
		SellerID: testSeller,
		OrderID:  "order-1",
		ShopID:   testShop,
	})
	assert.ErrorIs(t, err, model.ErrInvariantViolation)

	_, err = f.uc.GetByOrder(context.Background(), "order-1")
	assert.ErrorIs(t, err, model.ErrNotFound, "no item-less reservation may be persisted")
}

func TestConfirm_ConsumesHeldStock(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 8},
	))
	require.NoError(t, err)

	confirmed, err := f.uc.Confirm(context.Background(), res.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, model.ReservationConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.NotNil(t, confirmed.Items[0].ConfirmedQuantity)
	assert.Equal(t, 8.0, *confirmed.Items[0].ConfirmedQuantity)

	assert.Equal(t, 12.0, f.quantity(t, "b1"), "confirmation consumes stock")
	assert.Zero(t, f.reserved(t, "b1"))
}

func TestConfirm_PartialQuantityReleasesRemainder(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 8},
	))
	require.NoError(t, err)

	confirmed, err := f.uc.Confirm(context.Background(), res.ID, map[string]float64{
		res.Items[0].ID: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, *confirmed.Items[0].ConfirmedQuantity)
	assert.Equal(t, 15.0, f.quantity(t, "b1"))
	assert.Zero(t, f.reserved(t, "b1"), "unconfirmed remainder is released, not kept held")
}

func TestConfirm_ClampsToHeldQuantity(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 8},
	))
	require.NoError(t, err)

	confirmed, err := f.uc.Confirm(context.Background(), res.ID, map[string]float64{
		res.Items[0].ID: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, 8.0, *confirmed.Items[0].ConfirmedQuantity)
	assert.Equal(t, 12.0, f.quantity(t, "b1"))
}

func TestConfirm_RepeatedConfirmConsumesOnce(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 8},
	))
	require.NoError(t, err)

	_, err = f.uc.Confirm(context.Background(), res.ID, nil)
	require.NoError(t, err)

	// the locked re-read sees CONFIRMED, so a second confirm of the same
	// reservation is rejected instead of consuming the hold again
	_, err = f.uc.Confirm(context.Background(), res.ID, nil)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	assert.Equal(t, 12.0, f.quantity(t, "b1"), "an 8-unit hold consumes exactly 8")
	assert.Zero(t, f.reserved(t, "b1"))
}

func TestConfirm_RejectsTerminalStates(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 4},
	))
	require.NoError(t, err)

	_, err = f.uc.Cancel(context.Background(), res.ID, model.CancelManual, "")
	require.NoError(t, err)

	_, err = f.uc.Confirm(context.Background(), res.ID, nil)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestPartiallyConfirm_TracksPerItemState(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)
	f.seedStock("b2", 48*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 5},
		dto.ItemInput{BatchLocationID: "b2", ProductID: testProduct, Quantity: 5},
	))
	require.NoError(t, err)

	partial, err := f.uc.PartiallyConfirm(context.Background(), res.ID, []dto.PartialConfirmItem{
		{ItemID: res.Items[0].ID, Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPartiallyConfirmed, partial.Status)
	assert.Nil(t, partial.ConfirmedAt)

	assert.Equal(t, 15.0, f.quantity(t, "b1"))
	assert.Equal(t, 5.0, f.reserved(t, "b2"), "second item still held")

	done, err := f.uc.PartiallyConfirm(context.Background(), res.ID, []dto.PartialConfirmItem{
		{ItemID: res.Items[1].ID, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, done.Status)
	require.NotNil(t, done.ConfirmedAt)

	assert.Equal(t, 17.0, f.quantity(t, "b2"))
	assert.Zero(t, f.reserved(t, "b2"))
}

func TestCancel_ReleasesHolds(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 8},
	))
	require.NoError(t, err)
	require.Equal(t, 8.0, f.reserved(t, "b1"))

	cancelled, err := f.uc.Cancel(context.Background(), res.ID, model.CancelOrderCancelled, "customer changed mind")
	require.NoError(t, err)

	assert.Equal(t, model.ReservationCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, model.CancelOrderCancelled, *cancelled.CancelReason)

	assert.Zero(t, f.reserved(t, "b1"))
	assert.Equal(t, 20.0, f.quantity(t, "b1"), "cancellation returns stock untouched")
}

func TestCancelByOrder_IdempotentOnTerminal(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	_, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 8},
	))
	require.NoError(t, err)

	first, err := f.uc.CancelByOrder(context.Background(), "order-1", model.CancelOrderDeclined)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, first.Status)

	second, err := f.uc.CancelByOrder(context.Background(), "order-1", model.CancelOrderDeclined)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, second.Status)
	assert.Zero(t, f.reserved(t, "b1"), "retry must not release twice")
}

func TestExtend_ActiveOnly(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 2},
	))
	require.NoError(t, err)

	extended, err := f.uc.Extend(context.Background(), res.ID, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, res.ExpiresAt.Add(30*time.Minute), extended.ExpiresAt)

	_, err = f.uc.Cancel(context.Background(), res.ID, model.CancelManual, "")
	require.NoError(t, err)

	_, err = f.uc.Extend(context.Background(), res.ID, 30*time.Minute)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func expireNow(t *testing.T, f *fixture, res *model.Reservation) {
	t.Helper()
	res.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, f.resRepo.Update(context.Background(), res))
}

func TestMarkExpired_ReleasesAndIsRepeatable(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 8},
	))
	require.NoError(t, err)
	expireNow(t, f, res)

	n, err := f.uc.MarkExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.reserved(t, "b1"))

	expired, err := f.uc.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationExpired, expired.Status)
	require.NotNil(t, expired.CancelReason)
	assert.Equal(t, model.CancelExpired, *expired.CancelReason)

	n, err = f.uc.MarkExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "sweep must be idempotent")
}

func TestAddUpdateRemoveItem_AdjustLedgerHolds(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)
	f.seedStock("b2", 48*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 4},
	))
	require.NoError(t, err)

	res, err = f.uc.AddItem(context.Background(), res.ID, dto.ItemInput{
		BatchLocationID: "b2", ProductID: testProduct, Quantity: 6,
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 6.0, f.reserved(t, "b2"))

	res, err = f.uc.UpdateItemQuantity(context.Background(), res.ID, res.Items[1].ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 9.0, f.reserved(t, "b2"))

	res, err = f.uc.UpdateItemQuantity(context.Background(), res.ID, res.Items[1].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f.reserved(t, "b2"))

	res, err = f.uc.RemoveItem(context.Background(), res.ID, res.Items[1].ID)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Zero(t, f.reserved(t, "b2"))
	assert.Equal(t, 4.0, f.reserved(t, "b1"))
}

func TestModifyItems_ActiveOnly(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 20)

	res, err := f.uc.Create(context.Background(), createInput("order-1",
		dto.ItemInput{BatchLocationID: "b1", ProductID: testProduct, Quantity: 4},
	))
	require.NoError(t, err)

	_, err = f.uc.Confirm(context.Background(), res.ID, nil)
	require.NoError(t, err)

	_, err = f.uc.AddItem(context.Background(), res.ID, dto.ItemInput{
		BatchLocationID: "b1", ProductID: testProduct, Quantity: 1,
	})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = f.uc.UpdateItemQuantity(context.Background(), res.ID, res.Items[0].ID, 2)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = f.uc.RemoveItem(context.Background(), res.ID, res.Items[0].ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}
