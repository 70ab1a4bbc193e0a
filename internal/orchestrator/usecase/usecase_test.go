package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/events"
	ledgerdto "github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	ledgermock "github.com/fekuna/omnipos-inventory-service/internal/ledger/mock"
	ledgeruc "github.com/fekuna/omnipos-inventory-service/internal/ledger/usecase"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/orchestrator"
	"github.com/fekuna/omnipos-inventory-service/internal/orchestrator/dto"
	resdto "github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	resmock "github.com/fekuna/omnipos-inventory-service/internal/reservation/mock"
	resuc "github.com/fekuna/omnipos-inventory-service/internal/reservation/usecase"
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

func ledgerLocation() ledgerdto.Location {
	return ledgerdto.Location{Type: model.LocationShop, ID: testShop}
}

type capturingPublisher struct {
	published []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event events.Event) {
	p.published = append(p.published, event)
}

func (p *capturingPublisher) names() []string {
	out := make([]string, len(p.published))
	for i, e := range p.published {
		out[i] = e.Name
	}
	return out
}

type fixture struct {
	ledgerRepo *ledgermock.Repository
	publisher  *capturingPublisher
	uc         orchestrator.UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledgerRepo := ledgermock.NewRepository()
	resRepo := resmock.NewRepository()
	publisher := &capturingPublisher{}

	ledgerUC := ledgeruc.NewLedgerUseCase(ledgerRepo, postgres.NoOpTxManager{}, nil, logger.NewNop())
	resUC := resuc.NewReservationUseCase(resRepo, ledgerUC, postgres.NoOpTxManager{}, time.Hour, logger.NewNop())
	uc := NewOrchestratorUseCase(resUC, ledgerUC, postgres.NoOpTxManager{}, publisher, nil, logger.NewNop())

	return &fixture{ledgerRepo: ledgerRepo, publisher: publisher, uc: uc}
}

func (f *fixture) seedStock(id string, expiresIn time.Duration, qty float64) {
	f.seedProductStock(id, testProduct, expiresIn, qty)
}

func (f *fixture) seedProductStock(id, productID string, expiresIn time.Duration, qty float64) {
	shopID := testShop
	now := time.Now()
	f.ledgerRepo.Seed(&model.BatchLocation{
		ID:                      id,
		BatchID:                 "batch-" + id,
		SellerID:                testSeller,
		ProductID:               productID,
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

func (f *fixture) row(t *testing.T, id string) *model.BatchLocation {
	t.Helper()
	bl, err := f.ledgerRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, bl)
	return bl
}

func (f *fixture) reserveForOrder(t *testing.T, orderID string, qty float64) *resdto.FefoReservationResult {
	t.Helper()
	result, err := f.uc.ReserveForOrder(context.Background(), &dto.ReserveForOrderInput{
		SellerID: testSeller,
		OrderID:  orderID,
		ShopID:   testShop,
		Products: []resdto.ProductRequest{{ProductID: testProduct, Quantity: qty}},
	})
	require.NoError(t, err)
	return result
}

func TestReserveForOrder_PublishesCreatedEvent(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 10)

	result := f.reserveForOrder(t, "order-a", 8)

	assert.Empty(t, result.Shortages)
	assert.Equal(t, 8.0, f.row(t, "b1").ReservedQuantity)

	require.Len(t, f.publisher.published, 1)
	event := f.publisher.published[0]
	assert.Equal(t, events.ReservationCreated, event.Name)
	assert.Equal(t, "order-a", event.OrderID)
	payload, ok := event.Payload.(events.ReservationPayload)
	require.True(t, ok)
	assert.Equal(t, 8.0, payload.TotalQuantity)
}

func TestReleaseOrderReservation_FreesStockAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 10)
	f.reserveForOrder(t, "order-a", 8)

	res, err := f.uc.ReleaseOrderReservation(context.Background(), "order-a", model.CancelOrderCancelled)
	require.NoError(t, err)

	assert.Equal(t, model.ReservationCancelled, res.Status)
	assert.Zero(t, f.row(t, "b1").ReservedQuantity)
	assert.Equal(t, []string{events.ReservationCreated, events.ReservationReleased}, f.publisher.names())
}

func TestConsumeReservation_ConfirmsAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 10)
	f.reserveForOrder(t, "order-a", 8)

	res, err := f.uc.ConsumeReservation(context.Background(), &dto.ConsumeReservationInput{OrderID: "order-a"})
	require.NoError(t, err)

	assert.Equal(t, model.ReservationConfirmed, res.Status)
	bl := f.row(t, "b1")
	assert.Equal(t, 2.0, bl.Quantity)
	assert.Zero(t, bl.ReservedQuantity)
	assert.Equal(t, []string{events.ReservationCreated, events.ReservationConsumed}, f.publisher.names())
}

func TestConsumeReservation_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.ConsumeReservation(context.Background(), &dto.ConsumeReservationInput{OrderID: "ghost"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCheckOfflineSaleConflict_NamesHoldingOrders(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 10)
	f.reserveForOrder(t, "order-a", 8)

	result, err := f.uc.CheckOfflineSaleConflict(context.Background(), testSeller, testShop,
		[]resdto.ProductRequest{{ProductID: testProduct, Quantity: 5}})
	require.NoError(t, err)

	assert.False(t, result.Sufficient)
	require.Len(t, result.Products, 1)
	line := result.Products[0]
	assert.Equal(t, 2.0, line.Available)
	require.Len(t, line.Conflicting, 1)
	assert.Equal(t, "order-a", line.Conflicting[0].OrderID)
	assert.Equal(t, 8.0, line.Conflicting[0].HeldQuantity)
}

func TestCheckOfflineSaleConflict_NoConflictWhenSufficient(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 10)
	f.reserveForOrder(t, "order-a", 4)

	result, err := f.uc.CheckOfflineSaleConflict(context.Background(), testSeller, testShop,
		[]resdto.ProductRequest{{ProductID: testProduct, Quantity: 5}})
	require.NoError(t, err)

	assert.True(t, result.Sufficient)
	require.Len(t, result.Products, 1)
	assert.Empty(t, result.Products[0].Conflicting)
}

func TestProcessOfflineSale_WithoutOverrideSellsOnlyAvailable(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 10)
	f.reserveForOrder(t, "order-a", 8)

	result, err := f.uc.ProcessOfflineSale(context.Background(), &dto.OfflineSaleInput{
		SellerID: testSeller,
		ShopID:   testShop,
		Products: []resdto.ProductRequest{{ProductID: testProduct, Quantity: 5}},
		Override: false,
	})
	require.NoError(t, err)

	assert.Equal(t, 2.0, result.Sold)
	assert.Equal(t, 3.0, result.Shortfall)
	assert.Empty(t, result.ForcedOrders)

	bl := f.row(t, "b1")
	assert.Equal(t, 8.0, bl.Quantity)
	assert.Equal(t, 8.0, bl.ReservedQuantity, "the online hold survives")
}

func TestProcessOfflineSale_OverrideForcesHoldRelease(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 10)
	f.reserveForOrder(t, "order-a", 8)

	result, err := f.uc.ProcessOfflineSale(context.Background(), &dto.OfflineSaleInput{
		SellerID:  testSeller,
		ShopID:    testShop,
		Products:  []resdto.ProductRequest{{ProductID: testProduct, Quantity: 5}},
		Override:  true,
		ReceiptID: "receipt-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, result.Sold)
	assert.Zero(t, result.Shortfall)
	assert.Equal(t, 3.0, result.ForceReleased)
	assert.Equal(t, []string{"order-a"}, result.ForcedOrders)

	bl := f.row(t, "b1")
	assert.Equal(t, 5.0, bl.Quantity)
	assert.Equal(t, 5.0, bl.ReservedQuantity, "the hold shrinks by exactly the deficit")
}

func TestProcessOfflineSale_PublishesProcessedEvent(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 10)

	_, err := f.uc.ProcessOfflineSale(context.Background(), &dto.OfflineSaleInput{
		SellerID:  testSeller,
		ShopID:    testShop,
		Products:  []resdto.ProductRequest{{ProductID: testProduct, Quantity: 4}},
		ReceiptID: "receipt-7",
	})
	require.NoError(t, err)

	require.Len(t, f.publisher.published, 1)
	event := f.publisher.published[0]
	assert.Equal(t, events.OfflineSaleProcessed, event.Name)
	payload, ok := event.Payload.(events.OfflineSalePayload)
	require.True(t, ok)
	assert.Equal(t, "receipt-7", payload.ReceiptID)
	require.Len(t, payload.Lines, 1)
	assert.Equal(t, 4.0, payload.Lines[0].Sold)
	assert.Zero(t, payload.Lines[0].Shortfall)
}

func TestProcessOfflineSale_MultiLineReceiptSharesOneSettlement(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b1", 24*time.Hour, 10)
	f.seedProductStock("b2", "product-2", 24*time.Hour, 6)
	f.reserveForOrder(t, "order-a", 8)

	result, err := f.uc.ProcessOfflineSale(context.Background(), &dto.OfflineSaleInput{
		SellerID: testSeller,
		ShopID:   testShop,
		Products: []resdto.ProductRequest{
			{ProductID: testProduct, Quantity: 5},
			{ProductID: "product-2", Quantity: 4},
		},
		Override:  true,
		ReceiptID: "receipt-2",
	})
	require.NoError(t, err)

	require.Len(t, result.Products, 2)
	assert.Equal(t, testProduct, result.Products[0].ProductID)
	assert.Equal(t, 5.0, result.Products[0].Sold)
	assert.Equal(t, 3.0, result.Products[0].ForceReleased)
	assert.Equal(t, "product-2", result.Products[1].ProductID)
	assert.Equal(t, 4.0, result.Products[1].Sold)
	assert.Zero(t, result.Products[1].ForceReleased)

	assert.Equal(t, 9.0, result.Sold)
	assert.Zero(t, result.Shortfall)
	assert.Equal(t, []string{"order-a"}, result.ForcedOrders)

	assert.Equal(t, 5.0, f.row(t, "b1").Quantity)
	assert.Equal(t, 2.0, f.row(t, "b2").Quantity)
}

func TestProcessOfflineSale_RejectsEmptyReceipt(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.ProcessOfflineSale(context.Background(), &dto.OfflineSaleInput{
		SellerID: testSeller,
		ShopID:   testShop,
	})
	assert.ErrorIs(t, err, model.ErrInvariantViolation)
}

func TestGetProductStock_WithoutCacheHitsLedger(t *testing.T) {
	f := newFixture(t)
	f.seedStock("b2", 48*time.Hour, 5)
	f.seedStock("b1", 24*time.Hour, 5)

	rows, err := f.uc.GetProductStock(context.Background(), testSeller, testProduct,
		ledgerLocation())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "b1", rows[0].ID, "rows come back in expiration order")
}
