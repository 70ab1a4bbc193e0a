package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/ledger/mock"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
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

var (
	testLocation = dto.Location{Type: model.LocationShop, ID: testShop}

	// shared base so rows seeded with the same offset expire at the same
	// instant and the arrival tie-break actually engages
	testBase = time.Now().Truncate(time.Second)
)

func newTestUC(t *testing.T) (*mock.Repository, *ledgerUseCase) {
	t.Helper()
	repo := mock.NewRepository()
	uc := NewLedgerUseCase(repo, postgres.NoOpTxManager{}, nil, logger.NewNop())
	return repo, uc.(*ledgerUseCase)
}

func seedRow(repo *mock.Repository, id string, expiresIn time.Duration, arrivedAgo time.Duration, qty, reserved float64) *model.BatchLocation {
	shopID := testShop
	bl := &model.BatchLocation{
		ID:                      id,
		BatchID:                 "batch-" + id,
		SellerID:                testSeller,
		ProductID:               testProduct,
		LocationType:            model.LocationShop,
		ShopID:                  &shopID,
		Quantity:                qty,
		ReservedQuantity:        reserved,
		EffectiveExpirationDate: testBase.Add(expiresIn),
		FreshnessRemaining:      8,
		DegradationCoefficient:  1,
		ArrivedAt:               testBase.Add(-arrivedAgo),
		Status:                  model.BatchLocationActive,
		CreatedAt:               testBase,
		UpdatedAt:               testBase,
	}
	repo.Seed(bl)
	return bl
}

func totalQuantity(t *testing.T, repo *mock.Repository, ids ...string) float64 {
	t.Helper()
	total := 0.0
	for _, id := range ids {
		bl, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, bl)
		total += bl.Quantity
	}
	return total
}

func TestConsumeByFefo_TakesEarliestExpirationFirst(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b3", 72*time.Hour, time.Hour, 10, 0)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 0)
	seedRow(repo, "b2", 48*time.Hour, time.Hour, 10, 0)

	result, err := uc.ConsumeByFefo(context.Background(), &dto.ConsumeInput{
		SellerID:         testSeller,
		ProductID:        testProduct,
		Location:         testLocation,
		Quantity:         25,
		Reason:           model.ReasonSale,
		UseAvailableOnly: true,
	})
	require.NoError(t, err)

	require.Len(t, result.Consumed, 3)
	assert.Equal(t, "b1", result.Consumed[0].BatchLocationID)
	assert.Equal(t, "b2", result.Consumed[1].BatchLocationID)
	assert.Equal(t, "b3", result.Consumed[2].BatchLocationID)
	assert.Equal(t, 10.0, result.Consumed[0].Consumed)
	assert.Equal(t, 10.0, result.Consumed[1].Consumed)
	assert.Equal(t, 5.0, result.Consumed[2].Consumed)
	assert.True(t, result.FullyConsumed)
	assert.Zero(t, result.Shortfall)

	// conservation: nothing vanished, nothing appeared
	assert.Equal(t, 5.0, totalQuantity(t, repo, "b1", "b2", "b3"))
}

func TestConsumeByFefo_ArrivalBreaksExpirationTie(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "late", 24*time.Hour, time.Hour, 10, 0)
	seedRow(repo, "early", 24*time.Hour, 3*time.Hour, 10, 0)

	result, err := uc.ConsumeByFefo(context.Background(), &dto.ConsumeInput{
		SellerID:         testSeller,
		ProductID:        testProduct,
		Location:         testLocation,
		Quantity:         5,
		Reason:           model.ReasonSale,
		UseAvailableOnly: true,
	})
	require.NoError(t, err)

	require.Len(t, result.Consumed, 1)
	assert.Equal(t, "early", result.Consumed[0].BatchLocationID)
}

func TestConsumeByFefo_ShortfallIsDataNotError(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 8, 0)

	result, err := uc.ConsumeByFefo(context.Background(), &dto.ConsumeInput{
		SellerID:         testSeller,
		ProductID:        testProduct,
		Location:         testLocation,
		Quantity:         12,
		Reason:           model.ReasonSale,
		UseAvailableOnly: true,
	})
	require.NoError(t, err)

	assert.False(t, result.FullyConsumed)
	assert.Equal(t, 8.0, result.TotalConsumed)
	assert.Equal(t, 4.0, result.Shortfall)
}

func TestConsumeByFefo_AvailableOnlySkipsHeldStock(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 15, 15)
	seedRow(repo, "b2", 48*time.Hour, time.Hour, 10, 0)

	result, err := uc.ConsumeByFefo(context.Background(), &dto.ConsumeInput{
		SellerID:         testSeller,
		ProductID:        testProduct,
		Location:         testLocation,
		Quantity:         10,
		Reason:           model.ReasonSale,
		UseAvailableOnly: true,
	})
	require.NoError(t, err)

	require.Len(t, result.Consumed, 1)
	assert.Equal(t, "b2", result.Consumed[0].BatchLocationID)
	assert.Equal(t, 10.0, result.Consumed[0].Consumed)

	b1, _ := repo.GetByID(context.Background(), "b1")
	assert.Equal(t, 15.0, b1.Quantity)
	assert.Equal(t, 15.0, b1.ReservedQuantity)
}

func TestConsumeByFefo_PrivilegedEatsReservedAndClamps(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 8)

	result, err := uc.ConsumeByFefo(context.Background(), &dto.ConsumeInput{
		SellerID:         testSeller,
		ProductID:        testProduct,
		Location:         testLocation,
		Quantity:         6,
		Reason:           model.ReasonSale,
		UseAvailableOnly: false,
	})
	require.NoError(t, err)

	assert.True(t, result.FullyConsumed)
	b1, _ := repo.GetByID(context.Background(), "b1")
	assert.Equal(t, 4.0, b1.Quantity)
	assert.Equal(t, 4.0, b1.ReservedQuantity, "reserved must be clamped to quantity")
}

func TestConsumeByFefo_DepletesEmptiedRows(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 0)

	_, err := uc.ConsumeByFefo(context.Background(), &dto.ConsumeInput{
		SellerID:         testSeller,
		ProductID:        testProduct,
		Location:         testLocation,
		Quantity:         10,
		Reason:           model.ReasonSale,
		UseAvailableOnly: true,
	})
	require.NoError(t, err)

	b1, _ := repo.GetByID(context.Background(), "b1")
	assert.Equal(t, model.BatchLocationDepleted, b1.Status)
}

func TestReserveByFefo_SpansRowsAndLogsOrder(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 0)
	seedRow(repo, "b2", 48*time.Hour, time.Hour, 10, 0)

	result, err := uc.ReserveByFefo(context.Background(), &dto.ReserveInput{
		SellerID:  testSeller,
		ProductID: testProduct,
		Location:  testLocation,
		Quantity:  12,
		OrderID:   "order-1",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 12.0, result.ReservedQuantity)
	require.Len(t, result.Reservations, 2)
	assert.Equal(t, 10.0, result.Reservations[0].Reserved)
	assert.Equal(t, 2.0, result.Reservations[1].Reserved)

	b1, _ := repo.GetByID(context.Background(), "b1")
	assert.Equal(t, 10.0, b1.ReservedQuantity)
	assert.Equal(t, 10.0, b1.Quantity, "reservation must not change quantity")

	changes := repo.Changes("b1")
	require.Len(t, changes, 1)
	assert.Equal(t, model.ReasonReservation, changes[0].Reason)
	assert.Equal(t, 10.0, changes[0].ReservedDelta)
	require.NotNil(t, changes[0].ReferenceID)
	assert.Equal(t, "order-1", *changes[0].ReferenceID)
}

func TestReleaseReservation_RoundTripAndIdempotence(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 0)
	seedRow(repo, "b2", 48*time.Hour, time.Hour, 10, 0)

	_, err := uc.ReserveByFefo(context.Background(), &dto.ReserveInput{
		SellerID:  testSeller,
		ProductID: testProduct,
		Location:  testLocation,
		Quantity:  12,
		OrderID:   "order-1",
	})
	require.NoError(t, err)

	released, err := uc.ReleaseReservation(context.Background(), "order-1", nil, "order cancelled")
	require.NoError(t, err)
	assert.Equal(t, 12.0, released.TotalReleased)

	b1, _ := repo.GetByID(context.Background(), "b1")
	b2, _ := repo.GetByID(context.Background(), "b2")
	assert.Zero(t, b1.ReservedQuantity)
	assert.Zero(t, b2.ReservedQuantity)

	// the release entries zero the net; a second call releases nothing
	again, err := uc.ReleaseReservation(context.Background(), "order-1", nil, "retry")
	require.NoError(t, err)
	assert.Zero(t, again.TotalReleased)
}

func TestReleaseReservation_FilterByBatchLocation(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 0)
	seedRow(repo, "b2", 48*time.Hour, time.Hour, 10, 0)

	_, err := uc.ReserveByFefo(context.Background(), &dto.ReserveInput{
		SellerID:  testSeller,
		ProductID: testProduct,
		Location:  testLocation,
		Quantity:  12,
		OrderID:   "order-1",
	})
	require.NoError(t, err)

	released, err := uc.ReleaseReservation(context.Background(), "order-1", []string{"b2"}, "")
	require.NoError(t, err)
	assert.Equal(t, 2.0, released.TotalReleased)

	b1, _ := repo.GetByID(context.Background(), "b1")
	assert.Equal(t, 10.0, b1.ReservedQuantity)
}

func TestForceReleaseReservation_FurthestExpirationFirst(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "near", 24*time.Hour, time.Hour, 10, 5)
	seedRow(repo, "far", 72*time.Hour, time.Hour, 10, 5)

	result, err := uc.ForceReleaseReservation(context.Background(), &dto.ForceReleaseInput{
		SellerID:  testSeller,
		ProductID: testProduct,
		Location:  testLocation,
		Quantity:  6,
		Reason:    "offline sale receipt-9",
	})
	require.NoError(t, err)

	assert.Equal(t, 6.0, result.TotalReleased)
	require.Len(t, result.Released, 2)
	assert.Equal(t, "far", result.Released[0].BatchLocationID)
	assert.Equal(t, 5.0, result.Released[0].Released)
	assert.Equal(t, "near", result.Released[1].BatchLocationID)
	assert.Equal(t, 1.0, result.Released[1].Released)

	near, _ := repo.GetByID(context.Background(), "near")
	far, _ := repo.GetByID(context.Background(), "far")
	assert.Equal(t, 4.0, near.ReservedQuantity)
	assert.Zero(t, far.ReservedQuantity)
}

func TestChangeQuantity_FloorsAtZeroAndDepletes(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 0)

	bl, err := uc.ChangeQuantity(context.Background(), &dto.ChangeQuantityInput{
		ID:     "b1",
		Delta:  -25,
		Reason: model.ReasonWriteOff,
	})
	require.NoError(t, err)

	assert.Zero(t, bl.Quantity)
	assert.Equal(t, model.BatchLocationDepleted, bl.Status)

	changes := repo.Changes("b1")
	require.Len(t, changes, 1)
	assert.Equal(t, -10.0, changes[0].QuantityDelta, "logged delta must reflect the floored change")
	assert.Equal(t, 10.0, changes[0].QuantityBefore)
	assert.Zero(t, changes[0].QuantityAfter)
}

func TestChangeQuantity_ClampsReservedAndRecordsDelta(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 8)

	bl, err := uc.ChangeQuantity(context.Background(), &dto.ChangeQuantityInput{
		ID:     "b1",
		Delta:  -5,
		Reason: model.ReasonWriteOff,
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, bl.Quantity)
	assert.Equal(t, 5.0, bl.ReservedQuantity)

	changes := repo.Changes("b1")
	require.Len(t, changes, 1)
	assert.Equal(t, -3.0, changes[0].ReservedDelta)
}

func TestChangeQuantity_UnknownRow(t *testing.T) {
	_, uc := newTestUC(t)

	_, err := uc.ChangeQuantity(context.Background(), &dto.ChangeQuantityInput{
		ID:     "missing",
		Delta:  1,
		Reason: model.ReasonAdjustment,
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestChangeLog_TrimmedToLimit(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 1000, 0)

	for i := 0; i < model.ChangeLogLimit+5; i++ {
		_, err := uc.ChangeQuantity(context.Background(), &dto.ChangeQuantityInput{
			ID:      "b1",
			Delta:   1,
			Reason:  model.ReasonAdjustment,
			Comment: fmt.Sprintf("adjustment %d", i),
		})
		require.NoError(t, err)
	}

	changes := repo.Changes("b1")
	assert.Len(t, changes, model.ChangeLogLimit)
	require.NotNil(t, changes[0].Comment)
	assert.Equal(t, "adjustment 5", *changes[0].Comment, "oldest entries must be trimmed first")
}

func TestTransferToLocation_CreatesTargetRow(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "src", 24*time.Hour, time.Hour, 10, 0)

	target := dto.Location{Type: model.LocationWarehouse, ID: "wh-1"}
	result, err := uc.TransferToLocation(context.Background(), &dto.TransferInput{
		SourceID:       "src",
		TargetLocation: target,
		Quantity:       4,
	})
	require.NoError(t, err)

	src, _ := repo.GetByID(context.Background(), "src")
	assert.Equal(t, 6.0, src.Quantity)
	assert.Equal(t, model.BatchLocationActive, src.Status)

	tgt, err := repo.GetByID(context.Background(), result.TargetID)
	require.NoError(t, err)
	require.NotNil(t, tgt)
	assert.Equal(t, 4.0, tgt.Quantity)
	assert.Equal(t, model.LocationWarehouse, tgt.LocationType)
	assert.Equal(t, src.BatchID, tgt.BatchID)
	assert.Equal(t, src.EffectiveExpirationDate, tgt.EffectiveExpirationDate)
}

func TestTransferToLocation_FullTransferMarksSource(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "src", 24*time.Hour, time.Hour, 10, 0)

	_, err := uc.TransferToLocation(context.Background(), &dto.TransferInput{
		SourceID:       "src",
		TargetLocation: dto.Location{Type: model.LocationWarehouse, ID: "wh-1"},
		Quantity:       10,
	})
	require.NoError(t, err)

	src, _ := repo.GetByID(context.Background(), "src")
	assert.Equal(t, model.BatchLocationTransferred, src.Status)
	assert.Zero(t, src.Quantity)
}

func TestTransferToLocation_RejectsOverdraw(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "src", 24*time.Hour, time.Hour, 10, 0)

	_, err := uc.TransferToLocation(context.Background(), &dto.TransferInput{
		SourceID:       "src",
		TargetLocation: dto.Location{Type: model.LocationWarehouse, ID: "wh-1"},
		Quantity:       11,
	})
	assert.ErrorIs(t, err, model.ErrInvariantViolation)
}

func TestTransferToLocation_MergesIntoExistingTarget(t *testing.T) {
	repo, uc := newTestUC(t)
	src := seedRow(repo, "src", 24*time.Hour, time.Hour, 10, 0)

	whID := "wh-1"
	now := time.Now()
	repo.Seed(&model.BatchLocation{
		ID:                      "tgt",
		BatchID:                 src.BatchID,
		SellerID:                testSeller,
		ProductID:               testProduct,
		LocationType:            model.LocationWarehouse,
		WarehouseID:             &whID,
		Quantity:                3,
		EffectiveExpirationDate: now.Add(24 * time.Hour),
		ArrivedAt:               now.Add(-time.Hour),
		Status:                  model.BatchLocationActive,
	})

	result, err := uc.TransferToLocation(context.Background(), &dto.TransferInput{
		SourceID:       "src",
		TargetLocation: dto.Location{Type: model.LocationWarehouse, ID: whID},
		Quantity:       4,
	})
	require.NoError(t, err)
	assert.Equal(t, "tgt", result.TargetID)

	tgt, _ := repo.GetByID(context.Background(), "tgt")
	assert.Equal(t, 7.0, tgt.Quantity)
}

func TestTransferToLocation_RejectsNonActiveTarget(t *testing.T) {
	repo, uc := newTestUC(t)
	src := seedRow(repo, "src", 24*time.Hour, time.Hour, 10, 0)

	whID := "wh-1"
	repo.Seed(&model.BatchLocation{
		ID:                      "tgt",
		BatchID:                 src.BatchID,
		SellerID:                testSeller,
		ProductID:               testProduct,
		LocationType:            model.LocationWarehouse,
		WarehouseID:             &whID,
		Quantity:                0,
		EffectiveExpirationDate: testBase.Add(24 * time.Hour),
		ArrivedAt:               testBase.Add(-time.Hour),
		Status:                  model.BatchLocationDepleted,
	})

	_, err := uc.TransferToLocation(context.Background(), &dto.TransferInput{
		SourceID:       "src",
		TargetLocation: dto.Location{Type: model.LocationWarehouse, ID: whID},
		Quantity:       4,
	})
	assert.ErrorIs(t, err, model.ErrInvariantViolation)
}

func TestReserve_InsufficientAvailable(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 7)

	err := uc.Reserve(context.Background(), "b1", 4, "order-1")
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	err = uc.Reserve(context.Background(), "b1", 3, "order-1")
	require.NoError(t, err)

	b1, _ := repo.GetByID(context.Background(), "b1")
	assert.Equal(t, 10.0, b1.ReservedQuantity)
}

func TestConfirmReserve_ConsumesHeldStock(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 6)

	err := uc.ConfirmReserve(context.Background(), "b1", 6, "order-1")
	require.NoError(t, err)

	b1, _ := repo.GetByID(context.Background(), "b1")
	assert.Equal(t, 4.0, b1.Quantity)
	assert.Zero(t, b1.ReservedQuantity)

	changes := repo.Changes("b1")
	require.Len(t, changes, 1)
	assert.Equal(t, model.ReasonSale, changes[0].Reason)
	assert.Equal(t, -6.0, changes[0].QuantityDelta)
	assert.Equal(t, -6.0, changes[0].ReservedDelta)
}

func TestReleaseReserve_FloorsAtZero(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 2)

	err := uc.ReleaseReserve(context.Background(), "b1", 5, "order-1")
	require.NoError(t, err)

	b1, _ := repo.GetByID(context.Background(), "b1")
	assert.Zero(t, b1.ReservedQuantity)
}

func TestMarkDepleted_ZeroesAndRejectsRepeat(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 7, 3)

	bl, err := uc.MarkDepleted(context.Background(), "b1", "admin")
	require.NoError(t, err)
	assert.Zero(t, bl.Quantity)
	assert.Zero(t, bl.ReservedQuantity)
	assert.Equal(t, model.BatchLocationDepleted, bl.Status)

	_, err = uc.MarkDepleted(context.Background(), "b1", "admin")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestCreate_RejectsDuplicateBatchInLocation(t *testing.T) {
	_, uc := newTestUC(t)

	input := &dto.CreateBatchLocationInput{
		BatchID:                 "batch-x",
		SellerID:                testSeller,
		ProductID:               testProduct,
		Location:                testLocation,
		Quantity:                5,
		EffectiveExpirationDate: time.Now().Add(24 * time.Hour),
	}

	_, err := uc.Create(context.Background(), input)
	require.NoError(t, err)

	_, err = uc.Create(context.Background(), input)
	assert.ErrorIs(t, err, model.ErrInvariantViolation)
}

func TestApplyShrinkage_RequiresPositiveQuantity(t *testing.T) {
	repo, uc := newTestUC(t)
	seedRow(repo, "b1", 24*time.Hour, time.Hour, 10, 0)

	_, err := uc.ApplyShrinkage(context.Background(), &dto.ShrinkageInput{ID: "b1", Quantity: 0})
	assert.ErrorIs(t, err, model.ErrInvariantViolation)

	bl, err := uc.ApplyShrinkage(context.Background(), &dto.ShrinkageInput{ID: "b1", Quantity: 2, Comment: "evaporation"})
	require.NoError(t, err)
	assert.Equal(t, 8.0, bl.Quantity)

	changes := repo.Changes("b1")
	require.Len(t, changes, 1)
	assert.Equal(t, model.ReasonShrinkage, changes[0].Reason)
}
