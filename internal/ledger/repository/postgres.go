package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/postgres"
	"github.com/jmoiron/sqlx"
)

// lowStockThreshold feeds the low-stock counter in location statistics. The
// low-stock query itself takes a caller-supplied threshold.
const lowStockThreshold = 5.0

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// ext returns the transaction carried by ctx, or the pool.
func (r *PGRepository) ext(ctx context.Context) sqlx.ExtContext {
	return postgres.ExtFromContext(ctx, r.DB)
}

const batchLocationColumns = `
    id, batch_id, seller_id, product_id, location_type, shop_id, warehouse_id,
    location_name, quantity, reserved_quantity, effective_expiration_date,
    freshness_remaining, degradation_coefficient, arrived_at, purchase_price,
    status, created_at, updated_at`

func locationCondition(loc dto.Location, args *[]interface{}) string {
	*args = append(*args, loc.Type)
	cond := fmt.Sprintf("location_type = $%d", len(*args))
	*args = append(*args, loc.ID)
	if loc.Type == model.LocationShop {
		cond += fmt.Sprintf(" AND shop_id = $%d", len(*args))
	} else {
		cond += fmt.Sprintf(" AND warehouse_id = $%d", len(*args))
	}
	return cond
}

func (r *PGRepository) Create(ctx context.Context, bl *model.BatchLocation) error {
	query := `
        INSERT INTO batch_locations (` + batchLocationColumns + `)
        VALUES (
            :id, :batch_id, :seller_id, :product_id, :location_type, :shop_id, :warehouse_id,
            :location_name, :quantity, :reserved_quantity, :effective_expiration_date,
            :freshness_remaining, :degradation_coefficient, :arrived_at, :purchase_price,
            :status, :created_at, :updated_at
        )`
	_, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, bl)
	return err
}

func (r *PGRepository) getOne(ctx context.Context, query string, args ...interface{}) (*model.BatchLocation, error) {
	var bl model.BatchLocation
	err := sqlx.GetContext(ctx, r.ext(ctx), &bl, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &bl, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.BatchLocation, error) {
	return r.getOne(ctx, `SELECT `+batchLocationColumns+` FROM batch_locations WHERE id = $1`, id)
}

func (r *PGRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.BatchLocation, error) {
	return r.getOne(ctx, `SELECT `+batchLocationColumns+` FROM batch_locations WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGRepository) GetByBatch(ctx context.Context, batchID string) ([]model.BatchLocation, error) {
	var items []model.BatchLocation
	err := sqlx.SelectContext(ctx, r.ext(ctx), &items,
		`SELECT `+batchLocationColumns+` FROM batch_locations WHERE batch_id = $1 ORDER BY created_at`, batchID)
	return items, err
}

func (r *PGRepository) GetBatchInLocation(ctx context.Context, batchID string, loc dto.Location) (*model.BatchLocation, error) {
	args := []interface{}{batchID}
	cond := locationCondition(loc, &args)
	query := `SELECT ` + batchLocationColumns + ` FROM batch_locations WHERE batch_id = $1 AND ` + cond
	return r.getOne(ctx, query, args...)
}

// ListActiveFefo orders rows soonest-to-expire first. arrived_at then id keep
// the tie-break stable across calls.
func (r *PGRepository) ListActiveFefo(ctx context.Context, sellerID, productID string, loc dto.Location, forUpdate bool) ([]model.BatchLocation, error) {
	args := []interface{}{sellerID, productID}
	cond := locationCondition(loc, &args)
	query := `
        SELECT ` + batchLocationColumns + ` FROM batch_locations
        WHERE seller_id = $1 AND product_id = $2 AND ` + cond + `
          AND status = 'ACTIVE' AND quantity > 0
        ORDER BY effective_expiration_date ASC, arrived_at ASC, id ASC`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var items []model.BatchLocation
	err := sqlx.SelectContext(ctx, r.ext(ctx), &items, query, args...)
	return items, err
}

func (r *PGRepository) ListReservedDesc(ctx context.Context, sellerID, productID string, loc dto.Location, forUpdate bool) ([]model.BatchLocation, error) {
	args := []interface{}{sellerID, productID}
	cond := locationCondition(loc, &args)
	query := `
        SELECT ` + batchLocationColumns + ` FROM batch_locations
        WHERE seller_id = $1 AND product_id = $2 AND ` + cond + `
          AND reserved_quantity > 0
        ORDER BY effective_expiration_date DESC, arrived_at DESC, id DESC`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var items []model.BatchLocation
	err := sqlx.SelectContext(ctx, r.ext(ctx), &items, query, args...)
	return items, err
}

func (r *PGRepository) ListAllInLocation(ctx context.Context, loc dto.Location, f *dto.StockFilters) ([]model.BatchLocation, int, error) {
	args := []interface{}{}
	conditions := []string{locationCondition(loc, &args)}

	if f.SellerID != "" {
		args = append(args, f.SellerID)
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if f.ProductID != "" {
		args = append(args, f.ProductID)
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", len(args)))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var count int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &count, `SELECT count(*) FROM batch_locations`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + batchLocationColumns + ` FROM batch_locations` + where +
		` ORDER BY effective_expiration_date ASC, arrived_at ASC, id ASC`
	if f.PageSize > 0 {
		offset := 0
		if f.Page > 1 {
			offset = (f.Page - 1) * f.PageSize
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	var items []model.BatchLocation
	err := sqlx.SelectContext(ctx, r.ext(ctx), &items, query, args...)
	return items, count, err
}

func (r *PGRepository) Update(ctx context.Context, bl *model.BatchLocation) error {
	query := `
        UPDATE batch_locations SET
            quantity = :quantity,
            reserved_quantity = :reserved_quantity,
            effective_expiration_date = :effective_expiration_date,
            freshness_remaining = :freshness_remaining,
            degradation_coefficient = :degradation_coefficient,
            location_name = :location_name,
            purchase_price = :purchase_price,
            status = :status,
            updated_at = :updated_at
        WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, bl)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: batch location %s", model.ErrNotFound, bl.ID)
	}
	return nil
}

func (r *PGRepository) SyncBatchFields(ctx context.Context, batchID string, expiration time.Time, freshness, degradation float64) (int64, error) {
	res, err := r.ext(ctx).ExecContext(ctx, `
        UPDATE batch_locations SET
            effective_expiration_date = $2,
            freshness_remaining = $3,
            degradation_coefficient = $4,
            updated_at = now()
        WHERE batch_id = $1`,
		batchID, expiration, freshness, degradation)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PGRepository) AppendChange(ctx context.Context, entry *model.ChangeLogEntry) error {
	query := `
        INSERT INTO batch_location_changes (
            id, batch_location_id, changed_at, reason, quantity_delta,
            quantity_before, quantity_after, reserved_delta, changed_by,
            reference_id, reference_type, comment
        )
        VALUES (
            :id, :batch_location_id, :changed_at, :reason, :quantity_delta,
            :quantity_before, :quantity_after, :reserved_delta, :changed_by,
            :reference_id, :reference_type, :comment
        )`
	if _, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, entry); err != nil {
		return err
	}

	// Keep only the newest ChangeLogLimit entries per row.
	_, err := r.ext(ctx).ExecContext(ctx, `
        DELETE FROM batch_location_changes
        WHERE batch_location_id = $1 AND id NOT IN (
            SELECT id FROM batch_location_changes
            WHERE batch_location_id = $1
            ORDER BY changed_at DESC, id DESC
            LIMIT $2
        )`, entry.BatchLocationID, model.ChangeLogLimit)
	return err
}

func (r *PGRepository) ListChanges(ctx context.Context, batchLocationID string, limit, offset int) ([]model.ChangeLogEntry, int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &count,
		`SELECT count(*) FROM batch_location_changes WHERE batch_location_id = $1`, batchLocationID); err != nil {
		return nil, 0, err
	}

	var items []model.ChangeLogEntry
	err := sqlx.SelectContext(ctx, r.ext(ctx), &items, `
        SELECT id, batch_location_id, changed_at, reason, quantity_delta,
               quantity_before, quantity_after, reserved_delta, changed_by,
               reference_id, reference_type, comment
        FROM batch_location_changes
        WHERE batch_location_id = $1
        ORDER BY changed_at DESC, id DESC
        LIMIT $2 OFFSET $3`, batchLocationID, limit, offset)
	return items, count, err
}

func (r *PGRepository) NetReservedForOrder(ctx context.Context, orderID string) (map[string]float64, error) {
	rows, err := r.ext(ctx).QueryxContext(ctx, `
        SELECT batch_location_id, COALESCE(SUM(reserved_delta), 0) AS net
        FROM batch_location_changes
        WHERE reference_id = $1
          AND reason IN ('RESERVATION', 'RELEASE_RESERVATION', 'SALE')
        GROUP BY batch_location_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	held := map[string]float64{}
	for rows.Next() {
		var blID string
		var net float64
		if err := rows.Scan(&blID, &net); err != nil {
			return nil, err
		}
		held[blID] = net
	}
	return held, rows.Err()
}

func (r *PGRepository) AggregateStock(ctx context.Context, sellerID string, loc dto.Location, productID string) ([]dto.ProductStock, error) {
	args := []interface{}{sellerID}
	cond := locationCondition(loc, &args)
	query := `
        SELECT
            product_id,
            COALESCE(SUM(quantity), 0) AS total_quantity,
            COALESCE(SUM(reserved_quantity), 0) AS total_reserved,
            COALESCE(SUM(quantity - reserved_quantity), 0) AS available_quantity,
            COUNT(*) AS batch_count,
            MIN(effective_expiration_date) AS nearest_expiration,
            COALESCE(SUM(freshness_remaining * quantity) / NULLIF(SUM(quantity), 0), 0) AS avg_freshness,
            SUM(purchase_price * quantity) / NULLIF(SUM(quantity), 0) AS avg_purchase_price
        FROM batch_locations
        WHERE seller_id = $1 AND ` + cond + ` AND status = 'ACTIVE' AND quantity > 0`
	if productID != "" {
		args = append(args, productID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	query += ` GROUP BY product_id ORDER BY product_id`

	var items []dto.ProductStock
	err := sqlx.SelectContext(ctx, r.ext(ctx), &items, query, args...)
	return items, err
}

func (r *PGRepository) LowStock(ctx context.Context, sellerID string, loc dto.Location, threshold float64) ([]dto.ProductStock, error) {
	all, err := r.AggregateStock(ctx, sellerID, loc, "")
	if err != nil {
		return nil, err
	}

	low := make([]dto.ProductStock, 0)
	for _, ps := range all {
		if ps.AvailableQuantity < threshold {
			low = append(low, ps)
		}
	}
	return low, nil
}

func (r *PGRepository) LocationStatistics(ctx context.Context, sellerID string, loc dto.Location) (*dto.LocationStatistics, error) {
	args := []interface{}{sellerID}
	cond := locationCondition(loc, &args)

	var stats dto.LocationStatistics
	err := sqlx.GetContext(ctx, r.ext(ctx), &stats, `
        SELECT
            COUNT(DISTINCT product_id) AS product_count,
            COUNT(*) AS batch_count,
            COALESCE(SUM(quantity), 0) AS total_quantity,
            COALESCE(SUM(reserved_quantity), 0) AS total_reserved,
            COALESCE(SUM(quantity - reserved_quantity), 0) AS available_quantity,
            COUNT(*) FILTER (WHERE effective_expiration_date <= now() + interval '7 days') AS expiring_within_7_days,
            0 AS low_stock_products
        FROM batch_locations
        WHERE seller_id = $1 AND `+cond+` AND status = 'ACTIVE' AND quantity > 0`, args...)
	if err != nil {
		return nil, err
	}

	low, err := r.LowStock(ctx, sellerID, loc, lowStockThreshold)
	if err != nil {
		return nil, err
	}
	stats.LowStockProducts = len(low)

	return &stats, nil
}
