package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/postgres"
	"github.com/jmoiron/sqlx"
)

const (
	reservationColumns = `id, seller_id, order_id, customer_id, shop_id, shop_name, type, status,
		expires_at, confirmed_at, cancelled_at, cancel_reason, cancel_comment, created_at, updated_at`

	itemColumns = `id, reservation_id, batch_id, batch_location_id, product_id, quantity,
		confirmed_quantity, status, expiration_snapshot, freshness_snapshot`

	insertReservationQuery = `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES (:id, :seller_id, :order_id, :customer_id, :shop_id, :shop_name, :type, :status,
			:expires_at, :confirmed_at, :cancelled_at, :cancel_reason, :cancel_comment, :created_at, :updated_at)`

	updateReservationQuery = `
		UPDATE reservations
		SET status = :status,
			expires_at = :expires_at,
			confirmed_at = :confirmed_at,
			cancelled_at = :cancelled_at,
			cancel_reason = :cancel_reason,
			cancel_comment = :cancel_comment,
			updated_at = :updated_at
		WHERE id = :id`

	insertItemQuery = `
		INSERT INTO reservation_items (` + itemColumns + `)
		VALUES (:id, :reservation_id, :batch_id, :batch_location_id, :product_id, :quantity,
			:confirmed_quantity, :status, :expiration_snapshot, :freshness_snapshot)`

	updateItemQuery = `
		UPDATE reservation_items
		SET quantity = :quantity,
			confirmed_quantity = :confirmed_quantity,
			status = :status
		WHERE id = :id`
)

// PGRepository persists reservations and their items in PostgreSQL. Items are
// loaded eagerly; reservations are small documents and every caller needs the
// item list to release stock correctly.
type PGRepository struct {
	db *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) ext(ctx context.Context) sqlx.ExtContext {
	return postgres.ExtFromContext(ctx, r.db)
}

func (r *PGRepository) Create(ctx context.Context, res *model.Reservation) error {
	ext := r.ext(ctx)
	if _, err := sqlx.NamedExecContext(ctx, ext, insertReservationQuery, res); err != nil {
		return fmt.Errorf("reservation repository: insert: %w", err)
	}
	for i := range res.Items {
		if _, err := sqlx.NamedExecContext(ctx, ext, insertItemQuery, &res.Items[i]); err != nil {
			return fmt.Errorf("reservation repository: insert item: %w", err)
		}
	}
	return nil
}

func (r *PGRepository) loadItems(ctx context.Context, reservations []model.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}

	ids := make([]string, len(reservations))
	index := make(map[string]*model.Reservation, len(reservations))
	for i := range reservations {
		ids[i] = reservations[i].ID
		index[reservations[i].ID] = &reservations[i]
	}

	query, args, err := sqlx.In(
		`SELECT `+itemColumns+` FROM reservation_items WHERE reservation_id IN (?) ORDER BY expiration_snapshot ASC, id ASC`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("reservation repository: build items query: %w", err)
	}

	ext := r.ext(ctx)
	var items []model.ReservationItem
	if err := sqlx.SelectContext(ctx, ext, &items, ext.Rebind(query), args...); err != nil {
		return fmt.Errorf("reservation repository: load items: %w", err)
	}

	for i := range items {
		if res, ok := index[items[i].ReservationID]; ok {
			res.Items = append(res.Items, items[i])
		}
	}
	return nil
}

func (r *PGRepository) getOne(ctx context.Context, query string, args ...interface{}) (*model.Reservation, error) {
	var res model.Reservation
	if err := sqlx.GetContext(ctx, r.ext(ctx), &res, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reservation repository: get: %w", err)
	}

	rows := []model.Reservation{res}
	if err := r.loadItems(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
}

func (r *PGRepository) GetByOrder(ctx context.Context, orderID string) (*model.Reservation, error) {
	return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE order_id = $1`, orderID)
}

func (r *PGRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGRepository) GetByOrderForUpdate(ctx context.Context, orderID string) (*model.Reservation, error) {
	return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE order_id = $1 FOR UPDATE`, orderID)
}

func (r *PGRepository) list(ctx context.Context, where string, f *dto.ReservationFilters, args []interface{}) ([]model.Reservation, int, error) {
	if f != nil {
		if f.Status != "" {
			args = append(args, f.Status)
			where += fmt.Sprintf(" AND status = $%d", len(args))
		}
		if f.Type != "" {
			args = append(args, f.Type)
			where += fmt.Sprintf(" AND type = $%d", len(args))
		}
	}

	ext := r.ext(ctx)

	var total int
	if err := sqlx.GetContext(ctx, ext, &total, `SELECT COUNT(*) FROM reservations WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("reservation repository: count: %w", err)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	if f != nil && f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		args = append(args, f.PageSize)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, (page-1)*f.PageSize)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var reservations []model.Reservation
	if err := sqlx.SelectContext(ctx, ext, &reservations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("reservation repository: list: %w", err)
	}
	if err := r.loadItems(ctx, reservations); err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}

func (r *PGRepository) ListByShop(ctx context.Context, shopID string, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	return r.list(ctx, "shop_id = $1", f, []interface{}{shopID})
}

func (r *PGRepository) ListBySeller(ctx context.Context, sellerID string, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	return r.list(ctx, "seller_id = $1", f, []interface{}{sellerID})
}

func (r *PGRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := sqlx.SelectContext(ctx, r.ext(ctx), &reservations, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3`,
		model.ReservationActive, now, limit)
	if err != nil {
		return nil, fmt.Errorf("reservation repository: list expired: %w", err)
	}
	if err := r.loadItems(ctx, reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *PGRepository) ListActiveForBatchLocation(ctx context.Context, batchLocationID string) ([]model.Reservation, error) {
	return r.listActiveByItem(ctx, "i.batch_location_id = $1", batchLocationID)
}

func (r *PGRepository) ListActiveForProduct(ctx context.Context, shopID, productID string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := sqlx.SelectContext(ctx, r.ext(ctx), &reservations, `
		SELECT DISTINCT r.id, r.seller_id, r.order_id, r.customer_id, r.shop_id, r.shop_name, r.type, r.status,
			r.expires_at, r.confirmed_at, r.cancelled_at, r.cancel_reason, r.cancel_comment, r.created_at, r.updated_at
		FROM reservations r
		JOIN reservation_items i ON i.reservation_id = r.id
		WHERE r.shop_id = $1 AND i.product_id = $2
			AND r.status IN ($3, $4) AND i.status = $5
		ORDER BY r.created_at ASC, r.id ASC`,
		shopID, productID,
		model.ReservationActive, model.ReservationPartiallyConfirmed, model.ReservationActive)
	if err != nil {
		return nil, fmt.Errorf("reservation repository: list active for product: %w", err)
	}
	if err := r.loadItems(ctx, reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *PGRepository) listActiveByItem(ctx context.Context, itemCond string, args ...interface{}) ([]model.Reservation, error) {
	n := len(args)
	args = append(args, model.ReservationActive, model.ReservationPartiallyConfirmed, model.ReservationActive)
	var reservations []model.Reservation
	err := sqlx.SelectContext(ctx, r.ext(ctx), &reservations, fmt.Sprintf(`
		SELECT DISTINCT r.id, r.seller_id, r.order_id, r.customer_id, r.shop_id, r.shop_name, r.type, r.status,
			r.expires_at, r.confirmed_at, r.cancelled_at, r.cancel_reason, r.cancel_comment, r.created_at, r.updated_at
		FROM reservations r
		JOIN reservation_items i ON i.reservation_id = r.id
		WHERE %s AND r.status IN ($%d, $%d) AND i.status = $%d
		ORDER BY r.created_at ASC, r.id ASC`, itemCond, n+1, n+2, n+3), args...)
	if err != nil {
		return nil, fmt.Errorf("reservation repository: list active: %w", err)
	}
	if err := r.loadItems(ctx, reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *PGRepository) Update(ctx context.Context, res *model.Reservation) error {
	if _, err := sqlx.NamedExecContext(ctx, r.ext(ctx), updateReservationQuery, res); err != nil {
		return fmt.Errorf("reservation repository: update: %w", err)
	}
	return nil
}

func (r *PGRepository) InsertItem(ctx context.Context, item *model.ReservationItem) error {
	if _, err := sqlx.NamedExecContext(ctx, r.ext(ctx), insertItemQuery, item); err != nil {
		return fmt.Errorf("reservation repository: insert item: %w", err)
	}
	return nil
}

func (r *PGRepository) UpdateItem(ctx context.Context, item *model.ReservationItem) error {
	if _, err := sqlx.NamedExecContext(ctx, r.ext(ctx), updateItemQuery, item); err != nil {
		return fmt.Errorf("reservation repository: update item: %w", err)
	}
	return nil
}

func (r *PGRepository) DeleteItem(ctx context.Context, itemID string) error {
	if _, err := r.ext(ctx).ExecContext(ctx, `DELETE FROM reservation_items WHERE id = $1`, itemID); err != nil {
		return fmt.Errorf("reservation repository: delete item: %w", err)
	}
	return nil
}

func (r *PGRepository) ReservedQuantityForProduct(ctx context.Context, shopID, productID string) (float64, error) {
	var total float64
	err := sqlx.GetContext(ctx, r.ext(ctx), &total, `
		SELECT COALESCE(SUM(i.quantity), 0)
		FROM reservation_items i
		JOIN reservations r ON r.id = i.reservation_id
		WHERE r.shop_id = $1 AND i.product_id = $2
			AND r.status IN ($3, $4) AND i.status = $5`,
		shopID, productID,
		model.ReservationActive, model.ReservationPartiallyConfirmed, model.ReservationActive)
	if err != nil {
		return 0, fmt.Errorf("reservation repository: reserved for product: %w", err)
	}
	return total, nil
}

func (r *PGRepository) ReservedQuantityForBatchLocation(ctx context.Context, batchLocationID string) (float64, error) {
	var total float64
	err := sqlx.GetContext(ctx, r.ext(ctx), &total, `
		SELECT COALESCE(SUM(i.quantity), 0)
		FROM reservation_items i
		JOIN reservations r ON r.id = i.reservation_id
		WHERE i.batch_location_id = $1
			AND r.status IN ($2, $3) AND i.status = $4`,
		batchLocationID,
		model.ReservationActive, model.ReservationPartiallyConfirmed, model.ReservationActive)
	if err != nil {
		return 0, fmt.Errorf("reservation repository: reserved for batch location: %w", err)
	}
	return total, nil
}

func (r *PGRepository) Statistics(ctx context.Context, sellerID string) (*dto.ReservationStatistics, error) {
	var stats dto.ReservationStatistics
	err := sqlx.GetContext(ctx, r.ext(ctx), &stats, `
		SELECT
			COUNT(*) FILTER (WHERE r.status = 'ACTIVE') AS active,
			COUNT(*) FILTER (WHERE r.status = 'PARTIALLY_CONFIRMED') AS partially_confirmed,
			COUNT(*) FILTER (WHERE r.status = 'CONFIRMED') AS confirmed,
			COUNT(*) FILTER (WHERE r.status = 'CANCELLED') AS cancelled,
			COUNT(*) FILTER (WHERE r.status = 'EXPIRED') AS expired,
			COALESCE((
				SELECT SUM(i.quantity)
				FROM reservation_items i
				JOIN reservations ri ON ri.id = i.reservation_id
				WHERE ri.seller_id = $1
					AND ri.status IN ('ACTIVE', 'PARTIALLY_CONFIRMED')
					AND i.status = 'ACTIVE'
			), 0) AS active_held_quantity
		FROM reservations r
		WHERE r.seller_id = $1`,
		sellerID)
	if err != nil {
		return nil, fmt.Errorf("reservation repository: statistics: %w", err)
	}
	return &stats, nil
}

var _ reservation.Repository = (*PGRepository)(nil)
