package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
)

// Repository is an in-memory reservation.Repository for tests.
type Repository struct {
	mu   sync.Mutex
	rows map[string]*model.Reservation
}

func NewRepository() *Repository {
	return &Repository{rows: map[string]*model.Reservation{}}
}

func cloneReservation(res *model.Reservation) *model.Reservation {
	c := *res
	c.Items = append([]model.ReservationItem(nil), res.Items...)
	return &c
}

func (r *Repository) Create(_ context.Context, res *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[res.ID] = cloneReservation(res)
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneReservation(res), nil
}

func (r *Repository) GetByOrder(_ context.Context, orderID string) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.rows {
		if res.OrderID == orderID {
			return cloneReservation(res), nil
		}
	}
	return nil, nil
}

func (r *Repository) GetByIDForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *Repository) GetByOrderForUpdate(ctx context.Context, orderID string) (*model.Reservation, error) {
	return r.GetByOrder(ctx, orderID)
}

func (r *Repository) matches(res *model.Reservation, f *dto.ReservationFilters) bool {
	if f == nil {
		return true
	}
	if f.Status != "" && res.Status != f.Status {
		return false
	}
	if f.Type != "" && res.Type != f.Type {
		return false
	}
	return true
}

func (r *Repository) list(pred func(*model.Reservation) bool, f *dto.ReservationFilters) ([]model.Reservation, int) {
	var out []model.Reservation
	for _, res := range r.rows {
		if pred(res) && r.matches(res, f) {
			out = append(out, *cloneReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	total := len(out)
	if f != nil && f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.PageSize
		if start >= len(out) {
			return nil, total
		}
		end := start + f.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total
}

func (r *Repository) ListByShop(_ context.Context, shopID string, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, total := r.list(func(res *model.Reservation) bool { return res.ShopID == shopID }, f)
	return out, total, nil
}

func (r *Repository) ListBySeller(_ context.Context, sellerID string, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, total := r.list(func(res *model.Reservation) bool { return res.SellerID == sellerID }, f)
	return out, total, nil
}

func (r *Repository) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Reservation
	for _, res := range r.rows {
		if res.IsExpired(now) {
			out = append(out, *cloneReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func activeHolder(res *model.Reservation) bool {
	return res.Status == model.ReservationActive || res.Status == model.ReservationPartiallyConfirmed
}

func (r *Repository) ListActiveForBatchLocation(_ context.Context, batchLocationID string) ([]model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Reservation
	for _, res := range r.rows {
		if !activeHolder(res) {
			continue
		}
		for _, item := range res.Items {
			if item.BatchLocationID == batchLocationID && item.Status == model.ReservationActive {
				out = append(out, *cloneReservation(res))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) ListActiveForProduct(_ context.Context, shopID, productID string) ([]model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Reservation
	for _, res := range r.rows {
		if !activeHolder(res) || res.ShopID != shopID {
			continue
		}
		for _, item := range res.Items {
			if item.ProductID == productID && item.Status == model.ReservationActive {
				out = append(out, *cloneReservation(res))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) Update(_ context.Context, res *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[res.ID]
	if !ok {
		return nil
	}
	items := stored.Items
	*stored = *res
	stored.Items = items
	return nil
}

func (r *Repository) InsertItem(_ context.Context, item *model.ReservationItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.rows[item.ReservationID]; ok {
		res.Items = append(res.Items, *item)
	}
	return nil
}

func (r *Repository) UpdateItem(_ context.Context, item *model.ReservationItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.rows[item.ReservationID]; ok {
		for i := range res.Items {
			if res.Items[i].ID == item.ID {
				res.Items[i] = *item
				return nil
			}
		}
	}
	// item updates may arrive detached from their reservation
	for _, res := range r.rows {
		for i := range res.Items {
			if res.Items[i].ID == item.ID {
				res.Items[i] = *item
				return nil
			}
		}
	}
	return nil
}

func (r *Repository) DeleteItem(_ context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.rows {
		for i := range res.Items {
			if res.Items[i].ID == itemID {
				res.Items = append(res.Items[:i], res.Items[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (r *Repository) ReservedQuantityForProduct(_ context.Context, shopID, productID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0.0
	for _, res := range r.rows {
		if !activeHolder(res) || res.ShopID != shopID {
			continue
		}
		for _, item := range res.Items {
			if item.ProductID == productID && item.Status == model.ReservationActive {
				total += item.Quantity
			}
		}
	}
	return total, nil
}

func (r *Repository) ReservedQuantityForBatchLocation(_ context.Context, batchLocationID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0.0
	for _, res := range r.rows {
		if !activeHolder(res) {
			continue
		}
		for _, item := range res.Items {
			if item.BatchLocationID == batchLocationID && item.Status == model.ReservationActive {
				total += item.Quantity
			}
		}
	}
	return total, nil
}

func (r *Repository) Statistics(_ context.Context, sellerID string) (*dto.ReservationStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &dto.ReservationStatistics{}
	for _, res := range r.rows {
		if res.SellerID != sellerID {
			continue
		}
		switch res.Status {
		case model.ReservationActive:
			stats.Active++
		case model.ReservationPartiallyConfirmed:
			stats.PartiallyConfirmed++
		case model.ReservationConfirmed:
			stats.Confirmed++
		case model.ReservationCancelled:
			stats.Cancelled++
		case model.ReservationExpired:
			stats.Expired++
		}
		if activeHolder(res) {
			for _, item := range res.Items {
				if item.Status == model.ReservationActive {
					stats.ActiveHeldQuantity += item.Quantity
				}
			}
		}
	}
	return stats, nil
}

var _ reservation.Repository = (*Repository)(nil)
