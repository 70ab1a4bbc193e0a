// Package mock provides an in-memory ledger repository for tests.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type Repository struct {
	mu      sync.Mutex
	rows    map[string]*model.BatchLocation
	order   []string // insertion order keeps FEFO tie-breaks stable
	changes map[string][]model.ChangeLogEntry
}

func NewRepository() *Repository {
	return &Repository{
		rows:    map[string]*model.BatchLocation{},
		changes: map[string][]model.ChangeLogEntry{},
	}
}

// Seed inserts a row without writing a change-log entry.
func (r *Repository) Seed(bl *model.BatchLocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *bl
	r.rows[bl.ID] = &cp
	r.order = append(r.order, bl.ID)
}

// Changes returns the change log of one row, newest last.
func (r *Repository) Changes(batchLocationID string) []model.ChangeLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ChangeLogEntry, len(r.changes[batchLocationID]))
	copy(out, r.changes[batchLocationID])
	return out
}

func (r *Repository) Create(_ context.Context, bl *model.BatchLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *bl
	r.rows[bl.ID] = &cp
	r.order = append(r.order, bl.ID)
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*model.BatchLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bl, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *bl
	return &cp, nil
}

func (r *Repository) GetByIDForUpdate(ctx context.Context, id string) (*model.BatchLocation, error) {
	return r.GetByID(ctx, id)
}

func (r *Repository) GetByBatch(_ context.Context, batchID string) ([]model.BatchLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.BatchLocation
	for _, id := range r.order {
		if bl := r.rows[id]; bl.BatchID == batchID {
			out = append(out, *bl)
		}
	}
	return out, nil
}

func matchesLocation(bl *model.BatchLocation, loc dto.Location) bool {
	if bl.LocationType != loc.Type {
		return false
	}
	return bl.LocationID() == loc.ID
}

func (r *Repository) GetBatchInLocation(_ context.Context, batchID string, loc dto.Location) (*model.BatchLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		bl := r.rows[id]
		if bl.BatchID == batchID && matchesLocation(bl, loc) {
			cp := *bl
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Repository) scope(sellerID, productID string, loc dto.Location) []*model.BatchLocation {
	var out []*model.BatchLocation
	for _, id := range r.order {
		bl := r.rows[id]
		if bl.SellerID == sellerID && bl.ProductID == productID && matchesLocation(bl, loc) {
			out = append(out, bl)
		}
	}
	return out
}

func (r *Repository) ListActiveFefo(_ context.Context, sellerID, productID string, loc dto.Location, _ bool) ([]model.BatchLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var live []*model.BatchLocation
	for _, bl := range r.scope(sellerID, productID, loc) {
		if bl.Status == model.BatchLocationActive && bl.Quantity > 0 {
			live = append(live, bl)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		if !live[i].EffectiveExpirationDate.Equal(live[j].EffectiveExpirationDate) {
			return live[i].EffectiveExpirationDate.Before(live[j].EffectiveExpirationDate)
		}
		return live[i].ArrivedAt.Before(live[j].ArrivedAt)
	})

	out := make([]model.BatchLocation, len(live))
	for i, bl := range live {
		out[i] = *bl
	}
	return out, nil
}

func (r *Repository) ListReservedDesc(_ context.Context, sellerID, productID string, loc dto.Location, _ bool) ([]model.BatchLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var held []*model.BatchLocation
	for _, bl := range r.scope(sellerID, productID, loc) {
		if bl.ReservedQuantity > 0 {
			held = append(held, bl)
		}
	}
	sort.SliceStable(held, func(i, j int) bool {
		if !held[i].EffectiveExpirationDate.Equal(held[j].EffectiveExpirationDate) {
			return held[i].EffectiveExpirationDate.After(held[j].EffectiveExpirationDate)
		}
		return held[i].ArrivedAt.After(held[j].ArrivedAt)
	})

	out := make([]model.BatchLocation, len(held))
	for i, bl := range held {
		out[i] = *bl
	}
	return out, nil
}

func (r *Repository) ListAllInLocation(_ context.Context, loc dto.Location, f *dto.StockFilters) ([]model.BatchLocation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.BatchLocation
	for _, id := range r.order {
		bl := r.rows[id]
		if !matchesLocation(bl, loc) {
			continue
		}
		if f.SellerID != "" && bl.SellerID != f.SellerID {
			continue
		}
		if f.ProductID != "" && bl.ProductID != f.ProductID {
			continue
		}
		out = append(out, *bl)
	}
	return out, len(out), nil
}

func (r *Repository) Update(_ context.Context, bl *model.BatchLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[bl.ID]; !ok {
		return model.ErrNotFound
	}
	cp := *bl
	r.rows[bl.ID] = &cp
	return nil
}

func (r *Repository) SyncBatchFields(_ context.Context, batchID string, expiration time.Time, freshness, degradation float64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, bl := range r.rows {
		if bl.BatchID == batchID {
			bl.EffectiveExpirationDate = expiration
			bl.FreshnessRemaining = freshness
			bl.DegradationCoefficient = degradation
			count++
		}
	}
	return count, nil
}

func (r *Repository) AppendChange(_ context.Context, entry *model.ChangeLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := append(r.changes[entry.BatchLocationID], *entry)
	if len(log) > model.ChangeLogLimit {
		log = log[len(log)-model.ChangeLogLimit:]
	}
	r.changes[entry.BatchLocationID] = log
	return nil
}

func (r *Repository) ListChanges(_ context.Context, batchLocationID string, limit, offset int) ([]model.ChangeLogEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.changes[batchLocationID]
	total := len(log)

	// Newest first, like the SQL implementation.
	reversed := make([]model.ChangeLogEntry, total)
	for i, e := range log {
		reversed[total-1-i] = e
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return reversed[offset:end], total, nil
}

func (r *Repository) NetReservedForOrder(_ context.Context, orderID string) (map[string]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	held := map[string]float64{}
	for blID, log := range r.changes {
		for _, e := range log {
			if e.ReferenceID == nil || *e.ReferenceID != orderID {
				continue
			}
			switch e.Reason {
			case model.ReasonReservation, model.ReasonReleaseReservation, model.ReasonSale:
				held[blID] += e.ReservedDelta
			}
		}
	}
	return held, nil
}

func (r *Repository) AggregateStock(_ context.Context, sellerID string, loc dto.Location, productID string) ([]dto.ProductStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byProduct := map[string]*dto.ProductStock{}
	weights := map[string]float64{}
	priced := map[string]float64{}
	pricedWeight := map[string]float64{}

	for _, id := range r.order {
		bl := r.rows[id]
		if bl.SellerID != sellerID || !matchesLocation(bl, loc) {
			continue
		}
		if bl.Status != model.BatchLocationActive || bl.Quantity <= 0 {
			continue
		}
		if productID != "" && bl.ProductID != productID {
			continue
		}

		ps, ok := byProduct[bl.ProductID]
		if !ok {
			ps = &dto.ProductStock{ProductID: bl.ProductID}
			byProduct[bl.ProductID] = ps
		}
		ps.TotalQuantity += bl.Quantity
		ps.TotalReserved += bl.ReservedQuantity
		ps.AvailableQuantity += bl.Quantity - bl.ReservedQuantity
		ps.BatchCount++
		if ps.NearestExpiration == nil || bl.EffectiveExpirationDate.Before(*ps.NearestExpiration) {
			exp := bl.EffectiveExpirationDate
			ps.NearestExpiration = &exp
		}
		weights[bl.ProductID] += bl.FreshnessRemaining * bl.Quantity
		if bl.PurchasePrice != nil {
			priced[bl.ProductID] += *bl.PurchasePrice * bl.Quantity
			pricedWeight[bl.ProductID] += bl.Quantity
		}
	}

	var out []dto.ProductStock
	for pid, ps := range byProduct {
		if ps.TotalQuantity > 0 {
			ps.AvgFreshness = weights[pid] / ps.TotalQuantity
		}
		if pricedWeight[pid] > 0 {
			avg := priced[pid] / pricedWeight[pid]
			ps.AvgPurchasePrice = &avg
		}
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].ProductID, out[j].ProductID) < 0 })
	return out, nil
}

func (r *Repository) LowStock(ctx context.Context, sellerID string, loc dto.Location, threshold float64) ([]dto.ProductStock, error) {
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

func (r *Repository) LocationStatistics(ctx context.Context, sellerID string, loc dto.Location) (*dto.LocationStatistics, error) {
	all, err := r.AggregateStock(ctx, sellerID, loc, "")
	if err != nil {
		return nil, err
	}

	stats := &dto.LocationStatistics{}
	cutoff := time.Now().Add(7 * 24 * time.Hour)

	for _, ps := range all {
		stats.ProductCount++
		stats.BatchCount += ps.BatchCount
		stats.TotalQuantity += ps.TotalQuantity
		stats.TotalReserved += ps.TotalReserved
		stats.AvailableQuantity += ps.AvailableQuantity
		if ps.AvailableQuantity < 5 {
			stats.LowStockProducts++
		}
	}

	r.mu.Lock()
	for _, id := range r.order {
		bl := r.rows[id]
		if bl.SellerID == sellerID && matchesLocation(bl, loc) &&
			bl.Status == model.BatchLocationActive && bl.Quantity > 0 &&
			bl.EffectiveExpirationDate.Before(cutoff) {
			stats.ExpiringWithin7d++
		}
	}
	r.mu.Unlock()

	return stats, nil
}
