package sweeper

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"go.uber.org/zap"
)

// Sweeper periodically expires timed-out reservations. It is the only
// mechanism that retires overdue holds; nothing at the storage layer deletes
// reservations on its own.
type Sweeper struct {
	uc       reservation.UseCase
	interval time.Duration
	logger   logger.ZapLogger
}

func NewSweeper(uc reservation.UseCase, interval time.Duration, log logger.ZapLogger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{uc: uc, interval: interval, logger: log}
}

// Start blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("reservation sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reservation sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.uc.MarkExpired(ctx)
			if err != nil {
				s.logger.Error("reservation sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("expired reservations released", zap.Int("count", n))
			}
		}
	}
}
