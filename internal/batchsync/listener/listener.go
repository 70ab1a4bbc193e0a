package listener

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/ledger"
	"github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"go.uber.org/zap"
)

// Event names produced by the batch registry.
const (
	batchUpdated      = "batch.updated"
	batchRecalculated = "batch.freshness_recalculated"
)

type batchEvent struct {
	Name                    string    `json:"name"`
	BatchID                 string    `json:"batch_id"`
	EffectiveExpirationDate time.Time `json:"effective_expiration_date"`
	FreshnessRemaining      float64   `json:"freshness_remaining"`
	DegradationCoefficient  float64   `json:"degradation_coefficient"`
}

// Listener mirrors batch registry changes into the ledger's denormalized
// batch fields. Quantities are never touched here; only expiration,
// freshness and degradation flow through.
type Listener struct {
	consumer *broker.KafkaConsumer
	ledger   ledger.UseCase
	logger   logger.ZapLogger
}

func NewListener(consumer *broker.KafkaConsumer, ledgerUC ledger.UseCase, log logger.ZapLogger) *Listener {
	return &Listener{consumer: consumer, ledger: ledgerUC, logger: log}
}

// Start consumes until ctx is cancelled. Malformed or unknown messages are
// logged and skipped; the listener never stops over a bad payload.
func (l *Listener) Start(ctx context.Context) {
	l.logger.Info("batch sync listener started")

	for {
		msg, err := l.consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				l.logger.Info("batch sync listener stopped")
				return
			}
			l.logger.Error("failed to read batch event", zap.Error(err))
			continue
		}

		var event batchEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.logger.Warn("skipping malformed batch event", zap.Error(err))
			continue
		}

		switch event.Name {
		case batchUpdated, batchRecalculated:
			l.handleSync(ctx, &event)
		default:
			l.logger.Debug("ignoring batch event", zap.String("name", event.Name))
		}
	}
}

func (l *Listener) handleSync(ctx context.Context, event *batchEvent) {
	updated, err := l.ledger.SyncFromBatch(ctx, &dto.SyncFromBatchInput{
		BatchID:                 event.BatchID,
		EffectiveExpirationDate: event.EffectiveExpirationDate,
		FreshnessRemaining:      event.FreshnessRemaining,
		DegradationCoefficient:  event.DegradationCoefficient,
	})
	if err != nil {
		l.logger.Error("failed to sync batch fields",
			zap.String("batch_id", event.BatchID),
			zap.Error(err),
		)
		return
	}

	l.logger.Info("batch fields synced",
		zap.String("batch_id", event.BatchID),
		zap.Int64("rows", updated),
	)
}
