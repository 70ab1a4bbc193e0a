package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"go.uber.org/zap"
)

// KafkaPublisher publishes events to the inventory events topic. Publishing is
// best effort: a broker outage is logged, not propagated, because stock
// mutations must not roll back over telemetry.
type KafkaPublisher struct {
	producer *broker.KafkaProducer
	logger   logger.ZapLogger
}

func NewKafkaPublisher(producer *broker.KafkaProducer, log logger.ZapLogger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.String("event", event.Name), zap.Error(err))
		return
	}

	key := event.OrderID
	if key == "" {
		key = event.ShopID
	}

	if err := p.producer.Publish(ctx, []byte(key), value); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("event", event.Name),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

var _ Publisher = (*KafkaPublisher)(nil)
