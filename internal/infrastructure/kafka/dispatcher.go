package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minicommerce/fulfillment/internal/domain/notification"
	"github.com/minicommerce/fulfillment/internal/observability"
	"github.com/minicommerce/fulfillment/internal/observability/logctx"
	"github.com/segmentio/kafka-go"
)

const (
	batchTimeout = 10 * time.Millisecond
	batchSize    = 100
)

// Dispatcher publishes customer notifications to a Kafka topic, keyed by
// order ID. Delivery and ordering beyond the publish are the channel's
// responsibility.
type Dispatcher struct {
	writer   *kafka.Writer
	log      observability.Logger
	requests observability.Counter
}

func NewDispatcher(broker, topic string, logger observability.Logger, metrics observability.Metrics) *Dispatcher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Dispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: batchTimeout,
			BatchSize:    batchSize,
			RequiredAcks: kafka.RequireOne,
		},
		log:      logger.With(observability.F("component", "kafka_dispatcher")),
		requests: metrics.Counter(observability.MExternalRequests),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n notification.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("kafka: marshal notification: %w", err)
	}

	if err := d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.OrderID),
		Value: body,
	}); err != nil {
		d.requests.Add(1,
			observability.L("target", "kafka"),
			observability.L("outcome", "error"),
		)
		return fmt.Errorf("kafka: publish notification: %w", err)
	}
	d.requests.Add(1,
		observability.L("target", "kafka"),
		observability.L("outcome", "ok"),
	)

	logctx.FromOr(ctx, d.log).Info("notification_published",
		observability.F("order_id", n.OrderID),
		observability.F("topic", d.writer.Topic),
	)
	return nil
}

func (d *Dispatcher) Close() error {
	return d.writer.Close()
}
