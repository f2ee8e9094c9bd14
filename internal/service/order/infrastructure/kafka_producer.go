package infrastructure

import (
	"context"
	"encoding/json"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// OrderOutcomeProducer 把订单结果事件写入 Kafka，以订单号作为消息 key
type OrderOutcomeProducer struct {
	writer *kafka.Writer
}

func NewOrderOutcomeProducer(writer *kafka.Writer) *OrderOutcomeProducer {
	return &OrderOutcomeProducer{writer: writer}
}

var _ port.OrderEventPublisher = (*OrderOutcomeProducer)(nil)

func (p *OrderOutcomeProducer) PublishOrderOutcome(ctx context.Context, event *domain.OrderOutcomeEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal order outcome event")
	}
	if err := mq.ProduceMessage(ctx, p.writer, []byte(event.OrderNumber), eventBytes); err != nil {
		return errors.Wrapf(err, "produce order outcome event to %s", p.writer.Topic)
	}
	return nil
}

// Close 关闭底层的 Kafka writer
func (p *OrderOutcomeProducer) Close() error {
	return p.writer.Close()
}

// NoopPublisher 未配置 Kafka 时使用，只记录调试日志
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderOutcome(ctx context.Context, event *domain.OrderOutcomeEvent) error {
	logger.Ctx(ctx).Debug().Str("order_number", event.OrderNumber).Str("state", string(event.State)).Msg("order outcome event dropped (no brokers configured)")
	return nil
}
