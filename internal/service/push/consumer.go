package push

import (
	"context"
	"encoding/json"
	"time"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/mq"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageReader 是消费者依赖的 kafka.Reader 子集
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// outcomeEnvelope 只解析路由需要的字段，原始消息体原样推送
type outcomeEnvelope struct {
	OrderNumber string `json:"orderNumber"`
	State       string `json:"state"`
}

// OutcomeConsumer 消费订单结果事件并推送给订阅者
type OutcomeConsumer struct {
	reader MessageReader
	hub    *Hub
	tracer trace.Tracer
}

func NewOutcomeConsumer(reader MessageReader, hub *Hub, tracer trace.Tracer) *OutcomeConsumer {
	return &OutcomeConsumer{reader: reader, hub: hub, tracer: tracer}
}

// Run 阻塞直到 ctx 被取消
func (c *OutcomeConsumer) Run(ctx context.Context) error {
	log.Info().Msg("✅ order outcome consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("🛑 order outcome consumer shutting down")
				return nil
			}
			log.Error().Err(err).Msg("could not read message, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		c.handle(mq.ExtractContext(ctx, msg), msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("failed to commit message")
		}
	}
}

func (c *OutcomeConsumer) handle(ctx context.Context, msg kafka.Message) {
	ctx, span := c.tracer.Start(ctx, "push.DeliverOrderOutcome", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var env outcomeEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil || env.OrderNumber == "" {
		span.AddEvent("malformed event skipped")
		logger.Ctx(ctx).Warn().Err(err).Str("key", string(msg.Key)).Msg("malformed order outcome event skipped")
		return
	}

	delivered := c.hub.Publish(env.OrderNumber, msg.Value)
	span.SetAttributes(
		attribute.String("order.number", env.OrderNumber),
		attribute.String("order.state", env.State),
		attribute.Int("push.delivered", delivered),
	)
	logger.Ctx(ctx).Debug().Str("order_number", env.OrderNumber).Int("delivered", delivered).Msg("order outcome pushed")
}
