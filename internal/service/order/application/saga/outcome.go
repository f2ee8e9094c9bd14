package saga

import (
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/domain"

	"go.opentelemetry.io/otel/trace"
)

// PublishOutcomeHandler 发布订单结果事件。发布失败只记录日志，不影响 accept 的结果。
type PublishOutcomeHandler struct {
	NextHandler
}

func (h *PublishOutcomeHandler) Handle(orderCtx *OrderContext) error {
	if orderCtx.Publisher == nil {
		return h.executeNext(orderCtx)
	}

	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.PublishOutcome", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	event := domain.NewOrderOutcomeEvent(orderCtx.Order, orderCtx.Result.ReservedInstanceIDs, orderCtx.now())
	if err := orderCtx.Publisher.PublishOrderOutcome(ctx, event); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).Str("order_number", event.OrderNumber).Msg("failed to publish order outcome")
	} else {
		span.AddEvent("order outcome published")
	}

	return h.executeNext(orderCtx)
}
