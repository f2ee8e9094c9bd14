package saga

import (
	"context"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReserveInventoryHandler 负责调用 product-service 预留库存。
// 预留客户端不会返回错误，结果写入 OrderContext.Result 交给后续步骤处理。
type ReserveInventoryHandler struct {
	NextHandler
}

func (h *ReserveInventoryHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ReserveInventory")
	defer span.End()

	order := orderCtx.Order
	span.SetAttributes(
		attribute.String("order.number", order.OrderNumber),
		attribute.Int("order.total_count", order.TotalCount()),
	)

	result := orderCtx.Reservations.Reserve(ctx, order.OrderNumber, orderCtx.ExpectedVersion, order.Items)
	orderCtx.Result = result
	span.SetAttributes(attribute.String("reservation.outcome", string(result.Outcome)))

	switch result.Outcome {
	case port.OutcomeSuccess:
		span.AddEvent("items reserved", withCount(len(result.ReservedInstanceIDs)))
		orderCtx.AddCompensation(func(compCtx context.Context) {
			compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.UnlockItems")
			defer compSpan.End()

			// 补偿失败需要记录严重错误，订单号进入对账集合等待后台重试。
			// 更高版本的 accept 接管过的预留不会被释放。
			if err := orderCtx.Reservations.Unlock(compCtx, order.OrderNumber, orderCtx.ExpectedVersion); err != nil {
				compSpan.RecordError(err)
				compSpan.SetStatus(codes.Error, "unlock failed")
				logger.Ctx(compCtx).Error().Err(err).Str("order_number", order.OrderNumber).Msg("🚨 compensation unlock failed")
				addPending(compCtx, orderCtx, order.OrderNumber)
			}
		})

	case port.OutcomeTransportFailure:
		// 请求可能已在服务端生效，记录下来交给对账
		span.SetStatus(codes.Error, result.Reason)
		addPending(context.WithoutCancel(ctx), orderCtx, order.OrderNumber)

	default:
		span.SetStatus(codes.Error, result.Reason)
	}

	return h.executeNext(orderCtx)
}

func addPending(ctx context.Context, orderCtx *OrderContext, orderNumber string) {
	if orderCtx.Pending == nil {
		return
	}
	if err := orderCtx.Pending.Add(ctx, orderNumber); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_number", orderNumber).Msg("failed to record pending reservation")
	}
}

func withCount(n int) trace.EventOption {
	return trace.WithAttributes(attribute.Int("count", n))
}
