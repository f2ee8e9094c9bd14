package saga

import (
	"context"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ConfirmOrderHandler 根据预留结果把订单写成 ACCEPTED 或 INVALID
type ConfirmOrderHandler struct {
	NextHandler
}

func (h *ConfirmOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ConfirmOrder")
	defer span.End()

	order := orderCtx.Order
	result := orderCtx.Result

	if result.Outcome == port.OutcomeSuccess {
		if err := order.Accept(orderCtx.now()); err != nil {
			span.RecordError(err)
			orderCtx.TriggerCompensation(context.WithoutCancel(ctx))
			return err
		}
	} else {
		order.Invalidate(result.Reason, orderCtx.now())
	}
	span.SetAttributes(attribute.String("order.state", string(order.State)))

	// 调用方超时或断开时结果仍要落库，订单不能停留在 DRAFT
	if err := orderCtx.Repo.Update(context.WithoutCancel(ctx), order, orderCtx.ExpectedVersion); err != nil {
		span.RecordError(err, trace.WithAttributes(attribute.Bool("critical.error", result.Outcome == port.OutcomeSuccess)))
		span.SetStatus(codes.Error, "failed to persist order outcome")
		logger.Ctx(ctx).Error().Err(err).
			Str("order_number", order.OrderNumber).
			Int64("version", orderCtx.ExpectedVersion).
			Str("state", string(order.State)).
			Msg("failed to persist order outcome")

		// 已经预留成功但订单没能写成 ACCEPTED，释放预留
		if result.Outcome == port.OutcomeSuccess {
			orderCtx.TriggerCompensation(context.WithoutCancel(ctx))
		}
		return errors.Wrapf(err, "persist order %s as %s", order.OrderNumber, order.State)
	}

	span.AddEvent("order outcome persisted", trace.WithAttributes(attribute.Int64("order.version", order.Version)))
	return h.executeNext(orderCtx)
}
