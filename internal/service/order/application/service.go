// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/application/saga"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderApplicationService 只关注业务流程编排。
type OrderApplicationService struct {
	repo         domain.OrderRepository
	reservations port.ReservationService
	pending      port.PendingReservationStore
	publisher    port.OrderEventPublisher
	rule         port.DraftRule // 可选
	tracer       trace.Tracer
	now          func() time.Time
}

// Option 可选配置
type Option func(s *OrderApplicationService)

// WithDraftRule 草稿创建和修改时执行的校验规则
func WithDraftRule(rule port.DraftRule) Option {
	return func(s *OrderApplicationService) { s.rule = rule }
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(s *OrderApplicationService) { s.now = now }
}

func NewOrderApplicationService(repo domain.OrderRepository, reservations port.ReservationService, pending port.PendingReservationStore, publisher port.OrderEventPublisher, tracer trace.Tracer, opts ...Option) *OrderApplicationService {
	s := &OrderApplicationService{
		repo:         repo,
		reservations: reservations,
		pending:      pending,
		publisher:    publisher,
		tracer:       tracer,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrderDraft 校验并保存一个 DRAFT 订单，不调用 product-service
func (s *OrderApplicationService) PlaceOrderDraft(ctx context.Context, req DraftOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceOrderDraft")
	defer span.End()

	order, err := domain.NewDraft(req.Items, req.Address, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.checkRule(order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save draft")
		return nil, errors.Wrap(err, "save draft order")
	}

	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	logger.Ctx(ctx).Info().Str("order_number", order.OrderNumber).Int("lines", len(order.Items)).Msg("draft order placed")
	return order, nil
}

// AcceptOrder 执行预留 Saga。
// 返回时订单一定处于 ACCEPTED 或 INVALID，除非持久化本身失败。
func (s *OrderApplicationService) AcceptOrder(ctx context.Context, orderNumber string, version int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.AcceptOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", orderNumber), attribute.Int64("order.version", version))

	order, err := s.repo.FindByNumberAndVersion(ctx, orderNumber, version)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := order.CheckAcceptable(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	orderContext := &saga.OrderContext{
		Ctx:             ctx,
		Order:           order,
		ExpectedVersion: version,
		Tracer:          s.tracer,
		Now:             s.now,
		Reservations:    s.reservations,
		Repo:            s.repo,
		Pending:         s.pending,
		Publisher:       s.publisher,
	}

	if err := s.buildChain().Handle(orderContext); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept saga failed")
		orderAcceptTotal.WithLabelValues("ERROR").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("order_number", orderNumber).Msg("accept saga failed")
		return nil, err
	}

	orderAcceptTotal.WithLabelValues(string(order.State)).Inc()
	span.SetAttributes(attribute.String("order.state", string(order.State)))
	logger.Ctx(ctx).Info().
		Str("order_number", orderNumber).
		Int64("version", order.Version).
		Str("state", string(order.State)).
		Str("outcome", string(orderContext.Result.Outcome)).
		Msg("order accept finished")
	return order, nil
}

// UpdateOrder 覆盖 DRAFT 订单的行和地址
func (s *OrderApplicationService) UpdateOrder(ctx context.Context, orderNumber string, version int64, req DraftOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", orderNumber), attribute.Int64("order.version", version))

	order, err := s.repo.FindByNumberAndVersion(ctx, orderNumber, version)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := order.Revise(req.Items, req.Address, s.now()); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.checkRule(order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.repo.Update(ctx, order, version); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, orderNumber string, version int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()

	order, err := s.repo.FindByNumberAndVersion(ctx, orderNumber, version)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// DeleteOrder 删除订单，不会调用远程 unlock
func (s *OrderApplicationService) DeleteOrder(ctx context.Context, orderNumber string) error {
	ctx, span := s.tracer.Start(ctx, "app.DeleteOrder")
	defer span.End()

	if err := s.repo.Delete(ctx, orderNumber); err != nil {
		span.RecordError(err)
		return err
	}
	logger.Ctx(ctx).Info().Str("order_number", orderNumber).Msg("order deleted")
	return nil
}

// ReconcilePending 处理预留结果未知的订单，释放可能残留在 product-service 上的预留。
// 单个订单出错不会中断整轮，它会留在集合里等下一轮。
func (s *OrderApplicationService) ReconcilePending(ctx context.Context) (ReconcileReport, error) {
	ctx, span := s.tracer.Start(ctx, "app.ReconcilePending")
	defer span.End()

	var report ReconcileReport
	members, err := s.pending.Members(ctx)
	if err != nil {
		span.RecordError(err)
		return report, errors.Wrap(err, "list pending reservations")
	}

	for _, orderNumber := range members {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		result, err := s.reconcileOne(ctx, orderNumber)
		if err != nil {
			report.Failed++
			reconciledTotal.WithLabelValues("failed").Inc()
			logger.Ctx(ctx).Warn().Err(err).Str("order_number", orderNumber).Msg("reconcile failed, will retry next round")
			continue
		}
		reconciledTotal.WithLabelValues(result).Inc()
		switch result {
		case "released":
			report.Released++
		case "settled":
			report.Settled++
		}
	}

	span.SetAttributes(
		attribute.Int("reconcile.released", report.Released),
		attribute.Int("reconcile.settled", report.Settled),
		attribute.Int("reconcile.failed", report.Failed),
	)
	if len(members) > 0 {
		logger.Ctx(ctx).Info().
			Int("released", report.Released).
			Int("settled", report.Settled).
			Int("failed", report.Failed).
			Msg("🧹 reconcile round finished")
	}
	return report, nil
}

func (s *OrderApplicationService) reconcileOne(ctx context.Context, orderNumber string) (string, error) {
	upTo := port.AnyVersion
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		// 订单已被删除
	case err != nil:
		return "", err
	case order.State == domain.StateAccepted:
		return "settled", s.pending.Remove(ctx, orderNumber)
	case order.State == domain.StateInvalid:
		// 先提升版本：之后能成功的 accept 持有的版本都高于 upTo，
		// 它们重放或新建的预留不会被下面的 unlock 释放
		upTo = order.Version
		order.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, order, order.Version); err != nil {
			return "", errors.Wrap(err, "bump order version")
		}
	default:
		return "", errors.Errorf("order %s is still %s", orderNumber, order.State)
	}

	if err := s.reservations.Unlock(ctx, orderNumber, upTo); err != nil {
		return "", err
	}
	return "released", s.pending.Remove(ctx, orderNumber)
}

func (s *OrderApplicationService) checkRule(order *domain.Order) error {
	if s.rule == nil {
		return nil
	}
	ok, err := s.rule.Evaluate(order)
	if err != nil {
		return errors.Wrap(err, "evaluate draft rule")
	}
	if !ok {
		return errors.Wrapf(domain.ErrRuleRejected, "rule %q", s.rule.String())
	}
	return nil
}

func (s *OrderApplicationService) buildChain() saga.Handler {
	chain := new(saga.ReserveInventoryHandler)
	chain.
		SetNext(new(saga.ConfirmOrderHandler)).
		SetNext(new(saga.PublishOutcomeHandler))
	return chain
}
