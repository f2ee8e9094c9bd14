package saga

import (
	"context"
	"sync"
	"time"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/trace"
)

// OrderContext 在 Saga 流程中传递上下文数据。
// 所有外部依赖都是抽象接口，由应用服务注入。
type OrderContext struct {
	Ctx             context.Context
	Order           *domain.Order // 从仓储加载的订单，由各个步骤修改
	ExpectedVersion int64         // 持久化时的乐观锁版本
	Tracer          trace.Tracer
	Now             func() time.Time

	// 依赖出站端口
	Reservations port.ReservationService
	Repo         domain.OrderRepository
	Pending      port.PendingReservationStore
	Publisher    port.OrderEventPublisher

	// Result 由预留步骤写入，后续步骤据此决定订单状态
	Result port.ReservationResult

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 注册补偿操作，后注册的先执行
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 执行所有已注册的补偿操作，每个补偿最多执行一次
func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	comps := c.compensations
	c.compensations = nil
	c.compLock.Unlock()

	logger.Ctx(ctx).Warn().
		Str("order_number", c.Order.OrderNumber).
		Int("compensations", len(comps)).
		Msg("executing saga compensations")
	for _, comp := range comps {
		comp(ctx)
	}
}

func (c *OrderContext) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Handler 是责任链中的一个步骤
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
