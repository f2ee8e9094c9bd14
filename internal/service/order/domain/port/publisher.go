package port

import (
	"context"

	"fulfillment/internal/service/order/domain"
)

// OrderEventPublisher 发布订单结果事件
type OrderEventPublisher interface {
	PublishOrderOutcome(ctx context.Context, event *domain.OrderOutcomeEvent) error
}
