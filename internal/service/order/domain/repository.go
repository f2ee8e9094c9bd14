// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error

	// FindByNumber 找不到时返回 ErrOrderNotFound
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindByNumberAndVersion 版本不匹配同样返回 ErrOrderNotFound
	FindByNumberAndVersion(ctx context.Context, orderNumber string, version int64) (*Order, error)

	// Update 仅当持久化的版本等于 expectedVersion 时写入，成功后 order.Version = expectedVersion+1；
	// 否则返回 ErrOrderNotFound。
	Update(ctx context.Context, order *Order, expectedVersion int64) error

	Delete(ctx context.Context, orderNumber string) error
}
