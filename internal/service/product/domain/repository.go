// internal/service/product/domain/repository.go
package domain

import (
	"context"
	"time"
)

// LedgerRepository 库存账本的持久化接口，由基础设施层实现。
// 在 WithTx 回调中使用传入的 repo，所有写操作要么全部生效，要么全部回滚。
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(repo LedgerRepository) error) error

	CreateProduct(ctx context.Context, p *Product) error
	FindProduct(ctx context.Context, id string) (*Product, error)
	// CountItems 返回 (可用数, 总数)
	CountItems(ctx context.Context, productRef string) (available, total int, err error)

	AddItem(ctx context.Context, item *ItemInstance) error
	FindItem(ctx context.Context, id string) (*ItemInstance, error)
	// ListAvailable 按入库顺序返回最多 limit 个 AVAILABLE 实例（事务内会加行锁）
	ListAvailable(ctx context.Context, productRef string, limit int) ([]*ItemInstance, error)
	// MarkReserved 仅翻转仍为 AVAILABLE 的实例，返回实际翻转的数量
	MarkReserved(ctx context.Context, ids []string, orderNumber string, at time.Time) (int64, error)
	// MarkAvailable 仅翻转由该订单预留的实例，返回实际翻转的数量
	MarkAvailable(ctx context.Context, ids []string, orderNumber string, at time.Time) (int64, error)

	// CreateReservation 同一订单已有 ACTIVE 预留时返回 ErrReservationExists
	CreateReservation(ctx context.Context, r *Reservation) error
	// FindActiveReservation 找不到时返回 ErrReservationNotFound（事务内会锁住该行）
	FindActiveReservation(ctx context.Context, orderNumber string) (*Reservation, error)
	// ClaimReservation 把 ACTIVE 预留的版本提升到 orderVersion，不会降低版本
	ClaimReservation(ctx context.Context, id string, orderVersion int64) error
	ReleaseReservation(ctx context.Context, id string, at time.Time) error
}
