package port

import "context"

// PendingReservationStore 记录预留结果未知（传输失败）的订单号，等待对账
type PendingReservationStore interface {
	Add(ctx context.Context, orderNumber string) error
	Members(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, orderNumber string) error
}
