package port

import (
	"context"

	"fulfillment/internal/service/order/domain"
)

// ReservationOutcome 远程预留调用的四种结果
type ReservationOutcome string

const (
	OutcomeSuccess           ReservationOutcome = "SUCCESS"
	OutcomeBusinessRejection ReservationOutcome = "BUSINESS_REJECTION" // 4xx，库存不足等
	OutcomeUnavailable       ReservationOutcome = "UNAVAILABLE"        // 熔断器打开，未发出请求
	OutcomeTransportFailure  ReservationOutcome = "TRANSPORT_FAILURE"  // 重试耗尽
)

type ReservationResult struct {
	Outcome             ReservationOutcome
	ReservedInstanceIDs []string
	Reason              string
}

// AnyVersion 作为 Unlock 的版本上限时，不论预留属于哪个订单版本都释放
const AnyVersion int64 = -1

// ReservationService 是调用 product-service 预留接口的出站端口。
// Reserve 从不返回原始的传输错误，所有情况都归类到 ReservationResult 中。
// orderVersion 是发起 accept 时的订单版本，预留记住见过的最高版本；
// Unlock 只释放版本不高于 upToVersion 的预留。
type ReservationService interface {
	Reserve(ctx context.Context, orderNumber string, orderVersion int64, lines []domain.OrderLine) ReservationResult
	Unlock(ctx context.Context, orderNumber string, upToVersion int64) error
}
