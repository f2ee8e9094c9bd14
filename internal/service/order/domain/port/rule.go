package port

import "fulfillment/internal/service/order/domain"

// DraftRule 在草稿创建和修改时校验订单，返回 false 表示拒绝。
// String 返回规则的表达式，用于错误信息。
type DraftRule interface {
	Evaluate(order *domain.Order) (bool, error)
	String() string
}
