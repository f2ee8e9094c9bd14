// internal/service/order/application/dto.go
package application

import "fulfillment/internal/service/order/domain"

// DraftOrderRequest 是创建/修改草稿用例的输入数据
type DraftOrderRequest struct {
	Items   []domain.OrderLine
	Address domain.Address
}

// ReconcileReport 一轮对账的统计
type ReconcileReport struct {
	Released int // 调用 unlock 并移出集合
	Settled  int // 订单已 ACCEPTED，直接移出集合
	Failed   int // 出错，留到下一轮
}
