// internal/service/order/domain/event.go
package domain

import "time"

// OrderOutcomeEvent 每次 accept 之后发布，描述订单的最终状态
type OrderOutcomeEvent struct {
	OrderNumber         string    `json:"orderNumber"`
	Version             int64     `json:"version"`
	State               State     `json:"state"`
	Reason              string    `json:"reason,omitempty"`
	ReservedInstanceIDs []string  `json:"reservedInstanceIds,omitempty"`
	OccurredAt          time.Time `json:"occurredAt"`
}

// NewOrderOutcomeEvent 根据订单当前状态构造事件
func NewOrderOutcomeEvent(o *Order, reservedIDs []string, at time.Time) *OrderOutcomeEvent {
	return &OrderOutcomeEvent{
		OrderNumber:         o.OrderNumber,
		Version:             o.Version,
		State:               o.State,
		Reason:              o.Reason,
		ReservedInstanceIDs: reservedIDs,
		OccurredAt:          at,
	}
}
