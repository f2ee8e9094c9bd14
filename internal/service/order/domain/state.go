// internal/service/order/domain/state.go
package domain

// State 定义了订单的生命周期状态
type State string

const (
	StateDraft    State = "DRAFT"    // 草稿，库存尚未确认
	StateAccepted State = "ACCEPTED" // 库存预留成功
	StateInvalid  State = "INVALID"  // 库存无法确认，订单保留用于审计
)
