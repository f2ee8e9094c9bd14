// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// OrderLine 订单行，ItemRef 指向 product-service 中的商品
type OrderLine struct {
	ItemRef  string
	Count    int
	ItemName string // 仅用于展示
}

type Address struct {
	AddressLine1 string
	AddressLine2 string
	City         string
	Country      string
}

// Order 是订单聚合的根实体。
// Version 由仓储在每次持久化时递增，用于乐观并发控制。
type Order struct {
	ID          string
	OrderNumber string
	Version     int64
	State       State
	Items       []OrderLine
	Address     Address
	Reason      string // 最近一次失效的原因
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateDraft 校验订单行和地址
func ValidateDraft(items []OrderLine, addr Address) error {
	verr := &ValidationError{}
	if len(items) == 0 {
		verr.add("orderItems", "must not be empty")
	}
	for i, it := range items {
		if strings.TrimSpace(it.ItemRef) == "" {
			verr.add(fmt.Sprintf("orderItems[%d].itemRef", i), "must not be blank")
		}
		if it.Count < 1 {
			verr.add(fmt.Sprintf("orderItems[%d].count", i), "must be greater than or equal to 1")
		}
	}
	if strings.TrimSpace(addr.AddressLine1) == "" {
		verr.add("address.addressLine1", "must not be blank")
	}
	if strings.TrimSpace(addr.City) == "" {
		verr.add("address.city", "must not be blank")
	}
	if strings.TrimSpace(addr.Country) == "" {
		verr.add("address.country", "must not be blank")
	}
	return verr.orNil()
}

// NewDraft 工厂函数: 创建一个 DRAFT 状态、version 为 0 的订单
func NewDraft(items []OrderLine, addr Address, now time.Time) (*Order, error) {
	if err := ValidateDraft(items, addr); err != nil {
		return nil, err
	}
	return &Order{
		ID:          uuid.NewString(),
		OrderNumber: uuid.NewString(),
		Version:     0,
		State:       StateDraft,
		Items:       append([]OrderLine(nil), items...),
		Address:     addr,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Revise 覆盖订单行和地址，只允许在 DRAFT 状态下进行
func (o *Order) Revise(items []OrderLine, addr Address, now time.Time) error {
	if o.State != StateDraft {
		return errors.Wrapf(ErrInvalidStateTransition, "cannot update order in state %s", o.State)
	}
	if err := ValidateDraft(items, addr); err != nil {
		return err
	}
	o.Items = append([]OrderLine(nil), items...)
	o.Address = addr
	o.UpdatedAt = now
	return nil
}

// CheckAcceptable DRAFT 和 INVALID 都可以（重新）发起预留，ACCEPTED 不行
func (o *Order) CheckAcceptable() error {
	if o.State == StateAccepted {
		return errors.Wrapf(ErrInvalidStateTransition, "order %s is already accepted", o.OrderNumber)
	}
	return nil
}

// Accept 预留成功
func (o *Order) Accept(now time.Time) error {
	if err := o.CheckAcceptable(); err != nil {
		return err
	}
	o.State = StateAccepted
	o.Reason = ""
	o.UpdatedAt = now
	return nil
}

// Invalidate 预留失败，订单保留并记录原因
func (o *Order) Invalidate(reason string, now time.Time) {
	o.State = StateInvalid
	o.Reason = reason
	o.UpdatedAt = now
}

// TotalCount 所有订单行的数量之和
func (o *Order) TotalCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Count
	}
	return n
}

// Clone 深拷贝，仓储返回副本时使用
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = append([]OrderLine(nil), o.Items...)
	return &cp
}
