// internal/service/product/domain/item.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Availability 单个库存实例的状态
type Availability string

const (
	Available Availability = "AVAILABLE"
	Reserved  Availability = "RESERVED"
)

// ItemInstance 一个可被单独预留的实物单元
type ItemInstance struct {
	ID                     string
	ProductRef             string
	SerialNumber           string
	Availability           Availability
	ReservationTimeDate    *time.Time
	ReservationOrderNumber string
	UpdatedAt              time.Time
}

// NewItemInstance 新入库的实例总是 AVAILABLE
func NewItemInstance(productRef, serialNumber string, now time.Time) (*ItemInstance, error) {
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		verr := &ValidationError{}
		verr.Add("serialNumber", "must not be blank")
		return nil, verr
	}
	return &ItemInstance{
		ID:           uuid.NewString(),
		ProductRef:   productRef,
		SerialNumber: serialNumber,
		Availability: Available,
		UpdatedAt:    now,
	}, nil
}

func (i *ItemInstance) IsAvailable() bool {
	return i.Availability == Available
}

// Reserve AVAILABLE -> RESERVED
func (i *ItemInstance) Reserve(orderNumber string, at time.Time) bool {
	if !i.IsAvailable() {
		return false
	}
	t := at
	i.Availability = Reserved
	i.ReservationTimeDate = &t
	i.ReservationOrderNumber = orderNumber
	i.UpdatedAt = at
	return true
}

// Release RESERVED -> AVAILABLE，同时清空预留时间和订单号
func (i *ItemInstance) Release(at time.Time) bool {
	if i.Availability != Reserved {
		return false
	}
	i.Availability = Available
	i.ReservationTimeDate = nil
	i.ReservationOrderNumber = ""
	i.UpdatedAt = at
	return true
}
