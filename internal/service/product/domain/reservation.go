// internal/service/product/domain/reservation.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "ACTIVE"
	ReservationReleased ReservationStatus = "RELEASED"
)

// Reservation 订单与具体库存实例之间的绑定记录，只会被标记为 RELEASED，从不物理删除。
// OrderVersion 是最近一次建立或重放该预留的 accept 所持有的订单版本，只增不减。
type Reservation struct {
	ID             string
	OrderNumber    string
	OrderVersion   int64
	ProductItemIDs []string
	Date           time.Time
	Status         ReservationStatus
	ReleasedAt     *time.Time
}

func NewReservation(orderNumber string, orderVersion int64, itemIDs []string, at time.Time) *Reservation {
	return &Reservation{
		ID:             uuid.NewString(),
		OrderNumber:    orderNumber,
		OrderVersion:   orderVersion,
		ProductItemIDs: itemIDs,
		Date:           at,
		Status:         ReservationActive,
	}
}

func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// Claim 让更高版本的 accept 接管这条预留，返回版本是否发生变化
func (r *Reservation) Claim(orderVersion int64) bool {
	if orderVersion <= r.OrderVersion {
		return false
	}
	r.OrderVersion = orderVersion
	return true
}

// ReleasableUpTo 预留只能被不低于其版本的释放请求释放
func (r *Reservation) ReleasableUpTo(orderVersion int64) bool {
	return r.OrderVersion <= orderVersion
}

// Release 幂等
func (r *Reservation) Release(at time.Time) {
	if !r.IsActive() {
		return
	}
	t := at
	r.Status = ReservationReleased
	r.ReleasedAt = &t
}

// ReservationLine 请求某个商品的 N 个单位
type ReservationLine struct {
	ProductRef string
	Count      int
}

// ReservationRequest reserve 的输入
type ReservationRequest struct {
	OrderNumber  string
	OrderVersion int64
	Lines        []ReservationLine
}

// Validate 校验请求字段
func (r ReservationRequest) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(r.OrderNumber) == "" {
		verr.Add("orderNumber", "must not be blank")
	}
	if r.OrderVersion < 0 {
		verr.Add("orderVersion", "must be greater than or equal to 0")
	}
	if len(r.Lines) == 0 {
		verr.Add("items", "must not be empty")
	}
	for _, l := range r.Lines {
		if strings.TrimSpace(l.ProductRef) == "" {
			verr.Add("items.itemRef", "must not be blank")
		}
		if l.Count < 1 {
			verr.Add("items.count", "must be greater than or equal to 1")
		}
	}
	return verr.OrNil()
}

// Merged 合并相同商品的行，保持每个商品第一次出现的顺序。
// 分配按这个顺序进行，返回的实例 ID 因此和请求行一一对应。
func (r ReservationRequest) Merged() []ReservationLine {
	index := make(map[string]int, len(r.Lines))
	merged := make([]ReservationLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		if i, ok := index[l.ProductRef]; ok {
			merged[i].Count += l.Count
			continue
		}
		index[l.ProductRef] = len(merged)
		merged = append(merged, l)
	}
	return merged
}
