package interfaces

import (
	"time"

	"fulfillment/internal/service/product/domain"
)

type createProductBody struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
}

type productResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Price          float64   `json:"price"`
	Categories     []string  `json:"categories"`
	Tags           []string  `json:"tags"`
	AvailableCount int       `json:"availableCount"`
	TotalCount     int       `json:"totalCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toProductResponse(p *domain.Product, available, total int) productResponse {
	return productResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Categories:     nonNil(p.Categories),
		Tags:           nonNil(p.Tags),
		AvailableCount: available,
		TotalCount:     total,
		CreatedAt:      p.CreatedAt,
	}
}

type addItemBody struct {
	SerialNumber string `json:"serialNumber"`
}

type itemResponse struct {
	ID                     string     `json:"id"`
	ProductRef             string     `json:"productRef"`
	SerialNumber           string     `json:"serialNumber"`
	Availability           string     `json:"availability"`
	ReservationTimeDate    *time.Time `json:"reservationTimeDate,omitempty"`
	ReservationOrderNumber string     `json:"reservationOrderNumber,omitempty"`
}

func toItemResponse(i *domain.ItemInstance) itemResponse {
	return itemResponse{
		ID:                     i.ID,
		ProductRef:             i.ProductRef,
		SerialNumber:           i.SerialNumber,
		Availability:           string(i.Availability),
		ReservationTimeDate:    i.ReservationTimeDate,
		ReservationOrderNumber: i.ReservationOrderNumber,
	}
}

// ReserveItemsRequest 是 order-service 发来的预留请求
type ReserveItemsRequest struct {
	OrderNumber  string            `json:"orderNumber"`
	OrderVersion int64             `json:"orderVersion"`
	Items        []ReserveItemLine `json:"items"`
}

type ReserveItemLine struct {
	ItemRef string `json:"itemRef"`
	Count   int    `json:"count"`
}

func (r ReserveItemsRequest) toDomain() domain.ReservationRequest {
	lines := make([]domain.ReservationLine, len(r.Items))
	for i, it := range r.Items {
		lines[i] = domain.ReservationLine{ProductRef: it.ItemRef, Count: it.Count}
	}
	return domain.ReservationRequest{OrderNumber: r.OrderNumber, OrderVersion: r.OrderVersion, Lines: lines}
}

type ReserveItemsResponse struct {
	ReservedInstanceIDs []string `json:"reservedInstanceIds"`
}

// UnlockItemsRequest 未携带 upToVersion 时无条件释放
type UnlockItemsRequest struct {
	OrderNumber string `json:"orderNumber"`
	UpToVersion *int64 `json:"upToVersion,omitempty"`
}

type fieldErrorBody struct {
	FieldName    string `json:"fieldName"`
	ErrorMessage string `json:"errorMessage"`
}

type errorBody struct {
	ErrorMessage string           `json:"errorMessage"`
	Errors       []fieldErrorBody `json:"errors"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
