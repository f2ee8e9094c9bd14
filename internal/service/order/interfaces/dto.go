package interfaces

import (
	"time"

	"fulfillment/internal/service/order/application"
	"fulfillment/internal/service/order/domain"
)

type orderItemBody struct {
	ItemRef  string `json:"itemRef"`
	Count    int    `json:"count"`
	ItemName string `json:"itemName,omitempty"`
}

type addressBody struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	Country      string `json:"country"`
}

// draftOrderBody 创建和修改草稿共用的请求体
type draftOrderBody struct {
	OrderItems []orderItemBody `json:"orderItems"`
	Address    addressBody     `json:"address"`
}

func (b draftOrderBody) toRequest() application.DraftOrderRequest {
	items := make([]domain.OrderLine, len(b.OrderItems))
	for i, it := range b.OrderItems {
		items[i] = domain.OrderLine{ItemRef: it.ItemRef, Count: it.Count, ItemName: it.ItemName}
	}
	return application.DraftOrderRequest{
		Items: items,
		Address: domain.Address{
			AddressLine1: b.Address.AddressLine1,
			AddressLine2: b.Address.AddressLine2,
			City:         b.Address.City,
			Country:      b.Address.Country,
		},
	}
}

type orderResponse struct {
	OrderNumber string          `json:"orderNumber"`
	Version     int64           `json:"version"`
	State       domain.State    `json:"state"`
	OrderItems  []orderItemBody `json:"orderItems"`
	Address     addressBody     `json:"address"`
	Reason      string          `json:"reason,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := make([]orderItemBody, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemBody{ItemRef: it.ItemRef, Count: it.Count, ItemName: it.ItemName}
	}
	return orderResponse{
		OrderNumber: o.OrderNumber,
		Version:     o.Version,
		State:       o.State,
		OrderItems:  items,
		Address: addressBody{
			AddressLine1: o.Address.AddressLine1,
			AddressLine2: o.Address.AddressLine2,
			City:         o.Address.City,
			Country:      o.Address.Country,
		},
		Reason:    o.Reason,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

type fieldErrorBody struct {
	FieldName    string `json:"fieldName"`
	ErrorMessage string `json:"errorMessage"`
}

type errorBody struct {
	ErrorMessage string           `json:"errorMessage"`
	Errors       []fieldErrorBody `json:"errors"`
}
