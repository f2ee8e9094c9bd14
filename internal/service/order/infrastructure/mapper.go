package infrastructure

import "fulfillment/internal/service/order/domain"

// toDomainOrder 将数据库模型转换为领域模型
func toDomainOrder(m *OrderModel) *domain.Order {
	items := make([]domain.OrderLine, len(m.Lines))
	for i, l := range m.Lines {
		items[i] = domain.OrderLine{ItemRef: l.ItemRef, Count: l.Count, ItemName: l.ItemName}
	}
	return &domain.Order{
		ID:          m.ID,
		OrderNumber: m.OrderNumber,
		Version:     m.Version,
		State:       domain.State(m.State),
		Items:       items,
		Address: domain.Address{
			AddressLine1: m.Address.AddressLine1,
			AddressLine2: m.Address.AddressLine2,
			City:         m.Address.City,
			Country:      m.Address.Country,
		},
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// fromDomainOrder 将领域模型转换为数据库模型（含订单行和地址）
func fromDomainOrder(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Version:     o.Version,
		State:       string(o.State),
		Reason:      o.Reason,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Lines:       fromDomainLines(o),
		Address:     fromDomainAddress(o),
	}
}

func fromDomainLines(o *domain.Order) []OrderLineModel {
	lines := make([]OrderLineModel, len(o.Items))
	for i, it := range o.Items {
		lines[i] = OrderLineModel{
			OrderNumber: o.OrderNumber,
			Position:    i,
			ItemRef:     it.ItemRef,
			Count:       it.Count,
			ItemName:    it.ItemName,
		}
	}
	return lines
}

func fromDomainAddress(o *domain.Order) OrderAddressModel {
	return OrderAddressModel{
		OrderNumber:  o.OrderNumber,
		AddressLine1: o.Address.AddressLine1,
		AddressLine2: o.Address.AddressLine2,
		City:         o.Address.City,
		Country:      o.Address.Country,
	}
}
