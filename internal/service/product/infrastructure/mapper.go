package infrastructure

import "fulfillment/internal/service/product/domain"

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Categories:  m.Categories,
		Tags:        m.Tags,
		CreatedAt:   m.CreatedAt,
	}
}

func fromDomainProduct(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Categories:  p.Categories,
		Tags:        p.Tags,
		CreatedAt:   p.CreatedAt,
	}
}

func toDomainItem(m *ItemInstanceModel) *domain.ItemInstance {
	return &domain.ItemInstance{
		ID:                     m.ID,
		ProductRef:             m.ProductRef,
		SerialNumber:           m.SerialNumber,
		Availability:           domain.Availability(m.Availability),
		ReservationTimeDate:    m.ReservationTimeDate,
		ReservationOrderNumber: m.ReservationOrderNumber,
		UpdatedAt:              m.UpdatedAt,
	}
}

func fromDomainItem(i *domain.ItemInstance) *ItemInstanceModel {
	return &ItemInstanceModel{
		ID:                     i.ID,
		ProductRef:             i.ProductRef,
		SerialNumber:           i.SerialNumber,
		Availability:           string(i.Availability),
		ReservationTimeDate:    i.ReservationTimeDate,
		ReservationOrderNumber: i.ReservationOrderNumber,
		UpdatedAt:              i.UpdatedAt,
	}
}

func toDomainReservation(m *ReservationModel) *domain.Reservation {
	return &domain.Reservation{
		ID:             m.ID,
		OrderNumber:    m.OrderNumber,
		OrderVersion:   m.OrderVersion,
		ProductItemIDs: m.ProductItemIDs,
		Date:           m.Date,
		Status:         domain.ReservationStatus(m.Status),
		ReleasedAt:     m.ReleasedAt,
	}
}

func fromDomainReservation(r *domain.Reservation) *ReservationModel {
	m := &ReservationModel{
		ID:             r.ID,
		OrderNumber:    r.OrderNumber,
		OrderVersion:   r.OrderVersion,
		ProductItemIDs: r.ProductItemIDs,
		Date:           r.Date,
		Status:         string(r.Status),
		ReleasedAt:     r.ReleasedAt,
	}
	if r.IsActive() {
		orderNumber := r.OrderNumber
		m.ActiveOrderNumber = &orderNumber
	}
	return m
}
