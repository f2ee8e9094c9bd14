package infrastructure

import (
	"context"
	"sync"

	"fulfillment/internal/service/order/domain"
)

// MemoryOrderRepository 内存版订单仓储，storage=memory 以及测试使用
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

var _ domain.OrderRepository = (*MemoryOrderRepository)(nil)

func (r *MemoryOrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.OrderNumber] = order.Clone()
	return nil
}

func (r *MemoryOrderRepository) FindByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[orderNumber]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) FindByNumberAndVersion(ctx context.Context, orderNumber string, version int64) (*domain.Order, error) {
	o, err := r.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Version != version {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (r *MemoryOrderRepository) Update(_ context.Context, order *domain.Order, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[order.OrderNumber]
	if !ok || current.Version != expectedVersion {
		return domain.ErrOrderNotFound
	}
	order.Version = expectedVersion + 1
	r.orders[order.OrderNumber] = order.Clone()
	return nil
}

func (r *MemoryOrderRepository) Delete(_ context.Context, orderNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[orderNumber]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.orders, orderNumber)
	return nil
}
