package infrastructure

import (
	"context"
	"sync"
	"time"

	"fulfillment/internal/service/product/domain"
)

// MemoryLedgerRepository 内存版账本，storage=memory 以及测试使用。
// 事务对整个状态做快照，成功后整体替换；事务期间持有存储锁。
type MemoryLedgerRepository struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{state: newMemoryState()}
}

type memoryState struct {
	products     map[string]*domain.Product
	items        map[string]*domain.ItemInstance
	itemsByRef   map[string][]string // 按入库顺序
	serials      map[string]string   // productRef + "/" + serial -> item id
	reservations map[string]*domain.Reservation
	active       map[string]string // orderNumber -> reservation id
}

func newMemoryState() *memoryState {
	return &memoryState{
		products:     map[string]*domain.Product{},
		items:        map[string]*domain.ItemInstance{},
		itemsByRef:   map[string][]string{},
		serials:      map[string]string{},
		reservations: map[string]*domain.Reservation{},
		active:       map[string]string{},
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.items {
		item := *v
		c.items[k] = &item
	}
	for k, v := range s.itemsByRef {
		c.itemsByRef[k] = append([]string(nil), v...)
	}
	for k, v := range s.serials {
		c.serials[k] = v
	}
	for k, v := range s.reservations {
		r := *v
		c.reservations[k] = &r
	}
	for k, v := range s.active {
		c.active[k] = v
	}
	return c
}

func (r *MemoryLedgerRepository) do(fn func(tx *memoryTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&memoryTx{state: r.state})
}

func (r *MemoryLedgerRepository) WithTx(ctx context.Context, fn func(repo domain.LedgerRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.clone()
	if err := fn(&memoryTx{state: snapshot}); err != nil {
		return err
	}
	r.state = snapshot
	return nil
}

func (r *MemoryLedgerRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	return r.do(func(tx *memoryTx) error { return tx.CreateProduct(ctx, p) })
}

func (r *MemoryLedgerRepository) FindProduct(ctx context.Context, id string) (p *domain.Product, err error) {
	err = r.do(func(tx *memoryTx) error {
		p, err = tx.FindProduct(ctx, id)
		return err
	})
	return p, err
}

func (r *MemoryLedgerRepository) CountItems(ctx context.Context, productRef string) (available, total int, err error) {
	err = r.do(func(tx *memoryTx) error {
		available, total, err = tx.CountItems(ctx, productRef)
		return err
	})
	return available, total, err
}

func (r *MemoryLedgerRepository) AddItem(ctx context.Context, item *domain.ItemInstance) error {
	return r.do(func(tx *memoryTx) error { return tx.AddItem(ctx, item) })
}

func (r *MemoryLedgerRepository) FindItem(ctx context.Context, id string) (item *domain.ItemInstance, err error) {
	err = r.do(func(tx *memoryTx) error {
		item, err = tx.FindItem(ctx, id)
		return err
	})
	return item, err
}

func (r *MemoryLedgerRepository) ListAvailable(ctx context.Context, productRef string, limit int) (items []*domain.ItemInstance, err error) {
	err = r.do(func(tx *memoryTx) error {
		items, err = tx.ListAvailable(ctx, productRef, limit)
		return err
	})
	return items, err
}

func (r *MemoryLedgerRepository) MarkReserved(ctx context.Context, ids []string, orderNumber string, at time.Time) (n int64, err error) {
	err = r.do(func(tx *memoryTx) error {
		n, err = tx.MarkReserved(ctx, ids, orderNumber, at)
		return err
	})
	return n, err
}

func (r *MemoryLedgerRepository) MarkAvailable(ctx context.Context, ids []string, orderNumber string, at time.Time) (n int64, err error) {
	err = r.do(func(tx *memoryTx) error {
		n, err = tx.MarkAvailable(ctx, ids, orderNumber, at)
		return err
	})
	return n, err
}

func (r *MemoryLedgerRepository) CreateReservation(ctx context.Context, res *domain.Reservation) error {
	return r.do(func(tx *memoryTx) error { return tx.CreateReservation(ctx, res) })
}

func (r *MemoryLedgerRepository) FindActiveReservation(ctx context.Context, orderNumber string) (res *domain.Reservation, err error) {
	err = r.do(func(tx *memoryTx) error {
		res, err = tx.FindActiveReservation(ctx, orderNumber)
		return err
	})
	return res, err
}

func (r *MemoryLedgerRepository) ClaimReservation(ctx context.Context, id string, orderVersion int64) error {
	return r.do(func(tx *memoryTx) error { return tx.ClaimReservation(ctx, id, orderVersion) })
}

func (r *MemoryLedgerRepository) ReleaseReservation(ctx context.Context, id string, at time.Time) error {
	return r.do(func(tx *memoryTx) error { return tx.ReleaseReservation(ctx, id, at) })
}

// memoryTx 直接操作某一份状态，调用方负责加锁
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) WithTx(_ context.Context, fn func(repo domain.LedgerRepository) error) error {
	return fn(t)
}

func (t *memoryTx) CreateProduct(_ context.Context, p *domain.Product) error {
	cp := *p
	t.state.products[p.ID] = &cp
	return nil
}

func (t *memoryTx) FindProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := t.state.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memoryTx) CountItems(_ context.Context, productRef string) (int, int, error) {
	ids := t.state.itemsByRef[productRef]
	available := 0
	for _, id := range ids {
		if t.state.items[id].IsAvailable() {
			available++
		}
	}
	return available, len(ids), nil
}

func (t *memoryTx) AddItem(_ context.Context, item *domain.ItemInstance) error {
	key := item.ProductRef + "/" + item.SerialNumber
	if _, dup := t.state.serials[key]; dup {
		return domain.ErrDuplicateSerialNumber
	}
	cp := *item
	t.state.items[item.ID] = &cp
	t.state.itemsByRef[item.ProductRef] = append(t.state.itemsByRef[item.ProductRef], item.ID)
	t.state.serials[key] = item.ID
	return nil
}

func (t *memoryTx) FindItem(_ context.Context, id string) (*domain.ItemInstance, error) {
	item, ok := t.state.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (t *memoryTx) ListAvailable(_ context.Context, productRef string, limit int) ([]*domain.ItemInstance, error) {
	var out []*domain.ItemInstance
	for _, id := range t.state.itemsByRef[productRef] {
		if len(out) >= limit {
			break
		}
		if item := t.state.items[id]; item.IsAvailable() {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memoryTx) MarkReserved(_ context.Context, ids []string, orderNumber string, at time.Time) (int64, error) {
	var n int64
	for _, id := range ids {
		if item, ok := t.state.items[id]; ok && item.Reserve(orderNumber, at) {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) MarkAvailable(_ context.Context, ids []string, orderNumber string, at time.Time) (int64, error) {
	var n int64
	for _, id := range ids {
		item, ok := t.state.items[id]
		if !ok || item.ReservationOrderNumber != orderNumber {
			continue
		}
		if item.Release(at) {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) CreateReservation(_ context.Context, res *domain.Reservation) error {
	if _, exists := t.state.active[res.OrderNumber]; exists && res.IsActive() {
		return domain.ErrReservationExists
	}
	cp := *res
	cp.ProductItemIDs = append([]string(nil), res.ProductItemIDs...)
	t.state.reservations[res.ID] = &cp
	if res.IsActive() {
		t.state.active[res.OrderNumber] = res.ID
	}
	return nil
}

func (t *memoryTx) FindActiveReservation(_ context.Context, orderNumber string) (*domain.Reservation, error) {
	id, ok := t.state.active[orderNumber]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	cp := *t.state.reservations[id]
	cp.ProductItemIDs = append([]string(nil), cp.ProductItemIDs...)
	return &cp, nil
}

func (t *memoryTx) ClaimReservation(_ context.Context, id string, orderVersion int64) error {
	res, ok := t.state.reservations[id]
	if !ok || !res.IsActive() {
		return domain.ErrReservationNotFound
	}
	res.Claim(orderVersion)
	return nil
}

func (t *memoryTx) ReleaseReservation(_ context.Context, id string, at time.Time) error {
	res, ok := t.state.reservations[id]
	if !ok || !res.IsActive() {
		return domain.ErrReservationNotFound
	}
	res.Release(at)
	delete(t.state.active, res.OrderNumber)
	return nil
}

var (
	_ domain.LedgerRepository = (*MemoryLedgerRepository)(nil)
	_ domain.LedgerRepository = (*memoryTx)(nil)
)
