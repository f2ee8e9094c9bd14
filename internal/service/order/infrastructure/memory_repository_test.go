package infrastructure

import (
	"context"
	"testing"
	"time"

	"fulfillment/internal/service/order/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraft(t *testing.T) *domain.Order {
	t.Helper()
	o, err := domain.NewDraft(
		[]domain.OrderLine{{ItemRef: "P1", Count: 1}},
		domain.Address{AddressLine1: "1 Main St", City: "Berlin", Country: "DE"},
		time.Now(),
	)
	require.NoError(t, err)
	return o
}

func TestMemoryOrderRepositoryVersionGuard(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	o := newDraft(t)
	require.NoError(t, repo.Create(ctx, o))

	first, err := repo.FindByNumberAndVersion(ctx, o.OrderNumber, 0)
	require.NoError(t, err)
	second, err := repo.FindByNumberAndVersion(ctx, o.OrderNumber, 0)
	require.NoError(t, err)

	first.Invalidate("x", time.Now())
	require.NoError(t, repo.Update(ctx, first, 0))
	assert.Equal(t, int64(1), first.Version)

	// 第二个写入者拿着旧版本，必须失败
	second.Invalidate("y", time.Now())
	assert.ErrorIs(t, repo.Update(ctx, second, 0), domain.ErrOrderNotFound)
	assert.Equal(t, int64(0), second.Version)

	_, err = repo.FindByNumberAndVersion(ctx, o.OrderNumber, 0)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	stored, err := repo.FindByNumberAndVersion(ctx, o.OrderNumber, 1)
	require.NoError(t, err)
	assert.Equal(t, "x", stored.Reason)
}

func TestMemoryOrderRepositoryDelete(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	o := newDraft(t)
	require.NoError(t, repo.Create(ctx, o))

	require.NoError(t, repo.Delete(ctx, o.OrderNumber))
	assert.ErrorIs(t, repo.Delete(ctx, o.OrderNumber), domain.ErrOrderNotFound)
	_, err := repo.FindByNumber(ctx, o.OrderNumber)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMemoryPendingStore(t *testing.T) {
	s := NewMemoryPendingStore()
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "b"))
	require.NoError(t, s.Add(ctx, "a"))
	require.NoError(t, s.Add(ctx, "a"))

	members, err := s.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	require.NoError(t, s.Remove(ctx, "a"))
	members, err = s.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestMapperRoundTrip(t *testing.T) {
	o := newDraft(t)
	o.Items = append(o.Items, domain.OrderLine{ItemRef: "P2", Count: 2, ItemName: "Mouse"})
	m := fromDomainOrder(o)
	require.Len(t, m.Lines, 2)
	assert.Equal(t, 1, m.Lines[1].Position)
	assert.Equal(t, o.OrderNumber, m.Address.OrderNumber)

	back := toDomainOrder(m)
	assert.Equal(t, o.Items, back.Items)
	assert.Equal(t, o.Address, back.Address)
}
