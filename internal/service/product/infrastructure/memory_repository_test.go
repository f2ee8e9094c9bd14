package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment/internal/service/product/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedItems(t *testing.T, repo *MemoryLedgerRepository, ref string, serials ...string) []string {
	t.Helper()
	ctx := context.Background()
	var ids []string
	for _, sn := range serials {
		item, err := domain.NewItemInstance(ref, sn, time.Now())
		require.NoError(t, err)
		require.NoError(t, repo.AddItem(ctx, item))
		ids = append(ids, item.ID)
	}
	return ids
}

func TestMemoryRepoRejectsDuplicateSerial(t *testing.T) {
	repo := NewMemoryLedgerRepository()
	seedItems(t, repo, "P1", "SN-1")

	dup, err := domain.NewItemInstance("P1", "SN-1", time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, repo.AddItem(context.Background(), dup), domain.ErrDuplicateSerialNumber)

	// 不同商品可以有相同序列号
	other, err := domain.NewItemInstance("P2", "SN-1", time.Now())
	require.NoError(t, err)
	assert.NoError(t, repo.AddItem(context.Background(), other))
}

func TestMemoryRepoListAvailableKeepsInsertionOrder(t *testing.T) {
	repo := NewMemoryLedgerRepository()
	ids := seedItems(t, repo, "P1", "c", "a", "b")
	ctx := context.Background()

	n, err := repo.MarkReserved(ctx, ids[:1], "O1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	items, err := repo.ListAvailable(ctx, "P1", 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, ids[1], items[0].ID)
	assert.Equal(t, ids[2], items[1].ID)

	available, total, err := repo.CountItems(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 2, available)
	assert.Equal(t, 3, total)
}

func TestMemoryRepoMarkReservedIsConditional(t *testing.T) {
	repo := NewMemoryLedgerRepository()
	ids := seedItems(t, repo, "P1", "1", "2")
	ctx := context.Background()

	n, err := repo.MarkReserved(ctx, ids, "O1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.MarkReserved(ctx, ids, "O2", time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	// 只能由持有者释放
	n, err = repo.MarkAvailable(ctx, ids, "O2", time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = repo.MarkAvailable(ctx, ids, "O1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryRepoTxRollsBackOnError(t *testing.T) {
	repo := NewMemoryLedgerRepository()
	ids := seedItems(t, repo, "P1", "1")
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx domain.LedgerRepository) error {
		if _, err := tx.MarkReserved(ctx, ids, "O1", time.Now()); err != nil {
			return err
		}
		if err := tx.CreateReservation(ctx, domain.NewReservation("O1", 0, ids, time.Now())); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	item, err := repo.FindItem(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, item.IsAvailable())
	_, err = repo.FindActiveReservation(ctx, "O1")
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func TestMemoryRepoOneActiveReservationPerOrder(t *testing.T) {
	repo := NewMemoryLedgerRepository()
	ctx := context.Background()
	first := domain.NewReservation("O1", 0, []string{"a"}, time.Now())
	require.NoError(t, repo.CreateReservation(ctx, first))
	assert.ErrorIs(t, repo.CreateReservation(ctx, domain.NewReservation("O1", 0, []string{"b"}, time.Now())), domain.ErrReservationExists)

	require.NoError(t, repo.ReleaseReservation(ctx, first.ID, time.Now()))
	assert.ErrorIs(t, repo.ReleaseReservation(ctx, first.ID, time.Now()), domain.ErrReservationNotFound)

	// 释放后可以重新预留
	assert.NoError(t, repo.CreateReservation(ctx, domain.NewReservation("O1", 0, []string{"c"}, time.Now())))
}

func TestMemoryRepoReturnsCopies(t *testing.T) {
	repo := NewMemoryLedgerRepository()
	ids := seedItems(t, repo, "P1", "1")
	ctx := context.Background()

	item, err := repo.FindItem(ctx, ids[0])
	require.NoError(t, err)
	item.Availability = domain.Reserved

	again, err := repo.FindItem(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, again.IsAvailable())
}
