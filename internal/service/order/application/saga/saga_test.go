package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"
	"fulfillment/internal/service/order/infrastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type fakeReservations struct {
	ReserveFunc func(ctx context.Context, orderNumber string, lines []domain.OrderLine) port.ReservationResult
	UnlockFunc  func(ctx context.Context, orderNumber string) error

	reservedAt   []int64
	unlocked     []string
	unlockedUpTo []int64
}

func (f *fakeReservations) Reserve(ctx context.Context, orderNumber string, orderVersion int64, lines []domain.OrderLine) port.ReservationResult {
	f.reservedAt = append(f.reservedAt, orderVersion)
	return f.ReserveFunc(ctx, orderNumber, lines)
}

func (f *fakeReservations) Unlock(ctx context.Context, orderNumber string, upToVersion int64) error {
	f.unlocked = append(f.unlocked, orderNumber)
	f.unlockedUpTo = append(f.unlockedUpTo, upToVersion)
	if f.UnlockFunc != nil {
		return f.UnlockFunc(ctx, orderNumber)
	}
	return nil
}

type fakePublisher struct {
	events []*domain.OrderOutcomeEvent
	err    error
}

func (p *fakePublisher) PublishOrderOutcome(_ context.Context, e *domain.OrderOutcomeEvent) error {
	p.events = append(p.events, e)
	return p.err
}

// conflictRepo 模拟持久化时版本冲突
type conflictRepo struct {
	domain.OrderRepository
}

func (conflictRepo) Update(context.Context, *domain.Order, int64) error {
	return domain.ErrOrderNotFound
}

func buildChain() Handler {
	chain := new(ReserveInventoryHandler)
	chain.SetNext(new(ConfirmOrderHandler)).SetNext(new(PublishOutcomeHandler))
	return chain
}

func setup(t *testing.T, res *fakeReservations) (*OrderContext, *infrastructure.MemoryOrderRepository, *infrastructure.MemoryPendingStore, *fakePublisher) {
	t.Helper()
	repo := infrastructure.NewMemoryOrderRepository()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o, err := domain.NewDraft([]domain.OrderLine{{ItemRef: "P1", Count: 1}}, domain.Address{AddressLine1: "a", City: "c", Country: "DE"}, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), o))

	pending := infrastructure.NewMemoryPendingStore()
	pub := &fakePublisher{}
	return &OrderContext{
		Ctx:             context.Background(),
		Order:           o.Clone(),
		ExpectedVersion: o.Version,
		Tracer:          noop.NewTracerProvider().Tracer("test"),
		Now:             func() time.Time { return now },
		Reservations:    res,
		Repo:            repo,
		Pending:         pending,
		Publisher:       pub,
	}, repo, pending, pub
}

func TestChainOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		result      port.ReservationResult
		wantState   domain.State
		wantPending bool
	}{
		{"success", port.ReservationResult{Outcome: port.OutcomeSuccess, ReservedInstanceIDs: []string{"i1"}}, domain.StateAccepted, false},
		{"business rejection", port.ReservationResult{Outcome: port.OutcomeBusinessRejection, Reason: "not enough"}, domain.StateInvalid, false},
		{"unavailable", port.ReservationResult{Outcome: port.OutcomeUnavailable, Reason: "open"}, domain.StateInvalid, false},
		{"transport failure", port.ReservationResult{Outcome: port.OutcomeTransportFailure, Reason: "timeout"}, domain.StateInvalid, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeReservations{ReserveFunc: func(context.Context, string, []domain.OrderLine) port.ReservationResult {
				return tt.result
			}}
			oc, repo, pending, pub := setup(t, res)

			require.NoError(t, buildChain().Handle(oc))

			stored, err := repo.FindByNumber(context.Background(), oc.Order.OrderNumber)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, stored.State)
			assert.Equal(t, int64(1), stored.Version)
			assert.Equal(t, tt.result.Reason, stored.Reason)

			members, err := pending.Members(context.Background())
			require.NoError(t, err)
			if tt.wantPending {
				assert.Equal(t, []string{oc.Order.OrderNumber}, members)
			} else {
				assert.Empty(t, members)
			}

			require.Len(t, pub.events, 1)
			assert.Equal(t, tt.wantState, pub.events[0].State)
			assert.Equal(t, int64(1), pub.events[0].Version)
			assert.Empty(t, res.unlocked)
		})
	}
}

func TestChainCompensatesWhenAcceptCannotBePersisted(t *testing.T) {
	res := &fakeReservations{ReserveFunc: func(context.Context, string, []domain.OrderLine) port.ReservationResult {
		return port.ReservationResult{Outcome: port.OutcomeSuccess, ReservedInstanceIDs: []string{"i1"}}
	}}
	oc, repo, _, pub := setup(t, res)
	oc.Repo = conflictRepo{OrderRepository: repo}

	err := buildChain().Handle(oc)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Equal(t, []string{oc.Order.OrderNumber}, res.unlocked)
	// 补偿只释放本次 accept 版本建立的预留
	assert.Equal(t, []int64{oc.ExpectedVersion}, res.reservedAt)
	assert.Equal(t, []int64{oc.ExpectedVersion}, res.unlockedUpTo)
	assert.Empty(t, pub.events)

	// 补偿只会执行一次
	oc.TriggerCompensation(context.Background())
	assert.Len(t, res.unlocked, 1)
}

func TestFailedCompensationIsRecordedForReconcile(t *testing.T) {
	res := &fakeReservations{
		ReserveFunc: func(context.Context, string, []domain.OrderLine) port.ReservationResult {
			return port.ReservationResult{Outcome: port.OutcomeSuccess}
		},
		UnlockFunc: func(context.Context, string) error { return errors.New("connection refused") },
	}
	oc, repo, pending, _ := setup(t, res)
	oc.Repo = conflictRepo{OrderRepository: repo}

	require.Error(t, buildChain().Handle(oc))
	members, err := pending.Members(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{oc.Order.OrderNumber}, members)
}

func TestPublishFailureDoesNotFailChain(t *testing.T) {
	res := &fakeReservations{ReserveFunc: func(context.Context, string, []domain.OrderLine) port.ReservationResult {
		return port.ReservationResult{Outcome: port.OutcomeSuccess}
	}}
	oc, _, _, pub := setup(t, res)
	pub.err = errors.New("broker down")

	require.NoError(t, buildChain().Handle(oc))
	assert.Equal(t, domain.StateAccepted, oc.Order.State)
}

func TestCompensationOrderIsLIFO(t *testing.T) {
	oc := &OrderContext{Order: &domain.Order{OrderNumber: "O1"}}
	var got []int
	oc.AddCompensation(func(context.Context) { got = append(got, 1) })
	oc.AddCompensation(func(context.Context) { got = append(got, 2) })
	oc.TriggerCompensation(context.Background())
	assert.Equal(t, []int{2, 1}, got)
}

// ctxAwareRepo 和 gorm 一样，context 取消后拒绝写入
type ctxAwareRepo struct {
	domain.OrderRepository
}

func (r ctxAwareRepo) Update(ctx context.Context, o *domain.Order, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.OrderRepository.Update(ctx, o, expectedVersion)
}

type ctxAwarePending struct {
	port.PendingReservationStore
}

func (p ctxAwarePending) Add(ctx context.Context, orderNumber string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.PendingReservationStore.Add(ctx, orderNumber)
}

func TestOutcomePersistedWhenCallerCancelsDuringReserve(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := &fakeReservations{ReserveFunc: func(context.Context, string, []domain.OrderLine) port.ReservationResult {
		cancel()
		return port.ReservationResult{Outcome: port.OutcomeTransportFailure, Reason: "context canceled"}
	}}
	oc, repo, pending, _ := setup(t, res)
	oc.Ctx = ctx
	oc.Repo = ctxAwareRepo{OrderRepository: repo}
	oc.Pending = ctxAwarePending{PendingReservationStore: pending}

	require.NoError(t, buildChain().Handle(oc))

	stored, err := repo.FindByNumber(context.Background(), oc.Order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInvalid, stored.State)
	assert.Equal(t, int64(1), stored.Version)

	members, err := pending.Members(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{oc.Order.OrderNumber}, members)
}
