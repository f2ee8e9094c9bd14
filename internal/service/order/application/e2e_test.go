package application_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/httpclient"
	"fulfillment/internal/service/order/application"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"
	"fulfillment/internal/service/order/infrastructure"
	"fulfillment/internal/service/order/infrastructure/adapter"
	productapp "fulfillment/internal/service/product/application"
	productinfra "fulfillment/internal/service/product/infrastructure"
	"fulfillment/internal/service/product/infrastructure/lock"
	productapi "fulfillment/internal/service/product/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// 两个服务都跑在进程内，order-service 通过真实的 HTTP 客户端调用 product-service
func TestAcceptOrderAgainstProductService(t *testing.T) {
	ctx := context.Background()
	tracer := noop.NewTracerProvider().Tracer("test")

	ledger := productinfra.NewMemoryLedgerRepository()
	catalog := productapp.NewCatalogService(ledger, tracer)
	engine := productapp.NewReservationEngine(ledger, lock.NewLocalLocker(), tracer)
	mux := http.NewServeMux()
	productapi.NewProductHandler(catalog, engine, tracer, "user", "password").RegisterRoutes(mux)
	productSrv := httptest.NewServer(mux)
	defer productSrv.Close()

	cfg := bootstrap.DefaultConfig("order-service").Order.Reservation
	retry := adapter.NewReservationRetry(cfg.Retry)
	retry.Sleep = func(context.Context, time.Duration) error { return nil }
	client := adapter.NewReservationHTTPAdapter(
		httpclient.NewClient(tracer),
		adapter.StaticEndpoint(productSrv.URL),
		adapter.NewReservationBreaker(cfg.Breaker),
		retry,
		cfg,
	)

	repo := infrastructure.NewMemoryOrderRepository()
	pending := infrastructure.NewMemoryPendingStore()
	svc := application.NewOrderApplicationService(repo, client, pending, infrastructure.NoopPublisher{}, tracer)

	product, err := catalog.CreateProduct(ctx, productapp.CreateProductRequest{Name: "keyboard", Price: 49.9})
	require.NoError(t, err)

	draft, err := svc.PlaceOrderDraft(ctx, application.DraftOrderRequest{
		Items:   []domain.OrderLine{{ItemRef: product.ID, Count: 1, ItemName: "keyboard"}},
		Address: domain.Address{AddressLine1: "Main St 1", City: "Berlin", Country: "DE"},
	})
	require.NoError(t, err)

	// 没有库存 -> INVALID
	invalid, err := svc.AcceptOrder(ctx, draft.OrderNumber, draft.Version)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInvalid, invalid.State)
	assert.Equal(t, int64(1), invalid.Version)
	assert.Contains(t, invalid.Reason, "not enough")

	// 入库后用新版本重试 -> ACCEPTED
	item, err := catalog.AddItemInstance(ctx, product.ID, "SN-1")
	require.NoError(t, err)

	accepted, err := svc.AcceptOrder(ctx, draft.OrderNumber, invalid.Version)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAccepted, accepted.State)
	assert.Equal(t, int64(2), accepted.Version)

	got, err := catalog.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable())
	assert.Equal(t, draft.OrderNumber, got.ReservationOrderNumber)

	members, err := pending.Members(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)

	// unlock 之后实例重新可用
	require.NoError(t, client.Unlock(ctx, draft.OrderNumber, port.AnyVersion))
	got, err = catalog.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable())
}

// lostResponses 让 product-service 照常处理 reserve，但把响应替换成 500，
// 模拟请求已生效而调用方没收到结果
type lostResponses struct {
	next http.Handler
	drop atomic.Bool
}

func (l *lostResponses) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if l.drop.Load() && strings.HasSuffix(r.URL.Path, "/reserve") {
		l.next.ServeHTTP(httptest.NewRecorder(), r)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	l.next.ServeHTTP(w, r)
}

// beforeUnlock 在转发 unlock 之前执行一次回调
type beforeUnlock struct {
	port.ReservationService
	hook func()
}

func (b *beforeUnlock) Unlock(ctx context.Context, orderNumber string, upToVersion int64) error {
	if b.hook != nil {
		hook := b.hook
		b.hook = nil
		hook()
	}
	return b.ReservationService.Unlock(ctx, orderNumber, upToVersion)
}

func TestReconcileKeepsReservationOfConcurrentAccept(t *testing.T) {
	ctx := context.Background()
	tracer := noop.NewTracerProvider().Tracer("test")

	ledger := productinfra.NewMemoryLedgerRepository()
	catalog := productapp.NewCatalogService(ledger, tracer)
	engine := productapp.NewReservationEngine(ledger, lock.NewLocalLocker(), tracer)
	mux := http.NewServeMux()
	productapi.NewProductHandler(catalog, engine, tracer, "user", "password").RegisterRoutes(mux)
	flaky := &lostResponses{next: mux}
	productSrv := httptest.NewServer(flaky)
	defer productSrv.Close()

	cfg := bootstrap.DefaultConfig("order-service").Order.Reservation
	retry := adapter.NewReservationRetry(cfg.Retry)
	retry.Sleep = func(context.Context, time.Duration) error { return nil }
	client := &beforeUnlock{ReservationService: adapter.NewReservationHTTPAdapter(
		httpclient.NewClient(tracer),
		adapter.StaticEndpoint(productSrv.URL),
		adapter.NewReservationBreaker(cfg.Breaker),
		retry,
		cfg,
	)}

	repo := infrastructure.NewMemoryOrderRepository()
	pending := infrastructure.NewMemoryPendingStore()
	svc := application.NewOrderApplicationService(repo, client, pending, infrastructure.NoopPublisher{}, tracer)

	product, err := catalog.CreateProduct(ctx, productapp.CreateProductRequest{Name: "mouse", Price: 19.9})
	require.NoError(t, err)
	item, err := catalog.AddItemInstance(ctx, product.ID, "SN-1")
	require.NoError(t, err)

	draft, err := svc.PlaceOrderDraft(ctx, application.DraftOrderRequest{
		Items:   []domain.OrderLine{{ItemRef: product.ID, Count: 1}},
		Address: domain.Address{AddressLine1: "Main St 1", City: "Berlin", Country: "DE"},
	})
	require.NoError(t, err)

	// 预留在服务端生效，但 order-service 只看到传输失败
	flaky.drop.Store(true)
	invalid, err := svc.AcceptOrder(ctx, draft.OrderNumber, draft.Version)
	require.NoError(t, err)
	require.Equal(t, domain.StateInvalid, invalid.State)
	flaky.drop.Store(false)

	got, err := catalog.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.False(t, got.IsAvailable())

	// 对账提升版本之后、unlock 之前，用户以新版本重试 accept
	var concurrent *domain.Order
	client.hook = func() {
		current, err := repo.FindByNumber(ctx, draft.OrderNumber)
		require.NoError(t, err)
		concurrent, err = svc.AcceptOrder(ctx, draft.OrderNumber, current.Version)
		require.NoError(t, err)
	}

	report, err := svc.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Released)

	require.NotNil(t, concurrent)
	assert.Equal(t, domain.StateAccepted, concurrent.State)
	stored, err := repo.FindByNumber(ctx, draft.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAccepted, stored.State)

	got, err = catalog.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable(), "accepted order keeps its reservation")
	assert.Equal(t, draft.OrderNumber, got.ReservationOrderNumber)
}
