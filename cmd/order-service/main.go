// cmd/order-service/main.go
package main

import (
	"context"

	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/database"
	"fulfillment/internal/pkg/httpclient"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/pkg/nacos"
	"fulfillment/internal/pkg/redis"
	"fulfillment/internal/service/order/application"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"
	"fulfillment/internal/service/order/infrastructure"
	"fulfillment/internal/service/order/infrastructure/adapter"
	"fulfillment/internal/service/order/infrastructure/rule"
	"fulfillment/internal/service/order/interfaces"

	"github.com/rs/zerolog/log"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg := bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             cfg.App.Port,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(appCtx bootstrap.AppCtx) {
	cfg := appCtx.Config

	// 1. 仓储与对账集合
	repo, pending := buildStorage(appCtx)

	// 2. 订单结果事件
	var publisher port.OrderEventPublisher = infrastructure.NoopPublisher{}
	if len(cfg.Infra.Kafka.Brokers) > 0 {
		producer := infrastructure.NewOrderOutcomeProducer(mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderEventsTopic))
		appCtx.OnShutdown(func(context.Context) error { return producer.Close() })
		publisher = producer
	}

	// 3. 带熔断和重试的预留客户端，product-service 地址来自 Nacos 或静态配置
	resCfg := cfg.Order.Reservation
	var endpoint adapter.EndpointResolver = adapter.StaticEndpoint(resCfg.BaseURL)
	if appCtx.Nacos != nil {
		endpoint = nacos.NewResolver(appCtx.Nacos, resCfg.ServiceName)
	}
	reservations := adapter.NewReservationHTTPAdapter(
		httpclient.NewClient(appCtx.Tracer),
		endpoint,
		adapter.NewReservationBreaker(resCfg.Breaker),
		adapter.NewReservationRetry(resCfg.Retry),
		resCfg,
	)

	var opts []application.Option
	if expr := cfg.Order.AcceptanceRule; expr != "" {
		r, err := rule.NewCELRule(expr)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid order acceptance rule")
		}
		opts = append(opts, application.WithDraftRule(r))
		log.Info().Str("rule", expr).Msg("order acceptance rule enabled")
	}

	svc := application.NewOrderApplicationService(repo, reservations, pending, publisher, appCtx.Tracer, opts...)

	interfaces.NewOrderHandler(svc, appCtx.Tracer).RegisterRoutes(appCtx.Mux)
	appCtx.RunInBackground(interfaces.NewReconcileWorker(svc, cfg.Order.ReconcileInterval).Run)
}

// buildStorage storage=mysql 时使用 MySQL + Redis，否则全部在内存里
func buildStorage(appCtx bootstrap.AppCtx) (domain.OrderRepository, port.PendingReservationStore) {
	cfg := appCtx.Config
	if cfg.App.Storage != "mysql" {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return infrastructure.NewMemoryOrderRepository(), infrastructure.NewMemoryPendingStore()
	}

	my := cfg.Infra.MySQL
	db, err := database.OpenMySQL(database.Options{Host: my.Host, Port: my.Port, User: my.User, Password: my.Password, Database: my.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := infrastructure.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate order tables")
	}
	appCtx.OnShutdown(func(context.Context) error { return database.Close(db) })

	rdb, err := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	appCtx.OnShutdown(func(context.Context) error { return rdb.Close() })

	return infrastructure.NewGormOrderRepository(db), infrastructure.NewRedisPendingStore(rdb)
}
