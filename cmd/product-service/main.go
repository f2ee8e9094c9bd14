// cmd/product-service/main.go
package main

import (
	"context"

	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/database"
	"fulfillment/internal/service/product/application"
	"fulfillment/internal/service/product/domain"
	"fulfillment/internal/service/product/domain/port"
	"fulfillment/internal/service/product/infrastructure"
	"fulfillment/internal/service/product/infrastructure/lock"
	"fulfillment/internal/service/product/interfaces"
	"fulfillment/internal/zookeeper"

	"github.com/rs/zerolog/log"
)

const serviceName = "product-service"

func main() {
	cfg := bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			repo := buildLedger(appCtx)
			locker := buildLocker(appCtx)

			catalog := application.NewCatalogService(repo, appCtx.Tracer)
			engine := application.NewReservationEngine(repo, locker, appCtx.Tracer)

			auth := appCtx.Config.Product.Auth
			interfaces.NewProductHandler(catalog, engine, appCtx.Tracer, auth.Username, auth.Password).RegisterRoutes(appCtx.Mux)
		},
	})
}

func buildLedger(appCtx bootstrap.AppCtx) domain.LedgerRepository {
	cfg := appCtx.Config
	if cfg.App.Storage != "mysql" {
		log.Warn().Msg("using in-memory inventory ledger, data is lost on restart")
		return infrastructure.NewMemoryLedgerRepository()
	}

	my := cfg.Infra.MySQL
	db, err := database.OpenMySQL(database.Options{Host: my.Host, Port: my.Port, User: my.User, Password: my.Password, Database: my.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := infrastructure.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate inventory tables")
	}
	appCtx.OnShutdown(func(context.Context) error { return database.Close(db) })
	return infrastructure.NewGormLedgerRepository(db)
}

// buildLocker 单实例用进程内锁，多实例部署切换到 ZooKeeper
func buildLocker(appCtx bootstrap.AppCtx) port.Locker {
	cfg := appCtx.Config
	if cfg.Product.Lock != "zookeeper" {
		return lock.NewLocalLocker()
	}
	conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to zookeeper")
	}
	appCtx.OnShutdown(func(context.Context) error {
		conn.Close()
		return nil
	})
	return lock.NewZookeeperLocker(conn)
}
