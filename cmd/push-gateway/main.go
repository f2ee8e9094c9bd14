// cmd/push-gateway/main.go
package main

import (
	"context"
	"net/http"

	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/service/push"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const serviceName = "push-gateway"

func main() {
	cfg := bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			kafkaCfg := appCtx.Config.Infra.Kafka
			if len(kafkaCfg.Brokers) == 0 {
				log.Fatal().Msg("push-gateway requires infra.kafka.brokers")
			}

			hub := push.NewHub()
			reader := mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.OrderEventsTopic, kafkaCfg.GroupID)
			appCtx.OnShutdown(func(context.Context) error { return reader.Close() })
			appCtx.RunInBackground(push.NewOutcomeConsumer(reader, hub, appCtx.Tracer).Run)

			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			appCtx.Mux.HandleFunc("/ws", push.ServeWs(hub))
		},
	})
}
