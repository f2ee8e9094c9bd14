package interfaces

import (
	"context"
	"time"

	"fulfillment/internal/service/order/application"

	"github.com/rs/zerolog/log"
)

// ReconcileWorker 定期对预留结果未知的订单做对账，作为后台任务随服务启停
type ReconcileWorker struct {
	service  *application.OrderApplicationService
	interval time.Duration
}

func NewReconcileWorker(service *application.OrderApplicationService, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ReconcileWorker{service: service, interval: interval}
}

// Run 阻塞直到 ctx 被取消
func (w *ReconcileWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", w.interval).Msg("✅ reconcile worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("🛑 reconcile worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.service.ReconcilePending(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("reconcile round failed")
			}
		}
	}
}
