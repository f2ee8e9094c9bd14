// internal/service/order/infrastructure/adapter/reservation_http_adapter.go
package adapter

import (
	"context"
	"strings"
	"time"

	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/httpclient"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/resilience"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	reservePath = "/api/reservation/reserve"
	unlockPath  = "/api/reservation/unlock"

	breakerName = "product-service"
)

type reserveItemsRequest struct {
	OrderNumber  string            `json:"orderNumber"`
	OrderVersion int64             `json:"orderVersion"`
	Items        []reserveItemLine `json:"items"`
}

type reserveItemLine struct {
	ItemRef string `json:"itemRef"`
	Count   int    `json:"count"`
}

type reserveItemsResponse struct {
	ReservedInstanceIDs []string `json:"reservedInstanceIds"`
}

type unlockItemsRequest struct {
	OrderNumber string `json:"orderNumber"`
	UpToVersion *int64 `json:"upToVersion,omitempty"`
}

// ReservationHTTPAdapter 实现了 port.ReservationService 接口。
// 每一次重试尝试都经过熔断器，熔断器因此能看到所有失败的尝试。
type ReservationHTTPAdapter struct {
	client   *httpclient.Client
	endpoint EndpointResolver
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryPolicy
	timeout  time.Duration
	auth     httpclient.RequestOption
	tracer   trace.Tracer
}

var _ port.ReservationService = (*ReservationHTTPAdapter)(nil)

// NewReservationHTTPAdapter 创建一个新的预留服务适配器
func NewReservationHTTPAdapter(client *httpclient.Client, endpoint EndpointResolver, breaker *resilience.CircuitBreaker, retry resilience.RetryPolicy, cfg bootstrap.ReservationClientConfig) *ReservationHTTPAdapter {
	retry.Retryable = IsRetryable
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, wait time.Duration, err error) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("🔁 retrying product-service call")
		}
	}
	return &ReservationHTTPAdapter{
		client:   client,
		endpoint: endpoint,
		breaker:  breaker,
		retry:    retry,
		timeout:  cfg.Timeout,
		auth:     httpclient.WithBasicAuth(cfg.Username, cfg.Password),
		tracer:   client.Tracer,
	}
}

// NewReservationBreaker 按配置创建熔断器，只有可重试的失败才会被计数
func NewReservationBreaker(cfg bootstrap.BreakerConfig) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.BreakerSettings{
		Name:                  breakerName,
		WindowSize:            cfg.WindowSize,
		MinimumCalls:          cfg.MinimumCalls,
		FailureRateThreshold:  cfg.FailureRateThreshold,
		SlowCallRateThreshold: cfg.SlowCallRateThreshold,
		SlowCallDuration:      cfg.SlowCallDuration,
		OpenStateWait:         cfg.OpenStateWait,
		HalfOpenCalls:         cfg.HalfOpenCalls,
		IsFailure:             IsRetryable,
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("⚡ circuit breaker state changed")
		},
	})
}

// NewReservationRetry 按配置创建重试策略
func NewReservationRetry(cfg bootstrap.RetryConfig) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		Multiplier:      cfg.Multiplier,
	}
}

// Reserve 调用 product-service 预留库存，并把结果归类为四种之一
func (a *ReservationHTTPAdapter) Reserve(ctx context.Context, orderNumber string, orderVersion int64, lines []domain.OrderLine) port.ReservationResult {
	ctx, span := a.tracer.Start(ctx, "adapter.ReserveItems", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("order.number", orderNumber), attribute.Int64("order.version", orderVersion))

	body := reserveItemsRequest{OrderNumber: orderNumber, OrderVersion: orderVersion, Items: make([]reserveItemLine, len(lines))}
	for i, l := range lines {
		body.Items[i] = reserveItemLine{ItemRef: l.ItemRef, Count: l.Count}
	}

	var resp reserveItemsResponse
	attempt := 0
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := a.breaker.Execute(ctx, func(ctx context.Context) error {
			resp = reserveItemsResponse{}
			return a.post(ctx, reservePath, body, &resp)
		})
		reservationAttempts.WithLabelValues(attemptLabel(err)).Inc()
		if err != nil {
			span.AddEvent("reserve attempt failed", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.String("error", err.Error()),
			))
		}
		return err
	})

	result := classify(err, resp.ReservedInstanceIDs)
	reservationCalls.WithLabelValues(string(result.Outcome)).Inc()
	span.SetAttributes(attribute.String("reservation.outcome", string(result.Outcome)), attribute.Int("attempts", attempt))
	if result.Outcome != port.OutcomeSuccess {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(result.Outcome))
		logger.Ctx(ctx).Warn().Err(err).
			Str("order_number", orderNumber).
			Str("outcome", string(result.Outcome)).
			Int("attempts", attempt).
			Msg("reservation not confirmed")
	}
	return result
}

// Unlock 释放订单在 product-service 上的预留。只做重试，不经过熔断器。
func (a *ReservationHTTPAdapter) Unlock(ctx context.Context, orderNumber string, upToVersion int64) error {
	ctx, span := a.tracer.Start(ctx, "adapter.UnlockItems", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("order.number", orderNumber), attribute.Int64("order.up_to_version", upToVersion))

	body := unlockItemsRequest{OrderNumber: orderNumber}
	if upToVersion != port.AnyVersion {
		body.UpToVersion = &upToVersion
	}
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		var ack string
		if err := a.post(ctx, unlockPath, body, &ack); err != nil {
			return err
		}
		if ack != "success" {
			return errors.Errorf("unexpected unlock acknowledgement %q", ack)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unlock failed")
		return errors.Wrapf(err, "unlock reservation for order %s", orderNumber)
	}
	return nil
}

// post 发送单次请求，每次尝试都有独立的超时
func (a *ReservationHTTPAdapter) post(ctx context.Context, path string, body, out any) error {
	base, err := a.endpoint.Resolve(ctx)
	if err != nil {
		return &errResolve{cause: err}
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.client.PostJSON(ctx, strings.TrimRight(base, "/")+path, body, out, a.auth)
}
