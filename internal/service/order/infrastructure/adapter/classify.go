package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	"fulfillment/internal/pkg/httpclient"
	"fulfillment/internal/pkg/resilience"
	"fulfillment/internal/service/order/domain/port"

	"github.com/pkg/errors"
)

// errResolve 服务发现失败，和连接失败一样按传输错误处理
type errResolve struct{ cause error }

func (e *errResolve) Error() string { return "resolve product-service endpoint: " + e.cause.Error() }
func (e *errResolve) Unwrap() error { return e.cause }

// IsRetryable 判断一次失败是否值得重试，同时决定熔断器是否把它计为失败：
// 超时、连接/IO 错误、服务发现失败以及 5xx 属于可重试；4xx 是业务拒绝，不重试。
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.ServerSide()
	}

	// 响应能读完但内容不对，重试也无济于事
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}

	var resolveErr *errResolve
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &resolveErr),
		errors.As(err, &netErr),
		errors.As(err, &urlErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}

// classify 把一次逻辑调用的最终错误归入四种结果之一
func classify(err error, ids []string) port.ReservationResult {
	if err == nil {
		return port.ReservationResult{Outcome: port.OutcomeSuccess, ReservedInstanceIDs: ids}
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return port.ReservationResult{Outcome: port.OutcomeUnavailable, Reason: "Product service is unavailable: " + err.Error()}
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && !statusErr.ServerSide() {
		return port.ReservationResult{Outcome: port.OutcomeBusinessRejection, Reason: remoteMessage(statusErr)}
	}
	return port.ReservationResult{Outcome: port.OutcomeTransportFailure, Reason: err.Error()}
}

// remoteMessage 读取 product-service 错误体中的 errorMessage
func remoteMessage(e *httpclient.StatusError) string {
	var body struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(e.Body, &body); err == nil && body.ErrorMessage != "" {
		return body.ErrorMessage
	}
	if text := strings.TrimSpace(string(e.Body)); text != "" {
		return text
	}
	return "product-service rejected the reservation with status " + strconv.Itoa(e.Code)
}

// attemptLabel 单次尝试的指标标签
func attemptLabel(err error) string {
	var statusErr *httpclient.StatusError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "short_circuited"
	case errors.As(err, &statusErr) && statusErr.ServerSide():
		return "server_error"
	case errors.As(err, &statusErr):
		return "rejected"
	default:
		return "transport_error"
	}
}
