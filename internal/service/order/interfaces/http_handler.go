// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"net/http"

	"fulfillment/internal/service/order/application"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
	tracer  trace.Tracer
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService, tracer trace.Tracer) *OrderHandler {
	return &OrderHandler{service: service, tracer: tracer}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("POST /api/order/draft", h.traced("http.PlaceOrderDraft", h.handlePlaceDraft))
	mux.Handle("PUT /api/order/draft/{orderNumber}/{version}", h.traced("http.UpdateOrder", h.handleUpdate))
	mux.Handle("POST /api/order/accept/{orderNumber}/{version}", h.traced("http.AcceptOrder", h.handleAccept))
	mux.Handle("GET /api/order/{orderNumber}/{version}", h.traced("http.GetOrder", h.handleGet))
	mux.Handle("DELETE /api/order/{orderNumber}", h.traced("http.DeleteOrder", h.handleDelete))
}

// traced 从请求头中提取上游的链路信息，并为每个请求开启一个 server span
func (h *OrderHandler) traced(name string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := h.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		if n := r.PathValue("orderNumber"); n != "" {
			span.SetAttributes(attribute.String("order.number", n))
		}
		fn(w, r.WithContext(ctx))
	})
}

func (h *OrderHandler) handlePlaceDraft(w http.ResponseWriter, r *http.Request) {
	var body draftOrderBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.service.PlaceOrderDraft(r.Context(), body.toRequest())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *OrderHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	var body draftOrderBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.service.UpdateOrder(r.Context(), r.PathValue("orderNumber"), version, body.toRequest())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) handleAccept(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.service.AcceptOrder(r.Context(), r.PathValue("orderNumber"), version)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	version, err := versionParam(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.service.GetOrder(r.Context(), r.PathValue("orderNumber"), version)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrder(r.Context(), r.PathValue("orderNumber")); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
