// internal/service/product/interfaces/http_handler.go
package interfaces

import (
	"fmt"
	"net/http"

	"fulfillment/internal/service/product/application"
	"fulfillment/internal/service/product/domain"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ProductHandler 封装了 product 服务的 HTTP 处理器
type ProductHandler struct {
	catalog *application.CatalogService
	engine  *application.ReservationEngine
	tracer  trace.Tracer

	username, password string
}

// NewProductHandler 创建一个新的 HTTP 处理器实例，username/password 用于保护预留接口
func NewProductHandler(catalog *application.CatalogService, engine *application.ReservationEngine, tracer trace.Tracer, username, password string) *ProductHandler {
	return &ProductHandler{catalog: catalog, engine: engine, tracer: tracer, username: username, password: password}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *ProductHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("POST /api/product", h.traced("http.CreateProduct", h.handleCreateProduct))
	mux.Handle("GET /api/product/{productId}", h.traced("http.GetProduct", h.handleGetProduct))
	mux.Handle("POST /api/product/{productId}/add-item", h.traced("http.AddItem", h.handleAddItem))
	mux.Handle("GET /api/product/item/{itemId}", h.traced("http.GetItem", h.handleGetItem))

	mux.Handle("POST /api/reservation/reserve", BasicAuth(h.username, h.password, h.traced("http.Reserve", h.handleReserve)))
	mux.Handle("POST /api/reservation/unlock", BasicAuth(h.username, h.password, h.traced("http.Unlock", h.handleUnlock)))
}

// traced 从请求头中提取上游的链路信息，并为每个请求开启一个 server span
func (h *ProductHandler) traced(name string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := h.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		fn(w, r.WithContext(ctx))
	})
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var body createProductBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	p, err := h.catalog.CreateProduct(r.Context(), application.CreateProductRequest{
		Name:        body.Name,
		Description: body.Description,
		Price:       body.Price,
		Categories:  body.Categories,
		Tags:        body.Tags,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p, 0, 0))
}

func (h *ProductHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	stock, err := h.catalog.GetProduct(r.Context(), r.PathValue("productId"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(&stock.Product, stock.AvailableCount, stock.TotalCount))
}

func (h *ProductHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var body addItemBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	item, err := h.catalog.AddItemInstance(r.Context(), r.PathValue("productId"), body.SerialNumber)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSerialNumber) {
			writeJSON(w, http.StatusBadRequest, errorBody{
				ErrorMessage: fmt.Sprintf("Product with serial number: %s already exist", body.SerialNumber),
				Errors:       []fieldErrorBody{},
			})
			return
		}
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *ProductHandler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.GetItem(r.Context(), r.PathValue("itemId"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *ProductHandler) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ids, err := h.engine.Reserve(r.Context(), req.toDomain())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReserveItemsResponse{ReservedInstanceIDs: ids})
}

func (h *ProductHandler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	var err error
	if req.UpToVersion != nil {
		err = h.engine.UnlockUpTo(r.Context(), req.OrderNumber, *req.UpToVersion)
	} else {
		err = h.engine.Unlock(r.Context(), req.OrderNumber)
	}
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, "success")
}
