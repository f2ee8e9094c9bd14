package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fulfillment/internal/service/order/application"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"
	"fulfillment/internal/service/order/infrastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type stubReservations struct {
	result   port.ReservationResult
	unlocked int
}

func (s *stubReservations) Reserve(context.Context, string, int64, []domain.OrderLine) port.ReservationResult {
	return s.result
}

func (s *stubReservations) Unlock(context.Context, string, int64) error {
	s.unlocked++
	return nil
}

func newServer(t *testing.T, res *stubReservations) (*httptest.Server, *application.OrderApplicationService) {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")
	svc := application.NewOrderApplicationService(
		infrastructure.NewMemoryOrderRepository(), res, infrastructure.NewMemoryPendingStore(), infrastructure.NoopPublisher{}, tracer)
	mux := http.NewServeMux()
	NewOrderHandler(svc, tracer).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

const draftJSON = `{"orderItems":[{"itemRef":"P1","count":1,"itemName":"mouse"}],"address":{"addressLine1":"Main St 1","city":"Berlin","country":"DE"}}`

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	return resp, raw
}

func decodeOrder(t *testing.T, raw []byte) orderResponse {
	t.Helper()
	var o orderResponse
	require.NoError(t, json.Unmarshal(raw, &o))
	return o
}

func TestDraftAcceptFlow(t *testing.T) {
	res := &stubReservations{result: port.ReservationResult{Outcome: port.OutcomeSuccess, ReservedInstanceIDs: []string{"i1"}}}
	srv, _ := newServer(t, res)

	resp, raw := do(t, http.MethodPost, srv.URL+"/api/order/draft", draftJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	draft := decodeOrder(t, raw)
	assert.Equal(t, domain.StateDraft, draft.State)
	assert.Equal(t, int64(0), draft.Version)

	resp, raw = do(t, http.MethodGet, srv.URL+"/api/order/"+draft.OrderNumber+"/0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, draft.OrderNumber, decodeOrder(t, raw).OrderNumber)

	resp, raw = do(t, http.MethodPost, srv.URL+"/api/order/accept/"+draft.OrderNumber+"/0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	accepted := decodeOrder(t, raw)
	assert.Equal(t, domain.StateAccepted, accepted.State)
	assert.Equal(t, int64(1), accepted.Version)

	// 旧版本
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/order/"+draft.OrderNumber+"/0", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// 已接受的订单不能再次接受
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/order/accept/"+draft.OrderNumber+"/1", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// 已接受的订单不能修改
	resp, _ = do(t, http.MethodPut, srv.URL+"/api/order/draft/"+draft.OrderNumber+"/1", draftJSON)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAcceptRejectedReturnsInvalidOrder(t *testing.T) {
	res := &stubReservations{result: port.ReservationResult{Outcome: port.OutcomeBusinessRejection, Reason: "not enough"}}
	srv, _ := newServer(t, res)

	_, raw := do(t, http.MethodPost, srv.URL+"/api/order/draft", draftJSON)
	draft := decodeOrder(t, raw)

	resp, raw := do(t, http.MethodPost, srv.URL+"/api/order/accept/"+draft.OrderNumber+"/0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	o := decodeOrder(t, raw)
	assert.Equal(t, domain.StateInvalid, o.State)
	assert.Equal(t, "not enough", o.Reason)
}

func TestValidationErrorBody(t *testing.T) {
	srv, _ := newServer(t, &stubReservations{})

	resp, raw := do(t, http.MethodPost, srv.URL+"/api/order/draft", `{"orderItems":[{"itemRef":"","count":0}],"address":{}}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Validation failed", body.ErrorMessage)
	var fields []string
	for _, f := range body.Errors {
		fields = append(fields, f.FieldName)
	}
	assert.ElementsMatch(t, []string{
		"orderItems[0].itemRef", "orderItems[0].count",
		"address.addressLine1", "address.city", "address.country",
	}, fields)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/order/draft", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/order/x/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateAndDelete(t *testing.T) {
	res := &stubReservations{}
	srv, _ := newServer(t, res)

	_, raw := do(t, http.MethodPost, srv.URL+"/api/order/draft", draftJSON)
	draft := decodeOrder(t, raw)

	update := `{"orderItems":[{"itemRef":"P2","count":3}],"address":{"addressLine1":"Side St 2","city":"Paris","country":"FR"}}`
	resp, raw := do(t, http.MethodPut, srv.URL+"/api/order/draft/"+draft.OrderNumber+"/0", update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeOrder(t, raw)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, "P2", updated.OrderItems[0].ItemRef)
	assert.Equal(t, "Paris", updated.Address.City)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/order/draft/"+draft.OrderNumber+"/0", update)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/order/"+draft.OrderNumber, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/order/"+draft.OrderNumber, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, res.unlocked)
}

func TestReconcileWorkerStopsOnCancel(t *testing.T) {
	_, svc := newServer(t, &stubReservations{})
	w := NewReconcileWorker(svc, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
