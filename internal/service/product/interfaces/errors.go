package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/product/domain"

	"github.com/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 根据错误类型返回不同的 HTTP 状态码和统一的错误体
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	body := errorBody{ErrorMessage: err.Error(), Errors: []fieldErrorBody{}}
	var status int

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body.ErrorMessage = "Validation failed"
		for _, f := range verr.Fields {
			body.Errors = append(body.Errors, fieldErrorBody{FieldName: f.Field, ErrorMessage: f.Message})
		}
	case errors.Is(err, domain.ErrInsufficientInventory):
		status = http.StatusBadRequest
		body.ErrorMessage = domain.ErrInsufficientInventory.Error()
	case errors.Is(err, domain.ErrEmptyReservation):
		status = http.StatusBadRequest
		body.ErrorMessage = domain.ErrEmptyReservation.Error()
	case errors.Is(err, domain.ErrDuplicateSerialNumber), errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrItemNotFound):
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
		body.ErrorMessage = "internal error"
		logger.Ctx(ctx).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		verr := &domain.ValidationError{}
		verr.Add("body", "malformed JSON: "+err.Error())
		return verr
	}
	return nil
}
