package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/domain"

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
	case errors.Is(err, domain.ErrRuleRejected):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		body.ErrorMessage = "internal error"
		logger.Ctx(ctx).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "body", Message: "malformed JSON: " + err.Error()}}}
	}
	return nil
}

// versionParam 解析路径中的版本号
func versionParam(r *http.Request) (int64, error) {
	raw := r.PathValue("version")
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, &domain.ValidationError{Fields: []domain.FieldError{{Field: "version", Message: "must be a non-negative integer"}}}
	}
	return v, nil
}
