package domain

import "errors"

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrItemNotFound          = errors.New("item instance not found")
	ErrDuplicateSerialNumber = errors.New("serial number already exists for this product")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrReservationExists     = errors.New("an active reservation already exists for this order")

	// 以下两个错误的文案会原样返回给 order-service，作为订单失效原因
	ErrInsufficientInventory = errors.New("The amount of the available products is not enough to make a full reservation")
	ErrEmptyReservation      = errors.New("Reservation list is empty because of product not found or empty items list")
)

// IsBusinessRejection 判断错误是否属于预留失败的业务拒绝（4xx，不可重试）
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrInsufficientInventory) || errors.Is(err, ErrEmptyReservation)
}

// FieldError 描述单个字段的校验失败
type FieldError struct {
	Field   string
	Message string
}

// ValidationError 携带字段级错误，errors.Is(err, ErrInvalidRequest) 为 true
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalidRequest.Error()
	}
	return e.Fields[0].Field + ": " + e.Fields[0].Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Add 追加一个字段错误
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil 没有任何字段错误时返回 nil
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
