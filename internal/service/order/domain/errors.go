package domain

import "errors"

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	ErrRuleRejected           = errors.New("order rejected by acceptance rule")
)

type FieldError struct {
	Field   string
	Message string
}

// ValidationError 携带字段级错误，errors.Is(err, ErrValidation) 为 true
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + e.Fields[0].Field + " " + e.Fields[0].Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
