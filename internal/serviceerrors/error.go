package serviceerrors

import (
	"errors"

	"github.com/eval-hub/eval-dashboard/internal/messages"
)

// ServiceError is a user facing error rendered from a message code. The optional cause
// is kept so that callers can still use errors.Is and errors.As on the underlying failure.
type ServiceError struct {
	messageCode   *messages.MessageCode
	messageParams []any
	cause         error
}

func (e *ServiceError) Error() string {
	return messages.GetErrorMesssage(e.messageCode, e.messageParams...)
}

func (e *ServiceError) Unwrap() error {
	return e.cause
}

func (e *ServiceError) MessageCode() *messages.MessageCode {
	return e.messageCode
}

func (e *ServiceError) MessageParams() []any {
	return e.messageParams
}

func NewServiceError(messageCode *messages.MessageCode, messageParams ...any) *ServiceError {
	return &ServiceError{
		messageCode:   messageCode,
		messageParams: messageParams,
	}
}

// NewServiceErrorWithCause renders the message code and appends the cause as the "Error" parameter.
func NewServiceErrorWithCause(cause error, messageCode *messages.MessageCode, messageParams ...any) *ServiceError {
	params := append(append([]any{}, messageParams...), "Error", cause.Error())
	return &ServiceError{
		messageCode:   messageCode,
		messageParams: params,
		cause:         cause,
	}
}

// HasMessageCode reports whether err is a ServiceError built from the given message code.
func HasMessageCode(err error, messageCode *messages.MessageCode) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.messageCode == messageCode
	}
	return false
}
