package serialization

import (
	"encoding/json"
	"errors"
	"reflect"

	validator "github.com/go-playground/validator/v10"

	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	"github.com/eval-hub/eval-dashboard/internal/serviceerrors"
)

// Unmarshal decodes a server response into v and validates it.
func Unmarshal(validate *validator.Validate, executionContext *executioncontext.ExecutionContext, jsonBytes []byte, v any) error {
	err := json.Unmarshal(jsonBytes, v)
	if err != nil {
		return serviceerrors.NewServiceErrorWithCause(err, messages.InvalidServerResponse, "Type", typeName(v))
	}
	return Validate(validate, executionContext, v)
}

// UnmarshalList decodes a JSON array and validates every element.
func UnmarshalList[T any](validate *validator.Validate, executionContext *executioncontext.ExecutionContext, jsonBytes []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(jsonBytes, &items); err != nil {
		var zero T
		return nil, serviceerrors.NewServiceErrorWithCause(err, messages.InvalidServerResponse, "Type", typeName(&zero)+" list")
	}
	for i := range items {
		if err := Validate(validate, executionContext, &items[i]); err != nil {
			return nil, err
		}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Validate runs the struct validation of v and logs the failing fields.
func Validate(validate *validator.Validate, executionContext *executioncontext.ExecutionContext, v any) error {
	err := validate.StructCtx(executionContext.Ctx, v)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, validationError := range validationErrors {
			executionContext.Logger.Info("Validation error", "field", validationError.Field(), "tag", validationError.Tag(), "value", validationError.Value())
		}
	}
	return serviceerrors.NewServiceErrorWithCause(err, messages.InvalidServerResponse, "Type", typeName(v))
}

// ValidateRequest validates a caller supplied input before anything is written.
func ValidateRequest(validate *validator.Validate, executionContext *executioncontext.ExecutionContext, v any) error {
	if err := validate.StructCtx(executionContext.Ctx, v); err != nil {
		return serviceerrors.NewServiceErrorWithCause(err, messages.RequestValidationFailed)
	}
	return nil
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "response"
	}
	return t.Name()
}
