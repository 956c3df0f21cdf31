package serialization

import (
	"context"
	"strings"
	"testing"

	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	"github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/internal/validation"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

func newContext() *executioncontext.ExecutionContext {
	return executioncontext.NewExecutionContext(context.Background(), "test", nil)
}

func TestUnmarshalValidates(t *testing.T) {
	validate, _ := validation.NewValidator()

	var ds api.Dataset
	if err := Unmarshal(validate, newContext(), []byte(`{"id":"ds-1","name":"Regression Suite","is_global":false,"user_id":"u1"}`), &ds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Name != "Regression Suite" {
		t.Fatalf("unexpected dataset %+v", ds)
	}

	err := Unmarshal(validate, newContext(), []byte(`{"id":"ds-1"}`), &ds)
	if !serviceerrors.HasMessageCode(err, messages.InvalidServerResponse) {
		t.Fatalf("expected an invalid response error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Dataset") {
		t.Fatalf("expected the type name in %q", err.Error())
	}

	err = Unmarshal(validate, newContext(), []byte(`{`), &ds)
	if !serviceerrors.HasMessageCode(err, messages.InvalidServerResponse) {
		t.Fatalf("expected an invalid response error, got %v", err)
	}
}

func TestUnmarshalList(t *testing.T) {
	validate, _ := validation.NewValidator()

	items, err := UnmarshalList[api.Experiment](validate, newContext(), []byte(`[{"id":"e1","name":"a"},{"id":"e2","name":"b"}]`))
	if err != nil || len(items) != 2 {
		t.Fatalf("unexpected result %v %v", items, err)
	}

	items, err = UnmarshalList[api.Experiment](validate, newContext(), []byte(`null`))
	if err != nil || items == nil || len(items) != 0 {
		t.Fatalf("expected an empty list, got %v %v", items, err)
	}

	if _, err = UnmarshalList[api.Experiment](validate, newContext(), []byte(`[{"id":"e1"}]`)); err == nil {
		t.Fatalf("expected a validation error for the missing name")
	}
}

func TestValidateRequest(t *testing.T) {
	validate, _ := validation.NewValidator()
	err := ValidateRequest(validate, newContext(), &api.DatasetConfig{})
	if !serviceerrors.HasMessageCode(err, messages.RequestValidationFailed) {
		t.Fatalf("expected a request validation error, got %v", err)
	}
}
