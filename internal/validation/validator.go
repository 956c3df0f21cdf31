package validation

import (
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/eval-hub/eval-dashboard/pkg/api"
)

func NewValidator() (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	register(validate)
	registerCustomValidators(validate)
	return validate, nil
}

func register(instance *validator.Validate) {
	// register function to get tag name from json tags
	instance.RegisterTagNameFunc(
		func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		},
	)
}

func registerCustomValidators(instance *validator.Validate) {
	instance.RegisterStructValidation(validateTestCase, api.TestCase{})
	instance.RegisterStructValidation(validateTestCaseConfig, api.TestCaseConfig{})
}

func validateTestCase(sl validator.StructLevel) {
	tc := sl.Current().Interface().(api.TestCase)
	validateInput(sl, tc.Type, tc.Input)
}

func validateTestCaseConfig(sl validator.StructLevel) {
	tc := sl.Current().Interface().(api.TestCaseConfig)
	validateInput(sl, tc.Type, tc.Input)
}

// validateInput checks that multimodal test cases carry a list of items and the other
// types carry plain text.
func validateInput(sl validator.StructLevel, testCaseType api.TestCaseType, input api.TestCaseInput) {
	if testCaseType == api.TestCaseTypeMultimodal {
		if len(input.Items) == 0 {
			sl.ReportError(input, "input", "Input", "multimodal_input", "")
			return
		}
		for _, item := range input.Items {
			if (item.Text == "") == (item.ImageURL == "") {
				sl.ReportError(input, "input", "Input", "multimodal_item", "")
				return
			}
		}
		return
	}
	if input.IsMultimodal() || input.Text == "" {
		sl.ReportError(input, "input", "Input", "text_input", "")
	}
}
