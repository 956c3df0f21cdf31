package messages

import (
	"fmt"
	"strings"

	"github.com/eval-hub/eval-dashboard/internal/constants"
)

// This package provides all the error messages that should be reported to the user.
// Note that we add a comment with the message parameters so that it is possible
// to see the parameters in the IDE when creating an error message.
var (
	// Read and write path errors

	// UnableToLoad Unable to load the {{.Type}} resource {{.ResourceId}}: '{{.Error}}'.
	UnableToLoad = createMessage(
		constants.HTTPCodeInternalServerError,
		"Unable to load the {{.Type}} resource {{.ResourceId}}: '{{.Error}}'.",
	)

	// UnableToList Unable to load the {{.Type}} list: '{{.Error}}'.
	UnableToList = createMessage(
		constants.HTTPCodeInternalServerError,
		"Unable to load the {{.Type}} list: '{{.Error}}'.",
	)

	// UnableToSave Unable to save the {{.Type}} resource {{.ResourceId}}: '{{.Error}}'.
	UnableToSave = createMessage(
		constants.HTTPCodeInternalServerError,
		"Unable to save the {{.Type}} resource {{.ResourceId}}: '{{.Error}}'.",
	)

	// ResourceNotFound The {{.Type}} resource {{.ResourceId}} was not found.
	ResourceNotFound = createMessage(
		constants.HTTPCodeNotFound,
		"The {{.Type}} resource {{.ResourceId}} was not found.",
	)

	// ResourceNotCached The {{.Type}} resource {{.ResourceId}} has not been loaded. Load it before updating it.
	ResourceNotCached = createMessage(
		constants.HTTPCodeBadRequest,
		"The {{.Type}} resource {{.ResourceId}} has not been loaded. Load it before updating it.",
	)

	// TemporaryResource The {{.Type}} resource {{.ResourceId}} has not been saved yet.
	TemporaryResource = createMessage(
		constants.HTTPCodeBadRequest,
		"The {{.Type}} resource {{.ResourceId}} has not been saved yet.",
	)

	// Business rules enforced locally

	// GlobalTestCaseDeletion The test case {{.ResourceId}} is global and can only be deleted by an administrator.
	GlobalTestCaseDeletion = createMessage(
		constants.HTTPCodeForbidden,
		"The test case {{.ResourceId}} is global and can only be deleted by an administrator.",
	)

	// VersionDatasetMismatch The dataset version {{.ResourceId}} belongs to dataset {{.Actual}}, not {{.Expected}}.
	VersionDatasetMismatch = createMessage(
		constants.HTTPCodeInternalServerError,
		"The dataset version {{.ResourceId}} belongs to dataset {{.Actual}}, not {{.Expected}}.",
	)

	// API boundary errors

	// InvalidServerResponse The server returned an invalid {{.Type}}: '{{.Error}}'.
	InvalidServerResponse = createMessage(
		constants.HTTPCodeInternalServerError,
		"The server returned an invalid {{.Type}}: '{{.Error}}'.",
	)

	// RequestValidationFailed The request validation failed: '{{.Error}}'. Please check the request and try again.
	RequestValidationFailed = createMessage(
		constants.HTTPCodeBadRequest,
		"The request validation failed: '{{.Error}}'. Please check the request and try again.",
	)

	// NotAuthenticated You are not signed in. Please sign in and try again.
	NotAuthenticated = createMessage(
		constants.HTTPCodeUnauthorized,
		"You are not signed in. Please sign in and try again.",
	)

	// Configuration related errors

	// ConfigurationFailed The application startup failed: '{{.Error}}'.
	ConfigurationFailed = createMessage(
		constants.HTTPCodeInternalServerError,
		"The application startup failed: '{{.Error}}'.",
	)

	// JSON errors that are not coming from user input

	// JSONUnmarshalFailed The JSON unmarshalling failed for the {{.Type}}: '{{.Error}}'.
	JSONUnmarshalFailed = createMessage(
		constants.HTTPCodeInternalServerError,
		"The JSON unmarshalling failed for the {{.Type}}: '{{.Error}}'.",
	)

	// Storage related errors

	// DatabaseOperationFailed The cache request for the {{.Type}} resource {{.ResourceId}} failed: '{{.Error}}'.
	DatabaseOperationFailed = createMessage(
		constants.HTTPCodeInternalServerError,
		"The cache request for the {{.Type}} resource {{.ResourceId}} failed: '{{.Error}}'.",
	)
)

type MessageCode struct {
	status int
	one    string
}

func (m *MessageCode) GetCode() int {
	return m.status
}

func (m *MessageCode) GetMessage() string {
	return m.one
}

func createMessage(status int, one string) *MessageCode {
	return &MessageCode{
		status,
		one,
	}
}

func GetErrorMesssage(messageCode *MessageCode, messageParams ...any) string {
	msg := messageCode.GetMessage()
	for i := 0; i < len(messageParams); i += 2 {
		param := messageParams[i]
		var paramValue any
		if i+1 < len(messageParams) {
			paramValue = messageParams[i+1]
		} else {
			paramValue = "NOT_DEFINED" // this is a placeholder for a missing parameter value - if you see this value then the code needs to be fixed
		}
		msg = strings.ReplaceAll(msg, fmt.Sprintf("{{.%v}}", param), fmt.Sprintf("%v", paramValue))
	}
	return msg
}
