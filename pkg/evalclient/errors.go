package evalclient

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"github.com/eval-hub/eval-dashboard/internal/constants"
)

// APIError represents an error response from the evaluation API
type APIError struct {
	StatusCode   int    `json:"status_code" validate:"required"`
	Method       string `json:"method,omitempty"`
	Path         string `json:"path,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	Detail       string `json:"detail,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	sb := strings.Builder{}
	sb.WriteString("evaluation API error")
	if e.Method != "" {
		sb.WriteString(" for ")
		sb.WriteString(e.Method)
		sb.WriteString(" ")
		sb.WriteString(e.Path)
	}
	sb.WriteString(" with status code: ")
	sb.WriteString(strconv.Itoa(e.StatusCode))
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

// Message returns the server's explanation, falling back to the raw body.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.ResponseBody
}

func asAPIError(err error) (*APIError, bool) {
	apiError := &APIError{}
	if errors.As(err, &apiError) {
		return apiError, true
	}
	return nil, false
}

func hasStatus(err error, codes ...int) bool {
	if apiError, ok := asAPIError(err); ok {
		for _, code := range codes {
			if apiError.StatusCode == code {
				return true
			}
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return hasStatus(err, constants.HTTPCodeNotFound)
}

func IsUnauthorized(err error) bool {
	return hasStatus(err, constants.HTTPCodeUnauthorized)
}

// IsBusinessRule reports whether the server rejected the request because of a domain rule.
func IsBusinessRule(err error) bool {
	return hasStatus(err, constants.HTTPCodeBadRequest, constants.HTTPCodeConflict, constants.HTTPCodeUnprocessableEntity)
}

func IsServerError(err error) bool {
	if apiError, ok := asAPIError(err); ok {
		return apiError.StatusCode >= constants.HTTPCodeInternalServerError
	}
	return false
}

// ConnectivityError is returned when no response was received from the server.
type ConnectivityError struct {
	Method string
	Path   string
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

func IsConnectivityError(err error) bool {
	var connErr *ConnectivityError
	return errors.As(err, &connErr)
}

// IsUnavailable reports whether the failure means the server could not serve the request,
// in which case cached data may be used instead.
func IsUnavailable(err error) bool {
	return IsConnectivityError(err) || IsServerError(err)
}

// parseErrorDetail extracts the human readable reason from an error body. The API sends
// {"detail": "..."}, validation failures send {"detail": [{"msg": "..."}]} and proxies
// may send {"message": "..."} or {"error": "..."}.
func parseErrorDetail(body []byte) string {
	parsed, err := gabs.ParseJSON(body)
	if err != nil {
		return ""
	}
	if detail, ok := parsed.Path("detail").Data().(string); ok {
		return detail
	}
	if parsed.Exists("detail") {
		var msgs []string
		for _, child := range parsed.Path("detail").Children() {
			if msg, ok := child.Path("msg").Data().(string); ok {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	for _, path := range []string{"message", "error.message", "error"} {
		if msg, ok := parsed.Path(path).Data().(string); ok {
			return msg
		}
	}
	return ""
}
