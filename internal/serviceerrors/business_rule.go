package serviceerrors

import (
	"errors"
	"fmt"
)

// BusinessRuleError is returned when the server refuses an operation because it would
// break a domain rule (for example deleting a dataset that is still referenced by runs).
// Detail is the human readable reason sent by the server.
type BusinessRuleError struct {
	Operation  string
	Type       string
	ResourceID string
	Detail     string
	Err        error
}

func (e *BusinessRuleError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s of %s %s was rejected", e.Operation, e.Type, e.ResourceID)
	}
	return fmt.Sprintf("%s of %s %s was rejected: %s", e.Operation, e.Type, e.ResourceID, e.Detail)
}

func (e *BusinessRuleError) Unwrap() error {
	return e.Err
}

func NewBusinessRuleError(operation string, resourceType string, resourceID string, detail string, err error) *BusinessRuleError {
	return &BusinessRuleError{
		Operation:  operation,
		Type:       resourceType,
		ResourceID: resourceID,
		Detail:     detail,
		Err:        err,
	}
}

// IsBusinessRuleViolation reports whether the error chain contains a BusinessRuleError.
func IsBusinessRuleViolation(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}
