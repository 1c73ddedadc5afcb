package collect

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError reports a non-success status from an upstream API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

// HTTPStatus lets the retry policy classify the failure.
func (e *HTTPError) HTTPStatus() int { return e.Status }

// APIError is a typed upstream rejection. Recoverable marks the
// "parameter out of range" class that pagination may work around by
// degrading its page size; everything else aborts the current plan.
type APIError struct {
	Code        string
	Message     string
	Recoverable bool
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

// IsRecoverable reports whether pagination may retry the plan with a
// smaller page size.
func IsRecoverable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Recoverable
}

// IsFatal reports auth/permission failures that must abort the plan
// without trying other page sizes.
func IsFatal(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Recoverable
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden
	}
	return false
}
