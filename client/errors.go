package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAccountNotFound is returned when the node reports no account at an address
	ErrAccountNotFound = errors.New("account not found")

	// ErrResourceNotFound is returned when a required resource is absent
	ErrResourceNotFound = errors.New("resource not found")
)

// APIError is a non-2xx response from the node. Body holds the server payload verbatim.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
	ErrorCode  string
	Message    string
}

type apiErrorBody struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
	VMError   *int   `json:"vm_error_code,omitempty"`
}

func newAPIError(method, path string, resp *http.Response, body []byte) *APIError {
	e := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		e.ErrorCode = parsed.ErrorCode
		e.Message = parsed.Message
	}
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether the error is a 404 from the node
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// DecodeError is returned when a 2xx response body cannot be decoded
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
