package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for GitHub status classification, checked with
// errors.Is.
var (
	ErrBadRequest   = errors.New("github: bad request")
	ErrUnauthorized = errors.New("github: unauthorized")
	ErrForbidden    = errors.New("github: forbidden")
	ErrNotFound     = errors.New("github: not found")
	ErrConflict     = errors.New("github: conflict")
	ErrUnprocessable = errors.New("github: unprocessable")
	ErrRateLimited  = errors.New("github: rate limited")
	ErrServerError  = errors.New("github: server error")
)

// APIError carries the HTTP status and the API's error message
// alongside the sentinel.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	var apiBody struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &apiBody)
	msg := apiBody.Message
	if msg == "" {
		msg = string(body)
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Err:        classifyStatus(resp.StatusCode),
	}
}

func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrUnprocessable
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}
		return nil
	}
}
