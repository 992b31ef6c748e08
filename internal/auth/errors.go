package auth

import (
	"errors"
	"fmt"

	"github.com/desertthunder/spotui/internal/shared"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// ExchangeError reports a failed authorization code exchange. Status is 0 for transport failures.
type ExchangeError struct {
	Status int
	Err    error
}

func (e *ExchangeError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%v: status %d: %v", shared.ErrExchange, e.Status, e.Err)
	}
	return fmt.Sprintf("%v: %v", shared.ErrExchange, e.Err)
}

func (e *ExchangeError) Unwrap() []error { return []error{shared.ErrExchange, e.Err} }

// RefreshError reports a failed refresh. The stored credential is left as it was.
type RefreshError struct {
	Status int
	Err    error
}

func (e *RefreshError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%v: status %d: %v", shared.ErrRefresh, e.Status, e.Err)
	}
	return fmt.Sprintf("%v: %v", shared.ErrRefresh, e.Err)
}

func (e *RefreshError) Unwrap() []error { return []error{shared.ErrRefresh, e.Err} }

// APIError is a non-2xx Web API response, surfaced with its body untouched.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("%v: %s returned %d: %s", shared.ErrAPIRequest, e.Endpoint, e.StatusCode, msg)
	}
	return fmt.Sprintf("%v: %s returned %d", shared.ErrAPIRequest, e.Endpoint, e.StatusCode)
}

func (e *APIError) Unwrap() error { return shared.ErrAPIRequest }

// Message is the provider's error.message, if the body carries one.
func (e *APIError) Message() string {
	return gjson.GetBytes(e.Body, "error.message").String()
}

// Reason is the player error reason (e.g. PREMIUM_REQUIRED, NO_ACTIVE_DEVICE), if present.
func (e *APIError) Reason() string {
	return gjson.GetBytes(e.Body, "error.reason").String()
}

// statusOf extracts the HTTP status from an oauth2 token endpoint error.
func statusOf(err error) int {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}
