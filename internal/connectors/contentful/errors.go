package contentful

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// ErrMissingSyncToken indicates a response carried neither nextPageUrl
// nor nextSyncUrl.
var ErrMissingSyncToken = errors.New("contentful: response has no sync token")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	ID         string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("contentful: %s: %s (request %s)", e.ID, e.Message, e.RequestID)
	}
	return fmt.Sprintf("contentful: HTTP %d: %s", e.StatusCode, e.Message)
}

// errorBody is the JSON error envelope the API returns.
type errorBody struct {
	Sys struct {
		ID string `json:"id"`
	} `json:"sys"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

func parseAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get("X-Contentful-Request-Id")}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && (eb.Message != "" || eb.Sys.ID != "") {
		apiErr.ID = eb.Sys.ID
		apiErr.Message = eb.Message
		if eb.RequestID != "" {
			apiErr.RequestID = eb.RequestID
		}
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// classify maps a failed response onto the domain fetch errors.
// withToken reports whether the request carried a sync token.
func classify(resp *http.Response, body []byte, withToken bool) *domain.FetchError {
	apiErr := parseAPIError(resp, body)
	fe := &domain.FetchError{StatusCode: resp.StatusCode, Err: apiErr}

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		fe.Transient = true
		fe.RetryAfter = retryAfter(resp)
	case code >= 500:
		fe.Transient = true
		fe.RetryAfter = retryAfter(resp)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		fe.Unauthorized = true
	case withToken && (code == http.StatusBadRequest || code == http.StatusNotFound || code == http.StatusGone):
		fe.TokenExpired = true
	}
	return fe
}
