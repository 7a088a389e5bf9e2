package plaidapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const (
	ReasonInvalidRequest      = "INVALID_REQUEST"
	ReasonUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	ReasonUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ReasonRequestCanceled     = "REQUEST_CANCELED"
	ReasonInvalidResponse     = "INVALID_RESPONSE"
)

// APIError is a failed Plaid call. StatusCode, Message and Reason are always
// populated.
type APIError struct {
	StatusCode int
	Message    string
	Reason     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plaid: %d %s: %s", e.StatusCode, e.Reason, e.Message)
}

// AsAPIError extracts an *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func invalidRequest(format string, args ...any) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf(format, args...),
		Reason:     ReasonInvalidRequest,
	}
}

// plaidErrorBody is the subset of Plaid's error object used for Reason.
type plaidErrorBody struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// bodyCarrier matches the SDK's GenericOpenAPIError whether it is returned
// by value or by pointer.
type bodyCarrier interface {
	error
	Body() []byte
}

// translateError maps an SDK failure onto an *APIError.
func translateError(err error, resp *http.Response) *APIError {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{StatusCode: http.StatusGatewayTimeout, Message: err.Error(), Reason: ReasonUpstreamTimeout}
	case errors.Is(err, context.Canceled):
		return &APIError{StatusCode: http.StatusServiceUnavailable, Message: err.Error(), Reason: ReasonRequestCanceled}
	}

	if resp == nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &APIError{StatusCode: http.StatusGatewayTimeout, Message: err.Error(), Reason: ReasonUpstreamTimeout}
		}
		return &APIError{StatusCode: http.StatusServiceUnavailable, Message: err.Error(), Reason: ReasonUpstreamUnavailable}
	}

	if resp.StatusCode < http.StatusMultipleChoices {
		// Upstream said OK but the payload could not be decoded.
		return &APIError{StatusCode: http.StatusBadGateway, Message: err.Error(), Reason: ReasonInvalidResponse}
	}

	var body []byte
	var carrier bodyCarrier
	if errors.As(err, &carrier) {
		body = carrier.Body()
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
		Reason:     http.StatusText(resp.StatusCode),
	}

	var parsed plaidErrorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && parsed.ErrorCode != "" {
		apiErr.Reason = parsed.ErrorCode
	}
	if apiErr.Message == "" {
		apiErr.Message = err.Error()
	}
	if apiErr.Reason == "" {
		apiErr.Reason = "UPSTREAM_ERROR"
	}

	return apiErr
}
