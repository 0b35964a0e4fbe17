package resilience

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// HTTPStatusError is a non-2xx response from a remote HTTP dependency.
type HTTPStatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "http status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// NewHTTPStatusError reads up to 2KiB of the response body into the error.
func NewHTTPStatusError(service, operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Service:    service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// ClassifyHTTPError treats timeouts, network errors, open circuits and
// 408/429/5xx responses as retryable. Other status codes are the caller's
// fault and do not trip the breaker.
func ClassifyHTTPError(err error) ErrorClassification {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && !IsRetryableHTTPStatus(statusErr.StatusCode) {
		return ignored
	}
	return Classify(err, func(err error) bool {
		if errors.As(err, &statusErr) {
			return true
		}
		var netErr net.Error
		return errors.As(err, &netErr)
	})
}

func WrapTemporary(operation string, err error) error {
	return WrapTemporaryFor(operation, err, ClassifyHTTPError)
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
