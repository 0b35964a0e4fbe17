package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "server error", err: &HTTPStatusError{StatusCode: http.StatusBadGateway}, retryable: true, record: true},
		{name: "rate limited", err: &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, retryable: true, record: true},
		{name: "bad request", err: &HTTPStatusError{StatusCode: http.StatusBadRequest}, retryable: false, record: false},
		{name: "canceled", err: context.Canceled, retryable: false, record: false},
		{name: "attempt timeout", err: errors.Join(ErrAttemptTimeout, context.DeadlineExceeded), retryable: true, record: true},
		{name: "unknown", err: errors.New("decode"), retryable: false, record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyHTTPError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("ClassifyHTTPError(%v) = %+v", tc.err, got)
			}
		})
	}
}

func TestNewHTTPStatusErrorKeepsBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusServiceUnavailable)
	_, _ = rec.WriteString("maintenance")
	resp := rec.Result()

	err := NewHTTPStatusError("mediawiki", "list pages", resp)
	if err.StatusCode != http.StatusServiceUnavailable || !strings.Contains(err.Error(), "maintenance") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWrapTemporary(t *testing.T) {
	err := WrapTemporary("fetch", &HTTPStatusError{StatusCode: http.StatusServiceUnavailable})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	permanent := &HTTPStatusError{StatusCode: http.StatusNotFound}
	if got := WrapTemporary("fetch", permanent); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("did not expect ErrTemporary for 404")
	}
}
