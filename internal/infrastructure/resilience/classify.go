package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

// ErrorClassification tells the executor whether to retry an error and
// whether it counts against the circuit breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

var (
	retryable = ErrorClassification{Retryable: true, RecordFailure: true}
	permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	ignored   = ErrorClassification{}
)

// Classify applies the rules every transport shares: per-attempt timeouts and
// open circuits are retryable, caller cancellation is ignored. Anything else
// is retryable only when transient reports it so.
func Classify(err error, transient func(error) bool) ErrorClassification {
	switch {
	case err == nil:
		return ignored
	case errors.Is(err, ErrAttemptTimeout):
		return retryable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ignored
	case IsCircuitOpen(err):
		return retryable
	case transient != nil && transient(err):
		return retryable
	default:
		return permanent
	}
}

// WrapTemporaryFor tags errors that stayed retryable after the last attempt
// with domain.ErrTemporary.
func WrapTemporaryFor(operation string, err error, classify ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func defaultClassifier(error) ErrorClassification {
	return permanent
}
