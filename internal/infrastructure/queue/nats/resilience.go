package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/anvesana/internal/infrastructure/resilience"
)

// Connection-level failures clear up on reconnect; anything else (bad
// subject, payload too large) will not.
func isTransientNATSError(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrReconnectBufExceeded)
}

func classifyPublishError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, isTransientNATSError)
}
