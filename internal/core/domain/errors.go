package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrTemporary          = errors.New("temporary failure")
	ErrConfiguration      = errors.New("configuration error")
	ErrNotReady           = errors.New("not ready")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrSnapshotNotFound   = errors.New("snapshot not found")
	ErrRunNotFound        = errors.New("ingestion run not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
