package db

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnavailable wraps every other store failure (network, timeouts, aborted transactions).
	// Callers treat it as retryable.
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvalidPatch means the patch cannot be expressed in the store, for
	// example a map key the driver cannot use as a field name. Retrying will not help.
	ErrInvalidPatch = errors.New("invalid patch")
)

// classifyFirestoreError maps a Firestore/gRPC error onto the package sentinels.
func classifyFirestoreError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrUnavailable, err)
}
