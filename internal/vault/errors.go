package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexUnavailable means there is no local index and the backend could
	// not supply one. Lookups still run against the empty index.
	ErrIndexUnavailable = errors.New("product index unavailable")

	// ErrNoMatch means a committed query resolved to nothing.
	ErrNoMatch = errors.New("no matching product")

	// ErrRowsFetchFailed wraps any backend failure or timeout while fetching
	// print-run rows. The user may retry.
	ErrRowsFetchFailed = errors.New("could not load print run rows")
)

func rowsFetchFailed(code string, cause error) error {
	return fmt.Errorf("%w for %s: %w", ErrRowsFetchFailed, code, cause)
}

// IsRetryable reports whether re-submitting the same lookup may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRowsFetchFailed)
}
