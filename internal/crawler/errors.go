package crawler

import "errors"

var (
	// ErrFetchUnavailable covers network errors, non-2xx statuses and timeouts.
	ErrFetchUnavailable = errors.New("page unavailable")
	// ErrStoreUnavailable is returned when a record cannot be persisted.
	ErrStoreUnavailable = errors.New("article store unavailable")
)
