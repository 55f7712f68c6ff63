package dsm

import "errors"

// Error categories for core operations. Callers match with errors.Is; the
// concrete message carries the detail.
var (
	// ErrConfiguration marks invalid guild configuration (lookback hours,
	// timezone). Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound marks an expected message, thread or session that is
	// missing. Reconciliation uses it to trigger the content-search fallback.
	ErrNotFound = errors.New("not found")

	// ErrTransient marks a store or platform call failure that is safe to
	// retry at the operation boundary by re-deriving full desired state.
	ErrTransient = errors.New("transient I/O error")

	// ErrInvariant marks a broken data invariant, e.g. two active sessions
	// for one guild. Fatal to the current operation; needs manual cleanup.
	ErrInvariant = errors.New("invariant violation")
)
