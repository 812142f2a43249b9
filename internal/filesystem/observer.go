package filesystem

// Observer records filesystem operation metrics. The implementation lives
// in the metrics package to break the import cycle between the two.
type Observer interface {
	// ObserveOperation records duration and error status for an operation:
	// "open", "read", "write" or "rename".
	ObserveOperation(operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(operation string)
	ObserveRetrySuccess(operation string)
	ObserveRetryFailure(operation string)
	ObserveStaleError(operation string)
}

// defaultObserver is set once at startup. When nil, metric recording is
// skipped (the case in tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
