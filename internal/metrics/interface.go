package metrics

// Metrics defines the instrumentation points used across the application.
type Metrics interface {
	IncEventsClassified(eventType string)
	IncFramesIgnored()
	IncMatchesSaved()
	IncDuplicatesDropped()
	IncSyncSent()
	IncSyncFailed()
	IncNickLookups()
	IncNickLookupFailures()
	ObserveMergeDuration(seconds float64)
	SetStartupTime(seconds float64)
}
