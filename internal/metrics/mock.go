package metrics

import "sync"

var _ Metrics = (*Mock)(nil)

// Mock is a no-op Metrics implementation that records call counts.
type Mock struct {
	mu sync.Mutex

	EventsClassifiedCalls []string
	FramesIgnoredCount    int
	MatchesSavedCount     int
	DuplicatesDropCount   int
	SyncSentCount         int
	SyncFailedCount       int
	NickLookupCount       int
	NickLookupFailCount   int
	MergeDurations        []float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) IncEventsClassified(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EventsClassifiedCalls = append(m.EventsClassifiedCalls, eventType)
}

func (m *Mock) IncFramesIgnored() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesIgnoredCount++
}

func (m *Mock) IncMatchesSaved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MatchesSavedCount++
}

func (m *Mock) IncDuplicatesDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesDropCount++
}

func (m *Mock) IncSyncSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncSentCount++
}

func (m *Mock) IncSyncFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncFailedCount++
}

func (m *Mock) IncNickLookups() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NickLookupCount++
}

func (m *Mock) IncNickLookupFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NickLookupFailCount++
}

func (m *Mock) ObserveMergeDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MergeDurations = append(m.MergeDurations, seconds)
}

func (m *Mock) SetStartupTime(seconds float64) {}
