package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// Service holds the Prometheus collectors.
type Service struct {
	EventsClassified   *prometheus.CounterVec
	FramesIgnored      prometheus.Counter
	MatchesSaved       prometheus.Counter
	DuplicatesDropped  prometheus.Counter
	SyncSent           prometheus.Counter
	SyncFailed         prometheus.Counter
	NickLookups        prometheus.Counter
	NickLookupFailures prometheus.Counter
	MergeDuration      prometheus.Histogram
	StartupTimeSeconds prometheus.Gauge
}

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		EventsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bullseye_events_classified_total",
			Help: "The total number of intercepted payloads classified, by event type.",
		}, []string{"type"}),
		FramesIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullseye_frames_ignored_total",
			Help: "The total number of WebSocket frames ignored as non-JSON or unknown codes.",
		}),
		MatchesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullseye_matches_saved_total",
			Help: "The total number of finalized matches appended to the durable log.",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullseye_duplicate_saves_dropped_total",
			Help: "The total number of finalize attempts dropped by the at-most-once guard.",
		}),
		SyncSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullseye_sync_sent_total",
			Help: "The total number of matches successfully synced to the remote backend.",
		}),
		SyncFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullseye_sync_failed_total",
			Help: "The total number of remote sync attempts that failed.",
		}),
		NickLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullseye_nick_lookups_total",
			Help: "The total number of nickname lookups issued against the profile service.",
		}),
		NickLookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullseye_nick_lookup_failures_total",
			Help: "The total number of nickname lookups that failed.",
		}),
		MergeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bullseye_merge_duration_seconds",
			Help:    "The duration of individual game-state merges.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bullseye_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.EventsClassified,
		s.FramesIgnored,
		s.MatchesSaved,
		s.DuplicatesDropped,
		s.SyncSent,
		s.SyncFailed,
		s.NickLookups,
		s.NickLookupFailures,
		s.MergeDuration,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncEventsClassified(eventType string) {
	s.EventsClassified.WithLabelValues(eventType).Inc()
}

func (s *Service) IncFramesIgnored() {
	s.FramesIgnored.Inc()
}

func (s *Service) IncMatchesSaved() {
	s.MatchesSaved.Inc()
}

func (s *Service) IncDuplicatesDropped() {
	s.DuplicatesDropped.Inc()
}

func (s *Service) IncSyncSent() {
	s.SyncSent.Inc()
}

func (s *Service) IncSyncFailed() {
	s.SyncFailed.Inc()
}

func (s *Service) IncNickLookups() {
	s.NickLookups.Inc()
}

func (s *Service) IncNickLookupFailures() {
	s.NickLookupFailures.Inc()
}

func (s *Service) ObserveMergeDuration(seconds float64) {
	s.MergeDuration.Observe(seconds)
}

func (s *Service) SetStartupTime(seconds float64) {
	s.StartupTimeSeconds.Set(seconds)
}
