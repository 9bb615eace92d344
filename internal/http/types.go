package http

import (
	"net/http"
	"sync"

	"bullseye-tracker/internal/config"
	"bullseye-tracker/internal/metrics"
	"bullseye-tracker/internal/persist"
	"bullseye-tracker/internal/profiles"
	"bullseye-tracker/internal/store"
)

type Server struct {
	Gate           persist.Gate
	Store          store.KVStore
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Profiles       profiles.ProfileClient
	Router         *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*session
}
