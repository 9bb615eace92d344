package config

// Config holds all configuration for the application.
type Config struct {
	DBName        string
	MigrationsDir string
	Port          string
	Turso         TursoConfig
	Sync          SyncConfig
	ProfileAPIURL string
}
type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}

// SyncConfig points at the optional remote backend. An empty URL disables
// syncing entirely; local persistence never depends on it.
type SyncConfig struct {
	URL   string
	Token string
}
