// Package config holds runtime settings for the AdmitFlow client.
package config

import "time"

// Config holds runtime settings for the AdmitFlow CLI client.
//
// Units: all intervals are time.Duration values (e.g. 2*time.Second).
type Config struct {
	// ServerEndpointAddr is the base URL of the backend REST API.
	ServerEndpointAddr string

	// DatabaseDSN is the path of the local SQLite database file.
	DatabaseDSN string

	// OnlineCheckInterval is how often the client probes server reachability.
	OnlineCheckInterval time.Duration

	// DebounceInterval is the quiet period after the last field change before
	// an autosave fires.
	DebounceInterval time.Duration

	// AutosaveInterval is the periodic autosave cadence, independent of field
	// activity.
	AutosaveInterval time.Duration

	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabaseDSN = "admitflow.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.DebounceInterval = 2 * time.Second
	c.AutosaveInterval = 30 * time.Second
	c.RequestTimeout = 5 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
