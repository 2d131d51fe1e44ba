package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Watcher timeouts: the ledger fetch is bounded separately from the
// whole tick so one slow entry cannot stall the loop indefinitely.
const (
	LedgerFetchTimeout = 10 * time.Second
	WatcherTickTimeout = 30 * time.Second
)

// Session creation bounds
const (
	MinCheckpointSeconds = 1
	MaxCheckpointSeconds = 3600
	MinRateKasPerMinute  = 0.000001
	MaxRateKasPerMinute  = 1000.0
)

// Rate limiting for session creation, per client IP
const (
	CreateSessionRateLimit  = 10
	CreateSessionRateWindow = time.Minute
)
