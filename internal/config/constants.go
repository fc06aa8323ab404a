package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second
	TelemetryFlushTimeout = 5 * time.Second
	WorkerShutdownTimeout = 30 * time.Second

	// Worker run history kept for the status endpoint
	WorkerMaxHistory = 20

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
	DatabasePingTimeout     = 2 * time.Second

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days

	// Redis timeouts
	RedisOpTimeout = 500 * time.Millisecond
)

// Quiz defaults
const (
	DefaultPort            = "8080"
	DefaultWorkerPort      = "8081"
	DefaultRepeatAvoidDays = 7
	DefaultFetchChunkSize  = 30
	DefaultCacheTTL        = 10 * time.Minute
	DefaultWarmupInterval  = 15 * time.Minute
)

// DefaultSubjects is used when quiz.subjects is empty
var DefaultSubjects = []string{"biology", "chemistry", "physics"}

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	SessionName = "dailyquiz-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data:;"
)
