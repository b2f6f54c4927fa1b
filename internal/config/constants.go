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

// Cleanup runs get this long before their context is cancelled.
const CleanupRunTimeout = 30 * time.Second

// Code issuance limits
const (
	MaxBatchSize              = 1000
	CodeGenerationMaxAttempts = 10
)

// Login throttling window
const LoginRateLimitWindow = time.Minute

// Request bodies above this size are rejected
const MaxRequestBodySize = 64 << 10
