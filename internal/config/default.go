package config

import "time"

// Config drives one monitor run.
type Config struct {
	RequestTimeout time.Duration
	RequestDelay   time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxBodyBytes   int64
	UserAgent      string
	StaticSources  []string
}

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultRequestDelay   = 2 * time.Second
	DefaultMaxRetries     = 2
	DefaultRetryBaseDelay = 1 * time.Second
	DefaultMaxBodyBytes   = 64 << 20
	DefaultUserAgent      = "Mozilla/5.0 (compatible; srcwatch/1.0; +https://github.com/MrSnakeDoc/srcwatch)"
)

// DefaultStaticSources never change upstream (fixed regulatory texts).
var DefaultStaticSources = []string{"DM77_001", "DM70_001"}

func DefaultMonitorConfig() Config {
	return Config{
		RequestTimeout: DefaultRequestTimeout,
		RequestDelay:   DefaultRequestDelay,
		MaxRetries:     DefaultMaxRetries,
		RetryBaseDelay: DefaultRetryBaseDelay,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		UserAgent:      DefaultUserAgent,
		StaticSources:  append([]string(nil), DefaultStaticSources...),
	}
}
