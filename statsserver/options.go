package statsserver

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type config struct {
	Addr              string
	ServiceName       string
	Version           string
	Logger            zerolog.Logger
	MetricsHandler    http.Handler
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

func defaultConfig() config {
	return config{
		Addr:              ":2112",
		ServiceName:       "hedgerpc",
		Version:           "dev",
		Logger:            zerolog.Nop(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Option configures a Server.
type Option func(*config)

// WithAddr sets the listen address.
//
// Default: ":2112"
func WithAddr(addr string) Option {
	return func(c *config) {
		if addr != "" {
			c.Addr = addr
		}
	}
}

// WithServiceName names the service in logs and liveness responses.
func WithServiceName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.ServiceName = name
		}
	}
}

// WithVersion sets the version reported by /livez.
func WithVersion(version string) Option {
	return func(c *config) {
		c.Version = version
	}
}

// WithLogger sets the lifecycle and request logger.
//
// Default: zerolog.Nop()
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.Logger = logger
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *config) {
		c.MetricsHandler = h
	}
}

// WithShutdownTimeout bounds graceful shutdown.
//
// Default: 10s
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.ShutdownTimeout = d
		}
	}
}
