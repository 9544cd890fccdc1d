package server

import (
	"net/http"
	"time"

	"github.com/vango-dev/treediff/pkg/vdom"
)

// Config holds the server configuration.
type Config struct {
	// Address is the listen address (default ":7420").
	Address string

	// MaxBodyBytes caps reconcile request bodies and WebSocket messages.
	MaxBodyBytes int64

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration

	// ShutdownTimeout bounds how long Run waits for open requests.
	ShutdownTimeout time.Duration

	// PingInterval is how often idle WebSocket connections are pinged.
	// A connection that does not answer within twice the interval is closed.
	PingInterval time.Duration

	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the WebSocket Origin header. nil allows all
	// origins.
	CheckOrigin func(r *http.Request) bool

	// DiffOptions are the reconciler options. A request's root overrides
	// RootKey.
	DiffOptions vdom.Options
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":7420",
		MaxBodyBytes:      8 << 20,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		PingInterval:      30 * time.Second,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.MaxBodyBytes <= 0 {
		out.MaxBodyBytes = d.MaxBodyBytes
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.PingInterval == 0 {
		out.PingInterval = d.PingInterval
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	return &out
}
