package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values
const (
	DefaultAddr          = ":8080"
	DefaultTimeout       = 60 * time.Second
	DefaultMaxTimeout    = 300 * time.Second
	DefaultMaxMessage    = 4096
	DefaultClientIdle    = 10 * time.Minute
	DefaultRoomTTL       = 5 * time.Minute
	DefaultSweepInterval = 30 * time.Second
	DefaultServerURL     = "http://localhost:8080"
	DefaultCodec         = CodecMsgpack
	DefaultTransport     = TransportHTTP
	CodecJSON            = "json"
	CodecMsgpack         = "msgpack"
	TransportHTTP        = "http"
	TransportWebSocket   = "ws"
)

// Config holds application configuration
type Config struct {
	// Addr is the listen address of the relay server
	Addr string

	// DefaultTimeout applies to blocking calls without an explicit timeout
	DefaultTimeout time.Duration

	// MaxTimeout caps every blocking call
	MaxTimeout time.Duration

	// MaxMessage is the largest message accepted, in bytes
	MaxMessage int

	// ClientIdle is how long a client may go without a call before it is
	// treated as disconnected
	ClientIdle time.Duration

	// RoomTTL is how long a closed room is kept before it is swept
	RoomTTL time.Duration

	// SweepInterval is how often the janitor runs
	SweepInterval time.Duration

	// ServerURL is the base URL clients talk to
	ServerURL string

	// Codec is the wire codec clients use ("json" or "msgpack")
	Codec string

	// Transport carries client tool calls ("http" or "ws")
	Transport string
}

// Options for loading config with CLI flag overrides. Zero values mean
// "not set on the command line".
type Options struct {
	Addr           string
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	MaxMessage     int
	ClientIdle     time.Duration
	RoomTTL        time.Duration
	SweepInterval  time.Duration
	ServerURL      string
	Codec          string
	Transport      string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	var errs []error
	dur := func(flag time.Duration, env string, def time.Duration) time.Duration {
		if flag != 0 {
			return flag
		}
		if v := os.Getenv(env); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", env, err))
				return def
			}
			return d
		}
		return def
	}

	cfg := &Config{
		Addr:           str(opts.Addr, "WARPCHAT_ADDR", DefaultAddr),
		DefaultTimeout: dur(opts.DefaultTimeout, "WARPCHAT_DEFAULT_TIMEOUT", DefaultTimeout),
		MaxTimeout:     dur(opts.MaxTimeout, "WARPCHAT_MAX_TIMEOUT", DefaultMaxTimeout),
		ClientIdle:     dur(opts.ClientIdle, "WARPCHAT_CLIENT_IDLE", DefaultClientIdle),
		RoomTTL:        dur(opts.RoomTTL, "WARPCHAT_ROOM_TTL", DefaultRoomTTL),
		SweepInterval:  dur(opts.SweepInterval, "WARPCHAT_SWEEP_INTERVAL", DefaultSweepInterval),
		ServerURL:      strings.TrimSuffix(str(opts.ServerURL, "WARPCHAT_SERVER", DefaultServerURL), "/"),
		Codec:          strings.ToLower(str(opts.Codec, "WARPCHAT_CODEC", DefaultCodec)),
		Transport:      strings.ToLower(str(opts.Transport, "WARPCHAT_TRANSPORT", DefaultTransport)),
		MaxMessage:     opts.MaxMessage,
	}

	if cfg.MaxMessage == 0 {
		cfg.MaxMessage = DefaultMaxMessage
		if v := os.Getenv("WARPCHAT_MAX_MESSAGE"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("WARPCHAT_MAX_MESSAGE: %w", err))
			} else {
				cfg.MaxMessage = n
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func str(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"default timeout": c.DefaultTimeout,
		"max timeout":     c.MaxTimeout,
		"client idle":     c.ClientIdle,
		"room ttl":        c.RoomTTL,
		"sweep interval":  c.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.DefaultTimeout > c.MaxTimeout {
		errs = append(errs, fmt.Errorf("default timeout %s exceeds max timeout %s", c.DefaultTimeout, c.MaxTimeout))
	}
	if c.ClientIdle <= c.MaxTimeout {
		errs = append(errs, fmt.Errorf("client idle %s must exceed max timeout %s", c.ClientIdle, c.MaxTimeout))
	}
	if c.MaxMessage <= 0 {
		errs = append(errs, fmt.Errorf("max message must be positive, got %d", c.MaxMessage))
	}
	if c.Codec != CodecJSON && c.Codec != CodecMsgpack {
		errs = append(errs, fmt.Errorf("unsupported codec %q", c.Codec))
	}
	if c.Transport != TransportHTTP && c.Transport != TransportWebSocket {
		errs = append(errs, fmt.Errorf("unsupported transport %q", c.Transport))
	}
	return errors.Join(errs...)
}
