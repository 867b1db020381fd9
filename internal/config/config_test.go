package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultTimeout, cfg.DefaultTimeout)
	assert.Equal(t, DefaultMaxTimeout, cfg.MaxTimeout)
	assert.Equal(t, DefaultMaxMessage, cfg.MaxMessage)
	assert.Equal(t, DefaultClientIdle, cfg.ClientIdle)
	assert.Equal(t, DefaultRoomTTL, cfg.RoomTTL)
	assert.Equal(t, DefaultSweepInterval, cfg.SweepInterval)
	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, CodecMsgpack, cfg.Codec)
	assert.Equal(t, TransportHTTP, cfg.Transport)
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("WARPCHAT_ADDR", ":9000")
	t.Setenv("WARPCHAT_MAX_TIMEOUT", "2m")
	t.Setenv("WARPCHAT_MAX_MESSAGE", "128")
	t.Setenv("WARPCHAT_SERVER", "http://relay.example:9000/")
	t.Setenv("WARPCHAT_CODEC", "JSON")
	t.Setenv("WARPCHAT_TRANSPORT", "ws")

	cfg, err := Load(Options{Addr: ":7000", DefaultTimeout: 30 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr, "flag wins over env")
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 2*time.Minute, cfg.MaxTimeout, "env wins over default")
	assert.Equal(t, 128, cfg.MaxMessage)
	assert.Equal(t, "http://relay.example:9000", cfg.ServerURL)
	assert.Equal(t, CodecJSON, cfg.Codec)
	assert.Equal(t, TransportWebSocket, cfg.Transport)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("WARPCHAT_ROOM_TTL", "soon")
	t.Setenv("WARPCHAT_MAX_MESSAGE", "lots")

	_, err := Load(Options{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "WARPCHAT_ROOM_TTL")
	assert.ErrorContains(t, err, "WARPCHAT_MAX_MESSAGE")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Addr:           DefaultAddr,
			DefaultTimeout: DefaultTimeout,
			MaxTimeout:     DefaultMaxTimeout,
			MaxMessage:     DefaultMaxMessage,
			ClientIdle:     DefaultClientIdle,
			RoomTTL:        DefaultRoomTTL,
			SweepInterval:  DefaultSweepInterval,
			ServerURL:      DefaultServerURL,
			Codec:          DefaultCodec,
			Transport:      DefaultTransport,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "default above max",
			mutate: func(c *Config) { c.DefaultTimeout = c.MaxTimeout + time.Second },
			want:   "exceeds max timeout",
		},
		{
			name:   "idle shorter than max wait",
			mutate: func(c *Config) { c.ClientIdle = c.MaxTimeout },
			want:   "must exceed max timeout",
		},
		{
			name:   "zero sweep",
			mutate: func(c *Config) { c.SweepInterval = 0 },
			want:   "sweep interval must be positive",
		},
		{
			name:   "negative message size",
			mutate: func(c *Config) { c.MaxMessage = -1 },
			want:   "max message must be positive",
		},
		{
			name:   "unknown codec",
			mutate: func(c *Config) { c.Codec = "xml" },
			want:   `unsupported codec "xml"`,
		},
		{
			name:   "unknown transport",
			mutate: func(c *Config) { c.Transport = "carrier pigeon" },
			want:   `unsupported transport "carrier pigeon"`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}
