package session

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines per-session behavior and dial defaults.
type Config struct {
	// InboxSize bounds transport events queued for one receiver.
	InboxSize int
	// StrictHandshake rejects handshakes that fail field or version checks.
	StrictHandshake bool
	ConnectTimeout  time.Duration
	WriteTimeout    time.Duration
	Backoff         BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		InboxSize:       64,
		StrictHandshake: false,
		ConnectTimeout:  5 * time.Second,
		WriteTimeout:    15 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
	}
}
