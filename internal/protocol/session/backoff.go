package session

import (
	"math"
	"math/rand"
	"time"
)

// NextBackoffDelay returns the redial delay after the given number of
// consecutive failures (1-based). Jitter never pushes the delay past MaxDelay.
func NextBackoffDelay(cfg BackoffConfig, failures int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	delay := float64(cfg.InitialDelay)
	if failures > 1 {
		delay *= math.Pow(max(cfg.Multiplier, 1.0), float64(failures-1))
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// Redial tracks one static peer's consecutive failed sessions. A session
// only counts as successful once the peer sent data; a peer that accepts the
// connection and closes it straight away keeps backing off.
type Redial struct {
	cfg      BackoffConfig
	rng      *rand.Rand
	failures int
}

func NewRedial(cfg BackoffConfig, rng *rand.Rand) *Redial {
	return &Redial{cfg: cfg, rng: rng}
}

// Failed records a failed dial or an empty session and returns the wait
// before the next dial.
func (r *Redial) Failed() time.Duration {
	r.failures++
	return NextBackoffDelay(r.cfg, r.failures, r.rng)
}

// Succeeded resets the failure count after a session that exchanged data.
// The next dial waits InitialDelay.
func (r *Redial) Succeeded() time.Duration {
	r.failures = 0
	return NextBackoffDelay(r.cfg, 1, r.rng)
}

func (r *Redial) Failures() int { return r.failures }
