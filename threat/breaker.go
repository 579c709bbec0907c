package threat

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the state of a source circuit breaker
type BreakerState string

const (
	// BreakerClosed lets queries through
	BreakerClosed BreakerState = "closed"
	// BreakerOpen rejects queries until the cool-down elapses
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen lets a single probe query through
	BreakerHalfOpen BreakerState = "half_open"
)

var (
	// ErrBreakerOpen is returned while a source is cooling down after repeated failures
	ErrBreakerOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned when the half-open probe slot is taken
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// BreakerConfig tunes a SourceBreaker
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the breaker opens
	MaxFailures uint32
	// Timeout is how long the breaker stays open before allowing a probe
	Timeout time.Duration
}

// Validate checks the breaker configuration
func (c BreakerConfig) Validate() error {
	if c.MaxFailures == 0 {
		return errors.New("MaxFailures must be greater than 0")
	}
	if c.Timeout <= 0 {
		return errors.New("Timeout must be greater than 0")
	}
	return nil
}

// DefaultBreakerConfig returns the defaults used when none is configured
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, Timeout: 60 * time.Second}
}

// SourceBreaker stops hammering a match source backend that keeps failing
type SourceBreaker struct {
	config   BreakerConfig
	state    BreakerState
	failures uint32
	openedAt time.Time
	probing  bool
	now      func() time.Time
	mu       sync.Mutex
}

// NewSourceBreaker creates a closed breaker
func NewSourceBreaker(config BreakerConfig) (*SourceBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker configuration: %w", err)
	}
	return &SourceBreaker{config: config, state: BreakerClosed, now: time.Now}, nil
}

// Allow reports whether a query may proceed
func (b *SourceBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.config.Timeout {
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return nil
	case BreakerHalfOpen:
		if b.probing {
			return ErrProbeInFlight
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// RecordSuccess closes the breaker and clears the failure count
func (b *SourceBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
}

// RecordFailure counts a failure and opens the breaker at the threshold.
// A failed probe reopens it immediately.
func (b *SourceBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false
	if b.state == BreakerHalfOpen || b.failures >= b.config.MaxFailures {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// Abandon releases the probe slot of a query whose outcome is unknown
func (b *SourceBreaker) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// State returns the current breaker state
func (b *SourceBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
