package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ReconnectMode selects how the delay between reconnect attempts evolves.
type ReconnectMode string

const (
	// ReconnectFixed waits the same delay before every attempt.
	ReconnectFixed ReconnectMode = "fixed"
	// ReconnectExponential grows the delay up to MaxDelay, with jitter.
	ReconnectExponential ReconnectMode = "exponential"
)

// DefaultReconnectDelay is the fixed delay between reconnect attempts.
const DefaultReconnectDelay = 3 * time.Second

// ReconnectPolicy configures the push channel's reconnect loop.
type ReconnectPolicy struct {
	Mode        ReconnectMode
	Delay       time.Duration // fixed delay, or initial interval in exponential mode
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64 // randomization factor in [0, 1]
	MaxAttempts int     // 0 retries forever
}

// DefaultReconnectPolicy retries every 3 seconds, forever.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Mode:  ReconnectFixed,
		Delay: DefaultReconnectDelay,
	}
}

// ParseReconnectMode validates a mode name.
func ParseReconnectMode(s string) (ReconnectMode, error) {
	switch ReconnectMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReconnectFixed:
		return ReconnectFixed, nil
	case ReconnectExponential:
		return ReconnectExponential, nil
	default:
		return "", fmt.Errorf("unknown reconnect mode %q", s)
	}
}

// Validate checks the policy for values the schedule cannot use.
func (p ReconnectPolicy) Validate() error {
	if p.Delay <= 0 {
		return fmt.Errorf("reconnect delay must be > 0")
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("reconnect max attempts must be >= 0")
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("reconnect jitter must be within [0, 1]")
	}
	return nil
}

func (p ReconnectPolicy) backOff() backoff.BackOff {
	if p.Mode != ReconnectExponential {
		return backoff.NewConstantBackOff(p.Delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.RandomizationFactor = p.Jitter
	if p.Multiplier > 1 {
		b.Multiplier = p.Multiplier
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Reset()
	return b
}

// reconnectSchedule tracks attempts made since the last successful connect.
type reconnectSchedule struct {
	b           backoff.BackOff
	attempts    int
	maxAttempts int
}

func newReconnectSchedule(p ReconnectPolicy) *reconnectSchedule {
	return &reconnectSchedule{b: p.backOff(), maxAttempts: p.MaxAttempts}
}

// next returns the delay before the next attempt, or false to give up.
func (s *reconnectSchedule) next() (time.Duration, bool) {
	if s.maxAttempts > 0 && s.attempts >= s.maxAttempts {
		return 0, false
	}
	d := s.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	s.attempts++
	return d, true
}

func (s *reconnectSchedule) reset() {
	s.attempts = 0
	s.b.Reset()
}
