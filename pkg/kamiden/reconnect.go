package kamiden

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rotisserie/eris"
)

// ReconnectPolicy controls the delay between stream reconnects. The zero MaxAttempts retries
// forever.
type ReconnectPolicy struct {
	// Exponential doubles the delay after every failed attempt, up to MaxDelay. Otherwise every
	// delay is Delay.
	Exponential bool
	Delay       time.Duration
	MaxDelay    time.Duration
	MaxAttempts uint64
	// Jitter randomizes exponential delays by up to this fraction in either direction.
	Jitter float64
}

const defaultReconnectDelay = 5 * time.Second

// DefaultReconnectPolicy reconnects every 5 seconds, forever.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: defaultReconnectDelay}
}

func (p ReconnectPolicy) validate() error {
	if p.Delay <= 0 {
		return eris.New("reconnect delay must be positive")
	}
	if p.Exponential && p.MaxDelay < p.Delay {
		return eris.New("max reconnect delay must not be below the reconnect delay")
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		return eris.New("reconnect jitter must be in [0, 1)")
	}
	return nil
}

// newBackOff returns the delay sequence of the policy. NextBackOff returns backoff.Stop once
// MaxAttempts delays were handed out.
func (p ReconnectPolicy) newBackOff() backoff.BackOff {
	var b backoff.BackOff = &backoff.ConstantBackOff{Interval: p.Delay}
	if p.Exponential {
		e := backoff.NewExponentialBackOff()
		e.InitialInterval = p.Delay
		e.MaxInterval = p.MaxDelay
		e.RandomizationFactor = p.Jitter
		e.Multiplier = 2
		e.MaxElapsedTime = 0
		e.Reset()
		b = e
	}
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, p.MaxAttempts)
	}
	return b
}
