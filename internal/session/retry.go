package session

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alanmeadows/catcode/internal/config"
)

// RetryPolicy bounds connection attempts. MaxRetries counts failed
// attempts; the session enters Failed on the MaxRetries-th consecutive
// failure. Delay is waited between attempts, doubling each time when
// Exponential is set.
type RetryPolicy struct {
	MaxRetries  int
	Delay       time.Duration
	Exponential bool
}

// DefaultRetryPolicy allows three attempts with no delay beyond what the
// transport imposes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3}
}

// PolicyFromConfig builds a RetryPolicy from the session config section.
func PolicyFromConfig(cfg config.SessionConfig) RetryPolicy {
	p := RetryPolicy{
		MaxRetries:  cfg.MaxRetries,
		Delay:       cfg.ParseRetryDelay(),
		Exponential: strings.EqualFold(cfg.RetryBackoff, "exponential"),
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultRetryPolicy().MaxRetries
	}
	return p
}

func (p RetryPolicy) budget() int {
	return max(p.MaxRetries, 1)
}

// newBackOff returns the delay schedule for one connect sequence. The
// attempt budget is enforced by the supervisor, not by the schedule.
func (p RetryPolicy) newBackOff() backoff.BackOff {
	if p.Delay <= 0 {
		return &backoff.ZeroBackOff{}
	}
	if !p.Exponential {
		return backoff.NewConstantBackOff(p.Delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0.2
	b.Reset()
	return b
}
