package httputil

import (
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// ErrCircuitOpen is returned by [Breakers.Do] while a host's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Breakers keeps one circuit breaker per upstream host.
//
// A breaker trips after Threshold consecutive failures marked with
// [Retryable] and stays open for an exponentially growing cool-down. Other
// errors, such as a payload that does not decode, do not count against the
// host. integrations.Client marks every non-2xx response retryable, so a
// run of 404s trips the breaker like any other status.
type Breakers struct {
	threshold int64
	cooldown  time.Duration

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// NewBreakers creates a breaker set. A threshold <= 0 disables tripping:
// [Breakers.Do] then calls fn directly.
func NewBreakers(threshold int, cooldown time.Duration) *Breakers {
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}
	return &Breakers{
		threshold: int64(threshold),
		cooldown:  cooldown,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

func (b *Breakers) get(host string) *circuit.Breaker {
	b.mu.RLock()
	breaker, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return breaker
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if breaker, ok := b.breakers[host]; ok {
		return breaker
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.cooldown
	exp.MaxInterval = 12 * b.cooldown
	exp.Multiplier = 2.0
	exp.MaxElapsedTime = 0
	exp.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    exp,
		ShouldTrip: circuit.ConsecutiveTripFunc(b.threshold),
	})
	b.breakers[host] = breaker
	return breaker
}

// Do runs fn through the breaker for rawURL's host. While the breaker is
// open fn is not called and a retryable error wrapping [ErrCircuitOpen] is
// returned, so callers with a retry policy wait and try again.
func (b *Breakers) Do(rawURL string, fn func() error) error {
	if b == nil || b.threshold <= 0 {
		return fn()
	}

	var callErr error
	err := b.get(hostOf(rawURL)).Call(func() error {
		callErr = fn()
		if IsRetryable(callErr) {
			return callErr
		}
		return nil
	}, 0)
	if errors.Is(err, circuit.ErrBreakerOpen) {
		return Retryable(ErrCircuitOpen)
	}
	return callErr
}

// State reports "open" or "closed" per host that has seen traffic.
func (b *Breakers) State() map[string]string {
	states := make(map[string]string)
	if b == nil {
		return states
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for host, breaker := range b.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
