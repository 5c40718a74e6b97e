package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kozaktomas/sightmatch/internal/logging"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the gateway circuit is open and the
// notification was not attempted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds the configuration for the circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial request is let through.
	Timeout time.Duration
	// HalfOpenMaxRequests is the number of trial requests allowed while half-open.
	HalfOpenMaxRequests uint32
}

// DefaultBreakerConfig trips after 3 consecutive failures and retries after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:         3,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// Breaker protects a Sender from being hammered while its gateway is down.
type Breaker struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Sender, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	logger = logging.NewComponentLogger(logger, "notify")
	settings := gobreaker.Settings{
		Name:        "sms",
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// NotifyMatch forwards to the wrapped sender unless the circuit is open.
func (b *Breaker) NotifyMatch(ctx context.Context, m Match) (bool, error) {
	if m.Contact == "" {
		return false, nil
	}

	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.NotifyMatch(ctx, m)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, ErrCircuitOpen
	}
	if err != nil {
		return false, err
	}
	sent, _ := result.(bool)
	return sent, nil
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	return b.breaker.State().String()
}
