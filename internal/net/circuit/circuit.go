package circuit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrOpen is returned when a provider's breaker rejects a call.
var ErrOpen = errors.New("circuit breaker is open")

// Config controls when a provider breaker trips and how it recovers.
type Config struct {
	MaxRequests         uint32        `yaml:"max_requests"`         // trial requests allowed while half-open
	Interval            time.Duration `yaml:"interval"`             // closed-state count reset period
	Timeout             time.Duration `yaml:"timeout"`              // open duration before half-open
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"` // trip threshold
	ErrorRateThreshold  float64       `yaml:"error_rate_threshold"` // percent, evaluated after MinRequests
	MinRequests         uint32        `yaml:"min_requests"`
}

// DefaultConfig suits a free, unauthenticated quote API.
func DefaultConfig() Config {
	return Config{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		ErrorRateThreshold:  50,
		MinRequests:         10,
	}
}

// StateListener is notified on breaker transitions.
type StateListener func(provider string, from, to gobreaker.State)

// Manager holds one breaker per data provider.
type Manager struct {
	mu        sync.RWMutex
	breakers  map[string]*gobreaker.CircuitBreaker
	listeners []StateListener
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

// OnStateChange registers a listener. Register before adding providers.
func (m *Manager) OnStateChange(l StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// AddProvider installs a breaker for provider, replacing any existing one.
func (m *Manager) AddProvider(provider string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listeners := append([]StateListener(nil), m.listeners...)
	m.breakers[provider] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: tripCondition(cfg),
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
			for _, l := range listeners {
				l(name, from, to)
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPermanent)
		},
	})
}

// ErrPermanent marks errors that are the caller's fault (unknown symbol,
// bad range) and must not count against the provider's health.
var ErrPermanent = errors.New("permanent provider error")

func tripCondition(cfg Config) func(gobreaker.Counts) bool {
	return func(c gobreaker.Counts) bool {
		if cfg.ConsecutiveFailures > 0 && c.ConsecutiveFailures >= cfg.ConsecutiveFailures {
			return true
		}
		if cfg.ErrorRateThreshold > 0 && c.Requests >= cfg.MinRequests && c.Requests > 0 {
			rate := float64(c.TotalFailures) / float64(c.Requests) * 100
			return rate >= cfg.ErrorRateThreshold
		}
		return false
	}
}

// Execute runs fn through provider's breaker. Providers without a breaker run unguarded.
func (m *Manager) Execute(provider string, fn func() (interface{}, error)) (interface{}, error) {
	m.mu.RLock()
	b, ok := m.breakers[provider]
	m.mu.RUnlock()
	if !ok {
		return fn()
	}

	out, err := b.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", provider, ErrOpen)
	}
	return out, err
}

// Status is a point-in-time view of a breaker.
type Status struct {
	Provider            string  `json:"provider"`
	State               string  `json:"state"`
	Requests            uint32  `json:"requests"`
	TotalFailures       uint32  `json:"total_failures"`
	ConsecutiveFailures uint32  `json:"consecutive_failures"`
	ErrorRate           float64 `json:"error_rate"`
}

// Status returns the status of provider's breaker.
func (m *Manager) Status(provider string) (Status, bool) {
	m.mu.RLock()
	b, ok := m.breakers[provider]
	m.mu.RUnlock()
	if !ok {
		return Status{}, false
	}

	c := b.Counts()
	s := Status{
		Provider:            provider,
		State:               b.State().String(),
		Requests:            c.Requests,
		TotalFailures:       c.TotalFailures,
		ConsecutiveFailures: c.ConsecutiveFailures,
	}
	if c.Requests > 0 {
		s.ErrorRate = float64(c.TotalFailures) / float64(c.Requests) * 100
	}
	return s, true
}

// Providers lists providers with breakers.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.breakers))
	for p := range m.breakers {
		out = append(out, p)
	}
	return out
}
