package circuit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream 503")

func fail() (interface{}, error) { return nil, errUpstream }

func TestManager_OpensAfterConsecutiveFailures(t *testing.T) {
	m := NewManager()
	cfg := DefaultConfig()
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Hour
	m.AddProvider("yahoo", cfg)

	for i := 0; i < 3; i++ {
		_, err := m.Execute("yahoo", fail)
		assert.ErrorIs(t, err, errUpstream)
	}

	_, err := m.Execute("yahoo", func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrOpen)

	status, ok := m.Status("yahoo")
	require.True(t, ok)
	assert.Equal(t, "open", status.State)
}

func TestManager_PermanentErrorsDoNotTrip(t *testing.T) {
	m := NewManager()
	cfg := DefaultConfig()
	cfg.ConsecutiveFailures = 2
	m.AddProvider("yahoo", cfg)

	bad := fmt.Errorf("unknown symbol: %w", ErrPermanent)
	for i := 0; i < 5; i++ {
		_, err := m.Execute("yahoo", func() (interface{}, error) { return nil, bad })
		assert.ErrorIs(t, err, ErrPermanent)
	}

	status, _ := m.Status("yahoo")
	assert.Equal(t, "closed", status.State)
}

func TestManager_HalfOpenRecovery(t *testing.T) {
	m := NewManager()
	cfg := DefaultConfig()
	cfg.ConsecutiveFailures = 1
	cfg.Timeout = 20 * time.Millisecond

	var transitions []gobreaker.State
	m.OnStateChange(func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	})
	m.AddProvider("yahoo", cfg)

	_, _ = m.Execute("yahoo", fail)
	time.Sleep(40 * time.Millisecond)

	out, err := m.Execute("yahoo", func() (interface{}, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen, gobreaker.StateHalfOpen, gobreaker.StateClosed}, transitions)
}

func TestManager_UnknownProviderRunsUnguarded(t *testing.T) {
	m := NewManager()
	out, err := m.Execute("csv", func() (interface{}, error) { return "x", nil })
	require.NoError(t, err)
	assert.Equal(t, "x", out)

	_, ok := m.Status("csv")
	assert.False(t, ok)
}

func TestTripCondition_ErrorRate(t *testing.T) {
	trip := tripCondition(Config{ErrorRateThreshold: 50, MinRequests: 10})

	assert.False(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 4}))
	assert.True(t, trip(gobreaker.Counts{Requests: 10, TotalFailures: 5}))
	assert.False(t, trip(gobreaker.Counts{Requests: 10, TotalFailures: 4}))
}
