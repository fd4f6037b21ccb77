package log

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressConcurrentIncrements(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress("simulate", 500, ProgressConfig{Out: &buf, Interval: time.Hour})

	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p.Increment()
			}
		}()
	}
	wg.Wait()

	p.Finish()
	assert.Contains(t, buf.String(), "simulate completed (500 items")
}

func TestProgressRendersBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress("mc", 4, ProgressConfig{Out: &buf, Interval: time.Hour})

	p.Increment()
	p.Increment()
	assert.Contains(t, buf.String(), "2/4 (50.0%)")
	assert.Contains(t, buf.String(), "██████████░░░░░░░░░░")

	p.Finish()
	assert.Contains(t, buf.String(), "mc completed (2 items")
}

func TestProgressETA(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewProgress("eta", 10, ProgressConfig{})
	p.startTime = start
	p.current = 2

	assert.Equal(t, 40*time.Second, p.eta(start.Add(10*time.Second)))
	p.current = 10
	assert.Zero(t, p.eta(start.Add(10*time.Second)))
}

func TestStepLogger(t *testing.T) {
	sl := NewStepLogger("study", []string{"load", "simulate"})
	sl.StartStep("load")
	time.Sleep(5 * time.Millisecond)
	sl.StartStep("simulate")
	sl.StartStep("bogus")
	sl.Finish()

	assert.GreaterOrEqual(t, sl.StepDuration("load"), 5*time.Millisecond)
	assert.Zero(t, sl.StepDuration("missing"))
}
