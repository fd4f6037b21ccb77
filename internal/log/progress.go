package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Progress reports completion of a long-running counted operation. With a
// terminal writer it redraws a bar in place; otherwise it emits a structured
// log line at most once per interval.
type Progress struct {
	mu         sync.Mutex
	name       string
	total      int
	current    int
	startTime  time.Time
	lastReport time.Time
	interval   time.Duration
	out        io.Writer
	now        func() time.Time
}

// ProgressConfig configures progress reporting
type ProgressConfig struct {
	// Out receives the progress bar; nil means log-only
	Out      io.Writer
	Interval time.Duration
}

// DefaultProgressConfig logs every two seconds without drawing a bar
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{Interval: 2 * time.Second}
}

// NewProgress creates a progress reporter for total steps
func NewProgress(name string, total int, config ProgressConfig) *Progress {
	if config.Interval <= 0 {
		config.Interval = DefaultProgressConfig().Interval
	}
	now := time.Now()
	return &Progress{
		name:       name,
		total:      total,
		startTime:  now,
		lastReport: now,
		interval:   config.Interval,
		out:        config.Out,
		now:        time.Now,
	}
}

// Increment advances progress by one step. Safe for concurrent use.
func (p *Progress) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	now := p.now()

	if p.out != nil {
		fmt.Fprint(p.out, p.render(now))
	}

	if now.Sub(p.lastReport) >= p.interval || p.current == p.total {
		p.lastReport = now
		if p.out == nil {
			log.Info().
				Str("task", p.name).
				Int("done", p.current).
				Int("total", p.total).
				Float64("percent", p.percent()).
				Dur("eta", p.eta(now)).
				Msg("Progress")
		}
	}
}

// Finish completes the progress indicator
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	duration := p.now().Sub(p.startTime)
	if p.out != nil {
		fmt.Fprintf(p.out, "\r\033[K✅ %s completed (%d items, %v)\n", p.name, p.current, duration.Round(time.Millisecond))
	}
	log.Debug().Str("task", p.name).Int("items", p.current).Dur("duration", duration).Msg("Completed")
}

// Fail marks the progress as failed
func (p *Progress) Fail(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out != nil {
		fmt.Fprintf(p.out, "\r\033[K❌ %s failed: %s\n", p.name, reason)
	}
	log.Error().Str("task", p.name).Int("done", p.current).Str("reason", reason).Msg("Failed")
}

func (p *Progress) percent() float64 {
	if p.total <= 0 {
		return 0
	}
	return float64(p.current) / float64(p.total) * 100
}

func (p *Progress) eta(now time.Time) time.Duration {
	if p.current == 0 || p.total <= p.current {
		return 0
	}
	elapsed := now.Sub(p.startTime)
	perStep := elapsed / time.Duration(p.current)
	return perStep * time.Duration(p.total-p.current)
}

func (p *Progress) render(now time.Time) string {
	var output strings.Builder

	output.WriteString("\r\033[K")
	output.WriteString(p.name)

	if p.total > 0 {
		barWidth := 20
		filled := barWidth * p.current / p.total
		if filled > barWidth {
			filled = barWidth
		}
		output.WriteString(" [")
		output.WriteString(strings.Repeat("█", filled))
		output.WriteString(strings.Repeat("░", barWidth-filled))
		output.WriteString(fmt.Sprintf("] %d/%d (%.1f%%)", p.current, p.total, p.percent()))

		if eta := p.eta(now); eta > 0 {
			if eta > time.Hour {
				output.WriteString(fmt.Sprintf(" ETA: %v", eta.Round(time.Minute)))
			} else {
				output.WriteString(fmt.Sprintf(" ETA: %v", eta.Round(time.Second)))
			}
		}
	} else {
		output.WriteString(fmt.Sprintf(" (%d)", p.current))
	}

	return output.String()
}

// StepLogger logs named steps of a multi-stage job with their timings
type StepLogger struct {
	name        string
	steps       []string
	currentStep int
	stepStart   time.Time
	startTime   time.Time
	stepTimes   []time.Duration
}

// NewStepLogger creates a step logger for the given ordered steps
func NewStepLogger(name string, steps []string) *StepLogger {
	return &StepLogger{
		name:        name,
		steps:       steps,
		currentStep: -1,
		startTime:   time.Now(),
		stepTimes:   make([]time.Duration, len(steps)),
	}
}

// StartStep begins a new step, closing the previous one
func (sl *StepLogger) StartStep(stepName string) {
	stepIndex := -1
	for i, step := range sl.steps {
		if step == stepName {
			stepIndex = i
			break
		}
	}

	if stepIndex == -1 {
		log.Warn().Str("step", stepName).Msg("Unknown step")
		return
	}

	sl.CompleteStep()
	sl.currentStep = stepIndex
	sl.stepStart = time.Now()

	log.Info().
		Str("job", sl.name).
		Str("step", stepName).
		Int("step_number", stepIndex+1).
		Int("total_steps", len(sl.steps)).
		Msg("Starting step")
}

// CompleteStep records the duration of the current step
func (sl *StepLogger) CompleteStep() {
	if sl.currentStep < 0 || sl.stepStart.IsZero() {
		return
	}
	d := time.Since(sl.stepStart)
	sl.stepTimes[sl.currentStep] = d
	sl.stepStart = time.Time{}

	log.Debug().
		Str("step", sl.steps[sl.currentStep]).
		Dur("duration", d).
		Msg("Step completed")
}

// StepDuration returns the recorded duration of a finished step
func (sl *StepLogger) StepDuration(step string) time.Duration {
	for i, s := range sl.steps {
		if s == step {
			return sl.stepTimes[i]
		}
	}
	return 0
}

// Finish closes the last step and logs the timing summary
func (sl *StepLogger) Finish() {
	sl.CompleteStep()
	total := time.Since(sl.startTime)

	log.Info().Str("job", sl.name).Dur("total_duration", total).Msg("All steps completed")
	for i, step := range sl.steps {
		log.Debug().
			Str("step", step).
			Dur("duration", sl.stepTimes[i]).
			Msgf("  %d. %s", i+1, step)
	}
}

// Fail logs the step that failed
func (sl *StepLogger) Fail(err error) {
	step := "unknown"
	if sl.currentStep >= 0 {
		step = sl.steps[sl.currentStep]
	}
	log.Error().
		Err(err).
		Str("job", sl.name).
		Str("failed_step", step).
		Int("total_steps", len(sl.steps)).
		Msg("Job failed")
}
