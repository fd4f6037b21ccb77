package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sawpanic/investrun/internal/invest"
	"github.com/sawpanic/investrun/internal/montecarlo"
)

var frequencyNames = map[string]int{
	"yearly":     1,
	"annual":     1,
	"semiannual": 2,
	"biannual":   2,
	"quarterly":  4,
	"bimonthly":  6,
	"monthly":    12,
	"random":     montecarlo.RandomFrequency,
}

func parseFrequency(s string, allowRandom bool) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	n, ok := frequencyNames[s]
	if !ok {
		var err error
		if n, err = strconv.Atoi(s); err != nil {
			return 0, fmt.Errorf("unknown frequency %q", s)
		}
	}
	if n == montecarlo.RandomFrequency {
		if !allowRandom {
			return 0, fmt.Errorf("random frequency is only valid for Monte Carlo runs")
		}
		return n, nil
	}
	if !invest.ValidFrequency(n) {
		return 0, fmt.Errorf("%d times per year: %w", n, invest.ErrInvalidFrequency)
	}
	return n, nil
}

// frequencyValue is a pflag.Value accepting 1,2,3,4,6,12 or their names
type frequencyValue struct {
	n           *int
	allowRandom bool
}

var _ pflag.Value = (*frequencyValue)(nil)

func newFrequencyValue(def int, p *int, allowRandom bool) *frequencyValue {
	*p = def
	return &frequencyValue{n: p, allowRandom: allowRandom}
}

func (f *frequencyValue) Set(s string) error {
	n, err := parseFrequency(s, f.allowRandom)
	if err != nil {
		return err
	}
	*f.n = n
	return nil
}

func (f *frequencyValue) String() string {
	if f.n == nil {
		return ""
	}
	return strconv.Itoa(*f.n)
}

func (f *frequencyValue) Type() string { return "frequency" }

// frequencyListValue is a comma separated list of Monte Carlo frequencies.
// The first Set replaces the defaults; later ones append.
type frequencyListValue struct {
	vals    *[]int
	changed bool
}

var _ pflag.Value = (*frequencyListValue)(nil)

func newFrequencyListValue(def []int, p *[]int) *frequencyListValue {
	*p = append([]int(nil), def...)
	return &frequencyListValue{vals: p}
}

func (f *frequencyListValue) Set(s string) error {
	var parsed []int
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		n, err := parseFrequency(part, true)
		if err != nil {
			return err
		}
		if n == 1 {
			return fmt.Errorf("monte carlo needs a sub-annual frequency, got yearly")
		}
		parsed = append(parsed, n)
	}
	if !f.changed {
		*f.vals = nil
		f.changed = true
	}
	*f.vals = append(*f.vals, parsed...)
	return nil
}

func (f *frequencyListValue) String() string {
	if f.vals == nil {
		return "[]"
	}
	parts := make([]string, len(*f.vals))
	for i, n := range *f.vals {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (f *frequencyListValue) Type() string { return "frequencies" }
