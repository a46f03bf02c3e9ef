package obscuration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// MaxSamples caps the number of instants a single sweep may evaluate.
const MaxSamples = 100000

// ErrInvalidSweep is returned when a SweepConfig cannot produce a timeline.
var ErrInvalidSweep = errors.New("invalid sweep")

// SweepConfig controls the sampling of a time window.
type SweepConfig struct {
	Start   float64 `json:"start" yaml:"start"` // seconds
	End     float64 `json:"end" yaml:"end"`     // seconds, inclusive
	Step    float64 `json:"step" yaml:"step"`   // seconds between samples
	Workers int     `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// Validate ensures the configuration is usable for generating a timeline.
func (c SweepConfig) Validate() error {
	if !(c.Step > 0) || math.IsInf(c.Step, 0) {
		return fmt.Errorf("%w: step must be positive and finite", ErrInvalidSweep)
	}
	if math.IsNaN(c.Start) || math.IsNaN(c.End) || math.IsInf(c.Start, 0) || math.IsInf(c.End, 0) {
		return fmt.Errorf("%w: window bounds must be finite", ErrInvalidSweep)
	}
	if c.End < c.Start {
		return fmt.Errorf("%w: end %v is before start %v", ErrInvalidSweep, c.End, c.Start)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative", ErrInvalidSweep)
	}
	if (c.End-c.Start)/c.Step >= MaxSamples {
		return fmt.Errorf("%w: window needs more than %d samples", ErrInvalidSweep, MaxSamples)
	}
	return nil
}

func (c SweepConfig) count() int {
	// The small slack keeps End itself when (End-Start)/Step lands just under an integer.
	return int(math.Floor((c.End-c.Start)/c.Step+1e-9)) + 1
}

// Sample is the line-of-sight verdict at a single instant.
type Sample struct {
	Time     float64 `json:"time"`
	Obscured bool    `json:"obscured"`
}

// Predicate reports whether the line of sight is obscured at time t.
// It must be safe for concurrent use.
type Predicate func(t float64) (bool, error)

// Timeline holds the sample instants of a sweep and their verdicts.
type Timeline struct {
	Config  SweepConfig
	samples []Sample
}

// NewTimeline lays out instants Start + i*Step covering [Start, End].
func NewTimeline(config SweepConfig) (*Timeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	n := config.count()
	samples := make([]Sample, n)
	for i := range samples {
		samples[i].Time = config.Start + float64(i)*config.Step
	}

	return &Timeline{Config: config, samples: samples}, nil
}

// Evaluate runs the predicate at every instant using a bounded worker pool.
// The first error cancels the remaining work and is returned.
func (tl *Timeline) Evaluate(ctx context.Context, predicate Predicate) error {
	workers := tl.Config.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range tl.samples {
		if groupCtx.Err() != nil {
			break
		}
		sample := &tl.samples[i]
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			obscured, err := predicate(sample.Time)
			if err != nil {
				return fmt.Errorf("sample at t=%v: %w", sample.Time, err)
			}
			sample.Obscured = obscured
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Walk runs the predicate at each instant in time order on the calling
// goroutine, so the predicate may emit results as it goes. It stops at the
// first predicate error or when ctx is done.
func (tl *Timeline) Walk(ctx context.Context, predicate Predicate) error {
	for i := range tl.samples {
		if err := ctx.Err(); err != nil {
			return err
		}
		sample := &tl.samples[i]
		obscured, err := predicate(sample.Time)
		if err != nil {
			return fmt.Errorf("sample at t=%v: %w", sample.Time, err)
		}
		sample.Obscured = obscured
	}
	return nil
}

// Interval is a closed run of consecutive obscured samples.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Summary captures high-level obscuration statistics for a sweep.
type Summary struct {
	TotalSamples    int        `json:"totalSamples"`
	ObscuredSamples int        `json:"obscuredSamples"`
	ObscuredPercent float64    `json:"obscuredPercent"`
	ObscuredSeconds float64    `json:"obscuredSeconds"`
	Intervals       []Interval `json:"intervals"`
}

// Summarize returns obscuration statistics and the merged obscured intervals.
// ObscuredSeconds approximates total cover as obscured samples times the step.
func (tl *Timeline) Summarize() Summary {
	var obscured int
	intervals := make([]Interval, 0)
	open := false

	for _, sample := range tl.samples {
		if !sample.Obscured {
			open = false
			continue
		}
		obscured++
		if open {
			intervals[len(intervals)-1].End = sample.Time
			continue
		}
		intervals = append(intervals, Interval{Start: sample.Time, End: sample.Time})
		open = true
	}

	total := len(tl.samples)
	percent := 0.0
	if total > 0 {
		percent = (float64(obscured) / float64(total)) * 100.0
	}

	return Summary{
		TotalSamples:    total,
		ObscuredSamples: obscured,
		ObscuredPercent: percent,
		ObscuredSeconds: float64(obscured) * tl.Config.Step,
		Intervals:       intervals,
	}
}

// Samples exposes a copy of the evaluated samples.
func (tl *Timeline) Samples() []Sample {
	out := make([]Sample, len(tl.samples))
	copy(out, tl.samples)
	return out
}
