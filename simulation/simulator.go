package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/smokescreen/geometry"
	"github.com/example/smokescreen/obscuration"
)

// ErrUnknownScenario is returned when no scenario is registered under an ID.
var ErrUnknownScenario = errors.New("unknown scenario")

// EventType enumerates the categories of updates emitted by the simulator.
type EventType string

const (
	// EventScenarioAdded signals that a scenario was registered.
	EventScenarioAdded EventType = "scenario_added"
	// EventScenarioRemoved signals that a scenario was deleted.
	EventScenarioRemoved EventType = "scenario_removed"
	// EventSweepCompleted indicates a sweep finished and carries its summary.
	EventSweepCompleted EventType = "sweep_completed"
)

// Event is published whenever the simulator registry changes or a sweep completes.
type Event struct {
	Type       EventType
	ScenarioID string
	Summary    *obscuration.Summary
}

// Entry is a registered scenario together with its ID.
type Entry struct {
	ID       string   `json:"id"`
	Scenario Scenario `json:"scenario"`
}

// SweepResult is the outcome of sampling a scenario over a time window.
type SweepResult struct {
	ScenarioID string                  `json:"scenarioId"`
	Config     obscuration.SweepConfig `json:"config"`
	Samples    []obscuration.Sample    `json:"samples"`
	Summary    obscuration.Summary     `json:"summary"`
}

// Simulator keeps a registry of scenarios and evaluates them on request.
// Evaluation itself is pure; the mutex only guards the registry.
type Simulator struct {
	mu        sync.RWMutex
	scenarios map[string]Scenario
	events    chan Event
}

// NewSimulator constructs an empty simulator.
func NewSimulator() *Simulator {
	return &Simulator{
		scenarios: make(map[string]Scenario),
		events:    make(chan Event, 8),
	}
}

// DemoScenario returns the reference engagement: a missile diving at 300 m/s toward the
// origin, a drone flying the same way at 120 m/s that releases smoke after 1.5 s.
func DemoScenario() Scenario {
	return Scenario{
		Name:    "demo",
		Missile: Mover{Position: geometry.Vector3{X: 20000, Y: 0, Z: 2000}, Speed: 300},
		Drone:   Mover{Position: geometry.Vector3{X: 17800, Y: 0, Z: 1800}, Speed: 120},
		Smoke:   Smoke{Release: 1.5, Radius: 10},
		Target:  geometry.Vector3{X: 0, Y: 200, Z: 0},
	}
}

// NewDemoSimulator builds a simulator holding DemoScenario, useful for manual testing of the API server.
func NewDemoSimulator() (*Simulator, string) {
	sim := NewSimulator()
	id, err := sim.Add(DemoScenario())
	if err != nil {
		// The demo should never fail; panic to surface configuration issues.
		panic(err)
	}
	return sim, id
}

// Events exposes a read-only channel of simulator updates.
func (s *Simulator) Events() <-chan Event {
	return s.events
}

// Add validates and registers a scenario, returning its generated ID.
func (s *Simulator) Add(scenario Scenario) (string, error) {
	if err := scenario.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()

	s.mu.Lock()
	s.scenarios[id] = scenario
	s.mu.Unlock()

	s.publishEvent(Event{Type: EventScenarioAdded, ScenarioID: id})
	return id, nil
}

// Get returns the scenario registered under id.
func (s *Simulator) Get(id string) (Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scenario, ok := s.scenarios[id]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %s", ErrUnknownScenario, id)
	}
	return scenario, nil
}

// Remove deletes a scenario.
func (s *Simulator) Remove(id string) error {
	s.mu.Lock()
	if _, ok := s.scenarios[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownScenario, id)
	}
	delete(s.scenarios, id)
	s.mu.Unlock()

	s.publishEvent(Event{Type: EventScenarioRemoved, ScenarioID: id})
	return nil
}

// List returns every registered scenario ordered by name, then ID.
func (s *Simulator) List() []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.scenarios))
	for id, scenario := range s.scenarios {
		entries = append(entries, Entry{ID: id, Scenario: scenario})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Scenario.Name != entries[j].Scenario.Name {
			return entries[i].Scenario.Name < entries[j].Scenario.Name
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Snapshot evaluates the scenario registered under id at time t.
func (s *Simulator) Snapshot(id string, t float64) (Snapshot, error) {
	scenario, err := s.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return scenario.Evaluate(t)
}

// Sweep samples the scenario registered under id across the configured window.
func (s *Simulator) Sweep(ctx context.Context, id string, cfg obscuration.SweepConfig) (SweepResult, error) {
	scenario, err := s.Get(id)
	if err != nil {
		return SweepResult{}, err
	}

	timeline, err := obscuration.NewTimeline(cfg)
	if err != nil {
		return SweepResult{}, err
	}
	if err := timeline.Evaluate(ctx, scenario.Obscured); err != nil {
		return SweepResult{}, err
	}

	summary := timeline.Summarize()
	s.publishEvent(Event{Type: EventSweepCompleted, ScenarioID: id, Summary: &summary})

	return SweepResult{
		ScenarioID: id,
		Config:     cfg,
		Samples:    timeline.Samples(),
		Summary:    summary,
	}, nil
}

// Stream walks the configured window in time order, evaluating each instant
// once and handing the snapshot to emit before moving on. An emit error stops
// the walk and is returned. The summary is published like a Sweep's.
func (s *Simulator) Stream(ctx context.Context, id string, cfg obscuration.SweepConfig, emit func(Snapshot) error) (obscuration.Summary, error) {
	scenario, err := s.Get(id)
	if err != nil {
		return obscuration.Summary{}, err
	}

	timeline, err := obscuration.NewTimeline(cfg)
	if err != nil {
		return obscuration.Summary{}, err
	}
	err = timeline.Walk(ctx, func(t float64) (bool, error) {
		snap, err := scenario.Evaluate(t)
		if err != nil {
			return false, err
		}
		if err := emit(snap); err != nil {
			return false, err
		}
		return snap.Obscured, nil
	})
	if err != nil {
		return obscuration.Summary{}, err
	}

	summary := timeline.Summarize()
	s.publishEvent(Event{Type: EventSweepCompleted, ScenarioID: id, Summary: &summary})
	return summary, nil
}

func (s *Simulator) publishEvent(event Event) {
	select {
	case s.events <- event:
	default:
		// Drop the event when the channel is full to avoid blocking the caller.
	}
}
