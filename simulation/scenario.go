package simulation

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/example/smokescreen/geometry"
	"github.com/example/smokescreen/kinematics"
)

// Mover is an object flying in a straight line from Position toward Aim at a constant speed.
type Mover struct {
	Position geometry.Vector3 `json:"position" yaml:"position"`
	Aim      geometry.Vector3 `json:"aim" yaml:"aim"`
	Speed    float64          `json:"speed" yaml:"speed"` // m/s
}

// Velocity returns the constant velocity vector of the mover.
func (m Mover) Velocity() (geometry.Vector3, error) {
	return kinematics.VelocityToward(m.Position, m.Aim, m.Speed)
}

// Smoke describes the cloud released by the drone.
type Smoke struct {
	Release  float64 `json:"release" yaml:"release"`   // seconds after scenario start
	Radius   float64 `json:"radius" yaml:"radius"`     // meters
	Lifetime float64 `json:"lifetime" yaml:"lifetime"` // seconds after release; zero means unlimited
}

// Scenario wires a missile, a smoke-laying drone and the target the missile is looking at.
type Scenario struct {
	Name    string           `json:"name" yaml:"name"`
	Gravity *float64         `json:"gravity,omitempty" yaml:"gravity,omitempty"`
	Missile Mover            `json:"missile" yaml:"missile"`
	Drone   Mover            `json:"drone" yaml:"drone"`
	Smoke   Smoke            `json:"smoke" yaml:"smoke"`
	Target  geometry.Vector3 `json:"target" yaml:"target"`
}

// LoadJSON loads a scenario from a JSON reader.
func LoadJSON(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadYAML loads a scenario from a YAML reader.
func LoadYAML(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GravityOrDefault returns the configured gravity, falling back to kinematics.DefaultGravity.
func (s Scenario) GravityOrDefault() float64 {
	if s.Gravity == nil {
		return kinematics.DefaultGravity
	}
	return *s.Gravity
}

// Validate checks that the scenario can be evaluated at any instant.
func (s Scenario) Validate() error {
	if _, err := s.Missile.Velocity(); err != nil {
		return fmt.Errorf("missile: %w", err)
	}
	if _, err := s.Drone.Velocity(); err != nil {
		return fmt.Errorf("drone: %w", err)
	}
	if err := (geometry.Sphere{Radius: s.Smoke.Radius}).Validate(); err != nil {
		return fmt.Errorf("smoke: %w", err)
	}
	if !(s.Smoke.Release >= 0) {
		return fmt.Errorf("smoke: release time must be non-negative: %w", geometry.ErrInvalidArgument)
	}
	if !(s.Smoke.Lifetime >= 0) {
		return fmt.Errorf("smoke: lifetime must be non-negative: %w", geometry.ErrInvalidArgument)
	}
	if g := s.GravityOrDefault(); math.IsNaN(g) || math.IsInf(g, 0) {
		return fmt.Errorf("gravity must be finite: %w", geometry.ErrInvalidArgument)
	}
	return nil
}

// Snapshot captures every object of a scenario at one instant.
type Snapshot struct {
	Time        float64           `json:"time"`
	Missile     geometry.Vector3  `json:"missile"`
	Drone       geometry.Vector3  `json:"drone"`
	Target      geometry.Vector3  `json:"target"`
	Smoke       *geometry.Vector3 `json:"smoke,omitempty"`
	SmokeActive bool              `json:"smokeActive"`
	Obscured    bool              `json:"obscured"`
}

// SmokeActive reports whether the cloud exists at time t.
func (s Scenario) SmokeActive(t float64) bool {
	if t < s.Smoke.Release {
		return false
	}
	return s.Smoke.Lifetime == 0 || t-s.Smoke.Release <= s.Smoke.Lifetime
}

// Evaluate computes the missile, drone and smoke positions at time t and whether the
// missile's line of sight to the target passes through the smoke.
func (s Scenario) Evaluate(t float64) (Snapshot, error) {
	missileVelocity, err := s.Missile.Velocity()
	if err != nil {
		return Snapshot{}, fmt.Errorf("missile: %w", err)
	}
	droneVelocity, err := s.Drone.Velocity()
	if err != nil {
		return Snapshot{}, fmt.Errorf("drone: %w", err)
	}

	snap := Snapshot{
		Time:    t,
		Missile: kinematics.LinearMotion(s.Missile.Position, missileVelocity, t),
		Drone:   kinematics.LinearMotion(s.Drone.Position, droneVelocity, t),
		Target:  s.Target,
	}
	if !s.SmokeActive(t) {
		return snap, nil
	}

	// The cloud inherits the drone's velocity at release and then falls freely.
	released := kinematics.LinearMotion(s.Drone.Position, droneVelocity, s.Smoke.Release)
	center := kinematics.ProjectileMotion(released, droneVelocity, t-s.Smoke.Release, s.GravityOrDefault())

	obscured, err := geometry.SegmentIntersectsSphere(snap.Missile, s.Target, s.Smoke.Radius, center)
	if err != nil {
		return Snapshot{}, fmt.Errorf("smoke: %w", err)
	}

	snap.Smoke = &center
	snap.SmokeActive = true
	snap.Obscured = obscured
	return snap, nil
}

// Obscured is a Predicate-shaped helper for sweeps.
func (s Scenario) Obscured(t float64) (bool, error) {
	snap, err := s.Evaluate(t)
	if err != nil {
		return false, err
	}
	return snap.Obscured, nil
}
