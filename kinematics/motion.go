package kinematics

import (
	"fmt"

	"github.com/example/smokescreen/geometry"
)

// DefaultGravity is the standard gravitational acceleration in m/s^2.
// Positive values pull toward negative z.
const DefaultGravity = 9.81

// LinearMotion returns the position of a point moving with constant velocity,
// P(t) = P0 + V*t. Any finite t is accepted, including negative values.
func LinearMotion(initial, velocity geometry.Vector3, t float64) geometry.Vector3 {
	return initial.Add(velocity.Scale(t))
}

// ProjectileMotion returns the position of a point that moves uniformly in x and y
// while falling under constant gravity g along z: z(t) = z0 + vz*t - g*t^2/2.
// With g == 0 the result equals LinearMotion.
func ProjectileMotion(initial, velocity geometry.Vector3, t, g float64) geometry.Vector3 {
	position := LinearMotion(initial, velocity, t)
	position.Z -= 0.5 * g * t * t
	return position
}

// VelocityToward returns a velocity of the given speed pointing from one position to another.
func VelocityToward(from, to geometry.Vector3, speed float64) (geometry.Vector3, error) {
	if !(speed >= 0) {
		return geometry.Vector3{}, fmt.Errorf("speed must be non-negative, got %v: %w", speed, geometry.ErrInvalidArgument)
	}

	direction := to.Sub(from)
	length := direction.Norm()
	if length == 0 {
		return geometry.Vector3{}, fmt.Errorf("direction from %v to %v has zero length: %w", from, to, geometry.ErrInvalidArgument)
	}

	return direction.Scale(speed / length), nil
}
