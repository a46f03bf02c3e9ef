package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidArgument is returned when an input violates a documented contract,
// such as a negative sphere radius.
var ErrInvalidArgument = errors.New("invalid argument")

// Vector3 is a position or velocity in a single Cartesian frame.
// Units are the caller's responsibility (meters, seconds, m/s).
type Vector3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func fromVec(v mgl64.Vec3) Vector3 {
	return Vector3{X: v[0], Y: v[1], Z: v[2]}
}

func (v Vector3) vec() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return fromVec(v.vec().Add(o.vec()))
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return fromVec(v.vec().Sub(o.vec()))
}

// Scale returns v multiplied by factor.
func (v Vector3) Scale(factor float64) Vector3 {
	return fromVec(v.vec().Mul(factor))
}

// Dot returns the scalar product of v and o.
func (v Vector3) Dot(o Vector3) float64 {
	return v.vec().Dot(o.vec())
}

// Norm returns the Euclidean length of v.
func (v Vector3) Norm() float64 {
	return v.vec().Len()
}

// Distance returns the straight-line distance between two positions.
func Distance(a, b Vector3) float64 {
	return b.Sub(a).Norm()
}

// Sphere is a closed ball, e.g. the extent of a smoke cloud at one instant.
type Sphere struct {
	Center Vector3 `json:"center" yaml:"center"`
	Radius float64 `json:"radius" yaml:"radius"`
}

// Validate reports whether the radius is usable. Zero is a valid point sphere.
func (s Sphere) Validate() error {
	if !(s.Radius >= 0) {
		return fmt.Errorf("sphere radius must be non-negative, got %v: %w", s.Radius, ErrInvalidArgument)
	}
	return nil
}

// Contains reports whether p lies on or inside the sphere.
func (s Sphere) Contains(p Vector3) bool {
	offset := p.Sub(s.Center)
	factor := normalizer(offset, Vector3{}, s.Radius)
	offset = offset.Scale(factor)
	r := s.Radius * factor
	return offset.Dot(offset) <= r*r
}

// IntersectsSegment reports whether the closed segment ab touches the sphere.
func (s Sphere) IntersectsSegment(a, b Vector3) (bool, error) {
	if err := s.Validate(); err != nil {
		return false, err
	}
	return segmentIntersectsSphere(a, b, s), nil
}

// SegmentIntersectsSphere reports whether the closed segment from a to b touches
// the surface or interior of the sphere at center with the given radius.
// Tangency and contact exactly at an endpoint count as intersections.
// A zero-length segment is treated as the single point a.
func SegmentIntersectsSphere(a, b Vector3, radius float64, center Vector3) (bool, error) {
	return Sphere{Center: center, Radius: radius}.IntersectsSegment(a, b)
}

// segmentIntersectsSphere is symmetric in its endpoints: they are put in a
// fixed order first, so ab and ba run the same arithmetic.
func segmentIntersectsSphere(p0, p1 Vector3, s Sphere) bool {
	if lessLexical(p1, p0) {
		p0, p1 = p1, p0
	}
	direction := p1.Sub(p0)
	fromCenter := p0.Sub(s.Center)

	// Squaring coordinates near 1e154 overflows; rescale by a power of two,
	// which is exact and leaves the root parameters unchanged.
	factor := normalizer(direction, fromCenter, s.Radius)
	direction = direction.Scale(factor)
	fromCenter = fromCenter.Scale(factor)
	radius := s.Radius * factor

	a := direction.Dot(direction)
	c := fromCenter.Dot(fromCenter) - radius*radius
	if a == 0 {
		return c <= 0
	}
	b := 2 * fromCenter.Dot(direction)

	discriminant := b*b - 4*a*c
	if discriminant < 0 {
		return false
	}

	sqrtD := math.Sqrt(discriminant)
	denom := 2 * a
	t1 := (-b - sqrtD) / denom
	t2 := (-b + sqrtD) / denom

	// [t1, t2] is where the infinite line is inside the ball; it must overlap [0, 1].
	return t1 <= 1 && t2 >= 0
}

func lessLexical(u, v Vector3) bool {
	if u.X != v.X {
		return u.X < v.X
	}
	if u.Y != v.Y {
		return u.Y < v.Y
	}
	return u.Z < v.Z
}

// normalizer returns the power of two that brings the largest magnitude among
// the inputs into [0.5, 1). It returns 1 when they are all zero or non-finite.
func normalizer(u, v Vector3, r float64) float64 {
	largest := math.Abs(r)
	for _, x := range [...]float64{u.X, u.Y, u.Z, v.X, v.Y, v.Z} {
		largest = math.Max(largest, math.Abs(x))
	}
	if largest == 0 || math.IsInf(largest, 0) || math.IsNaN(largest) {
		return 1
	}
	_, exp := math.Frexp(largest)
	if exp < -1020 {
		// 2^-exp would overflow for subnormal inputs.
		exp = -1020
	}
	return math.Ldexp(1, -exp)
}
