package geometry

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	a := Vector3{X: 1, Y: 2, Z: 3}
	b := Vector3{X: 4, Y: 6, Z: 3}

	got := Distance(a, b)
	if math.Abs(got-5) > 1e-12 {
		t.Fatalf("distance mismatch: got %f, want 5", got)
	}
}

func TestVectorArithmeticDoesNotMutate(t *testing.T) {
	v := Vector3{X: 1, Y: -2, Z: 3}
	o := Vector3{X: 0.5, Y: 0.5, Z: 0.5}

	assert.Equal(t, Vector3{X: 1.5, Y: -1.5, Z: 3.5}, v.Add(o))
	assert.Equal(t, Vector3{X: 0.5, Y: -2.5, Z: 2.5}, v.Sub(o))
	assert.Equal(t, Vector3{X: 2, Y: -4, Z: 6}, v.Scale(2))
	assert.Equal(t, 1.0, v.Dot(o))
	assert.Equal(t, Vector3{X: 1, Y: -2, Z: 3}, v)
}

func TestSegmentIntersectsSphere(t *testing.T) {
	origin := Vector3{}
	end := Vector3{X: 10}

	cases := []struct {
		name   string
		a, b   Vector3
		center Vector3
		radius float64
		want   bool
	}{
		{name: "through center", a: origin, b: end, center: Vector3{X: 5}, radius: 1, want: true},
		{name: "far away", a: origin, b: end, center: Vector3{X: 5, Y: 10}, radius: 1, want: false},
		{name: "tangent", a: origin, b: end, center: Vector3{X: 5, Y: 1}, radius: 1, want: true},
		{name: "beyond endpoint", a: origin, b: end, center: Vector3{X: 15}, radius: 1, want: false},
		{name: "before start", a: origin, b: end, center: Vector3{X: -3}, radius: 1, want: false},
		{name: "touches end", a: origin, b: end, center: Vector3{X: 11}, radius: 1, want: true},
		{name: "touches start", a: origin, b: end, center: Vector3{X: -1}, radius: 1, want: true},
		{name: "start inside", a: origin, b: end, center: Vector3{X: 0.5}, radius: 1, want: true},
		{name: "segment fully inside", a: origin, b: end, center: Vector3{X: 5}, radius: 100, want: true},
		{name: "point sphere on segment", a: origin, b: end, center: Vector3{X: 4}, radius: 0, want: true},
		{name: "point sphere off segment", a: origin, b: end, center: Vector3{X: 4, Z: 0.1}, radius: 0, want: false},
		{name: "degenerate inside", a: origin, b: origin, center: Vector3{Z: 0.5}, radius: 1, want: true},
		{name: "degenerate on surface", a: origin, b: origin, center: Vector3{Z: 1}, radius: 1, want: true},
		{name: "degenerate outside", a: origin, b: origin, center: Vector3{Z: 2}, radius: 1, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SegmentIntersectsSphere(tc.a, tc.b, tc.radius, tc.center)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			reversed, err := SegmentIntersectsSphere(tc.b, tc.a, tc.radius, tc.center)
			require.NoError(t, err)
			assert.Equal(t, got, reversed, "intersection must not depend on segment direction")
		})
	}
}

func TestSegmentIntersectsSphereSymmetry(t *testing.T) {
	points := []Vector3{
		{X: 0, Y: 0, Z: 0},
		{X: 3, Y: -2, Z: 7},
		{X: -4.5, Y: 1.25, Z: 2},
		{X: 12, Y: 8, Z: -6},
	}
	spheres := []Sphere{
		{Center: Vector3{X: 1, Y: 1, Z: 1}, Radius: 2},
		{Center: Vector3{X: 6, Y: 3, Z: 0}, Radius: 0.75},
		{Center: Vector3{X: -20, Y: 0, Z: 0}, Radius: 3},
	}

	for _, s := range spheres {
		for _, a := range points {
			for _, b := range points {
				forward, err := s.IntersectsSegment(a, b)
				require.NoError(t, err)
				backward, err := s.IntersectsSegment(b, a)
				require.NoError(t, err)
				assert.Equalf(t, forward, backward, "a=%v b=%v sphere=%v", a, b, s)
			}
		}
	}
}

// Radii equal to the exact segment distance put the discriminant on a rounding
// knife edge, where unordered endpoints used to disagree.
func TestSegmentIntersectsSphereSymmetryNearTangency(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	coord := func() float64 { return (rng.Float64()*2 - 1) * 1e4 }
	point := func() Vector3 { return Vector3{X: coord(), Y: coord(), Z: coord()} }

	for i := 0; i < 5000; i++ {
		a, b, center := point(), point(), point()

		direction := b.Sub(a)
		along := center.Sub(a).Dot(direction) / direction.Dot(direction)
		along = math.Max(0, math.Min(1, along))
		radius := Distance(center, a.Add(direction.Scale(along)))

		for _, r := range []float64{math.Nextafter(radius, 0), radius, math.Nextafter(radius, math.Inf(1))} {
			s := Sphere{Center: center, Radius: r}
			forward, err := s.IntersectsSegment(a, b)
			require.NoError(t, err)
			backward, err := s.IntersectsSegment(b, a)
			require.NoError(t, err)
			require.Equalf(t, forward, backward, "a=%v b=%v sphere=%v", a, b, s)
		}
	}
}

func TestSegmentIntersectsSphereExtremeMagnitudes(t *testing.T) {
	cases := []struct {
		name   string
		a, b   Vector3
		center Vector3
		radius float64
		want   bool
	}{
		{name: "huge through center", a: Vector3{X: 1e200}, b: Vector3{X: -1e200}, radius: 1, want: true},
		{name: "huge near miss", a: Vector3{X: 1e200}, b: Vector3{X: -1e200}, center: Vector3{Y: 5e199}, radius: 1e199, want: false},
		{name: "huge graze", a: Vector3{X: 1e200}, b: Vector3{X: -1e200}, center: Vector3{Y: 5e199}, radius: 6e199, want: true},
		{name: "tiny hit", a: Vector3{X: 1e-200}, b: Vector3{X: -1e-200}, center: Vector3{Y: 1e-201}, radius: 2e-201, want: true},
		{name: "tiny miss", a: Vector3{X: 1e-200}, b: Vector3{X: -1e-200}, center: Vector3{Y: 3e-201}, radius: 2e-201, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SegmentIntersectsSphere(tc.a, tc.b, tc.radius, tc.center)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			reversed, err := SegmentIntersectsSphere(tc.b, tc.a, tc.radius, tc.center)
			require.NoError(t, err)
			assert.Equal(t, tc.want, reversed)
		})
	}
}

func TestNegativeRadiusIsInvalid(t *testing.T) {
	_, err := SegmentIntersectsSphere(Vector3{}, Vector3{X: 1}, -1, Vector3{})
	require.Error(t, err)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	_, err = SegmentIntersectsSphere(Vector3{}, Vector3{X: 1}, math.NaN(), Vector3{})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSphereContains(t *testing.T) {
	s := Sphere{Center: Vector3{X: 1, Y: 1, Z: 1}, Radius: 1}

	assert.True(t, s.Contains(Vector3{X: 1, Y: 1, Z: 2}))
	assert.True(t, s.Contains(Vector3{X: 1.5, Y: 1, Z: 1}))
	assert.False(t, s.Contains(Vector3{X: 3, Y: 1, Z: 1}))

	huge := Sphere{Center: Vector3{X: 1e200, Z: 2e200}, Radius: 2e200}
	assert.True(t, huge.Contains(Vector3{X: 1e200}))
	huge.Radius = 1e200
	assert.False(t, huge.Contains(Vector3{X: 1e200}))
	assert.NoError(t, Sphere{}.Validate())
}
