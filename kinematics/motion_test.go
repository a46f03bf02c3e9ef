package kinematics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/smokescreen/geometry"
)

var (
	samplePositions = []geometry.Vector3{
		{X: 0, Y: 0, Z: 0},
		{X: 20000, Y: 0, Z: 2000},
		{X: -3.5, Y: 12.25, Z: 7},
	}
	sampleVelocities = []geometry.Vector3{
		{X: 0, Y: 0, Z: 0},
		{X: -298.51, Y: 0, Z: -29.85},
		{X: 1.5, Y: -2, Z: 40},
	}
	sampleTimes = []float64{0, 0.25, 1.5, 5.1, 42}
)

func TestLinearMotionAtZeroReturnsInitial(t *testing.T) {
	for _, p0 := range samplePositions {
		for _, v := range sampleVelocities {
			assert.Equal(t, p0, LinearMotion(p0, v, 0))
		}
	}
}

func TestLinearMotionPerAxis(t *testing.T) {
	got := LinearMotion(geometry.Vector3{X: 1, Y: 2, Z: 3}, geometry.Vector3{X: 2, Y: -1, Z: 0.5}, 4)
	assert.Equal(t, geometry.Vector3{X: 9, Y: -2, Z: 5}, got)

	backward := LinearMotion(geometry.Vector3{X: 1, Y: 2, Z: 3}, geometry.Vector3{X: 2, Y: -1, Z: 0.5}, -2)
	assert.Equal(t, geometry.Vector3{X: -3, Y: 4, Z: 2}, backward)
}

func TestLinearMotionComposes(t *testing.T) {
	for _, p0 := range samplePositions {
		for _, v := range sampleVelocities {
			for _, t1 := range sampleTimes {
				for _, t2 := range sampleTimes {
					direct := LinearMotion(p0, v, t1+t2)
					stepped := LinearMotion(LinearMotion(p0, v, t1), v, t2)
					assert.InDelta(t, direct.X, stepped.X, 1e-9)
					assert.InDelta(t, direct.Y, stepped.Y, 1e-9)
					assert.InDelta(t, direct.Z, stepped.Z, 1e-9)
				}
			}
		}
	}
}

func TestProjectileWithoutGravityMatchesLinear(t *testing.T) {
	for _, p0 := range samplePositions {
		for _, v := range sampleVelocities {
			for _, tt := range append(sampleTimes, -3) {
				assert.Equal(t, LinearMotion(p0, v, tt), ProjectileMotion(p0, v, tt, 0))
			}
		}
	}
}

func TestProjectileFallsBelowLinear(t *testing.T) {
	for _, p0 := range samplePositions {
		for _, v := range sampleVelocities {
			for _, tt := range sampleTimes[1:] {
				projectile := ProjectileMotion(p0, v, tt, DefaultGravity)
				linear := LinearMotion(p0, v, tt)
				assert.LessOrEqual(t, projectile.Z, linear.Z)
				assert.Equal(t, linear.X, projectile.X)
				assert.Equal(t, linear.Y, projectile.Y)
			}
		}
	}
}

func TestProjectileAtZeroReturnsInitial(t *testing.T) {
	p0 := geometry.Vector3{X: 17800, Y: 0, Z: 1800}
	assert.Equal(t, p0, ProjectileMotion(p0, geometry.Vector3{X: -119.4, Z: -12.07}, 0, DefaultGravity))
}

func TestProjectileFreeFall(t *testing.T) {
	got := ProjectileMotion(geometry.Vector3{Z: 100}, geometry.Vector3{}, 2, 10)
	assert.Equal(t, geometry.Vector3{Z: 80}, got)
}

func TestVelocityToward(t *testing.T) {
	v, err := VelocityToward(geometry.Vector3{X: 20000, Z: 2000}, geometry.Vector3{}, 300)
	require.NoError(t, err)
	assert.InDelta(t, 300, v.Norm(), 1e-9)
	assert.Less(t, v.X, 0.0)
	assert.Less(t, v.Z, 0.0)
	assert.InDelta(t, 10, v.X/v.Z, 1e-9)

	still, err := VelocityToward(geometry.Vector3{X: 1}, geometry.Vector3{X: 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, still.Norm())
}

func TestVelocityTowardRejectsBadInput(t *testing.T) {
	_, err := VelocityToward(geometry.Vector3{X: 1}, geometry.Vector3{X: 1}, 10)
	require.ErrorIs(t, err, geometry.ErrInvalidArgument)

	_, err = VelocityToward(geometry.Vector3{}, geometry.Vector3{X: 1}, -1)
	require.ErrorIs(t, err, geometry.ErrInvalidArgument)

	_, err = VelocityToward(geometry.Vector3{}, geometry.Vector3{X: 1}, math.NaN())
	require.ErrorIs(t, err, geometry.ErrInvalidArgument)
}
