package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPointValidation(t *testing.T) {
	_, err := NewPoint(44.8176, 20.4633)
	require.NoError(t, err)

	_, err = NewPoint(90, 180)
	require.NoError(t, err)

	_, err = NewPoint(-90, -180)
	require.NoError(t, err)

	_, err = NewPoint(90.0001, 0.1)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	_, err = NewPoint(-91, 0.1)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	_, err = NewPoint(0.1, 180.5)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	_, err = NewPoint(0.1, -181)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestNewPointZeroSentinel(t *testing.T) {
	p, err := NewPoint(0, 0)
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	p, err = NewPoint(0.1, 0)
	require.NoError(t, err)
	assert.False(t, p.IsZero())
}

func TestDistanceIdenticalPoints(t *testing.T) {
	p, err := NewPoint(44.8176, 20.4633)
	require.NoError(t, err)
	assert.Equal(t, 0.0, Distance(p, p))
}

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][2]Point{
		{{Lat: 44.8176, Lon: 20.4633}, {Lat: 44.8186, Lon: 20.4650}},
		{{Lat: -33.8688, Lon: 151.2093}, {Lat: 51.5074, Lon: -0.1278}},
		{{Lat: 89.9, Lon: 10}, {Lat: -89.9, Lon: -170}},
	}
	for _, pair := range pairs {
		assert.Equal(t, Distance(pair[0], pair[1]), Distance(pair[1], pair[0]))
	}
}

func TestDistanceKnownValues(t *testing.T) {
	// 纬度每变化0.001度约为111.19米
	a := Point{Lat: 44.8176, Lon: 20.4633}
	b := Point{Lat: 44.8186, Lon: 20.4633}
	assert.InDelta(t, 111.19, Distance(a, b), 0.5)

	// 赤道上经度每变化1度约为111.19公里
	c := Point{Lat: 0.00001, Lon: 0}
	d := Point{Lat: 0.00001, Lon: 1}
	assert.InDelta(t, 111195, Distance(c, d), 100)
}

func TestDistanceNoNaN(t *testing.T) {
	// 近对径点的浮点误差不能产生NaN
	a := Point{Lat: 45, Lon: 0}
	b := Point{Lat: -45, Lon: 180}
	dist := Distance(a, b)
	assert.False(t, math.IsNaN(dist))
	assert.Greater(t, dist, 0.0)

	half := math.Pi * EarthRadiusMeters
	assert.LessOrEqual(t, dist, half+1)
}

func TestBearingRange(t *testing.T) {
	points := []Point{
		{Lat: 44.8176, Lon: 20.4633},
		{Lat: 44.9, Lon: 20.5},
		{Lat: -10, Lon: -100},
		{Lat: 60, Lon: 179.9},
	}
	for _, from := range points {
		for _, to := range points {
			b := Bearing(from, to)
			assert.GreaterOrEqual(t, b, 0.0)
			assert.Less(t, b, 360.0)
		}
	}
}

func TestBearingCardinalDirections(t *testing.T) {
	origin := Point{Lat: 0.00001, Lon: 0}

	north := Point{Lat: 1, Lon: 0}
	assert.InDelta(t, 0, Bearing(origin, north), 0.01)

	east := Point{Lat: 0.00001, Lon: 1}
	assert.InDelta(t, 90, Bearing(origin, east), 0.01)

	south := Point{Lat: -1, Lon: 0}
	assert.InDelta(t, 180, Bearing(origin, south), 0.01)

	west := Point{Lat: 0.00001, Lon: -1}
	assert.InDelta(t, 270, Bearing(origin, west), 0.01)
}
