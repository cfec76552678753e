package geo_test

import (
	"testing"

	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/paulmach/orb"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	cases := []struct {
		latOne, longOne, latTwo, longTwo float64
		expectedDist                     float64
	}{
		{
			latOne:       -7.557155997491524,
			longOne:      110.77170252731288,
			latTwo:       -7.550209300671982,
			longTwo:      110.78942094938256,
			expectedDist: 2.1,
		},
		{
			latOne:       -7.759889166547908,
			longOne:      110.36689459108496,
			latTwo:       -7.760335932763678,
			longTwo:      110.37671195413539,
			expectedDist: 1.08,
		},
	}

	t.Run("success haversine distance", func(t *testing.T) {
		for _, c := range cases {
			dist := geo.CalculateHaversineDistance(c.latOne, c.longOne, c.latTwo, c.longTwo)
			assert.InDelta(t, c.expectedDist, dist, 0.1)
		}
	})
}

func TestMetresToDegrees(t *testing.T) {
	// at the equator a degree is ~111.32 km
	assert.InDelta(t, 1.0, geo.MetresToDegrees(111_320, 0), 1e-9)
	// degrees per metre grow with latitude
	assert.Greater(t, geo.MetresToDegrees(100, 60), geo.MetresToDegrees(100, 10))
	assert.InDelta(t, 2*geo.MetresToDegrees(100, 0), geo.MetresToDegrees(100, 60), 1e-9)
}

func TestLineLength(t *testing.T) {
	ls := orb.LineString{{-0.1381, 51.5246}, {-0.1240, 51.5246}}
	assert.InDelta(t, 976, geo.LineLength(ls), 5)
}
