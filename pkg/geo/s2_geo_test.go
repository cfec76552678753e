package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPointInLine(t *testing.T) {

	lat, lon := 47.667347, -122.120561

	linePoints := []Coordinate{
		NewCoordinate(47.667324, -122.118989),
		NewCoordinate(47.667338, -122.121784),
	}

	result := PointPositionBetweenLinePoints(lat, lon, linePoints)
	if result != 1 {
		t.Errorf("Expected 1, got %d", result)
	}
}

func TestS2CellDistance(t *testing.T) {
	a := S2CellID(51.5246, -0.1381)
	b := S2CellID(51.5246, -0.1381)
	assert.Equal(t, a, b)
	assert.InDelta(t, 0, GreatCircleDistanceBetweenCells(a, b), 1e-6)

	c := S2CellID(51.5246, -0.1240)
	// ~976 m along the parallel
	assert.InDelta(t, 976, GreatCircleDistanceBetweenCells(a, c), 5)
}

func TestSnapPointToLine(t *testing.T) {
	line := []Coordinate{
		NewCoordinate(0, 0),
		NewCoordinate(0, 0.001),
		NewCoordinate(0, 0.002),
	}

	snap, err := SnapPointToLine(NewCoordinate(0.0005, 0.0015), line)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.SegmentIndex)
	assert.InDelta(t, 0, snap.Point.Lat, 1e-9)
	assert.InDelta(t, 0.0015, snap.Point.Lon, 1e-9)
	assert.InDelta(t, 55.6, snap.Distance, 0.5)

	_, err = SnapPointToLine(NewCoordinate(0, 0), line[:1])
	assert.ErrorIs(t, err, ErrLineTooShort)
}

func TestSplitLineAtPoint(t *testing.T) {
	line := []Coordinate{
		NewCoordinate(0, 0),
		NewCoordinate(0, 0.001),
		NewCoordinate(0, 0.002),
	}

	t.Run("split inside a segment", func(t *testing.T) {
		head, tail, err := SplitLineAtPoint(line, NewCoordinate(0.0001, 0.0005))
		require.NoError(t, err)
		assert.Len(t, head, 2)
		assert.Len(t, tail, 3)
		assert.InDelta(t, 0.0005, head[1].Lon, 1e-9)
		assert.Equal(t, head[len(head)-1], tail[0])
	})

	t.Run("split on a vertex", func(t *testing.T) {
		head, tail, err := SplitLineAtPoint(line, NewCoordinate(0.0001, 0.001))
		require.NoError(t, err)
		assert.Len(t, head, 2)
		assert.Len(t, tail, 2)
		assert.InDelta(t, 0.002, tail[1].Lon, 1e-9)
	})
}
