package geo

import (
	"errors"
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

var ErrLineTooShort = errors.New("line needs at least two points")

// S2CellID returns the leaf S2 cell containing the coordinate.
func S2CellID(lat, lon float64) uint64 {
	return uint64(s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)))
}

// GreatCircleDistanceBetweenCells returns the distance in metres between the centres of two S2 cells.
func GreatCircleDistanceBetweenCells(a, b uint64) float64 {
	la := s2.CellID(a).LatLng()
	lb := s2.CellID(b).LatLng()
	return la.Distance(lb).Radians() * earthRadiusM
}

// ProjectPointToLine projects snap onto the great-circle segment (from, to).
func ProjectPointToLine(from, to, snap Coordinate) Coordinate {
	fromS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(from.Lat, from.Lon))
	toS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(to.Lat, to.Lon))
	snapS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(snap.Lat, snap.Lon))
	projection := s2.Project(snapS2, fromS2, toS2)
	projectLatLng := s2.LatLngFromPoint(projection)
	return Coordinate{projectLatLng.Lat.Degrees(), projectLatLng.Lng.Degrees()}
}

const (
	tolerancePointInLine = 1e-3
)

// PointPositionBetweenLinePoints returns the index of the line point right after the segment
// containing lat,lon (a point already projected onto the line), or 0 if no segment contains it.
func PointPositionBetweenLinePoints(lat, lon float64, linePoints []Coordinate) int {
	minDiff := math.MaxFloat64
	var pos int
	for i := 0; i < len(linePoints)-1; i++ {

		currQueryDist := s2.LatLngFromDegrees(lat, lon).Distance(s2.LatLngFromDegrees(linePoints[i].Lat, linePoints[i].Lon)).Radians()
		nextQueryDist := s2.LatLngFromDegrees(lat, lon).Distance(s2.LatLngFromDegrees(linePoints[i+1].Lat, linePoints[i+1].Lon)).Radians()

		currNextDist := s2.LatLngFromDegrees(linePoints[i].Lat, linePoints[i].Lon).Distance(s2.LatLngFromDegrees(linePoints[i+1].Lat, linePoints[i+1].Lon)).Radians()

		diff := math.Abs(currQueryDist + nextQueryDist - currNextDist)
		if diff < tolerancePointInLine && diff < minDiff {
			minDiff = diff
			pos = i + 1
		}
	}
	return pos
}

// Snap is the closest point of a line to a query point.
type Snap struct {
	Point Coordinate
	// SegmentIndex is the index of the first vertex of the segment holding Point.
	SegmentIndex int
	// Distance in metres between the query point and Point.
	Distance float64
}

func SnapPointToLine(p Coordinate, line []Coordinate) (Snap, error) {
	if len(line) < 2 {
		return Snap{}, ErrLineTooShort
	}
	best := Snap{Distance: math.MaxFloat64}
	for i := 0; i < len(line)-1; i++ {
		projection := ProjectPointToLine(line[i], line[i+1], p)
		dist := HaversineDistance(p, projection)
		if dist < best.Distance {
			best = Snap{Point: projection, SegmentIndex: i, Distance: dist}
		}
	}
	return best, nil
}

const samePointTolerance = 0.01 // metre

// SplitLineAtPoint cuts line at the snap of p. Both halves contain the snapped point.
func SplitLineAtPoint(line []Coordinate, p Coordinate) ([]Coordinate, []Coordinate, error) {
	snap, err := SnapPointToLine(p, line)
	if err != nil {
		return nil, nil, err
	}
	i := snap.SegmentIndex

	head := make([]Coordinate, 0, i+2)
	head = append(head, line[:i+1]...)
	if HaversineDistance(line[i], snap.Point) > samePointTolerance {
		head = append(head, snap.Point)
	}

	tail := make([]Coordinate, 0, len(line)-i+1)
	tail = append(tail, head[len(head)-1])
	if HaversineDistance(line[i+1], snap.Point) > samePointTolerance {
		tail = append(tail, line[i+1:]...)
	} else {
		tail = append(tail, line[i+2:]...)
	}
	return head, tail, nil
}

// LineLength returns the length in metres of a WGS84 line string.
func LineLength(ls orb.LineString) float64 {
	return orbgeo.Length(ls)
}
