package geo

import "github.com/paulmach/orb"

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon}
}

// Point returns the coordinate as an orb point (lon, lat order).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

func CoordinateFromPoint(p orb.Point) Coordinate {
	return Coordinate{Lat: p.Lat(), Lon: p.Lon()}
}

func LineStringFromCoordinates(coords []Coordinate) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = c.Point()
	}
	return ls
}

func CoordinatesFromLineString(ls orb.LineString) []Coordinate {
	coords := make([]Coordinate, len(ls))
	for i, p := range ls {
		coords[i] = CoordinateFromPoint(p)
	}
	return coords
}
