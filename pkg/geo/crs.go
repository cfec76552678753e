package geo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

var ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

// Transformer converts between a network's native CRS and WGS84 lon/lat.
type Transformer struct {
	crs       string
	toWGS84   orb.Projection
	fromWGS84 orb.Projection
}

func identity(p orb.Point) orb.Point {
	return p
}

func NormalizeCRS(crs string) string {
	crs = strings.ToUpper(strings.TrimSpace(crs))
	if crs == "" {
		return CRSWGS84
	}
	return crs
}

func NewTransformer(crs string) (*Transformer, error) {
	crs = NormalizeCRS(crs)
	switch crs {
	case CRSWGS84:
		return &Transformer{crs: crs, toWGS84: identity, fromWGS84: identity}, nil
	case CRSWebMercator, "EPSG:900913":
		return &Transformer{crs: CRSWebMercator, toWGS84: project.Mercator.ToWGS84,
			fromWGS84: project.WGS84.ToMercator}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCRS, crs)
	}
}

func (t *Transformer) CRS() string {
	return t.crs
}

// ToWGS84 projects native x,y to a lat/lon coordinate.
func (t *Transformer) ToWGS84(x, y float64) Coordinate {
	return CoordinateFromPoint(t.toWGS84(orb.Point{x, y}))
}

// FromWGS84 projects a lat/lon coordinate to native x,y.
func (t *Transformer) FromWGS84(c Coordinate) (float64, float64) {
	p := t.fromWGS84(c.Point())
	return p.X(), p.Y()
}

// LineToWGS84 returns a projected copy, the input is left untouched.
func (t *Transformer) LineToWGS84(ls orb.LineString) orb.LineString {
	return project.LineString(ls.Clone(), t.toWGS84)
}

func (t *Transformer) LineFromWGS84(ls orb.LineString) orb.LineString {
	return project.LineString(ls.Clone(), t.fromWGS84)
}
