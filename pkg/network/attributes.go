package network

import (
	"slices"
	"strings"

	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/paulmach/orb"
)

// Well-known attribute keys.
const (
	AttrID        = "id"
	AttrFrom      = "from"
	AttrTo        = "to"
	AttrX         = "x"
	AttrY         = "y"
	AttrLat       = "lat"
	AttrLon       = "lon"
	AttrS2ID      = "s2_id"
	AttrModes     = "modes"
	AttrGeometry  = "geometry"
	AttrLength    = "length"
	AttrFreespeed = "freespeed"
	AttrCapacity  = "capacity"
	AttrPermlanes = "permlanes"
)

func isReserved(key string) bool {
	return key == AttrID || key == AttrFrom || key == AttrTo
}

// Modes reads the mode set of a link, sorted and deduplicated. Accepted encodings are
// []string, []any of strings, a set map, and a comma separated string.
func Modes(attrs graph.Attrs) []string {
	var modes []string
	switch v := attrs[AttrModes].(type) {
	case []string:
		modes = slices.Clone(v)
	case []any:
		for _, m := range v {
			if s, ok := m.(string); ok {
				modes = append(modes, s)
			}
		}
	case map[string]struct{}:
		for m := range v {
			modes = append(modes, m)
		}
	case map[string]bool:
		for m, ok := range v {
			if ok {
				modes = append(modes, m)
			}
		}
	case string:
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				modes = append(modes, m)
			}
		}
	}
	slices.Sort(modes)
	return slices.Compact(modes)
}

// HasAnyMode reports whether the link modes intersect modes.
func HasAnyMode(attrs graph.Attrs, modes []string) bool {
	for _, m := range Modes(attrs) {
		if slices.Contains(modes, m) {
			return true
		}
	}
	return false
}

// Geometry reads the stored link geometry, in the network CRS.
func Geometry(attrs graph.Attrs) (orb.LineString, bool) {
	switch v := attrs[AttrGeometry].(type) {
	case orb.LineString:
		return v, len(v) >= 2
	case [][2]float64:
		ls := make(orb.LineString, len(v))
		for i, p := range v {
			ls[i] = orb.Point(p)
		}
		return ls, len(ls) >= 2
	default:
		return nil, false
	}
}
