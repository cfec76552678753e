package spatial

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// minExtent pads degenerate bounds (vertical or horizontal links) so every rect has volume.
const minExtent = 1e-9

// linkShape is a link geometry stored in the r-tree, in WGS84 degrees.
type linkShape struct {
	linkID string
	line   orb.LineString
	bounds rtreego.Rect
}

func (l *linkShape) Bounds() rtreego.Rect {
	return l.bounds
}

func newLinkShape(linkID string, line orb.LineString) (*linkShape, error) {
	b := line.Bound()
	rect, err := rectAround(b.Min, b.Max)
	if err != nil {
		return nil, err
	}
	return &linkShape{linkID: linkID, line: line, bounds: rect}, nil
}

func rectAround(lo, hi orb.Point) (rtreego.Rect, error) {
	if hi[0]-lo[0] < minExtent {
		hi[0] = lo[0] + minExtent
	}
	if hi[1]-lo[1] < minExtent {
		hi[1] = lo[1] + minExtent
	}
	return rtreego.NewRectFromPoints(rtreego.Point{lo[0], lo[1]}, rtreego.Point{hi[0], hi[1]})
}

// linkIndex answers "which links lie within d degrees of p".
type linkIndex interface {
	Insert(shape *linkShape)
	WithinDistance(p orb.Point, d float64) []string
	Size() int
}

type rtreeIndex struct {
	tree *rtreego.Rtree
}

func newRtreeIndex() *rtreeIndex {
	return &rtreeIndex{tree: rtreego.NewTree(2, 25, 50)}
}

func (r *rtreeIndex) Insert(shape *linkShape) {
	r.tree.Insert(shape)
}

func (r *rtreeIndex) Size() int {
	return r.tree.Size()
}

// WithinDistance filters the bounding box candidates by the planar distance from p
// to the link line.
func (r *rtreeIndex) WithinDistance(p orb.Point, d float64) []string {
	query, err := rectAround(orb.Point{p[0] - d, p[1] - d}, orb.Point{p[0] + d, p[1] + d})
	if err != nil {
		return nil
	}
	var ids []string
	for _, obj := range r.tree.SearchIntersect(query) {
		shape := obj.(*linkShape)
		if planar.DistanceFrom(shape.line, p) <= d {
			ids = append(ids, shape.linkID)
		}
	}
	return ids
}
