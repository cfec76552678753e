package network

import (
	"errors"
	"fmt"

	"github.com/arup-group/genet-sub002/pkg/changelog"
	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/arup-group/genet-sub002/pkg/util"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

var ErrMissingCoordinates = errors.New("node has no x,y coordinates")

func nodeXY(attrs graph.Attrs) (float64, float64, bool) {
	x, okX := util.ToFloat64(attrs[AttrX])
	y, okY := util.ToFloat64(attrs[AttrY])
	return x, y, okX && okY
}

// NodeCoordinate returns the node position in WGS84.
func (n *Network) NodeCoordinate(id string) (geo.Coordinate, error) {
	attrs, ok := n.graph.Node(id)
	if !ok {
		return geo.Coordinate{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	x, y, ok := nodeXY(attrs)
	if !ok {
		return geo.Coordinate{}, fmt.Errorf("%w: %s", ErrMissingCoordinates, id)
	}
	return n.transformer.ToWGS84(x, y), nil
}

// LinkGeometry returns the link line in WGS84 lon/lat: the stored geometry when there is one,
// otherwise the straight line between its endpoints.
func (n *Network) LinkGeometry(linkID string) (orb.LineString, error) {
	attrs, err := n.linkAttrs(linkID)
	if err != nil {
		return nil, err
	}
	return n.linkGeometry(attrs)
}

func (n *Network) linkGeometry(attrs graph.Attrs) (orb.LineString, error) {
	if ls, ok := Geometry(attrs); ok {
		return n.transformer.LineToWGS84(ls), nil
	}
	from, err := n.NodeCoordinate(fmt.Sprint(attrs[AttrFrom]))
	if err != nil {
		return nil, err
	}
	to, err := n.NodeCoordinate(fmt.Sprint(attrs[AttrTo]))
	if err != nil {
		return nil, err
	}
	return orb.LineString{from.Point(), to.Point()}, nil
}

// ModalSubgraph returns a new network holding the links whose modes intersect modes, their
// endpoints, and the same link ids and multi edge indices. The copy has its own change log.
func (n *Network) ModalSubgraph(modes ...string) *Network {
	sub := n.graph.EdgeSubgraph(func(e *graph.Edge) bool {
		return HasAnyMode(e.Attrs, modes)
	})

	out := &Network{
		graph:       sub,
		mapping:     make(LinkIDMapping, sub.NumberOfEdges()),
		edgeToLink:  make(map[EdgeRef]string, sub.NumberOfEdges()),
		changes:     changelog.New(),
		transformer: n.transformer,
		logger:      n.logger,
	}
	for e := range sub.Edges() {
		ref := EdgeRef{From: e.From, To: e.To, MultiEdgeIdx: e.Key}
		id := n.edgeToLink[ref]
		out.mapping[id] = ref
		out.edgeToLink[ref] = id
	}
	out.checkConsistency()
	return out
}

// IndexS2 writes lat, lon and s2_id onto every node that has coordinates and returns how many
// were indexed.
func (n *Network) IndexS2() int {
	indexed := 0
	var skipped []string
	for id, attrs := range n.graph.Nodes() {
		x, y, ok := nodeXY(attrs)
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		c := n.transformer.ToWGS84(x, y)
		update := graph.Attrs{
			AttrLat:  c.Lat,
			AttrLon:  c.Lon,
			AttrS2ID: geo.S2CellID(c.Lat, c.Lon),
		}
		attrs.Merge(update)
		n.changes.Append(changelog.Modify, changelog.Node, id, update)
		indexed++
	}
	if len(skipped) > 0 {
		n.logger.Warn("nodes without coordinates were not s2 indexed",
			zap.Int("count", len(skipped)), zap.Strings("nodes", skipped))
	}
	return indexed
}
