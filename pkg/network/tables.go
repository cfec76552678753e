package network

import (
	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/paulmach/orb/encoding/wkt"
)

// NodeRow is one row of the tabular node projection. Geometry is a WKT point in WGS84,
// empty when the node has no coordinates.
type NodeRow struct {
	ID         string      `json:"id"`
	Attributes graph.Attrs `json:"attributes"`
	Geometry   string      `json:"geometry"`
}

// LinkRow is one row of the tabular link projection. Geometry is a WKT line string in WGS84.
type LinkRow struct {
	ID           string      `json:"id"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	MultiEdgeIdx int         `json:"multi_edge_idx"`
	Attributes   graph.Attrs `json:"attributes"`
	Geometry     string      `json:"geometry"`
}

// ToTables projects the network to node and link rows suitable for spatial export.
// Rows follow the network iteration order.
func (n *Network) ToTables() ([]NodeRow, []LinkRow) {
	nodes := make([]NodeRow, 0, n.NumberOfNodes())
	for id, attrs := range n.Nodes() {
		row := NodeRow{ID: id, Attributes: attrs.Clone()}
		if x, y, ok := nodeXY(attrs); ok {
			row.Geometry = wkt.MarshalString(n.transformer.ToWGS84(x, y).Point())
		}
		nodes = append(nodes, row)
	}

	links := make([]LinkRow, 0, n.NumberOfLinks())
	for l := range n.Edges() {
		row := LinkRow{
			ID:           l.ID,
			From:         l.From,
			To:           l.To,
			MultiEdgeIdx: l.MultiEdgeIdx,
			Attributes:   l.Attrs.Clone(),
		}
		delete(row.Attributes, AttrGeometry)
		if ls, err := n.linkGeometry(l.Attrs); err == nil {
			row.Geometry = wkt.MarshalString(ls)
		}
		links = append(links, row)
	}
	return nodes, links
}
