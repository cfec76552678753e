// Package network holds a transport network: a directed multigraph of nodes and links
// where every link is addressed by a stable string id through a LinkIDMapping.
package network

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strconv"

	"github.com/arup-group/genet-sub002/pkg/changelog"
	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/arup-group/genet-sub002/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrNodeNotFound      = errors.New("node not found")
	ErrLinkNotFound      = errors.New("link not found")
	ErrEdgeNotFound      = errors.New("edge not found")
	ErrReservedAttribute = errors.New("attribute is managed by the network")
)

// Link is one edge of the network together with its id.
type Link struct {
	ID           string
	From         string
	To           string
	MultiEdgeIdx int
	Attrs        graph.Attrs
}

type Network struct {
	graph       *graph.MultiDiGraph
	mapping     LinkIDMapping
	edgeToLink  map[EdgeRef]string
	changes     *changelog.ChangeLog
	transformer *geo.Transformer
	logger      *zap.Logger
}

type Option func(*Network) error

func WithLogger(logger *zap.Logger) Option {
	return func(n *Network) error {
		n.logger = logger
		return nil
	}
}

// WithCRS sets the coordinate reference system of node x,y and link geometries.
func WithCRS(crs string) Option {
	return func(n *Network) error {
		t, err := geo.NewTransformer(crs)
		if err != nil {
			return err
		}
		n.transformer = t
		return nil
	}
}

func WithChangeLog(log *changelog.ChangeLog) Option {
	return func(n *Network) error {
		n.changes = log
		return nil
	}
}

// New creates an empty network in EPSG:4326 unless WithCRS says otherwise.
func New(opts ...Option) (*Network, error) {
	wgs84, _ := geo.NewTransformer(geo.CRSWGS84)
	n := &Network{
		graph:       graph.NewMultiDiGraph(),
		mapping:     make(LinkIDMapping),
		edgeToLink:  make(map[EdgeRef]string),
		changes:     changelog.New(),
		transformer: wgs84,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, fmt.Errorf("network option: %w", err)
		}
	}
	return n, nil
}

func (n *Network) CRS() string {
	return n.transformer.CRS()
}

func (n *Network) Transformer() *geo.Transformer {
	return n.transformer
}

func (n *Network) ChangeLog() *changelog.ChangeLog {
	return n.changes
}

func (n *Network) Logger() *zap.Logger {
	return n.logger
}

// AddNode inserts a node or merges attrs into an existing one.
func (n *Network) AddNode(id string, attrs graph.Attrs) {
	change := changelog.Add
	if n.graph.HasNode(id) {
		change = changelog.Modify
	}
	n.graph.AddNode(id, attrs)
	n.changes.Append(change, changelog.Node, id, attrs)
}

type NodeInput struct {
	ID    string
	Attrs graph.Attrs
}

func (n *Network) AddNodes(nodes []NodeInput) {
	for _, node := range nodes {
		n.AddNode(node.ID, node.Attrs)
	}
}

// AddLink inserts the link u->v under linkID. When linkID is taken a fresh id is generated
// and a warning logged; the id actually used is returned. Missing endpoints are created.
func (n *Network) AddLink(linkID, u, v string, attrs graph.Attrs) string {
	if _, taken := n.mapping[linkID]; taken {
		decision := n.mapping.NextID(nil)
		n.logger.Warn("link id already exists, generated a new one",
			zap.String("requested_id", linkID),
			zap.String("generated_id", decision.ID),
			zap.Stringer("strategy", decision.Strategy))
		linkID = decision.ID
	}

	idx := n.graph.NumberOfEdgesBetween(u, v)

	edgeAttrs := attrs.Clone()
	edgeAttrs[AttrID] = linkID
	edgeAttrs[AttrFrom] = u
	edgeAttrs[AttrTo] = v

	key := n.graph.AddEdge(u, v, edgeAttrs)
	util.AssertPanic(key == idx, "multigraph key %d for %s->%s, expected %d", key, u, v, idx)

	ref := EdgeRef{From: u, To: v, MultiEdgeIdx: idx}
	_, dup := n.edgeToLink[ref]
	util.AssertPanic(!dup, "edge %v already has a link id", ref)
	n.mapping[linkID] = ref
	n.edgeToLink[ref] = linkID

	n.changes.Append(changelog.Add, changelog.Link, linkID, edgeAttrs)
	return linkID
}

type LinkInput struct {
	ID    string
	From  string
	To    string
	Attrs graph.Attrs
}

// AddLinks adds links in order and returns the ids they were stored under.
func (n *Network) AddLinks(links []LinkInput) []string {
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, n.AddLink(l.ID, l.From, l.To, l.Attrs))
	}
	return ids
}

// AddEdge adds the link u->v under a generated id.
func (n *Network) AddEdge(u, v string, attrs graph.Attrs) string {
	return n.AddLink(n.GenerateIndexForEdge(), u, v, attrs)
}

// GenerateIndexForEdge returns an id unused by the mapping and by avoid.
func (n *Network) GenerateIndexForEdge(avoid ...string) string {
	return n.GenerateIndexDecision(avoid...).ID
}

// GenerateIndexDecision is GenerateIndexForEdge reporting which tier produced the id.
func (n *Network) GenerateIndexDecision(avoid ...string) IDDecision {
	var avoidSet map[string]struct{}
	if len(avoid) > 0 {
		avoidSet = make(map[string]struct{}, len(avoid))
		for _, id := range avoid {
			avoidSet[id] = struct{}{}
		}
	}
	return n.mapping.NextID(avoidSet)
}

// NumberOfMultiEdges returns the parallel edge count u->v, 0 when there is none.
func (n *Network) NumberOfMultiEdges(u, v string) int {
	return n.graph.NumberOfEdgesBetween(u, v)
}

func (n *Network) HasNode(id string) bool {
	return n.graph.HasNode(id)
}

func (n *Network) HasLink(linkID string) bool {
	_, ok := n.mapping[linkID]
	return ok
}

// Node returns a copy of the node attributes.
func (n *Network) Node(id string) (graph.Attrs, error) {
	attrs, ok := n.graph.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return attrs.Clone(), nil
}

// LinkReference resolves a link id through the mapping.
func (n *Network) LinkReference(linkID string) (EdgeRef, error) {
	ref, ok := n.mapping[linkID]
	if !ok {
		return EdgeRef{}, fmt.Errorf("%w: %s", ErrLinkNotFound, linkID)
	}
	return ref, nil
}

func (n *Network) linkAttrs(linkID string) (graph.Attrs, error) {
	ref, err := n.LinkReference(linkID)
	if err != nil {
		return nil, err
	}
	attrs, ok := n.graph.EdgeData(ref.From, ref.To, ref.MultiEdgeIdx)
	util.AssertPanic(ok, "link %s maps to missing edge %v", linkID, ref)
	return attrs, nil
}

// Link returns a copy of the link attributes.
func (n *Network) Link(linkID string) (graph.Attrs, error) {
	attrs, err := n.linkAttrs(linkID)
	if err != nil {
		return nil, err
	}
	return attrs.Clone(), nil
}

// Edge returns copies of every parallel edge u->v keyed by multi edge index.
func (n *Network) Edge(u, v string) (map[int]graph.Attrs, error) {
	edges := n.graph.EdgesBetween(u, v)
	if len(edges) == 0 {
		return nil, fmt.Errorf("%w: %s->%s", ErrEdgeNotFound, u, v)
	}
	out := make(map[int]graph.Attrs, len(edges))
	for _, e := range edges {
		out[e.Key] = e.Attrs.Clone()
	}
	return out, nil
}

// LinkIDsBetween returns the ids of the parallel links u->v by multi edge index.
func (n *Network) LinkIDsBetween(u, v string) []string {
	edges := n.graph.EdgesBetween(u, v)
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, n.edgeToLink[EdgeRef{From: u, To: v, MultiEdgeIdx: e.Key}])
	}
	return ids
}

func (n *Network) ApplyAttributesToNode(id string, attrs graph.Attrs) error {
	node, ok := n.graph.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Merge(attrs)
	n.changes.Append(changelog.Modify, changelog.Node, id, attrs)
	return nil
}

// ApplyAttributesToLink merges attrs into a link. The id, from and to keys cannot be changed.
func (n *Network) ApplyAttributesToLink(linkID string, attrs graph.Attrs) error {
	for k := range attrs {
		if isReserved(k) {
			return fmt.Errorf("%w: %s", ErrReservedAttribute, k)
		}
	}
	link, err := n.linkAttrs(linkID)
	if err != nil {
		return err
	}
	link.Merge(attrs)
	n.changes.Append(changelog.Modify, changelog.Link, linkID, attrs)
	return nil
}

func (n *Network) NumberOfNodes() int {
	return n.graph.NumberOfNodes()
}

func (n *Network) NumberOfLinks() int {
	return len(n.mapping)
}

func (n *Network) NodeIDs() []string {
	return slices.Sorted(slices.Values(n.graph.NodeIDs()))
}

func (n *Network) LinkIDs() []string {
	return slices.Sorted(maps.Keys(n.mapping))
}

// Mapping returns a copy of the link id mapping.
func (n *Network) Mapping() LinkIDMapping {
	return maps.Clone(n.mapping)
}

// Nodes yields (id, attributes) in insertion order. Attributes are live and must not be mutated.
func (n *Network) Nodes() iter.Seq2[string, graph.Attrs] {
	return n.graph.Nodes()
}

// Links yields (link id, attributes) in native edge order. Attributes are live and must not be mutated.
func (n *Network) Links() iter.Seq2[string, graph.Attrs] {
	return func(yield func(string, graph.Attrs) bool) {
		for e := range n.graph.Edges() {
			if !yield(n.edgeToLink[EdgeRef{From: e.From, To: e.To, MultiEdgeIdx: e.Key}], e.Attrs) {
				return
			}
		}
	}
}

// Edges yields every link with its multigraph address in native edge order.
func (n *Network) Edges() iter.Seq[Link] {
	return func(yield func(Link) bool) {
		for e := range n.graph.Edges() {
			l := Link{
				ID:           n.edgeToLink[EdgeRef{From: e.From, To: e.To, MultiEdgeIdx: e.Key}],
				From:         e.From,
				To:           e.To,
				MultiEdgeIdx: e.Key,
				Attrs:        e.Attrs,
			}
			if !yield(l) {
				return
			}
		}
	}
}

// IndexGraphEdges throws the mapping away and renumbers every link "0".."n-1" in native edge
// order. Any link id held outside the network is invalid afterwards.
func (n *Network) IndexGraphEdges() {
	n.logger.Warn("reindexing all links, existing link ids will be replaced",
		zap.Int("links", n.graph.NumberOfEdges()))

	mapping := make(LinkIDMapping, n.graph.NumberOfEdges())
	edgeToLink := make(map[EdgeRef]string, n.graph.NumberOfEdges())

	i := 0
	for e := range n.graph.Edges() {
		ref := EdgeRef{From: e.From, To: e.To, MultiEdgeIdx: e.Key}
		oldID := n.edgeToLink[ref]
		newID := strconv.Itoa(i)
		i++

		e.Attrs[AttrID] = newID
		mapping[newID] = ref
		edgeToLink[ref] = newID
		n.changes.AppendReindex(changelog.Link, oldID, newID, nil)
	}

	n.mapping = mapping
	n.edgeToLink = edgeToLink
	n.checkConsistency()
}

// checkConsistency panics when the mapping and the multigraph disagree.
func (n *Network) checkConsistency() {
	util.AssertPanic(len(n.mapping) == n.graph.NumberOfEdges(),
		"mapping has %d links, multigraph has %d edges", len(n.mapping), n.graph.NumberOfEdges())
	util.AssertPanic(len(n.edgeToLink) == len(n.mapping), "reverse mapping out of sync")
	for id, ref := range n.mapping {
		attrs, ok := n.graph.EdgeData(ref.From, ref.To, ref.MultiEdgeIdx)
		util.AssertPanic(ok, "link %s maps to missing edge %v", id, ref)
		util.AssertPanic(attrs[AttrID] == id, "edge %v carries id %v, mapped as %s", ref, attrs[AttrID], id)
		util.AssertPanic(n.edgeToLink[ref] == id, "reverse mapping of %v is %s, expected %s", ref, n.edgeToLink[ref], id)
	}
}
