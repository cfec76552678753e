// Package spatial builds a link-indexed graph over a network: every node is a network link
// and an edge A->B means B starts where A ends. It answers nearest link searches with an
// expanding radius and shortest path queries between links.
package spatial

import (
	"errors"
	"fmt"
	"slices"

	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/arup-group/genet-sub002/pkg/util"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

var (
	// ErrEmptySpatialResult means a spatial filter matched nothing at all.
	ErrEmptySpatialResult = errors.New("spatial query produced no candidates")
	ErrNodeNotInTree      = errors.New("link not in spatial tree")
	ErrPathNotFound       = errors.New("no path between links")
)

// Tree edge attribute keys.
const (
	AttrLength    = network.AttrLength
	AttrFreespeed = network.AttrFreespeed
	AttrTime      = "time"

	DefaultWeight = AttrLength
)

// SpatialTree is a point-in-time snapshot of a network's links. Mutating the network
// afterwards does not affect it.
type SpatialTree struct {
	graph      *graph.MultiDiGraph
	index      linkIndex
	geometries map[string]orb.LineString
	logger     *zap.Logger
	// workers bounds the goroutines of batch path queries, below 1 means one per CPU.
	workers int
}

type Option func(*SpatialTree)

func WithWorkers(n int) Option {
	return func(t *SpatialTree) {
		t.workers = n
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *SpatialTree) {
		t.logger = logger
	}
}

type treeLink struct {
	id       string
	from, to string
	attrs    graph.Attrs
}

// BuildSpatialTree projects every link to WGS84, adds one tree node per link and joins links
// on shared endpoints. Links whose geometry cannot be resolved stay in the tree but are not
// spatially indexed.
func BuildSpatialTree(net *network.Network, opts ...Option) *SpatialTree {
	t := &SpatialTree{
		graph:      graph.NewMultiDiGraph(),
		index:      newRtreeIndex(),
		geometries: make(map[string]orb.LineString, net.NumberOfLinks()),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.logger.Info("building spatial tree", zap.Int("links", net.NumberOfLinks()))

	links := make([]treeLink, 0, net.NumberOfLinks())
	startingAt := make(map[string][]int)
	var unindexed []string

	for l := range net.Edges() {
		attrs := l.Attrs.Clone()
		line, err := net.LinkGeometry(l.ID)
		if err == nil {
			attrs[network.AttrGeometry] = line
			if _, ok := util.ToFloat64(attrs[AttrLength]); !ok {
				attrs[AttrLength] = geo.LineLength(line)
			}
		} else {
			delete(attrs, network.AttrGeometry)
			unindexed = append(unindexed, l.ID)
		}

		t.graph.AddNode(l.ID, attrs)
		if err == nil {
			t.addShape(l.ID, line)
		}

		startingAt[l.From] = append(startingAt[l.From], len(links))
		links = append(links, treeLink{id: l.ID, from: l.From, to: l.To, attrs: attrs})
	}

	// hash join on the shared node: a.to == b.from
	for _, a := range links {
		for _, bi := range startingAt[a.to] {
			b := links[bi]
			t.graph.AddEdge(a.id, b.id, edgeAttributes(b.attrs))
		}
	}

	if len(unindexed) > 0 {
		t.logger.Warn("links without geometry are not spatially indexed",
			zap.Int("count", len(unindexed)), zap.Strings("links", unindexed))
	}
	t.logger.Info("spatial tree built",
		zap.Int("links", t.graph.NumberOfNodes()),
		zap.Int("edges", t.graph.NumberOfEdges()),
		zap.Int("indexed", t.index.Size()))
	return t
}

func (t *SpatialTree) addShape(linkID string, line orb.LineString) {
	shape, err := newLinkShape(linkID, line)
	if err != nil {
		t.logger.Warn("cannot index link geometry", zap.String("link", linkID), zap.Error(err))
		return
	}
	t.index.Insert(shape)
	t.geometries[linkID] = line
}

// edgeAttributes carries the weights of traversing the target link.
func edgeAttributes(target graph.Attrs) graph.Attrs {
	attrs := graph.Attrs{}
	length, hasLength := util.ToFloat64(target[AttrLength])
	if hasLength {
		attrs[AttrLength] = length
	}
	if speed, ok := util.ToFloat64(target[AttrFreespeed]); ok {
		attrs[AttrFreespeed] = speed
		if hasLength && speed > 0 {
			attrs[AttrTime] = length / speed
		}
	}
	return attrs
}

// ModalSubtree keeps the links whose modes intersect modes and the edges between them.
// It fails with ErrEmptySpatialResult when no link qualifies.
func (t *SpatialTree) ModalSubtree(modes ...string) (*SpatialTree, error) {
	var keep []string
	for id, attrs := range t.graph.Nodes() {
		if network.HasAnyMode(attrs, modes) {
			keep = append(keep, id)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: no links with modes %v", ErrEmptySpatialResult, modes)
	}

	sub := &SpatialTree{
		graph:      t.graph.InducedSubgraph(keep),
		index:      newRtreeIndex(),
		geometries: make(map[string]orb.LineString, len(keep)),
		logger:     t.logger,
		workers:    t.workers,
	}
	for _, id := range keep {
		if line, ok := t.geometries[id]; ok {
			sub.addShape(id, line)
		}
	}
	return sub, nil
}

func (t *SpatialTree) NumberOfLinks() int {
	return t.graph.NumberOfNodes()
}

func (t *SpatialTree) NumberOfEdges() int {
	return t.graph.NumberOfEdges()
}

func (t *SpatialTree) LinkIDs() []string {
	return slices.Sorted(slices.Values(t.graph.NodeIDs()))
}

func (t *SpatialTree) HasLink(linkID string) bool {
	return t.graph.HasNode(linkID)
}

// Link returns a copy of the link attributes held by the tree, geometry in WGS84.
func (t *SpatialTree) Link(linkID string) (graph.Attrs, error) {
	attrs, ok := t.graph.Node(linkID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotInTree, linkID)
	}
	return attrs.Clone(), nil
}

// Successors returns the links that can be taken right after linkID.
func (t *SpatialTree) Successors(linkID string) ([]string, error) {
	if !t.graph.HasNode(linkID) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotInTree, linkID)
	}
	return t.graph.Successors(linkID), nil
}

// HasEdge reports whether to can be taken right after from.
func (t *SpatialTree) HasEdge(from, to string) bool {
	return t.graph.HasEdge(from, to)
}

func (t *SpatialTree) Geometry(linkID string) (orb.LineString, bool) {
	line, ok := t.geometries[linkID]
	return line, ok
}
