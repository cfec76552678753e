package graph

import (
	"errors"
	"iter"
	"maps"
	"slices"

	"github.com/arup-group/genet-sub002/pkg/util"
)

var (
	ErrNodeNotFound   = errors.New("node not found in graph")
	ErrEdgeNotFound   = errors.New("edge not found in graph")
	ErrNoPath         = errors.New("no path between nodes")
	ErrNegativeWeight = errors.New("negative edge weight")
)

// Attrs is an attribute mapping carried by nodes and edges.
type Attrs map[string]any

// Clone returns a shallow copy. A nil Attrs clones to an empty map.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	maps.Copy(out, a)
	return out
}

// Merge copies src over a, last write wins.
func (a Attrs) Merge(src Attrs) {
	maps.Copy(a, src)
}

type Edge struct {
	From  string
	To    string
	Key   int
	Attrs Attrs
}

// MultiDiGraph is a directed multigraph with string node ids. Parallel edges between
// the same ordered pair are told apart by an integer key. Iteration follows insertion order.
type MultiDiGraph struct {
	nodes     map[string]Attrs
	nodeOrder []string

	succ      map[string]map[string][]*Edge
	succOrder map[string][]string
	pred      map[string]map[string]struct{}

	numEdges int
}

func NewMultiDiGraph() *MultiDiGraph {
	return &MultiDiGraph{
		nodes:     make(map[string]Attrs),
		succ:      make(map[string]map[string][]*Edge),
		succOrder: make(map[string][]string),
		pred:      make(map[string]map[string]struct{}),
	}
}

// AddNode inserts id, or merges attrs into the existing node.
func (g *MultiDiGraph) AddNode(id string, attrs Attrs) {
	if existing, ok := g.nodes[id]; ok {
		existing.Merge(attrs)
		return
	}
	g.nodes[id] = attrs.Clone()
	g.nodeOrder = append(g.nodeOrder, id)
	g.succ[id] = make(map[string][]*Edge)
	g.pred[id] = make(map[string]struct{})
}

func (g *MultiDiGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the live attribute map of a node.
func (g *MultiDiGraph) Node(id string) (Attrs, bool) {
	attrs, ok := g.nodes[id]
	return attrs, ok
}

func (g *MultiDiGraph) NumberOfNodes() int {
	return len(g.nodes)
}

func (g *MultiDiGraph) NumberOfEdges() int {
	return g.numEdges
}

// AddEdge inserts an edge u->v, creating missing endpoints, and returns its key:
// the number of parallel u->v edges that existed before.
func (g *MultiDiGraph) AddEdge(u, v string, attrs Attrs) int {
	if !g.HasNode(u) {
		g.AddNode(u, nil)
	}
	if !g.HasNode(v) {
		g.AddNode(v, nil)
	}
	key := len(g.succ[u][v])
	g.insertEdge(&Edge{From: u, To: v, Key: key, Attrs: attrs.Clone()})
	return key
}

func (g *MultiDiGraph) insertEdge(e *Edge) {
	parallel, ok := g.succ[e.From][e.To]
	if !ok {
		g.succOrder[e.From] = append(g.succOrder[e.From], e.To)
	}
	g.succ[e.From][e.To] = append(parallel, e)
	g.pred[e.To][e.From] = struct{}{}
	g.numEdges++
}

// NumberOfEdgesBetween returns the parallel edge count u->v, 0 when there is none.
func (g *MultiDiGraph) NumberOfEdgesBetween(u, v string) int {
	return len(g.succ[u][v])
}

func (g *MultiDiGraph) HasEdge(u, v string) bool {
	return g.NumberOfEdgesBetween(u, v) > 0
}

// EdgeData returns the live attribute map of edge (u, v, key).
func (g *MultiDiGraph) EdgeData(u, v string, key int) (Attrs, bool) {
	for _, e := range g.succ[u][v] {
		if e.Key == key {
			return e.Attrs, true
		}
	}
	return nil, false
}

// EdgesBetween returns the parallel edges u->v ordered by key.
func (g *MultiDiGraph) EdgesBetween(u, v string) []*Edge {
	return slices.Clone(g.succ[u][v])
}

func (g *MultiDiGraph) Nodes() iter.Seq2[string, Attrs] {
	return func(yield func(string, Attrs) bool) {
		for _, id := range g.nodeOrder {
			if !yield(id, g.nodes[id]) {
				return
			}
		}
	}
}

func (g *MultiDiGraph) NodeIDs() []string {
	return slices.Clone(g.nodeOrder)
}

// Edges walks every edge in native order: source insertion order, then target
// insertion order, then key.
func (g *MultiDiGraph) Edges() iter.Seq[*Edge] {
	return func(yield func(*Edge) bool) {
		for _, u := range g.nodeOrder {
			for _, v := range g.succOrder[u] {
				for _, e := range g.succ[u][v] {
					if !yield(e) {
						return
					}
				}
			}
		}
	}
}

func (g *MultiDiGraph) Successors(u string) []string {
	return slices.Clone(g.succOrder[u])
}

// Predecessors returns the sources of edges into v, sorted.
func (g *MultiDiGraph) Predecessors(v string) []string {
	return slices.Sorted(maps.Keys(g.pred[v]))
}

func (g *MultiDiGraph) OutEdges(u string) iter.Seq[*Edge] {
	return func(yield func(*Edge) bool) {
		for _, v := range g.succOrder[u] {
			for _, e := range g.succ[u][v] {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// InducedSubgraph copies the given nodes and every edge with both endpoints among them.
// Unknown ids are ignored. Edge keys are preserved.
func (g *MultiDiGraph) InducedSubgraph(ids []string) *MultiDiGraph {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if g.HasNode(id) {
			keep[id] = struct{}{}
		}
	}

	sub := NewMultiDiGraph()
	for _, id := range g.nodeOrder {
		if _, ok := keep[id]; ok {
			sub.AddNode(id, g.nodes[id])
		}
	}
	for e := range g.Edges() {
		_, okFrom := keep[e.From]
		_, okTo := keep[e.To]
		if okFrom && okTo {
			sub.insertEdge(&Edge{From: e.From, To: e.To, Key: e.Key, Attrs: e.Attrs.Clone()})
		}
	}
	return sub
}

// EdgeSubgraph copies the edges accepted by keep together with their endpoints.
// Edge keys are preserved so that (u, v, key) addresses stay valid in the copy.
func (g *MultiDiGraph) EdgeSubgraph(keep func(*Edge) bool) *MultiDiGraph {
	sub := NewMultiDiGraph()
	for e := range g.Edges() {
		if !keep(e) {
			continue
		}
		sub.AddNode(e.From, g.nodes[e.From])
		sub.AddNode(e.To, g.nodes[e.To])
		sub.insertEdge(&Edge{From: e.From, To: e.To, Key: e.Key, Attrs: e.Attrs.Clone()})
	}
	return sub
}

// checkConsistency panics when the adjacency indexes disagree.
func (g *MultiDiGraph) checkConsistency() {
	count := 0
	for u, targets := range g.succ {
		util.AssertPanic(len(targets) == len(g.succOrder[u]), "successor order of %s out of sync", u)
		for v, edges := range targets {
			_, ok := g.pred[v][u]
			util.AssertPanic(ok, "missing predecessor %s of %s", u, v)
			count += len(edges)
		}
	}
	util.AssertPanic(count == g.numEdges, "edge count %d, expected %d", count, g.numEdges)
}
