package graph

import (
	"fmt"
	"math"

	"github.com/arup-group/genet-sub002/pkg/util"
)

// EdgeWeight reads a weight attribute. An empty name, or a missing or non-numeric
// attribute, weighs 1.
func EdgeWeight(attrs Attrs, weight string) float64 {
	if weight == "" {
		return 1
	}
	w, ok := util.ToFloat64(attrs[weight])
	if !ok {
		return 1
	}
	return w
}

// minParallelWeight returns the lightest of the parallel edges u->v.
func (g *MultiDiGraph) minParallelWeight(u, v, weight string) float64 {
	best := math.MaxFloat64
	for _, e := range g.succ[u][v] {
		best = min(best, EdgeWeight(e.Attrs, weight))
	}
	return best
}

// dijkstra settles nodes from source until target is settled (or everything reachable
// when target is empty). Parallel edges count with their minimum weight.
func (g *MultiDiGraph) dijkstra(source, target, weight string) (map[string]float64, map[string]string, error) {
	if !g.HasNode(source) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNodeNotFound, source)
	}
	if target != "" && !g.HasNode(target) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNodeNotFound, target)
	}

	cost := map[string]float64{source: 0}
	parent := make(map[string]string)
	settled := make(map[string]bool)
	entries := make(map[string]*heapEntry[string])

	pq := newFibonacciHeap[string]()
	entries[source] = pq.Insert(source, 0)

	for pq.Len() > 0 {
		curr := pq.ExtractMin()
		u := curr.Elem()
		settled[u] = true
		if u == target {
			break
		}

		for _, v := range g.succOrder[u] {
			if settled[v] {
				continue
			}
			w := g.minParallelWeight(u, v, weight)
			if w < 0 {
				return nil, nil, fmt.Errorf("%w: %s->%s", ErrNegativeWeight, u, v)
			}
			newCost := cost[u] + w

			old, seen := cost[v]
			if !seen {
				cost[v] = newCost
				parent[v] = u
				entries[v] = pq.Insert(v, newCost)
			} else if newCost < old {
				cost[v] = newCost
				parent[v] = u
				pq.DecreaseKey(entries[v], newCost)
			}
		}
	}
	return cost, parent, nil
}

// ShortestPath returns the node sequence of the lightest path source->target and its weight.
func (g *MultiDiGraph) ShortestPath(source, target, weight string) ([]string, float64, error) {
	cost, parent, err := g.dijkstra(source, target, weight)
	if err != nil {
		return nil, 0, err
	}
	dist, ok := cost[target]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s -> %s", ErrNoPath, source, target)
	}

	path := []string{target}
	for curr := target; curr != source; {
		curr = parent[curr]
		path = append(path, curr)
	}
	return util.ReverseG(path), dist, nil
}

func (g *MultiDiGraph) ShortestPathLength(source, target, weight string) (float64, error) {
	_, dist, err := g.ShortestPath(source, target, weight)
	return dist, err
}

// SingleSourceShortestPathLengths returns the distance to every node reachable from source.
func (g *MultiDiGraph) SingleSourceShortestPathLengths(source, weight string) (map[string]float64, error) {
	cost, _, err := g.dijkstra(source, "", weight)
	return cost, err
}
