package spatial

import (
	"errors"
	"fmt"

	"github.com/arup-group/genet-sub002/pkg/concurrent"
	"github.com/arup-group/genet-sub002/pkg/graph"
)

// PathRequest asks for a path starting on link From and ending on link To.
type PathRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PathResult is one row of a batch path query. Found is false when the links are not
// connected or not in the tree; Length is meaningful only when Found is true.
type PathResult struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Path   []string `json:"path,omitempty"`
	Length float64  `json:"length"`
	Found  bool     `json:"found"`
}

func weightOrDefault(weight string) string {
	if weight == "" {
		return DefaultWeight
	}
	return weight
}

func (t *SpatialTree) checkEnds(from, to string) error {
	if !t.graph.HasNode(from) {
		return fmt.Errorf("%w: %s", ErrNodeNotInTree, from)
	}
	if !t.graph.HasNode(to) {
		return fmt.Errorf("%w: %s", ErrNodeNotInTree, to)
	}
	return nil
}

// ShortestPath returns the link sequence from -> to minimising weight (default length).
// The weight of a path counts every link after the first one.
func (t *SpatialTree) ShortestPath(from, to, weight string) ([]string, float64, error) {
	if err := t.checkEnds(from, to); err != nil {
		return nil, 0, err
	}
	path, length, err := t.graph.ShortestPath(from, to, weightOrDefault(weight))
	if errors.Is(err, graph.ErrNoPath) {
		return nil, 0, fmt.Errorf("%w: %s -> %s", ErrPathNotFound, from, to)
	}
	return path, length, err
}

func (t *SpatialTree) PathLength(from, to, weight string) (float64, error) {
	_, length, err := t.ShortestPath(from, to, weight)
	return length, err
}

// ShortestPaths resolves every request. A missing path marks its row not found and never
// fails the batch. Requests run concurrently on the tree, which is read only.
func (t *SpatialTree) ShortestPaths(reqs []PathRequest, weight string) []PathResult {
	return concurrent.Map(t.workers, reqs, func(r PathRequest) PathResult {
		res := PathResult{From: r.From, To: r.To}
		path, length, err := t.ShortestPath(r.From, r.To, weight)
		if err == nil {
			res.Path, res.Length, res.Found = path, length, true
		}
		return res
	})
}

// PathLengths is ShortestPaths without the paths. Requests sharing a start link share one
// single-source search.
func (t *SpatialTree) PathLengths(reqs []PathRequest, weight string) []PathResult {
	weight = weightOrDefault(weight)

	var sources []string
	seen := make(map[string]struct{})
	for _, r := range reqs {
		if t.checkEnds(r.From, r.To) != nil {
			continue
		}
		if _, ok := seen[r.From]; !ok {
			seen[r.From] = struct{}{}
			sources = append(sources, r.From)
		}
	}

	lengths := concurrent.Map(t.workers, sources, func(source string) map[string]float64 {
		dist, err := t.graph.SingleSourceShortestPathLengths(source, weight)
		if err != nil {
			return map[string]float64{}
		}
		return dist
	})
	fromSource := make(map[string]map[string]float64, len(sources))
	for i, source := range sources {
		fromSource[source] = lengths[i]
	}

	out := make([]PathResult, 0, len(reqs))
	for _, r := range reqs {
		res := PathResult{From: r.From, To: r.To}
		if dist, ok := fromSource[r.From]; ok {
			res.Length, res.Found = dist[r.To]
		}
		out = append(out, res)
	}
	return out
}
