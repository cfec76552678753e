package service

import (
	"context"
	"errors"
	"sync"

	"github.com/arup-group/genet-sub002/pkg/changelog"
	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/arup-group/genet-sub002/pkg/kv"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/arup-group/genet-sub002/pkg/server"
	"github.com/arup-group/genet-sub002/pkg/spatial"
	"go.uber.org/zap"
)

type KVDB interface {
	SaveNetwork(ctx context.Context, net *network.Network) error
	BuildH3IndexedLinks(ctx context.Context, net *network.Network) error
	GetNearestLinksFromPointCoord(lat, lon float64) ([]string, error)
}

// LinkView is a link as served over http. Geometry is a WGS84 polyline.
type LinkView struct {
	ID           string      `json:"id"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	MultiEdgeIdx int         `json:"multi_edge_idx"`
	Attributes   graph.Attrs `json:"attributes"`
	Geometry     string      `json:"geometry"`
}

type SnapshotInfo struct {
	Nodes int `json:"nodes"`
	Links int `json:"links"`
}

// NetworkService serialises every request on one mutex. The spatial tree is a snapshot of the
// network, so any mutation drops it and the next spatial query builds a new one.
type NetworkService struct {
	mu     sync.Mutex
	net    *network.Network
	kv     KVDB
	tree   *spatial.SpatialTree
	logger *zap.Logger
}

func NewNetworkService(net *network.Network, kv KVDB, logger *zap.Logger) *NetworkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkService{net: net, kv: kv, logger: logger}
}

func (s *NetworkService) spatialTree() *spatial.SpatialTree {
	if s.tree == nil {
		s.tree = spatial.BuildSpatialTree(s.net, spatial.WithLogger(s.logger))
	}
	return s.tree
}

func (s *NetworkService) Node(ctx context.Context, id string) (graph.Attrs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, err := s.net.Node(id)
	if errors.Is(err, network.ErrNodeNotFound) {
		return nil, server.WrapErrorf(err, server.ErrNotFound, "node %s not found", id)
	}
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "internal server error")
	}
	return attrs, nil
}

// AddNode inserts the node or merges attrs into an existing one.
func (s *NetworkService) AddNode(ctx context.Context, id string, attrs graph.Attrs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.net.AddNode(id, attrs)
	s.tree = nil
	return nil
}

func (s *NetworkService) Link(ctx context.Context, id string) (LinkView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.linkView(id)
}

func (s *NetworkService) linkView(id string) (LinkView, error) {
	ref, err := s.net.LinkReference(id)
	if err != nil {
		return LinkView{}, server.WrapErrorf(err, server.ErrNotFound, "link %s not found", id)
	}
	attrs, err := s.net.Link(id)
	if err != nil {
		return LinkView{}, server.WrapErrorf(err, server.ErrNotFound, "link %s not found", id)
	}
	delete(attrs, network.AttrGeometry)

	view := LinkView{
		ID:           id,
		From:         ref.From,
		To:           ref.To,
		MultiEdgeIdx: ref.MultiEdgeIdx,
		Attributes:   attrs,
	}
	line, err := s.net.LinkGeometry(id)
	if err == nil {
		view.Geometry = geo.EncodePolyline(geo.CoordinatesFromLineString(line))
	}
	return view, nil
}

// AddLink inserts a link between existing or new nodes. An empty id, or one already taken, gets
// a generated id; the id actually used is returned. geometry is an optional WGS84 polyline.
func (s *NetworkService) AddLink(ctx context.Context, id, from, to string, attrs graph.Attrs, geometry string) (string, error) {
	attrs = attrs.Clone()
	delete(attrs, network.AttrGeometry)

	s.mu.Lock()
	defer s.mu.Unlock()

	if geometry != "" {
		coords, err := geo.DecodePolyline(geometry)
		if err != nil {
			return "", server.WrapErrorf(err, server.ErrBadParamInput, "invalid geometry")
		}
		if len(coords) < 2 {
			return "", server.NewErrorf(server.ErrBadParamInput, "geometry needs at least two points")
		}
		attrs[network.AttrGeometry] = s.net.Transformer().LineFromWGS84(geo.LineStringFromCoordinates(coords))
	}

	var linkID string
	if id == "" {
		linkID = s.net.AddEdge(from, to, attrs)
	} else {
		linkID = s.net.AddLink(id, from, to, attrs)
	}
	s.tree = nil
	return linkID, nil
}

func (s *NetworkService) Catchment(ctx context.Context, points []spatial.Point, cfg spatial.SearchConfig) (spatial.CatchmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.spatialTree().ClosestLinks(ctx, points, cfg)
	switch {
	case errors.Is(err, spatial.ErrEmptySpatialResult):
		return spatial.CatchmentResult{}, server.WrapErrorf(err, server.ErrNotFound, "no links to search")
	case errors.Is(err, spatial.ErrInvalidSearchConfig):
		return spatial.CatchmentResult{}, server.WrapErrorf(err, server.ErrBadParamInput, "invalid search config")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("catchment search interrupted", zap.Error(err), zap.Int("unmatched", len(res.Unmatched)))
		return res, nil
	case err != nil:
		return spatial.CatchmentResult{}, server.WrapErrorf(err, server.ErrInternalServerError, "internal server error")
	}
	return res, nil
}

// PathLengths answers every request; unreachable pairs come back with Found false.
func (s *NetworkService) PathLengths(ctx context.Context, reqs []spatial.PathRequest, weight string, withPath bool) []spatial.PathResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if withPath {
		return s.spatialTree().ShortestPaths(reqs, weight)
	}
	return s.spatialTree().PathLengths(reqs, weight)
}

// ChangeLog returns the recorded mutations, emptying the log when flush is set.
func (s *NetworkService) ChangeLog(ctx context.Context, flush bool) []changelog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if flush {
		return s.net.ChangeLog().Flush()
	}
	return s.net.ChangeLog().Entries()
}

// Snapshot replaces the stored network and its h3 link buckets with the current network.
func (s *NetworkService) Snapshot(ctx context.Context) (SnapshotInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.SaveNetwork(ctx, s.net); err != nil {
		return SnapshotInfo{}, server.WrapErrorf(err, server.ErrInternalServerError, "internal server error")
	}
	if err := s.kv.BuildH3IndexedLinks(ctx, s.net); err != nil {
		return SnapshotInfo{}, server.WrapErrorf(err, server.ErrInternalServerError, "internal server error")
	}
	s.logger.Info("network snapshot saved",
		zap.Int("nodes", s.net.NumberOfNodes()), zap.Int("links", s.net.NumberOfLinks()))
	return SnapshotInfo{Nodes: s.net.NumberOfNodes(), Links: s.net.NumberOfLinks()}, nil
}

// NearestLinks looks up links bucketed near (lat, lon) by the last snapshot. Links since removed
// from the network are left out.
func (s *NetworkService) NearestLinks(ctx context.Context, lat, lon float64) ([]LinkView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.kv.GetNearestLinksFromPointCoord(lat, lon)
	if errors.Is(err, kv.ErrLinksNotFound) {
		return nil, server.WrapErrorf(err, server.ErrNotFound, "no links near %f,%f", lat, lon)
	}
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "internal server error")
	}

	views := make([]LinkView, 0, len(ids))
	for _, id := range ids {
		if !s.net.HasLink(id) {
			continue
		}
		view, err := s.linkView(id)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	if len(views) == 0 {
		return nil, server.NewErrorf(server.ErrNotFound, "no links near %f,%f", lat, lon)
	}
	return views, nil
}
