package service

import (
	"context"
	"testing"

	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/arup-group/genet-sub002/pkg/kv"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/arup-group/genet-sub002/pkg/server"
	"github.com/arup-group/genet-sub002/pkg/spatial"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1 --a--> 2 --b--> 3, WGS84
func newTestService(t *testing.T) *NetworkService {
	t.Helper()
	net, err := network.New()
	require.NoError(t, err)
	net.AddNode("1", graph.Attrs{"x": -0.1300, "y": 51.5200})
	net.AddNode("2", graph.Attrs{"x": -0.1290, "y": 51.5200})
	net.AddNode("3", graph.Attrs{"x": -0.1290, "y": 51.5210})
	net.AddLink("a", "1", "2", graph.Attrs{"modes": []string{"car"}, "length": 70.0})
	net.AddLink("b", "2", "3", graph.Attrs{"modes": []string{"car", "bus"}, "length": 111.0})
	net.ChangeLog().Flush()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	store := kv.NewKVDB(db)
	t.Cleanup(func() { _ = store.Close() })

	return NewNetworkService(net, store, nil)
}

func stepConfig(step float64, modes ...string) spatial.SearchConfig {
	return spatial.SearchConfig{StepSize: step, Modes: modes}
}

func TestNode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	node, err := svc.Node(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, -0.13, node["x"])

	_, err = svc.Node(ctx, "missing")
	assert.Equal(t, server.ErrNotFound, server.CodeOf(err))
	assert.ErrorIs(t, err, network.ErrNodeNotFound)

	require.NoError(t, svc.AddNode(ctx, "1", graph.Attrs{"name": "corner"}))
	node, err = svc.Node(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "corner", node["name"])
	assert.Equal(t, -0.13, node["x"])
}

func TestLinkView(t *testing.T) {
	svc := newTestService(t)

	view, err := svc.Link(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "1", view.From)
	assert.Equal(t, "2", view.To)
	assert.Equal(t, 0, view.MultiEdgeIdx)
	assert.Equal(t, 70.0, view.Attributes["length"])

	coords, err := geo.DecodePolyline(view.Geometry)
	require.NoError(t, err)
	assert.Equal(t, []geo.Coordinate{geo.NewCoordinate(51.52, -0.13), geo.NewCoordinate(51.52, -0.129)}, coords)

	_, err = svc.Link(context.Background(), "zz")
	assert.Equal(t, server.ErrNotFound, server.CodeOf(err))
}

func TestAddLink(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate id gets a generated one", func(t *testing.T) {
		svc := newTestService(t)
		id, err := svc.AddLink(ctx, "a", "1", "2", graph.Attrs{"modes": []string{"bus"}}, "")
		require.NoError(t, err)
		assert.Equal(t, "3", id)

		view, err := svc.Link(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, view.MultiEdgeIdx)
	})

	t.Run("empty id", func(t *testing.T) {
		svc := newTestService(t)
		id, err := svc.AddLink(ctx, "", "3", "1", nil, "")
		require.NoError(t, err)
		assert.Equal(t, "3", id)
	})

	t.Run("geometry", func(t *testing.T) {
		svc := newTestService(t)
		line := []geo.Coordinate{
			geo.NewCoordinate(51.521, -0.129),
			geo.NewCoordinate(51.5215, -0.1295),
			geo.NewCoordinate(51.52, -0.13),
		}
		encoded := geo.EncodePolyline(line)
		id, err := svc.AddLink(ctx, "g", "3", "1", nil, encoded)
		require.NoError(t, err)

		view, err := svc.Link(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, encoded, view.Geometry)
		assert.NotContains(t, view.Attributes, network.AttrGeometry)
	})

	t.Run("invalid geometry", func(t *testing.T) {
		svc := newTestService(t)
		_, err := svc.AddLink(ctx, "g", "3", "1", nil, "_p~iF~ps|U_")
		assert.Equal(t, server.ErrBadParamInput, server.CodeOf(err))

		_, err = svc.AddLink(ctx, "g", "3", "1", nil, geo.EncodePolyline([]geo.Coordinate{geo.NewCoordinate(51.52, -0.13)}))
		assert.Equal(t, server.ErrBadParamInput, server.CodeOf(err))
	})
}

func TestCatchmentSeesMutations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	points := []spatial.Point{{ID: "p", Lat: 51.5201, Lon: -0.1295}}

	res, err := svc.Catchment(ctx, points, stepConfig(10))
	require.NoError(t, err)
	assert.Equal(t, []spatial.CatchmentRow{{PointID: "p", LinkID: "a", Catchment: 10}}, res.Rows)

	require.NoError(t, svc.AddNode(ctx, "4", graph.Attrs{"x": -0.1296, "y": 51.5201}))
	require.NoError(t, svc.AddNode(ctx, "5", graph.Attrs{"x": -0.1294, "y": 51.5201}))
	_, err = svc.AddLink(ctx, "f", "4", "5", graph.Attrs{"modes": []string{"car"}}, "")
	require.NoError(t, err)

	res, err = svc.Catchment(ctx, points, stepConfig(10))
	require.NoError(t, err)
	assert.Equal(t, []spatial.CatchmentRow{
		{PointID: "p", LinkID: "a", Catchment: 10},
		{PointID: "p", LinkID: "f", Catchment: 10},
	}, res.Rows)
}

func TestCatchmentErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	points := []spatial.Point{{ID: "p", Lat: 51.5201, Lon: -0.1295}}

	_, err := svc.Catchment(ctx, points, stepConfig(10, "rail"))
	assert.Equal(t, server.ErrNotFound, server.CodeOf(err))

	_, err = svc.Catchment(ctx, points, stepConfig(0))
	assert.Equal(t, server.ErrBadParamInput, server.CodeOf(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	res, err := svc.Catchment(cancelled, points, stepConfig(10))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, []spatial.Unmatched{{PointID: "p"}}, res.Unmatched)
}

func TestPathLengths(t *testing.T) {
	svc := newTestService(t)
	reqs := []spatial.PathRequest{{From: "a", To: "b"}, {From: "b", To: "a"}}

	res := svc.PathLengths(context.Background(), reqs, "", false)
	require.Len(t, res, 2)
	assert.True(t, res[0].Found)
	assert.Equal(t, 111.0, res[0].Length)
	assert.False(t, res[1].Found)

	res = svc.PathLengths(context.Background(), reqs[:1], "", true)
	assert.Equal(t, []string{"a", "b"}, res[0].Path)
}

func TestChangeLog(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddNode(ctx, "9", graph.Attrs{"x": 0.0, "y": 0.0}))
	assert.Len(t, svc.ChangeLog(ctx, false), 1)
	assert.Len(t, svc.ChangeLog(ctx, true), 1)
	assert.Empty(t, svc.ChangeLog(ctx, false))
}

func TestSnapshotAndNearestLinks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.NearestLinks(ctx, 51.52, -0.13)
	assert.Equal(t, server.ErrNotFound, server.CodeOf(err))

	info, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, SnapshotInfo{Nodes: 3, Links: 2}, info)

	links, err := svc.NearestLinks(ctx, 51.52, -0.13)
	require.NoError(t, err)
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	assert.Contains(t, ids, "a")
}
