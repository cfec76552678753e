package spatial

import (
	"testing"

	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// testNetwork:
//
//	5 --d--> 6
//
//	         3 --c--> 4
//	         ^
//	         b
//	1 --a--> 2
//	  <--e--
func testNetwork(t *testing.T) *network.Network {
	t.Helper()
	n, err := network.New()
	require.NoError(t, err)
	n.AddNodes([]network.NodeInput{
		{ID: "1", Attrs: graph.Attrs{"x": -0.1300, "y": 51.5200}},
		{ID: "2", Attrs: graph.Attrs{"x": -0.1290, "y": 51.5200}},
		{ID: "3", Attrs: graph.Attrs{"x": -0.1290, "y": 51.5210}},
		{ID: "4", Attrs: graph.Attrs{"x": -0.1280, "y": 51.5210}},
		{ID: "5", Attrs: graph.Attrs{"x": -0.1300, "y": 51.5300}},
		{ID: "6", Attrs: graph.Attrs{"x": -0.1290, "y": 51.5300}},
	})
	n.AddLinks([]network.LinkInput{
		{ID: "a", From: "1", To: "2", Attrs: graph.Attrs{"modes": []string{"car"}, "length": 70.0}},
		{ID: "b", From: "2", To: "3", Attrs: graph.Attrs{"modes": []string{"car", "bus"}, "length": 111.0, "freespeed": 11.1}},
		{ID: "c", From: "3", To: "4", Attrs: graph.Attrs{"modes": []string{"car"}, "length": 70.0}},
		{ID: "d", From: "5", To: "6", Attrs: graph.Attrs{"modes": []string{"bus"}, "length": 70.0}},
		{ID: "e", From: "2", To: "1", Attrs: graph.Attrs{"modes": []string{"bus"}, "length": 70.0}},
	})
	return n
}

func TestBuildSpatialTreeAdjacency(t *testing.T) {
	n := testNetwork(t)
	tree := BuildSpatialTree(n)

	assert.Equal(t, 5, tree.NumberOfLinks())
	assert.Equal(t, 4, tree.NumberOfEdges())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, tree.LinkIDs())

	ends := map[string][2]string{}
	for l := range n.Edges() {
		ends[l.ID] = [2]string{l.From, l.To}
	}
	for a, ea := range ends {
		for b, eb := range ends {
			assert.Equal(t, ea[1] == eb[0], tree.HasEdge(a, b), "edge %s->%s", a, b)
		}
	}

	succ, err := tree.Successors("a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "e"}, succ)

	_, err = tree.Successors("z")
	assert.ErrorIs(t, err, ErrNodeNotInTree)
}

func TestSpatialTreeEdgeAttributes(t *testing.T) {
	tree := BuildSpatialTree(testNetwork(t))

	attrs, ok := tree.graph.EdgeData("a", "b", 0)
	require.True(t, ok)
	assert.Equal(t, 111.0, attrs[AttrLength])
	assert.Equal(t, 11.1, attrs[AttrFreespeed])
	assert.InDelta(t, 10.0, attrs[AttrTime], 1e-9)

	attrs, ok = tree.graph.EdgeData("b", "c", 0)
	require.True(t, ok)
	assert.NotContains(t, attrs, AttrTime)
}

func TestSpatialTreeIsASnapshot(t *testing.T) {
	n := testNetwork(t)
	tree := BuildSpatialTree(n)

	n.AddLink("f", "4", "5", graph.Attrs{"modes": []string{"car"}})
	assert.False(t, tree.HasLink("f"))
	assert.False(t, tree.HasEdge("c", "f"))

	link, err := tree.Link("b")
	require.NoError(t, err)
	line, ok := tree.Geometry("b")
	require.True(t, ok)
	assert.Equal(t, line, link["geometry"])
}

func TestSpatialTreeLengthFallsBackToGeometry(t *testing.T) {
	n, err := network.New()
	require.NoError(t, err)
	n.AddNode("1", graph.Attrs{"x": -0.1381, "y": 51.5246})
	n.AddNode("2", graph.Attrs{"x": -0.1240, "y": 51.5246})
	n.AddLink("a", "1", "2", nil)
	n.AddLink("b", "2", "1", nil)

	tree := BuildSpatialTree(n)
	attrs, ok := tree.graph.EdgeData("a", "b", 0)
	require.True(t, ok)
	assert.InDelta(t, 976, attrs[AttrLength], 5)
}

func TestSpatialTreeSkipsLinksWithoutGeometry(t *testing.T) {
	n, err := network.New()
	require.NoError(t, err)
	n.AddLink("a", "1", "2", nil)

	core, logs := observer.New(zapcore.WarnLevel)
	tree := BuildSpatialTree(n, WithLogger(zap.New(core)))

	assert.True(t, tree.HasLink("a"))
	_, ok := tree.Geometry("a")
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("links without geometry are not spatially indexed").Len())
}

func TestModalSubtree(t *testing.T) {
	tree := BuildSpatialTree(testNetwork(t))

	car, err := tree.ModalSubtree("car")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, car.LinkIDs())
	assert.Equal(t, 2, car.NumberOfEdges())
	assert.Equal(t, 3, car.index.Size())

	bus, err := tree.ModalSubtree("bus", "rail")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "e"}, bus.LinkIDs())
	assert.Zero(t, bus.NumberOfEdges())

	_, err = tree.ModalSubtree("rail")
	assert.ErrorIs(t, err, ErrEmptySpatialResult)
}
