package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortestPath(t *testing.T) {
	tree := BuildSpatialTree(testNetwork(t))

	path, length, err := tree.ShortestPath("a", "c", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, path)
	assert.Equal(t, 181.0, length)

	length, err = tree.PathLength("e", "b", "length")
	require.NoError(t, err)
	assert.Equal(t, 181.0, length)

	length, err = tree.PathLength("a", "a", "")
	require.NoError(t, err)
	assert.Zero(t, length)

	_, err = tree.PathLength("a", "d", "")
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, _, err = tree.ShortestPath("a", "missing", "")
	assert.ErrorIs(t, err, ErrNodeNotInTree)
}

func TestPathLengthsBatch(t *testing.T) {
	tree := BuildSpatialTree(testNetwork(t))

	reqs := []PathRequest{
		{From: "a", To: "c"},
		{From: "a", To: "d"},
		{From: "d", To: "a"},
		{From: "missing", To: "a"},
		{From: "e", To: "b"},
		{From: "a", To: "a"},
	}
	got := tree.PathLengths(reqs, "")
	require.Len(t, got, len(reqs))

	assert.Equal(t, PathResult{From: "a", To: "c", Length: 181, Found: true}, got[0])
	assert.False(t, got[1].Found)
	assert.False(t, got[2].Found)
	assert.False(t, got[3].Found)
	assert.Equal(t, PathResult{From: "e", To: "b", Length: 181, Found: true}, got[4])
	assert.Equal(t, PathResult{From: "a", To: "a", Length: 0, Found: true}, got[5])
}

func TestShortestPathsBatch(t *testing.T) {
	tree := BuildSpatialTree(testNetwork(t))

	got := tree.ShortestPaths([]PathRequest{{From: "e", To: "c"}, {From: "c", To: "a"}}, "length")
	require.Len(t, got, 2)
	assert.True(t, got[0].Found)
	assert.Equal(t, []string{"e", "a", "b", "c"}, got[0].Path)
	assert.Equal(t, 251.0, got[0].Length)
	assert.False(t, got[1].Found)
	assert.Nil(t, got[1].Path)

	hops := tree.ShortestPaths([]PathRequest{{From: "e", To: "c"}}, "hops")
	assert.Equal(t, 3.0, hops[0].Length)
}

func TestPathLengthsSameForAnyWorkerCount(t *testing.T) {
	net := testNetwork(t)
	ids := []string{"a", "b", "c", "d", "e", "missing"}
	var reqs []PathRequest
	for _, from := range ids {
		for _, to := range ids {
			reqs = append(reqs, PathRequest{From: from, To: to})
		}
	}

	serial := BuildSpatialTree(net, WithWorkers(1))
	parallel := BuildSpatialTree(net, WithWorkers(8))
	assert.Equal(t, serial.PathLengths(reqs, ""), parallel.PathLengths(reqs, ""))
	assert.Equal(t, serial.ShortestPaths(reqs, "time"), parallel.ShortestPaths(reqs, "time"))

	sub, err := parallel.ModalSubtree("car")
	require.NoError(t, err)
	got := sub.PathLengths([]PathRequest{{From: "a", To: "c"}, {From: "a", To: "e"}}, "")
	assert.True(t, got[0].Found)
	assert.False(t, got[1].Found)
}
