package access

import (
	"context"
	"testing"

	"github.com/arup-group/genet-sub002/pkg/config"
	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/arup-group/genet-sub002/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fixtures(t *testing.T) (*network.Network, *schedule.Schedule) {
	t.Helper()
	n, err := network.New()
	require.NoError(t, err)
	n.AddNodes([]network.NodeInput{
		{ID: "1", Attrs: graph.Attrs{"x": -0.1300, "y": 51.5200}},
		{ID: "2", Attrs: graph.Attrs{"x": -0.1290, "y": 51.5200}},
		{ID: "3", Attrs: graph.Attrs{"x": -0.1290, "y": 51.5210}},
	})
	n.AddLink("car_12", "1", "2", graph.Attrs{"modes": []string{"car"}})
	n.AddLink("bus_12", "1", "2", graph.Attrs{"modes": []string{"car", "bus"}})
	n.AddLink("bus_23", "2", "3", graph.Attrs{"modes": []string{"bus"}})

	s := schedule.New()
	s.AddStop(schedule.Stop{ID: "near", X: -0.1295, Y: 51.5201})
	s.AddStop(schedule.Stop{ID: "far", X: -0.1000, Y: 51.6000})
	require.NoError(t, s.AddService(schedule.Service{
		ID:     "svc",
		Routes: []*schedule.Route{{ID: "r", Mode: "bus", StopIDs: []string{"near"}}},
	}))
	return n, s
}

func threshold(f float64) *float64 {
	return &f
}

func TestAssign(t *testing.T) {
	n, s := fixtures(t)
	a := NewAssigner(n, s, zaptest.NewLogger(t))

	report, err := a.Assign(context.Background(), config.CatchmentConfig{
		StepSize:          10,
		DistanceThreshold: threshold(100),
		Modes:             []string{"car", "bus", "rail"},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeReport{Matched: 1, Unmatched: []string{"far"}}, report["car"])
	assert.Equal(t, ModeReport{Matched: 1, Unmatched: []string{"far"}}, report["bus"])
	assert.Equal(t, ModeReport{Skipped: true}, report["rail"])

	near, err := s.Stop("near")
	require.NoError(t, err)
	link, ok := near.AccessLink("car")
	require.True(t, ok)
	// bus_12 and car_12 tie for car, the smaller id wins
	assert.Equal(t, "bus_12", link)
	assert.Equal(t, true, near.Attributes["carAccessible"])
	assert.Equal(t, 10.0, near.Attributes["car_distance_catchment_tag"])

	far, err := s.Stop("far")
	require.NoError(t, err)
	assert.Equal(t, false, far.Attributes["busAccessible"])
	_, ok = far.AccessLink("bus")
	assert.False(t, ok)
}

func TestAssignServedStopsOnly(t *testing.T) {
	n, s := fixtures(t)
	a := NewAssigner(n, s, nil)

	report, err := a.Assign(context.Background(), config.CatchmentConfig{
		StepSize:        10,
		Modes:           []string{"bus", "car"},
		ServedStopsOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report["bus"].Matched)
	assert.Empty(t, report["bus"].Unmatched)
	// no car route calls anywhere
	assert.Equal(t, ModeReport{}, report["car"])

	far, _ := s.Stop("far")
	assert.NotContains(t, far.Attributes, "busAccessible")
}

func TestAssignCancelled(t *testing.T) {
	n, s := fixtures(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAssigner(n, s, nil).Assign(ctx, config.CatchmentConfig{StepSize: 10, Modes: []string{"bus"}})
	assert.ErrorIs(t, err, context.Canceled)
}
