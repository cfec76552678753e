package schedule

import (
	"slices"
	"testing"

	"github.com/arup-group/genet-sub002/pkg/changelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchedule(t *testing.T) *Schedule {
	t.Helper()
	s := New()
	s.AddStop(Stop{ID: "s1", Name: "Euston", X: -0.1300, Y: 51.5200})
	s.AddStop(Stop{ID: "s2", X: -0.1290, Y: 51.5210})
	s.AddStop(Stop{ID: "s3", X: -0.1290, Y: 51.5300})

	require.NoError(t, s.AddService(Service{
		ID: "svc1",
		Routes: []*Route{
			{ID: "r1", Mode: "bus", StopIDs: []string{"s1", "s2"}},
			{ID: "r2", Mode: "bus", StopIDs: []string{"s2", "s1"}},
		},
	}))
	require.NoError(t, s.AddService(Service{
		ID:     "svc2",
		Routes: []*Route{{ID: "r3", Mode: "rail", StopIDs: []string{"s3", "s2"}}},
	}))
	return s
}

func TestScheduleQueries(t *testing.T) {
	s := testSchedule(t)

	assert.Equal(t, 3, s.NumberOfStops())
	assert.Equal(t, []string{"s1", "s2", "s3"}, s.StopIDs())
	assert.Equal(t, []string{"svc1", "svc2"}, s.ServiceIDs())
	assert.Equal(t, []string{"r1", "r2", "r3"}, s.RouteIDs())
	assert.Equal(t, []string{"bus", "rail"}, s.Modes())
	assert.Equal(t, []string{"s1", "s2"}, s.StopsForMode("bus"))
	assert.Equal(t, []string{"s2", "s3"}, s.StopsForMode("rail"))
	assert.Empty(t, s.StopsForMode("ferry"))

	var routeIDs []string
	for r := range s.Routes() {
		routeIDs = append(routeIDs, r.ID)
	}
	assert.Equal(t, []string{"r1", "r2", "r3"}, routeIDs)

	var stopIDs []string
	for id := range s.Stops() {
		stopIDs = append(stopIDs, id)
	}
	assert.Equal(t, []string{"s1", "s2", "s3"}, stopIDs)

	svc, err := s.Service("svc2")
	require.NoError(t, err)
	assert.Len(t, svc.Routes, 1)
	_, err = s.Service("nope")
	assert.ErrorIs(t, err, ErrServiceNotFound)

	stop, err := s.Stop("s1")
	require.NoError(t, err)
	assert.Equal(t, "Euston", stop.Name)
	_, err = s.Stop("nope")
	assert.ErrorIs(t, err, ErrStopNotFound)
}

func TestAddServiceValidation(t *testing.T) {
	s := testSchedule(t)

	err := s.AddService(Service{ID: "svc1"})
	assert.ErrorIs(t, err, ErrDuplicateID)

	err = s.AddService(Service{ID: "svc3", Routes: []*Route{{ID: "r1", Mode: "bus"}}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	err = s.AddService(Service{ID: "svc3", Routes: []*Route{
		{ID: "r9", Mode: "bus"}, {ID: "r9", Mode: "bus"},
	}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	err = s.AddService(Service{ID: "svc3", Routes: []*Route{{ID: "r4", Mode: "bus", StopIDs: []string{"s9"}}}})
	assert.ErrorIs(t, err, ErrUnknownStop)

	assert.Equal(t, []string{"svc1", "svc2"}, s.ServiceIDs())
}

func TestAddServiceCopiesRoutes(t *testing.T) {
	s := New()
	s.AddStop(Stop{ID: "s1"})
	stops := []string{"s1"}
	require.NoError(t, s.AddService(Service{ID: "svc", Routes: []*Route{{ID: "r", Mode: "bus", StopIDs: stops}}}))
	stops[0] = "changed"

	assert.Equal(t, []string{"s1"}, s.StopsForMode("bus"))
}

func TestAddStopMergesAttributes(t *testing.T) {
	s := New()
	s.AddStop(Stop{ID: "s1", X: 1, Attributes: map[string]any{"a": 1}})
	s.AddStop(Stop{ID: "s1", X: 2, Attributes: map[string]any{"b": 2}})

	stop, err := s.Stop("s1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, stop.X)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, stop.Attributes)

	entries := s.ChangeLog().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, changelog.Add, entries[0].Change)
	assert.Equal(t, changelog.Modify, entries[1].Change)
	assert.Equal(t, changelog.Stop, entries[1].ObjectType)
}

func TestStopAccessAttributes(t *testing.T) {
	s := testSchedule(t)

	require.NoError(t, s.SetStopAccess("s1", "bus", "link_7", 30))
	stop, err := s.Stop("s1")
	require.NoError(t, err)
	assert.Equal(t, "link_7", stop.Attributes["accessLinkId_bus"])
	assert.Equal(t, true, stop.Attributes["busAccessible"])
	assert.Equal(t, 30.0, stop.Attributes["bus_distance_catchment_tag"])

	link, ok := stop.AccessLink("bus")
	assert.True(t, ok)
	assert.Equal(t, "link_7", link)

	require.NoError(t, s.SetStopInaccessible("s1", "bus"))
	stop, _ = s.Stop("s1")
	assert.Equal(t, false, stop.Attributes["busAccessible"])
	_, ok = stop.AccessLink("bus")
	assert.False(t, ok)
	assert.NotContains(t, stop.Attributes, "bus_distance_catchment_tag")

	assert.ErrorIs(t, s.SetStopAccess("nope", "bus", "l", 1), ErrStopNotFound)

	last := s.ChangeLog().Entries()
	assert.True(t, slices.ContainsFunc(last, func(e changelog.Entry) bool {
		return e.Change == changelog.Modify && e.ID == "s1"
	}))
}

func TestStopCopiesAreIndependent(t *testing.T) {
	s := testSchedule(t)
	stop, _ := s.Stop("s1")
	stop.Attributes["x"] = 1

	again, _ := s.Stop("s1")
	assert.NotContains(t, again.Attributes, "x")
}
