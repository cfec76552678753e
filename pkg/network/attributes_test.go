package network

import (
	"testing"

	"github.com/arup-group/genet-sub002/pkg/graph"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestModes(t *testing.T) {
	cases := []struct {
		name  string
		attrs graph.Attrs
		want  []string
	}{
		{"slice", graph.Attrs{AttrModes: []string{"car", "bus", "car"}}, []string{"bus", "car"}},
		{"any slice", graph.Attrs{AttrModes: []any{"walk", 1, "bike"}}, []string{"bike", "walk"}},
		{"set", graph.Attrs{AttrModes: map[string]struct{}{"rail": {}}}, []string{"rail"}},
		{"bool set", graph.Attrs{AttrModes: map[string]bool{"rail": true, "bus": false}}, []string{"rail"}},
		{"comma string", graph.Attrs{AttrModes: "car, bus"}, []string{"bus", "car"}},
		{"missing", graph.Attrs{}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Modes(c.attrs)
			if c.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, c.want, got)
		})
	}

	assert.True(t, HasAnyMode(graph.Attrs{AttrModes: "car,bus"}, []string{"bus", "rail"}))
	assert.False(t, HasAnyMode(graph.Attrs{AttrModes: "car"}, []string{"bus"}))
}

func TestGeometry(t *testing.T) {
	ls, ok := Geometry(graph.Attrs{AttrGeometry: orb.LineString{{0, 0}, {1, 1}}})
	assert.True(t, ok)
	assert.Len(t, ls, 2)

	ls, ok = Geometry(graph.Attrs{AttrGeometry: [][2]float64{{0, 0}, {1, 1}, {2, 2}}})
	assert.True(t, ok)
	assert.Equal(t, orb.Point{2, 2}, ls[2])

	_, ok = Geometry(graph.Attrs{AttrGeometry: orb.LineString{{0, 0}}})
	assert.False(t, ok)
	_, ok = Geometry(graph.Attrs{})
	assert.False(t, ok)
}
