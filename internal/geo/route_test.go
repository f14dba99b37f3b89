package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/battlecore/pkg/core"
)

func TestParseRoute(t *testing.T) {
	route, err := ParseRoute("[[1,2],[3,4],[5,6]]")
	require.NoError(t, err)
	require.Len(t, route, 3)
	assert.Equal(t, core.Position{X: 5, Y: 6}, route[2])
}

func TestParseRoute_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "1,2"},
		{"empty", "[]"},
		{"short waypoint", "[[1,2],[3]]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoute(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestRouteLength(t *testing.T) {
	start := core.Position{X: 0, Y: 0}
	route := []core.Position{{X: 3, Y: 0}, {X: 3, Y: 4}}
	l, err := RouteLength(start, route)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, l, 1e-9)

	tests := []struct {
		name  string
		route []core.Position
	}{
		{"empty", nil},
		{"stays put", []core.Position{{X: 0, Y: 0}}},
		{"returns to start", []core.Position{{X: 0, Y: 0}, {X: 0, Y: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := RouteLength(start, tt.route)
			require.NoError(t, err)
			assert.Zero(t, l)
		})
	}

	_, err = RouteLength(start, []core.Position{{X: math.Inf(1), Y: 0}})
	assert.Error(t, err)
}
