package geo

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/tidewatch/battlecore/pkg/core"
)

// ParseRoute parses a JSON array of waypoints into grid positions.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParseRoute(input string) ([]core.Position, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse route JSON: %w", err)
	}

	if len(coords) < 1 {
		return nil, fmt.Errorf("route must have at least 1 waypoint, got %d", len(coords))
	}

	route := make([]core.Position, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("waypoint %d has insufficient values", i)
		}
		route[i] = core.Position{X: coord[0], Y: coord[1]}
	}

	return route, nil
}

// RouteLength returns the distance travelled from start through every waypoint.
// A route that never leaves start has length 0.
func RouteLength(start core.Position, route []core.Position) (float64, error) {
	moves := false
	flatCoords := make([]float64, 0, (len(route)+1)*2)
	flatCoords = append(flatCoords, start.X, start.Y)
	for _, p := range route {
		moves = moves || p != start
		flatCoords = append(flatCoords, p.X, p.Y)
	}
	if !moves {
		return 0, nil
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return 0, fmt.Errorf("invalid route: %w", err)
	}
	return ls.Length(), nil
}
