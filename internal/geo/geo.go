package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/tidewatch/battlecore/pkg/core"
)

// GRID POSITIONS
// The battle map is a planar grid of cells, so positions are plain XY coordinates and
// distances are Euclidean. There is no projection involved.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PositionFromString parses a string in the format "x,y" into a grid position
func PositionFromString(coords string) (core.Position, error) {
	coordsSplit := strings.Split(strings.TrimSpace(coords), ",")
	if len(coordsSplit) != 2 {
		return core.Position{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	return core.Position{X: x, Y: y}, nil
}

// XY converts a grid position to a simplefeatures coordinate pair.
func XY(p core.Position) geom.XY {
	return geom.XY{X: p.X, Y: p.Y}
}

// Point converts a grid position to a simplefeatures point. Non-finite
// coordinates are rejected.
func Point(p core.Position) (geom.Point, error) {
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   XY(p),
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.Point{}, fmt.Errorf("invalid position (%g, %g): %w", p.X, p.Y, err)
	}
	return pt, nil
}

// Distance returns the Euclidean distance between two grid positions.
func Distance(a, b core.Position) float64 {
	return XY(a).Sub(XY(b)).Length()
}

// Within reports whether b lies within radius cells of a.
func Within(a, b core.Position, radius float64) bool {
	return Distance(a, b) <= radius
}

// InBounds reports whether p is on a width x height map anchored at the origin.
func InBounds(p core.Position, width, height float64) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < width && p.Y < height
}
