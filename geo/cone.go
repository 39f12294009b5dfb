// Package geo derives camera vision cones for map rendering.
//
// All points are [lng, lat] pairs in degrees. Bearings are degrees clockwise
// from north. Distances are converted with a small-scale meters-to-degrees
// factor, which is only meaningful for the short ranges a street camera sees.
package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MetersToDegrees converts a range in meters to an approximate radius in degrees of latitude.
	MetersToDegrees = 0.000009

	// ConeSegments is the number of arc subdivisions. The polygon has ConeSegments+3 vertices.
	ConeSegments = 30

	// minLatitudeCos keeps the longitude correction finite near the poles.
	minLatitudeCos = 0.01
)

var (
	ErrInvalidConeParams = errors.New("invalid cone parameters")
	ErrConeMismatch      = errors.New("cone geometry does not match viewing parameters")
)

// Point is a [lng, lat] pair.
type Point [2]float64

func (p Point) Lng() float64 { return p[0] }
func (p Point) Lat() float64 { return p[1] }

// Polygon is an ordered ring of points.
type Polygon []Point

// Projection selects how a degree offset is mapped onto longitude.
type Projection string

const (
	// ProjectionFlat applies the same degree offset to both axes.
	ProjectionFlat Projection = "flat"
	// ProjectionCorrected stretches the longitude offset by 1/cos(lat).
	ProjectionCorrected Projection = "corrected"
)

// ParseProjection maps a config value onto a Projection.
func ParseProjection(s string) (Projection, error) {
	switch Projection(s) {
	case ProjectionFlat, ProjectionCorrected:
		return Projection(s), nil
	case "":
		return ProjectionCorrected, nil
	}
	return "", fmt.Errorf("unknown projection %q", s)
}

// ConeParams are the viewing parameters of a camera.
type ConeParams struct {
	Origin    Point
	Direction float64 // degrees, [0, 360)
	Angle     float64 // full aperture in degrees, (0, 360]
	Range     float64 // meters, > 0
}

// Validate checks the parameter ranges.
func (p ConeParams) Validate() error {
	if math.IsNaN(p.Range) || p.Range <= 0 {
		return fmt.Errorf("%w: range must be greater than 0, got %g", ErrInvalidConeParams, p.Range)
	}
	if math.IsNaN(p.Angle) || p.Angle <= 0 || p.Angle > 360 {
		return fmt.Errorf("%w: angle must be in (0, 360], got %g", ErrInvalidConeParams, p.Angle)
	}
	if math.IsNaN(p.Direction) || p.Direction < 0 || p.Direction >= 360 {
		return fmt.Errorf("%w: direction must be in [0, 360), got %g", ErrInvalidConeParams, p.Direction)
	}
	return nil
}

// RadiusDegrees is the converted range.
func (p ConeParams) RadiusDegrees() float64 {
	return p.Range * MetersToDegrees
}

// Cone is the computed field of view.
type Cone struct {
	Coordinates Polygon
	Center      Point
	Radius      float64 // degrees
	Direction   float64
	Angle       float64
}

// Destination offsets origin by radius degrees along bearing.
func Destination(origin Point, bearing, radius float64, proj Projection) Point {
	rad := bearing * math.Pi / 180
	dLat := radius * math.Cos(rad)
	dLng := radius * math.Sin(rad)
	if proj == ProjectionCorrected {
		dLng /= latitudeCos(origin.Lat())
	}
	return Point{origin.Lng() + dLng, origin.Lat() + dLat}
}

func latitudeCos(lat float64) float64 {
	c := math.Cos(lat * math.Pi / 180)
	if c < minLatitudeCos {
		return minLatitudeCos
	}
	return c
}

// ComputeCone builds the closed fan polygon
// [origin, b0, ..., bN, origin] and its center point.
func ComputeCone(p ConeParams, proj Projection) (Cone, error) {
	if err := p.Validate(); err != nil {
		return Cone{}, err
	}

	radius := p.RadiusDegrees()
	start := p.Direction - p.Angle/2
	step := p.Angle / ConeSegments

	coords := make(Polygon, 0, ConeSegments+3)
	coords = append(coords, p.Origin)
	for i := 0; i <= ConeSegments; i++ {
		coords = append(coords, Destination(p.Origin, start+float64(i)*step, radius, proj))
	}
	coords = append(coords, p.Origin)

	return Cone{
		Coordinates: coords,
		Center:      Destination(p.Origin, p.Direction, radius, proj),
		Radius:      radius,
		Direction:   p.Direction,
		Angle:       p.Angle,
	}, nil
}

// ValidateCone checks client-supplied geometry against the viewing parameters.
// The polygon must have the same vertex count as the recomputed fan, close on
// the origin, and every vertex plus the center must lie within
// tolerance*radius of its recomputed counterpart.
func ValidateCone(coords Polygon, center Point, p ConeParams, proj Projection, tolerance float64) error {
	expected, err := ComputeCone(p, proj)
	if err != nil {
		return err
	}
	if len(coords) != len(expected.Coordinates) {
		return fmt.Errorf("%w: polygon needs %d vertices, got %d", ErrConeMismatch, len(expected.Coordinates), len(coords))
	}
	if coords[0] != p.Origin || coords[len(coords)-1] != p.Origin {
		return fmt.Errorf("%w: polygon must start and end at the camera position", ErrConeMismatch)
	}
	limit := tolerance * expected.Radius
	for i, want := range expected.Coordinates {
		if d := Distance(coords[i], want, p.Origin.Lat(), proj); d > limit {
			return fmt.Errorf("%w: vertex %d is %.7f degrees from expected", ErrConeMismatch, i, d)
		}
	}
	if d := Distance(center, expected.Center, p.Origin.Lat(), proj); d > limit {
		return fmt.Errorf("%w: center is %.7f degrees from expected", ErrConeMismatch, d)
	}
	return nil
}

// Distance is the planar distance between a and b in latitude degrees,
// undoing the longitude stretch when proj is corrected.
func Distance(a, b Point, refLat float64, proj Projection) float64 {
	dLng := a.Lng() - b.Lng()
	if proj == ProjectionCorrected {
		dLng *= latitudeCos(refLat)
	}
	dLat := a.Lat() - b.Lat()
	return math.Hypot(dLng, dLat)
}
