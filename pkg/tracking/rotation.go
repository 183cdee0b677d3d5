package tracking

import (
	"fmt"
	"strings"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// RotationDirection is the sign convention of the renderer's angle axis.
type RotationDirection int

const (
	// Clockwise matches compass headings: 90 means the icon faces east.
	Clockwise RotationDirection = 1

	// CounterClockwise matches math/WebGL angles, e.g. deck.gl icon layers.
	CounterClockwise RotationDirection = -1
)

// String implements fmt.Stringer.
func (d RotationDirection) String() string {
	if d == CounterClockwise {
		return "counterclockwise"
	}
	return "clockwise"
}

// ParseRotationDirection accepts "clockwise"/"cw" and
// "counterclockwise"/"ccw". An empty string means Clockwise.
func ParseRotationDirection(s string) (RotationDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clockwise", "cw":
		return Clockwise, nil
	case "counterclockwise", "counter-clockwise", "ccw":
		return CounterClockwise, nil
	}
	return Clockwise, fmt.Errorf("unknown rotation direction %q", s)
}

// RotationConvention maps a compass heading to the display-rotation angle a
// renderer expects:
//
//	rotation = OffsetDegrees + Direction * heading   (mod 360)
//
// Heading is always degrees clockwise from true north. OffsetDegrees
// compensates for icon artwork that is not drawn pointing north.
type RotationConvention struct {
	// OffsetDegrees is added after the sign is applied
	OffsetDegrees float64

	// Direction is the renderer's positive rotation sense (zero means Clockwise)
	Direction RotationDirection
}

// Rotation returns the display angle in [0, 360) for a compass heading.
func (c RotationConvention) Rotation(headingDegrees float64) float64 {
	sign := float64(Clockwise)
	if c.Direction == CounterClockwise {
		sign = float64(CounterClockwise)
	}
	return coordinates.NormalizeBearing(c.OffsetDegrees + sign*headingDegrees)
}
