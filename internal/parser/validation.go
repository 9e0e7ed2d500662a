package parser

import (
	"fmt"
	"math"
)

// ValidateGeometry checks the output invariants of an assembled geometry:
// every ring is closed, shells and their holes wind in opposite
// directions, coordinates are finite. Assembly already guarantees these;
// validation exists for callers that want an explicit post-condition
// check (and for tests).
func ValidateGeometry(g *Geometry) error {
	switch g.Type {
	case GeometryTypePoint:
		return validateCoord(g.Point)
	case GeometryTypeLineString:
		if len(g.Path) < 2 {
			return fmt.Errorf("polyline has %d vertices, need at least 2", len(g.Path))
		}
		for _, c := range g.Path {
			if err := validateCoord(c); err != nil {
				return err
			}
		}
	case GeometryTypePolygon:
		if len(g.Parts) == 0 {
			return fmt.Errorf("polygon has no parts")
		}
		for _, part := range g.Parts {
			if err := validateRing(part.Shell); err != nil {
				return fmt.Errorf("shell: %w", err)
			}
			if !isShell(part.Shell) {
				return fmt.Errorf("shell ring winds counter-clockwise")
			}
			for i, hole := range part.Holes {
				if err := validateRing(hole); err != nil {
					return fmt.Errorf("hole %d: %w", i, err)
				}
				if isShell(hole) {
					return fmt.Errorf("hole %d winds clockwise", i)
				}
			}
		}
	}
	return nil
}

func validateRing(ring Ring) error {
	if len(ring) < 4 {
		return fmt.Errorf("ring has %d vertices, need at least 4", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		return fmt.Errorf("ring is not closed")
	}
	for _, c := range ring {
		if err := validateCoord(c); err != nil {
			return err
		}
	}
	return nil
}

func validateCoord(c [2]float64) error {
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite coordinate (%g, %g)", c[0], c[1])
		}
	}
	return nil
}
