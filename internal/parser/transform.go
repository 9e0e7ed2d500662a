package parser

import (
	"fmt"
	"math"
)

// CoordinateTransform is the immutable per-run coordinate configuration:
// one multiplicative scale applied to every raw coordinate, plus
// spatial-reference metadata forwarded to the output untouched. It is
// constructed once and applied read-only, so concurrent batch pipelines
// can share one value.
type CoordinateTransform struct {
	Scale float64
	WKID  int    // 0 = no spatial reference attached
	CRS   string // descriptive reference string, metadata only
}

// NewCoordinateTransform validates and builds a transform. The scale must
// be a finite positive number; failures surface here, before any file
// I/O, never deep inside assembly.
func NewCoordinateTransform(scale float64, wkid int) (CoordinateTransform, error) {
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return CoordinateTransform{}, &ConfigError{Field: "scale_factor", Reason: "must be finite"}
	}
	if scale <= 0 {
		return CoordinateTransform{}, &ConfigError{Field: "scale_factor",
			Reason: fmt.Sprintf("must be positive, got %g", scale)}
	}
	if wkid < 0 {
		return CoordinateTransform{}, &ConfigError{Field: "wkid",
			Reason: fmt.Sprintf("must be a non-negative identifier, got %d", wkid)}
	}
	t := CoordinateTransform{Scale: scale, WKID: wkid}
	if wkid != 0 {
		t.CRS = fmt.Sprintf("EPSG:%d", wkid)
	}
	return t, nil
}

// Apply rescales one coordinate.
func (t CoordinateTransform) Apply(c [2]float64) [2]float64 {
	return [2]float64{c[0] * t.Scale, c[1] * t.Scale}
}

// applyGeometry rescales an assembled geometry in place. Assembly copies
// vertex runs out of the topology tables, so this never touches shared
// arc data.
func (t CoordinateTransform) applyGeometry(g *Geometry) {
	if t.Scale == 1 {
		return
	}
	switch g.Type {
	case GeometryTypePoint:
		g.Point = t.Apply(g.Point)
	case GeometryTypeLineString:
		for i := range g.Path {
			g.Path[i] = t.Apply(g.Path[i])
		}
	case GeometryTypePolygon:
		for p := range g.Parts {
			part := &g.Parts[p]
			for i := range part.Shell {
				part.Shell[i] = t.Apply(part.Shell[i])
			}
			for _, hole := range part.Holes {
				for i := range hole {
					hole[i] = t.Apply(hole[i])
				}
			}
		}
	}
}
