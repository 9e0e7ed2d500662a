// Package wmap converts MapGIS topological vector files (.wp points,
// .wl polylines, .wt polygons) into assembled, correctly wound geometry
// paired with attribute records, ready for an external Shapefile writer.
package wmap

import (
	"context"
	"fmt"
	"os"

	"github.com/cartoconv/mapgis/internal/parser"
)

// Error types surfaced by conversion. Callers match them with errors.As.
type (
	// FormatError: corrupt or truncated input, fatal for the file.
	FormatError = parser.FormatError
	// TopologyError: per-feature assembly failure, isolated.
	TopologyError = parser.TopologyError
	// CountMismatchError: geometry/attribute divergence, fatal for the file.
	CountMismatchError = parser.CountMismatchError
	// ConfigError: invalid option, raised before any I/O.
	ConfigError = parser.ConfigError
)

// FileKind re-exports the input file variant.
type FileKind = parser.FileKind

const (
	KindPoint   = parser.KindPoint
	KindLine    = parser.KindLine
	KindPolygon = parser.KindPolygon
)

// GeometryType distinguishes the three output geometry variants.
type GeometryType int

const (
	GeometryTypePoint GeometryType = iota
	GeometryTypeLineString
	GeometryTypePolygon
)

// String returns the geometry type name.
func (g GeometryType) String() string {
	return parser.GeometryType(g).String()
}

// Polygon is one polygon part: a shell ring and the holes nested in it.
// Rings are closed (first vertex equals last); shells wind clockwise,
// holes counter-clockwise, matching Shapefile convention.
type Polygon struct {
	Shell [][2]float64
	Holes [][][2]float64
}

// Geometry is a feature's spatial representation. The populated field
// depends on Type. Coordinates are post-transform (x, y) pairs.
type Geometry struct {
	Type     GeometryType
	Point    [2]float64    // GeometryTypePoint
	Path     [][2]float64  // GeometryTypeLineString
	Polygons []Polygon     // GeometryTypePolygon; >1 part = multi-part
}

// Feature pairs one geometry with its attribute record. This is the unit
// the FeatureWriter contract consumes, in file order.
type Feature struct {
	id         int32
	geometry   Geometry
	attributes map[string]interface{}
}

// ID returns the feature's sequence id, shared with the attribute table.
func (f *Feature) ID() int32 { return f.id }

// Geometry returns the feature's spatial representation.
func (f *Feature) Geometry() Geometry { return f.geometry }

// Attributes returns the feature's attribute record.
func (f *Feature) Attributes() map[string]interface{} { return f.attributes }

// Attribute returns one attribute value by field name.
func (f *Feature) Attribute(name string) (interface{}, bool) {
	v, ok := f.attributes[name]
	return v, ok
}

// Converter converts one MapGIS file. Construction validates options only;
// the pipeline runs on first use (FeatureCount, Features, Export or
// Summary) and its result is cached, so a Converter is single-use and
// not safe for concurrent calls. Use one Converter per file per worker.
type Converter struct {
	path string
	kind FileKind
	opts Options

	doc      *parser.Document
	features []Feature
	index    *regionIndex
}

// NewConverter binds a converter to one input file path. Option problems
// (non-positive scale, unknown encoding) are reported here, before any
// file I/O.
func NewConverter(path string, opts Options) (*Converter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	kind := parser.KindFromPath(path)
	if kind == parser.KindUnknown {
		return nil, &ConfigError{Field: "path", Reason: fmt.Sprintf(
			"unrecognized extension on %q, want .wp, .wl or .wt", path)}
	}
	return &Converter{path: path, kind: kind, opts: opts}, nil
}

// run executes the pipeline once and caches the result.
func (c *Converter) run(ctx context.Context) error {
	if c.doc != nil {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.path, err)
	}
	doc, err := parser.BuildDocument(ctx, data, c.kind, c.opts.buildOptions())
	if err != nil {
		return err
	}
	c.doc = doc
	c.features = make([]Feature, 0, len(doc.Features))
	for i := range doc.Features {
		c.features = append(c.features, convertFeature(&doc.Features[i]))
	}
	return nil
}

// Kind returns the input file variant, derived from the extension.
func (c *Converter) Kind() FileKind { return c.kind }

// FeatureCount returns the number of converted features, running the
// pipeline if it has not run yet.
func (c *Converter) FeatureCount(ctx context.Context) (int, error) {
	if err := c.run(ctx); err != nil {
		return 0, err
	}
	return len(c.features), nil
}

// Features returns all converted features in file order.
func (c *Converter) Features(ctx context.Context) ([]Feature, error) {
	if err := c.run(ctx); err != nil {
		return nil, err
	}
	return c.features, nil
}

// Schema returns the output attribute schema, including the synthesized
// styling columns and their Shapefile-safe sanitized names.
func (c *Converter) Schema(ctx context.Context) (Schema, error) {
	if err := c.run(ctx); err != nil {
		return Schema{}, err
	}
	return c.schema(), nil
}

func (c *Converter) schema() Schema {
	names := make([]string, len(c.doc.Fields))
	s := Schema{Fields: make([]FieldDef, len(c.doc.Fields)), Encoding: c.opts.encodingName()}
	for i, f := range c.doc.Fields {
		names[i] = f.Name
		s.Fields[i] = FieldDef{Name: f.Name, Type: f.Type.String()}
	}
	for i, sanitized := range parser.SanitizeFieldNames(names) {
		s.Fields[i].OutputName = sanitized
	}
	return s
}

// Warnings returns the per-feature topology problems recorded during
// assembly: dropped features and tolerated polyline gaps.
func (c *Converter) Warnings(ctx context.Context) ([]error, error) {
	if err := c.run(ctx); err != nil {
		return nil, err
	}
	var warnings []error
	for _, terr := range c.doc.Dropped {
		warnings = append(warnings, terr)
	}
	for i := range c.doc.Features {
		for _, terr := range c.doc.Features[i].Warnings {
			warnings = append(warnings, terr)
		}
	}
	return warnings, nil
}

// Summary returns a human-readable account of the conversion.
func (c *Converter) Summary(ctx context.Context) (string, error) {
	if err := c.run(ctx); err != nil {
		return "", err
	}
	return c.doc.Summary(), nil
}

// CRS returns the spatial reference attached to the output: the caller's
// WKID if one was given, otherwise whatever the file header declares.
// Empty means no reference metadata.
func (c *Converter) CRS(ctx context.Context) (string, error) {
	if err := c.run(ctx); err != nil {
		return "", err
	}
	return c.doc.Transform.CRS, nil
}

// Export runs the full pipeline and streams the feature sequence to the
// writer, one feature at a time in file order. The writer receives the
// schema (with the configured attribute text encoding) before the first
// feature. Nothing is written when conversion fails: all-or-nothing per
// file.
func (c *Converter) Export(ctx context.Context, w FeatureWriter, outPath string) error {
	if err := c.run(ctx); err != nil {
		return err
	}
	if err := w.Begin(outPath, c.schema()); err != nil {
		return fmt.Errorf("begin %s: %w", outPath, err)
	}
	for i := range c.features {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(&c.features[i]); err != nil {
			return fmt.Errorf("write feature %d: %w", c.features[i].id, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", outPath, err)
	}
	return nil
}

// convertFeature maps the internal feature to the public shape.
func convertFeature(f *parser.Feature) Feature {
	out := Feature{
		id:         f.ID,
		attributes: f.Attributes,
	}
	out.geometry.Type = GeometryType(f.Geometry.Type)
	switch f.Geometry.Type {
	case parser.GeometryTypePoint:
		out.geometry.Point = f.Geometry.Point
	case parser.GeometryTypeLineString:
		out.geometry.Path = f.Geometry.Path
	case parser.GeometryTypePolygon:
		out.geometry.Polygons = make([]Polygon, len(f.Geometry.Parts))
		for i, part := range f.Geometry.Parts {
			p := Polygon{Shell: part.Shell}
			if len(part.Holes) > 0 {
				p.Holes = make([][][2]float64, len(part.Holes))
				for j, hole := range part.Holes {
					p.Holes[j] = hole
				}
			}
			out.geometry.Polygons[i] = p
		}
	}
	return out
}
