package wmap

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FieldDef describes one output attribute column.
type FieldDef struct {
	Name       string // decoded source column name
	OutputName string // Shapefile-safe name (ASCII, 10 chars max, unique)
	Type       string // string, byte, short, int, float, double, date, time
}

// Schema is handed to the writer before the first feature: the column
// layout plus the IANA name of the charset attribute text should be
// encoded with.
type Schema struct {
	Fields   []FieldDef
	Encoding string
}

// FeatureWriter is the feature stream contract the conversion pipeline
// feeds. The external Shapefile serializer implements it; so does the
// GeoJSON reference writer below. Calls arrive strictly as
// Begin, Write*, Close - a single forward pass in file order.
type FeatureWriter interface {
	Begin(path string, schema Schema) error
	Write(f *Feature) error
	Close() error
}

// GeoJSONWriter is a reference implementation of the FeatureWriter
// contract, used by the CLI's dry-run mode and by tests. Output is
// RFC 7946 GeoJSON with UTF-8 text; the schema's legacy encoding name is
// ignored since GeoJSON mandates UTF-8.
type GeoJSONWriter struct {
	path   string
	schema Schema
	fc     *geojson.FeatureCollection
}

// NewGeoJSONWriter returns an unstarted writer; Begin opens the target.
func NewGeoJSONWriter() *GeoJSONWriter {
	return &GeoJSONWriter{}
}

func (w *GeoJSONWriter) Begin(path string, schema Schema) error {
	w.path = path
	w.schema = schema
	w.fc = geojson.NewFeatureCollection()
	return nil
}

func (w *GeoJSONWriter) Write(f *Feature) error {
	geom, err := orbGeometry(f.Geometry())
	if err != nil {
		return err
	}
	gf := geojson.NewFeature(geom)
	gf.ID = f.ID()
	props := make(geojson.Properties, len(f.Attributes()))
	for _, fd := range w.schema.Fields {
		if v, ok := f.Attribute(fd.Name); ok {
			props[fd.OutputName] = v
		}
	}
	gf.Properties = props
	w.fc.Append(gf)
	return nil
}

func (w *GeoJSONWriter) Close() error {
	if w.fc == nil {
		return fmt.Errorf("geojson writer closed before Begin")
	}
	data, err := json.Marshal(w.fc)
	if err != nil {
		return err
	}
	return os.WriteFile(w.path, data, 0o644)
}

// orbGeometry maps the converter's geometry to orb types.
func orbGeometry(g Geometry) (orb.Geometry, error) {
	switch g.Type {
	case GeometryTypePoint:
		return orb.Point{g.Point[0], g.Point[1]}, nil
	case GeometryTypeLineString:
		line := make(orb.LineString, len(g.Path))
		for i, c := range g.Path {
			line[i] = orb.Point{c[0], c[1]}
		}
		return line, nil
	case GeometryTypePolygon:
		mp := make(orb.MultiPolygon, len(g.Polygons))
		for i, part := range g.Polygons {
			poly := make(orb.Polygon, 0, 1+len(part.Holes))
			poly = append(poly, orbRing(part.Shell))
			for _, hole := range part.Holes {
				poly = append(poly, orbRing(hole))
			}
			mp[i] = poly
		}
		if len(mp) == 1 {
			return mp[0], nil
		}
		return mp, nil
	}
	return nil, fmt.Errorf("unsupported geometry type %v", g.Type)
}

func orbRing(ring [][2]float64) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, c := range ring {
		out[i] = orb.Point{c[0], c[1]}
	}
	return out
}
