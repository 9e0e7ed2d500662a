package wmap

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writePointFile writes a minimal but layout-exact point (.wp) file:
// magic tag, section table at byte 168, one point record per coordinate
// and an attribute table with a single int ID column numbered from 1.
func writePointFile(t *testing.T, path string, coords [][2]float64) string {
	t.Helper()

	const (
		tableOffset = 168
		dataStart   = tableOffset + 10*10
		pointStride = 93
	)

	points := make([]byte, pointStride) // placeholder record
	for _, c := range coords {
		rec := make([]byte, pointStride)
		binary.LittleEndian.PutUint64(rec[7:], math.Float64bits(c[0]))
		binary.LittleEndian.PutUint64(rec[15:], math.Float64bits(c[1]))
		points = append(points, rec...)
	}

	attrs := make([]byte, 348)
	binary.LittleEndian.PutUint16(attrs[322:], 1)                    // field count
	binary.LittleEndian.PutUint32(attrs[324:], uint32(len(coords)+1)) // records incl placeholder
	binary.LittleEndian.PutUint16(attrs[328:], 4)                    // record length
	desc := make([]byte, 39)
	copy(desc, "ID")
	desc[20] = 3 // int
	attrs = append(attrs, desc...)
	attrs = append(attrs, 0, 0, 0, 0) // placeholder record
	for i := range coords {
		attrs = binary.LittleEndian.AppendUint32(attrs, uint32(i+1))
	}

	data := make([]byte, dataStart)
	copy(data, "WMAP`D22")
	binary.LittleEndian.PutUint32(data[12:], tableOffset)
	binary.LittleEndian.PutUint32(data[tableOffset:], dataStart)
	binary.LittleEndian.PutUint32(data[tableOffset+4:], uint32(len(points)))
	binary.LittleEndian.PutUint32(data[tableOffset+2*10:], uint32(dataStart+len(points)))
	binary.LittleEndian.PutUint32(data[tableOffset+2*10+4:], uint32(len(attrs)))
	data = append(data, points...)
	data = append(data, attrs...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewConverterValidation(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		opts      Options
		wantField string // empty means construction succeeds
	}{
		{name: "defaults", path: "a.wp", opts: DefaultOptions()},
		{name: "zero scale", path: "a.wp", opts: Options{}, wantField: "scale_factor"},
		{name: "negative wkid", path: "a.wp",
			opts: Options{ScaleFactor: 1, WKID: -1}, wantField: "wkid"},
		{name: "unknown charset", path: "a.wp",
			opts: Options{ScaleFactor: 1, Encoding: "no-such-charset"}, wantField: "encoding"},
		{name: "bad extension", path: "a.shp", opts: DefaultOptions(), wantField: "path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConverter(tt.path, tt.opts)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("NewConverter: %v", err)
				}
				return
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("got %v, want *ConfigError", err)
			}
			if cerr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.wantField)
			}
		})
	}
}

func TestConverterPipeline(t *testing.T) {
	path := writePointFile(t, filepath.Join(t.TempDir(), "city.wp"),
		[][2]float64{{1, 2}, {3, 4}, {5, 6}})

	opts := DefaultOptions()
	opts.ScaleFactor = 10
	conv, err := NewConverter(path, opts)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	if conv.Kind() != KindPoint {
		t.Errorf("Kind = %v, want point", conv.Kind())
	}

	ctx := context.Background()
	n, err := conv.FeatureCount(ctx)
	if err != nil {
		t.Fatalf("FeatureCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("FeatureCount = %d, want 3", n)
	}

	features, err := conv.Features(ctx)
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	f := features[1]
	if f.Geometry().Type != GeometryTypePoint || f.Geometry().Point != [2]float64{30, 40} {
		t.Errorf("feature 1 geometry = %+v, want scaled point (30, 40)", f.Geometry())
	}
	if v, ok := f.Attribute("ID"); !ok || v != int32(2) {
		t.Errorf("feature 1 ID attribute = %v", v)
	}

	summary, err := conv.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !strings.Contains(summary, "point file: 3 features") {
		t.Errorf("Summary = %q", summary)
	}

	crs, err := conv.CRS(ctx)
	if err != nil {
		t.Fatalf("CRS: %v", err)
	}
	if crs != "" {
		t.Errorf("CRS = %q, want empty for a header with no reference", crs)
	}
}

func TestConverterSchema(t *testing.T) {
	path := writePointFile(t, filepath.Join(t.TempDir(), "poi.wp"),
		[][2]float64{{0, 0}})
	conv, err := NewConverter(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	schema, err := conv.Schema(context.Background())
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if schema.Encoding != DefaultEncoding {
		t.Errorf("Encoding = %q, want %q", schema.Encoding, DefaultEncoding)
	}

	byName := map[string]FieldDef{}
	for _, fd := range schema.Fields {
		byName[fd.Name] = fd
		if len(fd.OutputName) == 0 || len(fd.OutputName) > 10 {
			t.Errorf("output name %q not within the DBF limit", fd.OutputName)
		}
		for _, r := range fd.OutputName {
			if r > 127 {
				t.Errorf("output name %q is not ASCII", fd.OutputName)
			}
		}
	}
	if byName["ID"].OutputName != "ID" || byName["ID"].Type != "int" {
		t.Errorf("ID column = %+v", byName["ID"])
	}
	// Synthesized styling columns use the fixed legacy-name mapping.
	if byName["坐标X"].OutputName != "CoordX" {
		t.Errorf("坐标X output name = %q, want CoordX", byName["坐标X"].OutputName)
	}
}

func TestConverterMissingFile(t *testing.T) {
	conv, err := NewConverter(filepath.Join(t.TempDir(), "absent.wp"), DefaultOptions())
	if err != nil {
		t.Fatalf("NewConverter touches the filesystem: %v", err)
	}
	if _, err := conv.FeatureCount(context.Background()); err == nil {
		t.Fatal("FeatureCount on a missing file succeeded")
	}
}

func TestConverterCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wl")
	if err := os.WriteFile(path, []byte("not a vector file"), 0o644); err != nil {
		t.Fatal(err)
	}
	conv, err := NewConverter(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	_, err = conv.FeatureCount(context.Background())
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("got %v, want *FormatError", err)
	}
}
