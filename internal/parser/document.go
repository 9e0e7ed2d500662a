package parser

import (
	"context"
	"fmt"
	"strings"
)

// Feature pairs one assembled geometry with its attribute record. This is
// the unit handed across the package boundary to the writer contract.
type Feature struct {
	ID         int32 // sequence id, shared with the attribute table
	Geometry   Geometry
	Attributes AttributeRecord
	Warnings   []*TopologyError
}

// Document is a fully converted file: transformed features joined with
// attributes, plus the per-feature failures recorded along the way.
type Document struct {
	Kind      FileKind
	Transform CoordinateTransform
	Fields    []Field
	Features  []Feature
	Dropped   []*TopologyError
}

// BuildOptions configures one conversion pass.
type BuildOptions struct {
	ScaleFactor     float64 // finite positive; 1 = no rescaling
	UseFileScale    bool    // substitute the header's embedded map scale
	WKID            int     // 0 = attach no spatial reference
	StrictPolylines bool    // drop polyline features on endpoint gaps
}

// DefaultBuildOptions returns options performing a plain 1:1 conversion.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{ScaleFactor: 1}
}

// BuildDocument runs the conversion pipeline over one file image:
// decode, index, assemble, transform, join - strictly in that order,
// since each stage consumes the previous stage's completed immutable
// tables.
func BuildDocument(ctx context.Context, data []byte, expect FileKind, opts BuildOptions) (*Document, error) {
	doc, err := Decode(data, expect)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, err := buildTopologyIndex(doc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transform, err := resolveTransform(doc.Header, opts.ScaleFactor, opts.UseFileScale, opts.WKID)
	if err != nil {
		return nil, err
	}

	assembled, err := newAssembler(doc, idx, opts.StrictPolylines).assemble(ctx)
	if err != nil {
		return nil, err
	}

	// The count invariant compares the file's declared geometry count
	// against the attribute table before any output: a divergence is a
	// hard error for the whole file. Features dropped for topology
	// reasons do not relax it - their attribute rows are skipped below,
	// but they were declared and counted.
	declared := doc.FeatureCount()
	records := len(doc.Attrs.Records)
	if declared != records {
		return nil, &CountMismatchError{Geometries: declared, Records: records}
	}

	out := &Document{
		Kind:      doc.Kind,
		Transform: transform,
		Fields:    append(append([]Field{}, doc.Attrs.Fields...), stylingFields(doc.Kind)...),
		Dropped:   assembled.Dropped,
	}
	out.Features = make([]Feature, 0, len(assembled.Features))
	for i := range assembled.Features {
		af := &assembled.Features[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		transform.applyGeometry(&af.Geometry)

		attrs := make(AttributeRecord, len(doc.Attrs.Fields)+8)
		for k, v := range doc.Attrs.Records[af.SeqID] {
			attrs[k] = v
		}
		mergeStyling(doc, af, attrs)

		out.Features = append(out.Features, Feature{
			ID:         af.SeqID,
			Geometry:   af.Geometry,
			Attributes: attrs,
			Warnings:   af.Warnings,
		})
	}

	return out, nil
}

// FeatureCount returns the number of successfully converted features.
func (d *Document) FeatureCount() int {
	return len(d.Features)
}

// Summary renders a one-line human-readable account of the conversion:
// file kind, feature count, and any isolated feature failures.
func (d *Document) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s file: %d features", d.Kind, len(d.Features))
	if d.Transform.CRS != "" {
		fmt.Fprintf(&b, ", crs %s", d.Transform.CRS)
	}
	if d.Transform.Scale != 1 {
		fmt.Fprintf(&b, ", scale %g", d.Transform.Scale)
	}
	if len(d.Dropped) > 0 {
		fmt.Fprintf(&b, ", %d dropped:", len(d.Dropped))
		for _, terr := range d.Dropped {
			fmt.Fprintf(&b, "\n  %v", terr)
		}
	}
	return b.String()
}

// Styling columns synthesized from the geometry sections, named after the
// legacy tooling's output so SanitizeFieldNames maps them to stable
// ASCII names.
func stylingFields(kind FileKind) []Field {
	switch kind {
	case KindPoint:
		return syntheticFields(
			field("坐标X", FieldDouble), field("坐标Y", FieldDouble),
			field("点类型", FieldString), field("透明输出", FieldString),
			field("颜色", FieldInt), field("字符串", FieldString),
		)
	case KindLine:
		return syntheticFields(
			field("线型", FieldInt), field("线颜色", FieldInt),
			field("线宽", FieldFloat), field("线类型", FieldByte),
			field("X系数", FieldFloat), field("Y系数", FieldFloat),
			field("辅助颜色", FieldInt),
		)
	case KindPolygon:
		return syntheticFields(
			field("填充颜色", FieldInt), field("填充符号", FieldShort),
			field("图案高度", FieldFloat), field("图案宽度", FieldFloat),
			field("图案颜色", FieldInt),
		)
	}
	return nil
}

func field(name string, t FieldType) Field { return Field{Name: name, Type: t} }

func syntheticFields(fields ...Field) []Field { return fields }

// pointKindNames matches the legacy tooling's point-type labels.
var pointKindNames = map[byte]string{
	pointKindText:       "字符串",
	pointKindSubPicture: "子图",
	pointKindCircle:     "圆",
	pointKindArc:        "弧",
}

// mergeStyling merges the geometry section's styling columns into the
// feature's attribute record.
func mergeStyling(doc *rawDocument, af *AssembledFeature, attrs AttributeRecord) {
	switch doc.Kind {
	case KindPoint:
		p := &doc.Points[af.SeqID]
		attrs["坐标X"] = p.X
		attrs["坐标Y"] = p.Y
		attrs["点类型"] = pointKindNames[p.Kind]
		if p.Transparent {
			attrs["透明输出"] = "透明"
		} else {
			attrs["透明输出"] = "不透明"
		}
		attrs["颜色"] = p.Color
		if p.Kind == pointKindText && len(p.TextRaw) > 0 {
			attrs["字符串"] = decodeText(p.TextRaw)
		}
	case KindLine:
		arc := &doc.Arcs[af.SeqID]
		attrs["线型"] = arc.Style
		attrs["线颜色"] = arc.Color
		attrs["线宽"] = arc.Width
		attrs["线类型"] = int(arc.Kind)
		attrs["X系数"] = arc.XFactor
		attrs["Y系数"] = arc.YFactor
		attrs["辅助颜色"] = arc.AuxColor
	case KindPolygon:
		// Fill records are ordinal by polygon id.
		id := int(af.SourceID)
		if id >= 1 && id <= len(doc.Fills) {
			f := &doc.Fills[id-1]
			attrs["填充颜色"] = f.FillColor
			attrs["填充符号"] = f.FillPattern
			attrs["图案高度"] = f.PatternH
			attrs["图案宽度"] = f.PatternW
			attrs["图案颜色"] = f.PatternColor
		}
	}
}
