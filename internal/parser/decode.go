package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileKind identifies which of the three MapGIS vector file variants is
// being decoded. The variant is declared twice: by file extension and by
// the magic tag in the header; they must agree.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindPoint            // .wp - point elements
	KindLine             // .wl - polyline elements
	KindPolygon          // .wt - polygon elements with arc topology
)

// String returns a human-readable name for the file kind.
func (k FileKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "polyline"
	case KindPolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// Magic tags. 8 bytes at offset 0: "WMAP", a backtick, and the variant code.
const (
	magicPoint   = "WMAP`D22"
	magicLine    = "WMAP`D21"
	magicPolygon = "WMAP`D23"
)

// KindFromPath maps a file extension to the expected file kind.
// Returns KindUnknown for unrecognized extensions.
func KindFromPath(path string) FileKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wp":
		return KindPoint
	case ".wl":
		return KindLine
	case ".wt":
		return KindPolygon
	default:
		return KindUnknown
	}
}

// Record strides. Every fixed-stride section begins with one placeholder
// record, so a section of size S holds S/stride - 1 usable records.
const (
	pointRecordSize = 93
	arcRecordSize   = 57
	nodeRecordSize  = 16
	topoRecordSize  = 24
	fillRecordSize  = 40
	vertexSize      = 16 // two float64
	sectionDescSize = 10
	sectionCount    = 10
)

// sectionDesc locates one data section: 10 bytes on disk
// (int32 offset, int32 size, 2 pad bytes).
type sectionDesc struct {
	Offset int32
	Size   int32
}

// Section table slots per file kind. Slots not listed are reserved and
// ignored (the original tooling leaves them zeroed).
const (
	secGeometry   = 0 // point records / arc descriptors
	secVertexPool = 1 // text pool (point files) or coordinate pool
	secNodes      = 2 // polygon files: node records
	secTopology   = 3 // polygon files: arc topology records
	secFillStyle  = 8 // polygon files: fill styling
)

// Attribute table descriptor slot differs by kind.
func attrSection(kind FileKind) int {
	if kind == KindPolygon {
		return 9
	}
	return 2
}

// Point element styling variants (kind byte in the 93-byte record).
const (
	pointKindText       = 0
	pointKindSubPicture = 1
	pointKindCircle     = 2
	pointKindArc        = 3
)

// pointRecord is one decoded 93-byte point element.
// Layout: flags(1) textLen(int16) textOffset(int32) x(float64) y(float64)
// reserved(8) kind(1) transparent(1) styling payload, then at offset 73:
// reserved(2) color(int32).
type pointRecord struct {
	ID          int32
	X, Y        float64
	Kind        byte
	Transparent bool
	Color       int32
	TextRaw     []byte // styling text, legacy multi-byte encoding

	// Styling payload; which fields are meaningful depends on Kind.
	Height, Width, Spacing, Angle float32 // text
	SymbolNo                      int32   // sub-picture
	LineWidth                     float32 // sub-picture
	Radius                        float64 // circle / arc
	OutlineColor                  int32   // circle
	PenWidth                      float32 // circle / arc
	Filled                        bool    // circle
	StartAngle, EndAngle          float32 // arc
}

// Arc is an ordered vertex run bounded by a start and end node. In line
// files arcs stand alone (node ids are zero); in polygon files they are
// the shared boundary units referenced by topology records.
type Arc struct {
	ID        int32
	StartNode int32
	EndNode   int32
	Vertices  [][2]float64

	// Styling from the 57-byte descriptor.
	Style    int32
	Color    int32
	Width    float32
	Kind     byte
	XFactor  float32
	YFactor  float32
	AuxColor int32
}

// Node is a deduplicated vertex shared by every arc that terminates at it.
type Node struct {
	ID    int32
	Coord [2]float64
}

// topoRecord ties one arc into the polygon topology: 24 bytes on disk
// (start node id, end node id, left polygon id, right polygon id, 8
// reserved). Polygon id 0 is the void face outside all polygons.
type topoRecord struct {
	ArcID     int32
	StartNode int32
	EndNode   int32
	LeftPoly  int32
	RightPoly int32
}

// fillRecord is one decoded 40-byte polygon fill-style record.
type fillRecord struct {
	ID           int32
	FillColor    int32
	FillPattern  int16
	PatternH     float32
	PatternW     float32
	PatternColor int32
}

// fileHeader carries the spatial-reference fields embedded at fixed
// offsets in the file preamble, ahead of the section table.
type fileHeader struct {
	ProjType        byte    // offset 109: 0=geographic, 2/3=sheet, 5=Gauss-Krueger
	Ellipsoid       byte    // offset 110: ellipsoid code
	MapScale        float64 // offset 143: embedded coordinate scale
	CentralMeridian float64 // offset 151: packed DDDMMSS.s for projected kinds
}

// rawDocument is the complete decode output: typed record tables plus the
// attribute table, before any topology indexing or assembly.
type rawDocument struct {
	Kind   FileKind
	Header fileHeader

	Points   []pointRecord // point files
	Arcs     []Arc         // line and polygon files
	Nodes    []Node        // polygon files
	Topology []topoRecord  // polygon files
	Fills    []fillRecord  // polygon files

	Attrs *attributeTable
}

// FeatureCount returns the number of geometry records the file declares.
func (d *rawDocument) FeatureCount() int {
	switch d.Kind {
	case KindPoint:
		return len(d.Points)
	case KindLine:
		return len(d.Arcs)
	case KindPolygon:
		return polygonIDsFrom(d.Topology).count()
	}
	return 0
}

// DecodeFile reads and decodes one MapGIS file from disk.
func DecodeFile(path string, expect FileKind) (*rawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(data, expect)
}

// Decode parses a complete MapGIS file image. The expected kind comes
// from the file extension; KindUnknown accepts whatever the magic says.
// The input slice is never mutated.
func Decode(data []byte, expect FileKind) (*rawDocument, error) {
	kind, err := detectKind(data)
	if err != nil {
		return nil, err
	}
	if expect != KindUnknown && expect != kind {
		return nil, &FormatError{Offset: 0, Reason: fmt.Sprintf(
			"file is a %s file, expected %s", kind, expect)}
	}

	doc := &rawDocument{Kind: kind}
	doc.Header = decodeHeader(data)

	sections, err := decodeSections(data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindPoint:
		err = decodePointFile(data, sections, doc)
	case KindLine:
		err = decodeLineFile(data, sections, doc)
	case KindPolygon:
		err = decodePolygonFile(data, sections, doc)
	}
	if err != nil {
		return nil, err
	}

	attrs, err := decodeAttributeTable(data, sections[attrSection(kind)])
	if err != nil {
		return nil, err
	}
	doc.Attrs = attrs

	return doc, nil
}

// detectKind reads the magic tag at offset 0.
func detectKind(data []byte) (FileKind, error) {
	if len(data) < 16 {
		return KindUnknown, &FormatError{Offset: 0, Reason: "file too short for header"}
	}
	switch string(data[:8]) {
	case magicPoint:
		return KindPoint, nil
	case magicLine:
		return KindLine, nil
	case magicPolygon:
		return KindPolygon, nil
	}
	return KindUnknown, &FormatError{Offset: 0, Reason: "unrecognized magic tag"}
}

// decodeHeader pulls the spatial-reference fields from their fixed
// preamble offsets. Files truncated before the preamble end decode with
// zeroed header fields; the section table read will report the real error.
func decodeHeader(data []byte) fileHeader {
	var h fileHeader
	if len(data) > 110 {
		h.ProjType = data[109]
		h.Ellipsoid = data[110]
	}
	r := newSectionReader(data)
	if len(data) >= 151 {
		r.seek(143)
		h.MapScale = r.float64()
	}
	if len(data) >= 159 {
		r.seek(151)
		h.CentralMeridian = r.float64()
	}
	return h
}

// decodeSections reads the ten 10-byte section descriptors at the offset
// declared by the int32 at byte 12.
func decodeSections(data []byte) ([sectionCount]sectionDesc, error) {
	var sections [sectionCount]sectionDesc
	r := newSectionReader(data)
	r.seek(12)
	dataStart := r.int32()
	r.seek(int64(dataStart))
	for i := range sections {
		sections[i].Offset = r.int32()
		sections[i].Size = r.int32()
		r.skip(2)
	}
	if r.err != nil {
		return sections, r.err
	}
	for i, s := range sections {
		if s.Offset < 0 || s.Size < 0 || int64(s.Offset)+int64(s.Size) > int64(len(data)) {
			return sections, &FormatError{Offset: int64(dataStart) + int64(i)*sectionDescSize,
				Reason: fmt.Sprintf("section %d extends past end of file", i)}
		}
	}
	return sections, nil
}

// sectionData slices out one section's bytes.
func sectionData(data []byte, s sectionDesc) []byte {
	return data[s.Offset : int64(s.Offset)+int64(s.Size)]
}

// recordCount applies the skip-first-placeholder convention.
func recordCount(s sectionDesc, stride int) int {
	n := int(s.Size)/stride - 1
	if n < 0 {
		return 0
	}
	return n
}

func decodePointFile(data []byte, sections [sectionCount]sectionDesc, doc *rawDocument) error {
	sec := sections[secGeometry]
	textPool := sectionData(data, sections[secVertexPool])
	n := recordCount(sec, pointRecordSize)
	doc.Points = make([]pointRecord, 0, n)
	for i := 0; i < n; i++ {
		r := newSectionReader(data)
		r.seek(int64(sec.Offset) + int64(pointRecordSize)*int64(i+1))
		r.skip(1) // flags
		textLen := r.int16()
		textOffset := r.int32()
		p := pointRecord{ID: int32(i)}
		p.X = r.float64()
		p.Y = r.float64()
		r.skip(8)
		p.Kind = r.byte()
		p.Transparent = r.byte() != 0
		switch p.Kind {
		case pointKindText:
			p.Height = r.float32()
			p.Width = r.float32()
			p.Spacing = r.float32()
			p.Angle = r.float32()
			if textLen > 0 {
				if int(textOffset)+int(textLen) > len(textPool) || textOffset < 0 {
					return &FormatError{Offset: int64(sec.Offset), Reason: fmt.Sprintf(
						"point %d text runs past text pool", i)}
				}
				p.TextRaw = textPool[textOffset : int(textOffset)+int(textLen)]
			}
		case pointKindSubPicture:
			p.SymbolNo = r.int32()
			p.Height = r.float32()
			p.Width = r.float32()
			p.Angle = r.float32()
			p.LineWidth = r.float32()
		case pointKindCircle:
			p.Radius = r.float64()
			p.OutlineColor = r.int32()
			p.PenWidth = r.float32()
			p.Filled = r.byte() != 0
		case pointKindArc:
			p.Radius = r.float64()
			p.StartAngle = r.float32()
			p.EndAngle = r.float32()
			p.PenWidth = r.float32()
		}
		// Color sits at a fixed slot past the styling payload.
		r.seek(int64(sec.Offset) + int64(pointRecordSize)*int64(i+1) + 73)
		r.skip(2)
		p.Color = r.int32()
		if r.err != nil {
			return r.err
		}
		doc.Points = append(doc.Points, p)
	}
	return nil
}

// decodeArcs reads the 57-byte arc descriptors and resolves each vertex
// run from the coordinate pool section.
func decodeArcs(data []byte, sections [sectionCount]sectionDesc) ([]Arc, error) {
	sec := sections[secGeometry]
	pool := sectionData(data, sections[secVertexPool])
	n := recordCount(sec, arcRecordSize)
	arcs := make([]Arc, 0, n)
	for i := 0; i < n; i++ {
		r := newSectionReader(data)
		r.seek(int64(sec.Offset) + int64(arcRecordSize)*int64(i+1))
		r.skip(10)
		vertexCount := r.int32()
		vertexOffset := r.int32()
		r.skip(4)
		a := Arc{ID: int32(i + 1)}
		a.Style = r.int32()
		a.Color = r.int32()
		a.Width = r.float32()
		a.Kind = r.byte()
		a.XFactor = r.float32()
		a.YFactor = r.float32()
		a.AuxColor = r.int32()
		if r.err != nil {
			return nil, r.err
		}

		if vertexCount < 0 || vertexOffset < 0 ||
			int64(vertexOffset)+int64(vertexCount)*vertexSize > int64(len(pool)) {
			return nil, &FormatError{Offset: int64(sections[secVertexPool].Offset),
				Reason: fmt.Sprintf("arc %d declares %d vertices past end of coordinate pool",
					a.ID, vertexCount)}
		}
		vr := newSectionReader(pool)
		vr.seek(int64(vertexOffset))
		a.Vertices = make([][2]float64, vertexCount)
		for v := range a.Vertices {
			a.Vertices[v][0] = vr.float64()
			a.Vertices[v][1] = vr.float64()
		}
		arcs = append(arcs, a)
	}
	return arcs, nil
}

func decodeLineFile(data []byte, sections [sectionCount]sectionDesc, doc *rawDocument) error {
	arcs, err := decodeArcs(data, sections)
	if err != nil {
		return err
	}
	doc.Arcs = arcs
	return nil
}

func decodePolygonFile(data []byte, sections [sectionCount]sectionDesc, doc *rawDocument) error {
	arcs, err := decodeArcs(data, sections)
	if err != nil {
		return err
	}
	doc.Arcs = arcs

	// Node records: ordinal ids from 1, matching the ids the topology
	// records reference.
	nodeSec := sections[secNodes]
	nn := recordCount(nodeSec, nodeRecordSize)
	doc.Nodes = make([]Node, 0, nn)
	nr := newSectionReader(data)
	nr.seek(int64(nodeSec.Offset) + nodeRecordSize)
	for i := 0; i < nn; i++ {
		n := Node{ID: int32(i + 1)}
		n.Coord[0] = nr.float64()
		n.Coord[1] = nr.float64()
		if nr.err != nil {
			return nr.err
		}
		doc.Nodes = append(doc.Nodes, n)
	}

	// Topology records: one per arc, same ordinal order as the arc section.
	topoSec := sections[secTopology]
	tn := recordCount(topoSec, topoRecordSize)
	if tn != len(doc.Arcs) {
		return &FormatError{Offset: int64(topoSec.Offset), Reason: fmt.Sprintf(
			"%d topology records for %d arcs", tn, len(doc.Arcs))}
	}
	tr := newSectionReader(data)
	tr.seek(int64(topoSec.Offset) + topoRecordSize)
	doc.Topology = make([]topoRecord, 0, tn)
	for i := 0; i < tn; i++ {
		t := topoRecord{ArcID: int32(i + 1)}
		t.StartNode = tr.int32()
		t.EndNode = tr.int32()
		t.LeftPoly = tr.int32()
		t.RightPoly = tr.int32()
		tr.skip(8)
		if tr.err != nil {
			return tr.err
		}
		doc.Topology = append(doc.Topology, t)
	}

	// Fill styling, one record per polygon.
	fillSec := sections[secFillStyle]
	fn := recordCount(fillSec, fillRecordSize)
	doc.Fills = make([]fillRecord, 0, fn)
	for i := 0; i < fn; i++ {
		fr := newSectionReader(data)
		fr.seek(int64(fillSec.Offset) + int64(fillRecordSize)*int64(i+1))
		fr.skip(9)
		f := fillRecord{ID: int32(i + 1)}
		f.FillColor = fr.int32()
		f.FillPattern = fr.int16()
		f.PatternH = fr.float32()
		f.PatternW = fr.float32()
		fr.skip(2)
		f.PatternColor = fr.int32()
		if fr.err != nil {
			return fr.err
		}
		doc.Fills = append(doc.Fills, f)
	}
	return nil
}

// polygonIDs is the ordered set of polygon ids present in a topology
// table, excluding the void face 0.
type polygonIDs []int32

func (p polygonIDs) count() int { return len(p) }

// polygonIDsFrom collects distinct polygon ids from left/right faces,
// in ascending id order so output feature order is deterministic.
func polygonIDsFrom(topology []topoRecord) polygonIDs {
	seen := make(map[int32]bool)
	var ids polygonIDs
	for _, t := range topology {
		for _, id := range [2]int32{t.LeftPoly, t.RightPoly} {
			if id != 0 && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	// Sort by id for a stable join with the attribute table, which is
	// keyed ordinally by polygon id.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
