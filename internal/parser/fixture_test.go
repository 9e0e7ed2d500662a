package parser

// Synthetic file image builders for tests. These produce byte-exact
// images of the on-disk layout: magic tag, preamble spatial-reference
// fields, the ten-slot section table at a fixed offset, and data
// sections with their leading placeholder records.

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// Fixture images put the section table at byte 168, so section data
// always starts at 268. Tests that corrupt specific record fields rely
// on this.
const (
	fixtureTableOffset = 168
	fixtureDataStart   = fixtureTableOffset + sectionCount*sectionDescSize
)

func le16(b []byte, v int16) []byte {
	return binary.LittleEndian.AppendUint16(b, uint16(v))
}

func le32(b []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(v))
}

func lef32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

func lef64(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

func padTo(b []byte, n int) []byte {
	for len(b) < n {
		b = append(b, 0)
	}
	return b
}

func gbk(s string) []byte {
	out, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return out
}

// fileImage assembles a complete file from its sections.
type fileImage struct {
	magic           string
	projType        byte
	ellipsoid       byte
	mapScale        float64
	centralMeridian float64
	sections        [sectionCount][]byte
}

func (f *fileImage) build() []byte {
	out := make([]byte, fixtureDataStart)
	copy(out, f.magic)
	binary.LittleEndian.PutUint32(out[12:], fixtureTableOffset)
	out[109] = f.projType
	out[110] = f.ellipsoid
	binary.LittleEndian.PutUint64(out[143:], math.Float64bits(f.mapScale))
	binary.LittleEndian.PutUint64(out[151:], math.Float64bits(f.centralMeridian))

	off := fixtureDataStart
	for i, sec := range f.sections {
		p := fixtureTableOffset + i*sectionDescSize
		if len(sec) > 0 {
			binary.LittleEndian.PutUint32(out[p:], uint32(off))
			binary.LittleEndian.PutUint32(out[p+4:], uint32(len(sec)))
			off += len(sec)
		}
	}
	for _, sec := range f.sections {
		out = append(out, sec...)
	}
	return out
}

// pointFixture is one point element to encode.
type pointFixture struct {
	x, y        float64
	kind        byte
	transparent bool
	color       int32
	text        string // pointKindText only
	height      float32
	radius      float64 // circle / arc kinds
}

// encodePoints returns the 93-byte-stride point section plus the text
// pool it references.
func encodePoints(points []pointFixture) (sec, textPool []byte) {
	sec = make([]byte, pointRecordSize) // placeholder
	for _, p := range points {
		rec := []byte{0} // flags
		textBytes := gbk(p.text)
		if p.kind == pointKindText && len(textBytes) > 0 {
			rec = le16(rec, int16(len(textBytes)))
			rec = le32(rec, int32(len(textPool)))
			textPool = append(textPool, textBytes...)
		} else {
			rec = le16(rec, 0)
			rec = le32(rec, 0)
		}
		rec = lef64(rec, p.x)
		rec = lef64(rec, p.y)
		rec = padTo(rec, 31)
		rec = append(rec, p.kind)
		if p.transparent {
			rec = append(rec, 1)
		} else {
			rec = append(rec, 0)
		}
		switch p.kind {
		case pointKindText:
			rec = lef32(rec, p.height)
			rec = lef32(rec, 0) // width
			rec = lef32(rec, 0) // spacing
			rec = lef32(rec, 0) // angle
		case pointKindCircle:
			rec = lef64(rec, p.radius)
			rec = le32(rec, 0)  // outline color
			rec = lef32(rec, 0) // pen width
			rec = append(rec, 0)
		case pointKindArc:
			rec = lef64(rec, p.radius)
			rec = lef32(rec, 0)
			rec = lef32(rec, 0)
			rec = lef32(rec, 0)
		}
		rec = padTo(rec, 75)
		rec = le32(rec, p.color)
		rec = padTo(rec, pointRecordSize)
		sec = append(sec, rec...)
	}
	return sec, textPool
}

// arcFixture is one arc descriptor plus its vertex run.
type arcFixture struct {
	vertices [][2]float64
	style    int32
	color    int32
	width    float32
	kind     byte
}

// encodeArcs returns the 57-byte-stride arc section plus the shared
// coordinate pool.
func encodeArcs(arcs []arcFixture) (sec, pool []byte) {
	sec = make([]byte, arcRecordSize) // placeholder
	for _, a := range arcs {
		rec := make([]byte, 10)
		rec = le32(rec, int32(len(a.vertices)))
		rec = le32(rec, int32(len(pool)))
		rec = padTo(rec, 22)
		rec = le32(rec, a.style)
		rec = le32(rec, a.color)
		rec = lef32(rec, a.width)
		rec = append(rec, a.kind)
		rec = lef32(rec, 0) // x factor
		rec = lef32(rec, 0) // y factor
		rec = le32(rec, 0)  // aux color
		rec = padTo(rec, arcRecordSize)
		sec = append(sec, rec...)

		for _, v := range a.vertices {
			pool = lef64(pool, v[0])
			pool = lef64(pool, v[1])
		}
	}
	return sec, pool
}

func encodeNodes(nodes [][2]float64) []byte {
	sec := make([]byte, nodeRecordSize) // placeholder
	for _, n := range nodes {
		sec = lef64(sec, n[0])
		sec = lef64(sec, n[1])
	}
	return sec
}

// topoFixture ties the same-ordinal arc into the polygon topology.
type topoFixture struct {
	start, end  int32
	left, right int32
}

func encodeTopology(topo []topoFixture) []byte {
	sec := make([]byte, topoRecordSize) // placeholder
	for _, t := range topo {
		sec = le32(sec, t.start)
		sec = le32(sec, t.end)
		sec = le32(sec, t.left)
		sec = le32(sec, t.right)
		sec = padTo(sec, len(sec)+8)
	}
	return sec
}

type fillFixture struct {
	color   int32
	pattern int16
}

func encodeFills(fills []fillFixture) []byte {
	sec := make([]byte, fillRecordSize) // placeholder
	for _, f := range fills {
		rec := make([]byte, 9)
		rec = le32(rec, f.color)
		rec = le16(rec, f.pattern)
		rec = lef32(rec, 0) // pattern height
		rec = lef32(rec, 0) // pattern width
		rec = padTo(rec, 25)
		rec = le32(rec, 0) // pattern color
		rec = padTo(rec, fillRecordSize)
		sec = append(sec, rec...)
	}
	return sec
}

// fixtureField describes one attribute column to encode.
type fixtureField struct {
	name   string
	typ    FieldType
	length int
}

// encodeAttrs builds a complete attribute section: header, 39-byte
// descriptors, placeholder record, then one record per row. Row values
// come in field order.
func encodeAttrs(fields []fixtureField, rows [][]interface{}) []byte {
	recLen := 0
	offsets := make([]int, len(fields))
	for i, f := range fields {
		offsets[i] = recLen
		recLen += f.length
	}
	if recLen == 0 {
		recLen = 1
	}

	head := make([]byte, 348)
	binary.LittleEndian.PutUint16(head[322:], uint16(len(fields)))
	binary.LittleEndian.PutUint32(head[324:], uint32(len(rows)+1))
	binary.LittleEndian.PutUint16(head[328:], uint16(recLen))
	sec := head

	for i, f := range fields {
		d := make([]byte, 0, 39)
		name := gbk(f.name)
		d = append(d, name...)
		d = padTo(d, 20)
		d = append(d, byte(f.typ))
		d = le32(d, int32(offsets[i]))
		d = padTo(d, 27)
		d = le16(d, int16(f.length))
		d = padTo(d, 39)
		sec = append(sec, d...)
	}

	sec = padTo(sec, len(sec)+recLen) // placeholder record
	for _, row := range rows {
		rec := make([]byte, 0, recLen)
		for i, f := range fields {
			rec = append(rec, encodeFieldValue(row[i], f)...)
		}
		sec = append(sec, padTo(rec, recLen)...)
	}
	return sec
}

func encodeFieldValue(v interface{}, f fixtureField) []byte {
	var b []byte
	switch f.typ {
	case FieldString:
		b = padTo(gbk(v.(string)), f.length)[:f.length]
	case FieldByte:
		b = []byte{byte(v.(int))}
	case FieldShort:
		b = le16(nil, v.(int16))
	case FieldInt:
		b = le32(nil, v.(int32))
	case FieldFloat:
		b = lef32(nil, v.(float32))
	case FieldDouble:
		b = lef64(nil, v.(float64))
	}
	return padTo(b, f.length)
}

// buildPointFile assembles a complete point (.wp) image.
func buildPointFile(points []pointFixture, fields []fixtureField, rows [][]interface{}) []byte {
	img := fileImage{magic: magicPoint}
	sec, textPool := encodePoints(points)
	img.sections[secGeometry] = sec
	img.sections[secVertexPool] = textPool
	img.sections[attrSection(KindPoint)] = encodeAttrs(fields, rows)
	return img.build()
}

// buildLineFile assembles a complete polyline (.wl) image.
func buildLineFile(arcs []arcFixture, fields []fixtureField, rows [][]interface{}) []byte {
	img := fileImage{magic: magicLine}
	sec, pool := encodeArcs(arcs)
	img.sections[secGeometry] = sec
	img.sections[secVertexPool] = pool
	img.sections[attrSection(KindLine)] = encodeAttrs(fields, rows)
	return img.build()
}

// buildPolygonFile assembles a complete polygon (.wt) image. Arcs and
// topology records pair up by ordinal.
func buildPolygonFile(arcs []arcFixture, nodes [][2]float64, topo []topoFixture,
	fills []fillFixture, fields []fixtureField, rows [][]interface{}) []byte {
	img := fileImage{magic: magicPolygon}
	sec, pool := encodeArcs(arcs)
	img.sections[secGeometry] = sec
	img.sections[secVertexPool] = pool
	img.sections[secNodes] = encodeNodes(nodes)
	img.sections[secTopology] = encodeTopology(topo)
	img.sections[secFillStyle] = encodeFills(fills)
	img.sections[attrSection(KindPolygon)] = encodeAttrs(fields, rows)
	return img.build()
}

// idField is the single-column schema most fixtures use.
func idField() []fixtureField {
	return []fixtureField{{name: "ID", typ: FieldInt, length: 4}}
}

// idRows builds n int rows 1..n for idField.
func idRows(n int) [][]interface{} {
	rows := make([][]interface{}, n)
	for i := range rows {
		rows[i] = []interface{}{int32(i + 1)}
	}
	return rows
}

// squareArcs returns four arcs tracing the unit square clockwise from
// the origin, with nodes 1..4 at its corners, plus the matching node
// coordinates and topology records bounding polygon 1.
func squareArcs() ([]arcFixture, [][2]float64, []topoFixture) {
	arcs := []arcFixture{
		{vertices: [][2]float64{{0, 0}, {0, 1}}},
		{vertices: [][2]float64{{0, 1}, {1, 1}}},
		{vertices: [][2]float64{{1, 1}, {1, 0}}},
		{vertices: [][2]float64{{1, 0}, {0, 0}}},
	}
	nodes := [][2]float64{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	topo := []topoFixture{
		{start: 1, end: 2, right: 1},
		{start: 2, end: 3, right: 1},
		{start: 3, end: 4, right: 1},
		{start: 4, end: 1, right: 1},
	}
	return arcs, nodes, topo
}
