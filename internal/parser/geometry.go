package parser

import (
	"context"
	"fmt"

	"github.com/dhconnelly/rtreego"
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
	switch g {
	case GeometryTypePoint:
		return "Point"
	case GeometryTypeLineString:
		return "LineString"
	case GeometryTypePolygon:
		return "Polygon"
	default:
		return "Unknown"
	}
}

// Ring is a closed vertex sequence: the first and last coordinates are
// identical. Winding decides its role - clockwise rings are shells,
// counter-clockwise rings are holes.
type Ring [][2]float64

// PolygonPart is one shell with the holes nested inside it.
type PolygonPart struct {
	Shell Ring
	Holes []Ring
}

// Geometry is the assembled spatial representation of one feature.
// Which field carries data depends on Type.
type Geometry struct {
	Type  GeometryType
	Point [2]float64    // GeometryTypePoint
	Path  [][2]float64  // GeometryTypeLineString
	Parts []PolygonPart // GeometryTypePolygon; multiple parts = multi-part polygon
}

// AssembledFeature is one feature's geometry plus the non-fatal topology
// warnings recorded while building it. SeqID is the ordinal used to join
// with the attribute table.
type AssembledFeature struct {
	SeqID    int32
	SourceID int32 // polygon id / arc id / point ordinal in the source file
	Geometry Geometry
	Warnings []*TopologyError
}

// AssemblyResult separates per-feature outcomes: Features carries every
// successfully assembled geometry in file order, Dropped records the
// features whose assembly failed. One bad polygon never unwinds the file.
type AssemblyResult struct {
	Features []AssembledFeature
	Dropped  []*TopologyError
}

// assembler turns indexed topology into geometry.
type assembler struct {
	doc    *rawDocument
	idx    *TopologyIndex
	strict bool // drop polyline features on gaps instead of warning
}

func newAssembler(doc *rawDocument, idx *TopologyIndex, strict bool) *assembler {
	return &assembler{doc: doc, idx: idx, strict: strict}
}

// assemble builds every feature in the document. The only error returned
// is context cancellation, checked at feature and ring boundaries so
// worst-case cancellation latency is one ring's assembly time.
func (a *assembler) assemble(ctx context.Context) (*AssemblyResult, error) {
	switch a.doc.Kind {
	case KindPoint:
		return a.assemblePoints(ctx)
	case KindLine:
		return a.assemblePolylines(ctx)
	case KindPolygon:
		return a.assemblePolygons(ctx)
	}
	return &AssemblyResult{}, nil
}

func (a *assembler) assemblePoints(ctx context.Context) (*AssemblyResult, error) {
	res := &AssemblyResult{Features: make([]AssembledFeature, 0, len(a.doc.Points))}
	for i, p := range a.doc.Points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Features = append(res.Features, AssembledFeature{
			SeqID:    int32(i),
			SourceID: p.ID,
			Geometry: Geometry{Type: GeometryTypePoint, Point: [2]float64{p.X, p.Y}},
		})
	}
	return res, nil
}

func (a *assembler) assemblePolylines(ctx context.Context) (*AssemblyResult, error) {
	res := &AssemblyResult{Features: make([]AssembledFeature, 0, len(a.doc.Arcs))}
	for i, arc := range a.doc.Arcs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		feat, terr := a.assemblePolyline(int32(i), []arcRef{{ArcID: arc.ID}})
		if terr != nil {
			res.Dropped = append(res.Dropped, terr)
			continue
		}
		res.Features = append(res.Features, feat)
	}
	return res, nil
}

// assemblePolyline concatenates a feature's arcs in declared reference
// order. Adjacent arcs are expected to share an endpoint; a gap is a
// recorded warning, or drops the feature under strict policy. There is no
// closure requirement.
func (a *assembler) assemblePolyline(seqID int32, refs []arcRef) (AssembledFeature, *TopologyError) {
	feat := AssembledFeature{SeqID: seqID}
	if len(refs) > 0 {
		feat.SourceID = refs[0].ArcID
	}
	var path [][2]float64
	for _, ref := range refs {
		arc, ok := a.idx.Arc(ref.ArcID)
		if !ok {
			return feat, &TopologyError{FeatureID: seqID,
				Reason: fmt.Sprintf("polyline references missing arc %d", ref.ArcID)}
		}
		coords := orientedVertices(arc, ref.Reversed)
		if len(path) > 0 && len(coords) > 0 {
			if path[len(path)-1] == coords[0] {
				coords = coords[1:] // shared endpoint, keep one copy
			} else {
				terr := &TopologyError{FeatureID: seqID,
					Reason: fmt.Sprintf("gap before arc %d: arcs do not share an endpoint", ref.ArcID)}
				if a.strict {
					return feat, terr
				}
				feat.Warnings = append(feat.Warnings, terr)
			}
		}
		path = append(path, coords...)
	}
	if len(path) < 2 {
		return feat, &TopologyError{FeatureID: seqID, Reason: "polyline has fewer than 2 vertices"}
	}
	feat.Geometry = Geometry{Type: GeometryTypeLineString, Path: path}
	return feat, nil
}

func (a *assembler) assemblePolygons(ctx context.Context) (*AssemblyResult, error) {
	ids := a.idx.PolygonIDs()
	res := &AssemblyResult{Features: make([]AssembledFeature, 0, len(ids))}
	for seq, polyID := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		feat, terr, err := a.assemblePolygon(ctx, int32(seq), polyID)
		if err != nil {
			return nil, err
		}
		if terr != nil {
			res.Dropped = append(res.Dropped, terr)
			continue
		}
		res.Features = append(res.Features, feat)
	}
	return res, nil
}

// assemblePolygon chains one polygon's arcs into closed rings, then
// splits shells from holes by winding and nests each hole under the
// smallest shell containing it.
func (a *assembler) assemblePolygon(ctx context.Context, seqID, polyID int32) (AssembledFeature, *TopologyError, error) {
	feat := AssembledFeature{SeqID: seqID, SourceID: polyID}
	refs := a.idx.PolygonArcs(polyID)
	if len(refs) == 0 {
		return feat, &TopologyError{FeatureID: seqID,
			Reason: fmt.Sprintf("polygon %d has no bounding arcs", polyID)}, nil
	}

	rings, terr, err := a.chainRings(ctx, seqID, refs)
	if err != nil {
		return feat, nil, err
	}
	if terr != nil {
		return feat, terr, nil
	}

	parts, warnings := nestRings(seqID, rings)
	if len(parts) == 0 {
		return feat, &TopologyError{FeatureID: seqID,
			Reason: fmt.Sprintf("polygon %d has no shell ring", polyID)}, nil
	}
	feat.Warnings = warnings
	feat.Geometry = Geometry{Type: GeometryTypePolygon, Parts: parts}
	return feat, nil, nil
}

// chainRings greedily follows node connectivity: start a ring at the
// first unused arc, then repeatedly take an unused arc departing from the
// chain's current end node until the chain returns to its starting node.
// Every assigned arc must end up in some closed ring. Cancellation is
// checked between rings, bounding latency to one ring's assembly.
func (a *assembler) chainRings(ctx context.Context, seqID int32, refs []arcRef) ([]Ring, *TopologyError, error) {
	chains := newNodeArcIndex(a.idx, refs)
	var rings []Ring

	for chains.remaining() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		first, _ := chains.takeAny()
		start, cur := a.idx.endpoints(first)
		arc, ok := a.idx.Arc(first.ArcID)
		if !ok {
			return nil, &TopologyError{FeatureID: seqID,
				Reason: fmt.Sprintf("ring references missing arc %d", first.ArcID)}, nil
		}
		ring := Ring(orientedVertices(arc, first.Reversed))

		for cur != start {
			next, ok := chains.takeFrom(cur)
			if !ok {
				return nil, &TopologyError{FeatureID: seqID,
					Reason: fmt.Sprintf("open ring: no arc continues from node %d", cur)}, nil
			}
			arc, ok := a.idx.Arc(next.ArcID)
			if !ok {
				return nil, &TopologyError{FeatureID: seqID,
					Reason: fmt.Sprintf("ring references missing arc %d", next.ArcID)}, nil
			}
			coords := orientedVertices(arc, next.Reversed)
			// Arcs carry both endpoint vertices; drop the duplicated
			// shared vertex when splicing.
			if len(ring) > 0 && len(coords) > 0 && ring[len(ring)-1] == coords[0] {
				coords = coords[1:]
			}
			ring = append(ring, coords...)
			_, cur = a.idx.endpoints(next)
		}

		if len(ring) < 4 {
			return nil, &TopologyError{FeatureID: seqID,
				Reason: fmt.Sprintf("degenerate ring with %d vertices", len(ring))}, nil
		}
		if ring[0] != ring[len(ring)-1] {
			// Node connectivity closed but the arc endpoint vertices
			// disagree with the node table; close on the first vertex.
			ring = append(ring, ring[0])
		}
		rings = append(rings, ring)
	}

	return rings, nil, nil
}

// orientedVertices returns an arc's vertex run in traversal order,
// copying so assembly never mutates the indexed tables.
func orientedVertices(arc *Arc, reversed bool) [][2]float64 {
	out := make([][2]float64, len(arc.Vertices))
	if !reversed {
		copy(out, arc.Vertices)
		return out
	}
	for i, v := range arc.Vertices {
		out[len(out)-1-i] = v
	}
	return out
}

// signedArea computes the shoelace sum of a closed ring. Positive means
// counter-clockwise in a y-up coordinate system.
func signedArea(ring Ring) float64 {
	var sum float64
	for i := 0; i+1 < len(ring); i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return sum / 2
}

// isShell reports whether a ring winds clockwise, the format's shell
// convention (which matches the Shapefile writer's expectation).
func isShell(ring Ring) bool {
	return signedArea(ring) < 0
}

// shellEntry wraps a shell for R-tree candidate lookup during hole
// nesting.
type shellEntry struct {
	part *PolygonPart
	area float64 // absolute area, for smallest-enclosing selection
	rect rtreego.Rect
}

func (s *shellEntry) Bounds() rtreego.Rect { return s.rect }

// nestRings splits rings into shells and holes by winding, then attaches
// each hole to the smallest-area shell whose interior contains the
// hole's first vertex. Candidate shells come from an R-tree over shell
// bounding boxes so nesting large multi-part features stays near-linear.
// A hole contained by no shell is dropped with a warning.
func nestRings(seqID int32, rings []Ring) ([]PolygonPart, []*TopologyError) {
	var shells []*shellEntry
	var holes []Ring
	for _, ring := range rings {
		if isShell(ring) {
			shells = append(shells, &shellEntry{
				part: &PolygonPart{Shell: ring},
				area: -signedArea(ring),
				rect: ringRect(ring),
			})
		} else {
			holes = append(holes, ring)
		}
	}
	if len(shells) == 0 {
		return nil, nil
	}

	var warnings []*TopologyError
	if len(holes) > 0 {
		tree := rtreego.NewTree(2, 25, 50)
		for _, s := range shells {
			tree.Insert(s)
		}
		for _, hole := range holes {
			probe := hole[0]
			rect, _ := rtreego.NewRect(rtreego.Point{probe[0], probe[1]},
				[]float64{rectEpsilon, rectEpsilon})
			var best *shellEntry
			for _, candidate := range tree.SearchIntersect(rect) {
				s := candidate.(*shellEntry)
				if !pointInRing(probe, s.part.Shell) {
					continue
				}
				if best == nil || s.area < best.area {
					best = s
				}
			}
			if best == nil {
				warnings = append(warnings, &TopologyError{FeatureID: seqID,
					Reason: "hole ring is not contained by any shell"})
				continue
			}
			best.part.Holes = append(best.part.Holes, hole)
		}
	}

	parts := make([]PolygonPart, len(shells))
	for i, s := range shells {
		parts[i] = *s.part
	}
	return parts, warnings
}

// rectEpsilon pads zero-extent query rectangles; rtreego rejects
// degenerate dimensions.
const rectEpsilon = 1e-9

// ringRect returns a ring's bounding rectangle for R-tree insertion.
func ringRect(ring Ring) rtreego.Rect {
	minX, minY := ring[0][0], ring[0][1]
	maxX, maxY := minX, minY
	for _, v := range ring[1:] {
		if v[0] < minX {
			minX = v[0]
		}
		if v[0] > maxX {
			maxX = v[0]
		}
		if v[1] < minY {
			minY = v[1]
		}
		if v[1] > maxY {
			maxY = v[1]
		}
	}
	lenX := maxX - minX
	lenY := maxY - minY
	if lenX < rectEpsilon {
		lenX = rectEpsilon
	}
	if lenY < rectEpsilon {
		lenY = rectEpsilon
	}
	rect, _ := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{lenX, lenY})
	return rect
}

// pointInRing is a standard even-odd ray cast against a closed ring.
func pointInRing(p [2]float64, ring Ring) bool {
	inside := false
	for i := 0; i+1 < len(ring); i++ {
		a, b := ring[i], ring[i+1]
		if (a[1] > p[1]) != (b[1] > p[1]) {
			x := a[0] + (p[1]-a[1])/(b[1]-a[1])*(b[0]-a[0])
			if p[0] < x {
				inside = !inside
			}
		}
	}
	return inside
}
