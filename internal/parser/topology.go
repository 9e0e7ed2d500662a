package parser

import (
	"fmt"
)

// topology.go - indexed lookup structures over the decoded node and arc
// tables. Ring assembly repeatedly asks "which unused arc continues from
// this node"; answering that by scanning the arc table is quadratic in
// arc count and is the documented cause of multi-minute conversions on
// node-dense polygons. Everything here is hash-map backed so each lookup
// is O(1) amortized and assembly stays linear in total vertex count.

// arcRef references one arc by id together with its traversal direction
// for the feature being assembled.
type arcRef struct {
	ArcID    int32
	Reversed bool
}

// TopologyIndex owns the decoded nodes and arcs for one file. Assemblers
// borrow records by id and never copy vertex runs until output time.
type TopologyIndex struct {
	nodes map[int32]Node
	arcs  map[int32]*Arc

	// Polygon id -> arc references with direction, prebuilt from the
	// topology table. The polygon bounded on an arc's right face
	// traverses it forward, the left face reversed.
	polygons map[int32][]arcRef

	polygonOrder polygonIDs
}

// buildTopologyIndex constructs the index from a decoded document and
// validates every node reference. An arc naming a node id absent from the
// node table is a whole-file FormatError.
func buildTopologyIndex(doc *rawDocument) (*TopologyIndex, error) {
	idx := &TopologyIndex{
		nodes:    make(map[int32]Node, len(doc.Nodes)),
		arcs:     make(map[int32]*Arc, len(doc.Arcs)),
		polygons: make(map[int32][]arcRef),
	}
	for _, n := range doc.Nodes {
		idx.nodes[n.ID] = n
	}
	for i := range doc.Arcs {
		idx.arcs[doc.Arcs[i].ID] = &doc.Arcs[i]
	}

	for _, t := range doc.Topology {
		arc, ok := idx.arcs[t.ArcID]
		if !ok {
			return nil, &FormatError{Offset: -1, Reason: fmt.Sprintf(
				"topology record references missing arc %d", t.ArcID)}
		}
		for _, nodeID := range [2]int32{t.StartNode, t.EndNode} {
			if _, ok := idx.nodes[nodeID]; !ok {
				return nil, &FormatError{Offset: -1, Reason: fmt.Sprintf(
					"arc %d references missing node %d", t.ArcID, nodeID)}
			}
		}
		arc.StartNode = t.StartNode
		arc.EndNode = t.EndNode

		if t.RightPoly != 0 {
			idx.polygons[t.RightPoly] = append(idx.polygons[t.RightPoly],
				arcRef{ArcID: t.ArcID})
		}
		if t.LeftPoly != 0 {
			idx.polygons[t.LeftPoly] = append(idx.polygons[t.LeftPoly],
				arcRef{ArcID: t.ArcID, Reversed: true})
		}
	}
	idx.polygonOrder = polygonIDsFrom(doc.Topology)

	return idx, nil
}

// Node returns the node with the given id.
func (x *TopologyIndex) Node(id int32) (Node, bool) {
	n, ok := x.nodes[id]
	return n, ok
}

// Arc returns the arc with the given id.
func (x *TopologyIndex) Arc(id int32) (*Arc, bool) {
	a, ok := x.arcs[id]
	return a, ok
}

// PolygonIDs returns the polygon ids present in the topology table, in
// ascending order. Output feature order follows this.
func (x *TopologyIndex) PolygonIDs() []int32 {
	return x.polygonOrder
}

// PolygonArcs returns the arc references bounding one polygon.
func (x *TopologyIndex) PolygonArcs(polyID int32) []arcRef {
	return x.polygons[polyID]
}

// endpoints returns an arc's start and end node ids in traversal order.
func (x *TopologyIndex) endpoints(ref arcRef) (from, to int32) {
	arc := x.arcs[ref.ArcID]
	if ref.Reversed {
		return arc.EndNode, arc.StartNode
	}
	return arc.StartNode, arc.EndNode
}

// nodeArcIndex indexes a working set of arc references by the node each
// one departs from, so the chainer finds the continuation of a ring in
// O(1) instead of rescanning the feature's remaining arcs. Entries are
// consumed in file order when no continuation constraint applies, keeping
// assembly deterministic.
type nodeArcIndex struct {
	entries []arcEntry
	byFrom  map[int32][]int // node id -> indices into entries
	scan    int             // first entry not yet examined by takeAny
	count   int
}

type arcEntry struct {
	ref   arcRef
	taken bool
}

func newNodeArcIndex(x *TopologyIndex, refs []arcRef) *nodeArcIndex {
	idx := &nodeArcIndex{
		entries: make([]arcEntry, len(refs)),
		byFrom:  make(map[int32][]int, len(refs)),
		count:   len(refs),
	}
	for i, ref := range refs {
		idx.entries[i] = arcEntry{ref: ref}
		from, _ := x.endpoints(ref)
		idx.byFrom[from] = append(idx.byFrom[from], i)
	}
	return idx
}

// takeAny removes and returns the first remaining reference in file order.
func (idx *nodeArcIndex) takeAny() (arcRef, bool) {
	for idx.scan < len(idx.entries) {
		e := &idx.entries[idx.scan]
		idx.scan++
		if !e.taken {
			e.taken = true
			idx.count--
			return e.ref, true
		}
	}
	return arcRef{}, false
}

// takeFrom removes and returns a remaining reference departing from the
// given node.
func (idx *nodeArcIndex) takeFrom(node int32) (arcRef, bool) {
	for {
		ids := idx.byFrom[node]
		if len(ids) == 0 {
			return arcRef{}, false
		}
		i := ids[0]
		idx.byFrom[node] = ids[1:]
		if idx.entries[i].taken {
			continue
		}
		idx.entries[i].taken = true
		idx.count--
		return idx.entries[i].ref, true
	}
}

func (idx *nodeArcIndex) remaining() int { return idx.count }
