package wmap

import (
	"context"

	"github.com/dhconnelly/rtreego"
)

// Bounds is an axis-aligned extent in output (post-transform)
// coordinates.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Intersects reports whether two extents overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX &&
		b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// expand grows b to cover o.
func (b Bounds) expand(o Bounds) Bounds {
	if o.MinX < b.MinX {
		b.MinX = o.MinX
	}
	if o.MinY < b.MinY {
		b.MinY = o.MinY
	}
	if o.MaxX > b.MaxX {
		b.MaxX = o.MaxX
	}
	if o.MaxY > b.MaxY {
		b.MaxY = o.MaxY
	}
	return b
}

// boundsEpsilon pads zero-extent rectangles; the R-tree rejects
// degenerate dimensions.
const boundsEpsilon = 1e-9

func (b Bounds) rect() rtreego.Rect {
	lenX := b.MaxX - b.MinX
	lenY := b.MaxY - b.MinY
	if lenX < boundsEpsilon {
		lenX = boundsEpsilon
	}
	if lenY < boundsEpsilon {
		lenY = boundsEpsilon
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.MinX, b.MinY}, []float64{lenX, lenY})
	return rect
}

// regionIndex answers bounding-box queries over converted features in
// O(log n) instead of a linear scan.
type regionIndex struct {
	rtree  *rtreego.Rtree
	bounds Bounds
}

// indexedFeature wraps a feature for R-tree storage.
type indexedFeature struct {
	feature *Feature
	bounds  Bounds
}

func (f *indexedFeature) Bounds() rtreego.Rect { return f.bounds.rect() }

func buildRegionIndex(features []Feature) *regionIndex {
	idx := &regionIndex{rtree: rtreego.NewTree(2, 25, 50)}
	for i := range features {
		fb := featureBounds(&features[i])
		idx.rtree.Insert(&indexedFeature{feature: &features[i], bounds: fb})
		if i == 0 {
			idx.bounds = fb
		} else {
			idx.bounds = idx.bounds.expand(fb)
		}
	}
	return idx
}

// Bounds returns the extent covering every converted feature, running
// the pipeline if needed.
func (c *Converter) Bounds(ctx context.Context) (Bounds, error) {
	if err := c.run(ctx); err != nil {
		return Bounds{}, err
	}
	if c.index == nil {
		c.index = buildRegionIndex(c.features)
	}
	return c.index.bounds, nil
}

// FeaturesInBounds returns the features whose extent intersects the
// query box. The R-tree index is built lazily on first call.
func (c *Converter) FeaturesInBounds(ctx context.Context, b Bounds) ([]Feature, error) {
	if err := c.run(ctx); err != nil {
		return nil, err
	}
	if c.index == nil {
		c.index = buildRegionIndex(c.features)
	}
	matches := c.index.rtree.SearchIntersect(b.rect())
	result := make([]Feature, 0, len(matches))
	for _, m := range matches {
		indexed := m.(*indexedFeature)
		// SearchIntersect works on padded rectangles; re-check exactly.
		if b.Intersects(indexed.bounds) {
			result = append(result, *indexed.feature)
		}
	}
	return result, nil
}

// featureBounds computes a feature's extent.
func featureBounds(f *Feature) Bounds {
	g := f.geometry
	switch g.Type {
	case GeometryTypePoint:
		return Bounds{g.Point[0], g.Point[1], g.Point[0], g.Point[1]}
	case GeometryTypeLineString:
		return coordsBounds(g.Path)
	case GeometryTypePolygon:
		var b Bounds
		for i, part := range g.Polygons {
			pb := coordsBounds(part.Shell)
			if i == 0 {
				b = pb
			} else {
				b = b.expand(pb)
			}
		}
		return b
	}
	return Bounds{}
}

func coordsBounds(coords [][2]float64) Bounds {
	if len(coords) == 0 {
		return Bounds{}
	}
	b := Bounds{coords[0][0], coords[0][1], coords[0][0], coords[0][1]}
	for _, c := range coords[1:] {
		b = b.expand(Bounds{c[0], c[1], c[0], c[1]})
	}
	return b
}
