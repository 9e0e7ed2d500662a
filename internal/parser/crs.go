package parser

import (
	"fmt"
)

// crs.go - spatial-reference sniffing from the file preamble. The format
// embeds a projection type byte, an ellipsoid code, a coordinate scale
// and (for projected files) a packed central meridian. None of this
// drives reprojection math here; it only produces descriptive metadata
// the downstream writer can hand to a reprojection library.

// Projection type byte values seen in real files.
const (
	projGeographic   = 0 // longitude/latitude
	projSheetMM      = 2 // plotting sheet, millimeter units
	projSheetMM3     = 3 // as projSheetMM, alternate flag
	projGaussKrueger = 5 // transverse Mercator, 3-degree or 6-degree zones
)

// ellipsoidProj maps the header's ellipsoid code to proj parameter
// fragments, carried over from the legacy tooling's lookup table.
var ellipsoidProj = map[byte]string{
	1:   "+ellps=krass +towgs84=15.8,-154.4,-82.3,0,0,0,0",
	2:   "+a=6378140 +b=6356755.288157528",
	7:   "+datum=WGS84",
	9:   "+ellps=WGS72",
	10:  "+ellps=aust_SA +towgs84=-117.808,-51.536,137.784,0.303,0.446,0.234,-0.29",
	11:  "+ellps=aust_SA +towgs84=-134,-48,149,0,0,0,0",
	16:  "+ellps=krass",
	116: "+ellps=clrk80 +towgs84=-166,-15,204,0,0,0,0",
}

// resolveTransform combines caller options with the file header into the
// effective coordinate transform. Precedence:
//   - An explicit WKID always wins for the reference metadata.
//   - useFileScale substitutes the header's embedded map scale for the
//     caller's factor; a zero or absent header scale falls back to 1.
//   - Sheet-unit projections store caller scales in millimeters, so the
//     factor is divided by 1000, matching the legacy tooling.
func resolveTransform(header fileHeader, userScale float64, useFileScale bool, wkid int) (CoordinateTransform, error) {
	scale := userScale
	if useFileScale {
		scale = header.MapScale
		if scale == 0 {
			scale = 1
		}
	}
	if header.ProjType == projSheetMM || header.ProjType == projSheetMM3 {
		scale = scale / 1000
	}

	t, err := NewCoordinateTransform(scale, wkid)
	if err != nil {
		return CoordinateTransform{}, err
	}
	if t.CRS == "" {
		t.CRS = headerCRS(header)
	}
	return t, nil
}

// headerCRS synthesizes a proj-string description from the header, or
// returns empty when the file carries no usable reference (unknown
// ellipsoid, sheet coordinates).
func headerCRS(header fileHeader) string {
	ellps, ok := ellipsoidProj[header.Ellipsoid]
	if !ok {
		return ""
	}
	switch header.ProjType {
	case projGeographic:
		return "+proj=longlat " + ellps + " +no_defs"
	case projGaussKrueger:
		cm := unpackDMS(header.CentralMeridian)
		return fmt.Sprintf("+proj=tmerc +lat_0=0 +lon_0=%g +k=1 +x_0=500000 +y_0=0 %s +units=m +no_defs",
			cm, ellps)
	}
	return ""
}

// unpackDMS converts the packed DDDMMSS.s central meridian encoding to
// decimal degrees.
func unpackDMS(packed float64) float64 {
	v := int64(packed)
	deg := v / 10000
	min := (v / 100) % 100
	sec := v % 100
	return float64(deg) + float64(min)/60 + float64(sec)/3600
}
