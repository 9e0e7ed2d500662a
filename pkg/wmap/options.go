package wmap

import (
	"fmt"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/cartoconv/mapgis/internal/parser"
)

// DefaultEncoding is the attribute text encoding handed to the writer
// when none is configured: the legacy charset family the format stores.
const DefaultEncoding = "GB18030"

// Options configures one conversion.
type Options struct {
	// ScaleFactor multiplies every output coordinate. Must be a finite
	// positive number; 1 means no rescaling.
	ScaleFactor float64

	// UseFileScale substitutes the map scale embedded in the file header
	// for ScaleFactor.
	UseFileScale bool

	// WKID is the spatial-reference identifier attached to the output as
	// metadata. 0 attaches none; the file header's own projection
	// description is used instead when it carries one.
	WKID int

	// Encoding is the IANA name of the attribute text encoding for the
	// writer (e.g. "GB18030", "GBK"). Empty means DefaultEncoding.
	Encoding string

	// StrictPolylines drops polyline features whose adjacent arcs do not
	// share an endpoint, instead of keeping them with a warning.
	StrictPolylines bool
}

// DefaultOptions returns options for a plain 1:1 conversion.
func DefaultOptions() Options {
	return Options{ScaleFactor: 1, Encoding: DefaultEncoding}
}

// validate reports option problems as ConfigError, before any file I/O.
func (o Options) validate() error {
	if _, err := parser.NewCoordinateTransform(o.ScaleFactor, o.WKID); err != nil {
		return err
	}
	name := o.encodingName()
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return &ConfigError{Field: "encoding", Reason: fmt.Sprintf("unknown charset %q", name)}
	}
	return nil
}

func (o Options) encodingName() string {
	if o.Encoding == "" {
		return DefaultEncoding
	}
	return o.Encoding
}

func (o Options) buildOptions() parser.BuildOptions {
	return parser.BuildOptions{
		ScaleFactor:     o.ScaleFactor,
		UseFileScale:    o.UseFileScale,
		WKID:            o.WKID,
		StrictPolylines: o.StrictPolylines,
	}
}
