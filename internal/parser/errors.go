package parser

import (
	"fmt"
)

// FormatError indicates a corrupt or truncated file: bad magic, a record
// that runs past the end of its section, or an unresolvable id reference.
// Fatal for the whole file - no partial output is produced.
type FormatError struct {
	Offset int64  // Byte offset where the problem was detected, -1 if unknown
	Reason string
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("format error at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("format error: %s", e.Reason)
}

// TopologyError indicates a per-feature assembly failure: a polygon ring
// that fails to close, or a polyline whose adjacent arcs do not share an
// endpoint node. Isolated to the offending feature.
type TopologyError struct {
	FeatureID int32
	Reason    string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology error in feature %d: %s", e.FeatureID, e.Reason)
}

// CountMismatchError indicates the assembled geometry count diverges from
// the attribute table's record count. Fatal for the whole file.
type CountMismatchError struct {
	Geometries int
	Records    int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("geometry/attribute count mismatch: %d geometries, %d attribute records",
		e.Geometries, e.Records)
}

// ConfigError indicates an invalid conversion option. Raised at
// construction time, before any file I/O.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %q: %s", e.Field, e.Reason)
}
