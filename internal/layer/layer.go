// Package layer defines vector feature access for the projectors.
// Implementations live in subpackages; the projectors only see this
// interface.
package layer

import (
	"errors"
	"strconv"

	"github.com/paulmach/orb"
)

// ErrNoFeatures marks an empty layer. Projectors treat it as a soft
// condition: the output is empty, the request does not fail.
var ErrNoFeatures = errors.New("layer has no features")

// Feature is one vector feature. Geometry is nil for tabular rows
// (drillhole survey and interval records).
type Feature struct {
	Geometry orb.Geometry
	Attrs    map[string]any
}

// Layer is the vector access collaborator. Features returns the layer's
// features in stable layer order; that order is load-bearing for the
// geology overlap policy.
type Layer interface {
	Features() []Feature
}

// Float reads a numeric attribute, accepting the types a GeoJSON or
// database-backed layer realistically produces. ok is false for missing
// fields and unparsable values.
func Float(attrs map[string]any, field string) (float64, bool) {
	v, present := attrs[field]
	if !present || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String reads a text attribute, stringifying numbers since unit names and
// hole ids are frequently numeric codes.
func String(attrs map[string]any, field string) (string, bool) {
	v, present := attrs[field]
	if !present || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	default:
		return "", false
	}
}
