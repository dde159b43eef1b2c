// Package layout positions a generic graph.
//
// The adapter accepts layered-layout option keys (the "elk.*" names used by
// the editor) and translates them for Graphviz's dot engine, which does the
// actual work. Callers pass only the keys they want to change; [Merge] lays
// them over [DefaultOptions]. Keys the adapter does not recognize are handed
// to Graphviz as graph attributes without validation.
//
// Engines never touch a previously computed layout: on failure the caller
// still holds its last good result. [Tracker] packages that behavior together
// with a request-sequence guard for concurrent callers.
package layout

import (
	"maps"
	"strconv"

	"github.com/matzehuels/archdiagram/pkg/errors"
)

// Options is a flat key/value map of layout options.
type Options map[string]string

// Recognized option keys.
const (
	KeyAlgorithm            = "elk.algorithm"
	KeyDirection            = "elk.direction"
	KeyLayerSpacing         = "elk.layered.spacing.nodeNodeBetweenLayers"
	KeyNodeSpacing          = "elk.spacing.nodeNode"
	KeyCrossingMinimization = "elk.layered.crossingMinimization.strategy"
	KeyNodePlacement        = "elk.layered.nodePlacement.strategy"
)

// Default node sizes in pixels.
const (
	DefaultWidth        = 150
	DefaultHeight       = 50
	DefaultNestedWidth  = 120
	DefaultNestedHeight = 40
)

// DefaultOptions returns a fresh copy of the default option set.
func DefaultOptions() Options {
	return Options{
		KeyAlgorithm:            "layered",
		KeyDirection:            "RIGHT",
		KeyLayerSpacing:         "80",
		KeyNodeSpacing:          "50",
		KeyCrossingMinimization: "LAYER_SWEEP",
		KeyNodePlacement:        "BRANDES_KOEPF",
	}
}

// Merge returns a new map holding base overlaid key-by-key with overrides.
// Neither input is modified.
func Merge(base, overrides Options) Options {
	out := make(Options, len(base)+len(overrides))
	maps.Copy(out, base)
	maps.Copy(out, overrides)
	return out
}

// Recognized reports whether key is translated by the adapter rather than
// passed through.
func Recognized(key string) bool {
	switch key {
	case KeyAlgorithm, KeyDirection, KeyLayerSpacing, KeyNodeSpacing,
		KeyCrossingMinimization, KeyNodePlacement:
		return true
	}
	return false
}

// =============================================================================
// Translation to Graphviz
// =============================================================================

// engines maps algorithm names to Graphviz layout engines. Graphviz engine
// names are accepted as-is.
var engines = map[string]string{
	"layered":   "dot",
	"mrtree":    "dot",
	"force":     "fdp",
	"stress":    "neato",
	"radial":    "twopi",
	"dot":       "dot",
	"neato":     "neato",
	"fdp":       "fdp",
	"sfdp":      "sfdp",
	"circo":     "circo",
	"twopi":     "twopi",
	"osage":     "osage",
	"patchwork": "patchwork",
}

var rankdirs = map[string]string{
	"RIGHT":     "LR",
	"LEFT":      "RL",
	"DOWN":      "TB",
	"UP":        "BT",
	"UNDEFINED": "TB",
}

var crossingAttrs = map[string][2]string{
	"LAYER_SWEEP": {"remincross", "true"},
	"INTERACTIVE": {"ordering", "out"},
	"NONE":        {"mclimit", "0.01"},
}

var placementAttrs = map[string][2]string{
	"BRANDES_KOEPF":   {},
	"NETWORK_SIMPLEX": {},
	"INTERACTIVE":     {},
	"LINEAR_SEGMENTS": {"nslimit", "1"},
	"SIMPLE":          {"nslimit", "1"},
}

// attrs is an ordered list of graph attributes.
type attrs [][2]string

// translate converts merged options into the Graphviz engine name and the
// graph attributes to emit, in a stable order.
func translate(opts Options) (string, attrs, error) {
	engine, ok := engines[opts[KeyAlgorithm]]
	if !ok {
		return "", nil, errors.New(errors.ErrCodeInvalidLayoutOption, "unsupported %s: %q", KeyAlgorithm, opts[KeyAlgorithm])
	}

	var out attrs
	rankdir, ok := rankdirs[opts[KeyDirection]]
	if !ok {
		return "", nil, errors.New(errors.ErrCodeInvalidLayoutOption, "unsupported %s: %q", KeyDirection, opts[KeyDirection])
	}
	out = append(out, [2]string{"rankdir", rankdir})

	for _, sp := range []struct{ key, attr string }{
		{KeyLayerSpacing, "ranksep"},
		{KeyNodeSpacing, "nodesep"},
	} {
		px, err := strconv.ParseFloat(opts[sp.key], 64)
		if err != nil || px < 0 {
			return "", nil, errors.New(errors.ErrCodeInvalidLayoutOption, "%s must be a non-negative number, got %q", sp.key, opts[sp.key])
		}
		out = append(out, [2]string{sp.attr, inches(px)})
	}

	cross, ok := crossingAttrs[opts[KeyCrossingMinimization]]
	if !ok {
		return "", nil, errors.New(errors.ErrCodeInvalidLayoutOption, "unsupported %s: %q", KeyCrossingMinimization, opts[KeyCrossingMinimization])
	}
	out = append(out, cross)

	place, ok := placementAttrs[opts[KeyNodePlacement]]
	if !ok {
		return "", nil, errors.New(errors.ErrCodeInvalidLayoutOption, "unsupported %s: %q", KeyNodePlacement, opts[KeyNodePlacement])
	}
	if place[0] != "" {
		out = append(out, place)
	}

	for _, k := range sortedKeys(opts) {
		if !Recognized(k) {
			out = append(out, [2]string{k, opts[k]})
		}
	}
	return engine, out, nil
}

// inches converts pixels (1px = 1pt) to Graphviz inches.
func inches(px float64) string {
	return strconv.FormatFloat(px/72, 'f', 4, 64)
}
