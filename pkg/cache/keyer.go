package cache

import "maps"

// Entry types, used as key prefixes and as the keyType in cache hooks.
const (
	KeyTypeLayout = "layout"
	KeyTypeRender = "render"
)

// LayoutKeyOpts holds the effective layout options.
type LayoutKeyOpts struct {
	Options map[string]string `json:"options"`
}

// RenderKeyOpts holds the settings that change a rendered artifact.
type RenderKeyOpts struct {
	Format     string `json:"format"`
	Style      string `json:"style"`
	Background bool   `json:"background"`
}

// Keyer derives cache keys from content hashes and options.
type Keyer interface {
	LayoutKey(graphHash string, opts LayoutKeyOpts) string
	RenderKey(layoutHash string, opts RenderKeyOpts) string
}

// DefaultKeyer hashes the input hash together with the options.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	// encoding/json sorts map keys, so equal option sets hash equally.
	o := LayoutKeyOpts{Options: maps.Clone(opts.Options)}
	return hashKey(KeyTypeLayout, graphHash, o)
}

func (DefaultKeyer) RenderKey(layoutHash string, opts RenderKeyOpts) string {
	return hashKey(KeyTypeRender, layoutHash, opts)
}
