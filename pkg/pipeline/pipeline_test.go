package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/matzehuels/archdiagram/pkg/cache"
	"github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/layout"
	"github.com/matzehuels/archdiagram/pkg/render"
)

const webServerDoc = `
resources:
  - name: Web Server
    children:
      - name: Auth Module
  - name: DB
perspectives:
  - name: Data Flow
    relations:
      - from: Web Server
        to: DB
        label: query
      - from: Web Server
        to: Cache
        label: lookup
`

// gridEngine places top-level nodes left to right and draws straight edges.
type gridEngine struct{ calls atomic.Int32 }

func (e *gridEngine) Layout(ctx context.Context, g graph.Graph, _ layout.Options) (graph.Graph, error) {
	e.calls.Add(1)
	out := layout.Prepare(g)
	x := 0.0
	for i := range out.Children {
		out.Children[i].X, out.Children[i].Y = x, 0
		x += out.Children[i].Width + 50
	}
	bounds := graph.AbsoluteBounds(out)
	for i, edge := range out.Edges {
		s, t := bounds[edge.Source()], bounds[edge.Target()]
		out.Edges[i].Sections = []graph.Section{{
			StartPoint: graph.Point{X: s.X + s.Width, Y: s.Y + s.Height/2},
			EndPoint:   graph.Point{X: t.X, Y: t.Y + t.Height/2},
		}}
	}
	out.Width, out.Height = x-50, 50
	return out, nil
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"pdf", false},
		{"json", false},
		{"dot", false},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidFormat) {
			t.Errorf("ValidateFormat(%q) code = %s", tt.format, errors.GetCode(err))
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("valid formats should pass: %v", err)
	}
	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("invalid format should fail")
	}
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("empty formats should pass: %v", err)
	}
}

func TestValidateStyle(t *testing.T) {
	for _, style := range []string{"", "light", "dark"} {
		if err := ValidateStyle(style); err != nil {
			t.Errorf("ValidateStyle(%q) = %v", style, err)
		}
	}
	if err := ValidateStyle("handdrawn"); err == nil {
		t.Error("unknown style should fail")
	}
}

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{FormatSVG}, opts.Formats); diff != "" {
		t.Errorf("Formats (-want +got):\n%s", diff)
	}
	if opts.Style != render.StyleLight || opts.Nesting != NestingNested || opts.Source != "-" {
		t.Errorf("defaults = %+v", opts)
	}
	if opts.EffectiveLayout()[layout.KeyDirection] != "RIGHT" {
		t.Error("layout defaults not applied")
	}
}

func TestOptionsInvalid(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"nesting", Options{Nesting: "deep"}, errors.ErrCodeInvalidInput},
		{"sizing", Options{Sizing: "huge"}, errors.ErrCodeInvalidInput},
		{"edge ids", Options{EdgeIDs: "random"}, errors.ErrCodeInvalidInput},
		{"format", Options{Formats: []string{"gif"}}, errors.ErrCodeInvalidFormat},
		{"style", Options{Style: "neon"}, errors.ErrCodeInvalidStyle},
		{"perspective", Options{Perspective: "bad\x00name"}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func newTestRunner(c cache.Cache) (*Runner, *gridEngine) {
	engine := &gridEngine{}
	return NewRunner(c, nil, engine, log.New(&strings.Builder{})), engine
}

func TestExecute(t *testing.T) {
	runner, _ := newTestRunner(nil)
	defer runner.Close()

	res, err := runner.Execute(context.Background(), []byte(webServerDoc), Options{
		Formats: []string{FormatSVG, FormatJSON, FormatDOT},
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Projection.Perspective != "Data Flow" {
		t.Errorf("Perspective = %q", res.Projection.Perspective)
	}
	if res.Stats.NodeCount != 3 || res.Stats.EdgeCount != 1 || res.Stats.Dropped != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	if res.GraphHash == "" {
		t.Error("GraphHash should be set")
	}

	svg := string(res.Artifacts[FormatSVG])
	for _, want := range []string{`data-node-id="Web_Server"`, `data-node-id="Auth_Module"`, `>query</text>`} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %q", want)
		}
	}

	positioned, err := graph.UnmarshalGraph(res.Artifacts[FormatJSON])
	if err != nil {
		t.Fatalf("json artifact: %v", err)
	}
	if diff := cmp.Diff(res.Graph, positioned, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("json artifact differs from result graph:\n%s", diff)
	}

	if dot := string(res.Artifacts[FormatDOT]); !strings.HasPrefix(dot, "digraph") || !strings.Contains(dot, "cluster_Web_Server") {
		t.Errorf("dot artifact = %s", dot)
	}
}

func TestExecuteParseError(t *testing.T) {
	runner, engine := newTestRunner(nil)
	_, err := runner.Execute(context.Background(), []byte("resources: ["), Options{})
	if !errors.Is(err, errors.ErrCodeInvalidYAML) {
		t.Errorf("error = %v, want invalid yaml", err)
	}
	if engine.calls.Load() != 0 {
		t.Error("layout should not run after a parse error")
	}
}

func TestExecuteCaches(t *testing.T) {
	runner, engine := newTestRunner(cache.NewMemoryCache(16))
	ctx := context.Background()

	first, err := runner.Execute(ctx, []byte(webServerDoc), Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := runner.Execute(ctx, []byte(webServerDoc), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if first.CacheInfo.LayoutHit || !second.CacheInfo.LayoutHit || !second.CacheInfo.RenderHit {
		t.Errorf("cache info = %+v, %+v", first.CacheInfo, second.CacheInfo)
	}
	if engine.calls.Load() != 1 {
		t.Errorf("engine calls = %d, want 1", engine.calls.Load())
	}
	if string(first.Artifacts[FormatSVG]) != string(second.Artifacts[FormatSVG]) {
		t.Error("cached SVG differs")
	}

	refreshed, err := runner.Execute(ctx, []byte(webServerDoc), Options{Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.CacheInfo.LayoutHit || engine.calls.Load() != 2 {
		t.Error("Refresh should bypass the cache")
	}

	other, err := runner.Execute(ctx, []byte(webServerDoc), Options{Layout: layout.Options{layout.KeyDirection: "DOWN"}})
	if err != nil {
		t.Fatal(err)
	}
	if other.CacheInfo.LayoutHit {
		t.Error("different layout options should miss the cache")
	}
}

func TestStatefulRenderBypassesCache(t *testing.T) {
	runner, _ := newTestRunner(cache.NewMemoryCache(16))
	ctx := context.Background()
	if _, err := runner.Execute(ctx, []byte(webServerDoc), Options{}); err != nil {
		t.Fatal(err)
	}

	states := render.States{}
	states.Toggle("DB")
	res, err := runner.Execute(ctx, []byte(webServerDoc), Options{States: states, Toggled: "DB"})
	if err != nil {
		t.Fatal(err)
	}
	if res.CacheInfo.RenderHit {
		t.Error("stateful render must not come from cache")
	}
	if !strings.Contains(string(res.Artifacts[FormatSVG]), `data-node-id="DB" data-state="expanded"`) {
		t.Error("expanded state not rendered")
	}
}

func TestRenderUnsupported(t *testing.T) {
	_, err := Render(graph.Graph{}, Options{Formats: []string{"gif"}, Style: "light"})
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("error = %v", err)
	}
}

func TestCachedEngine(t *testing.T) {
	runner, engine := newTestRunner(cache.NewMemoryCache(16))
	var tracker layout.Tracker
	g := graph.Graph{ID: graph.RootID, Children: []graph.Node{{ID: "a"}, {ID: "b"}}}

	for range 2 {
		if _, _, err := tracker.Layout(context.Background(), runner.CachedEngine(Options{}), g, nil); err != nil {
			t.Fatal(err)
		}
	}
	if engine.calls.Load() != 1 {
		t.Errorf("engine calls = %d, want 1", engine.calls.Load())
	}
	if current, ok := tracker.Current(); !ok || current.Width != 350 {
		t.Errorf("tracker current = %+v, %v", current, ok)
	}
}
