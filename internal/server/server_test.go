package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/archdiagram/internal/editor"
	apperrors "github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/layout"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/sample"
	"github.com/matzehuels/archdiagram/pkg/session"
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
  - name: Ops
    relations: []
`

// rowEngine places top-level nodes in a row.
type rowEngine struct{}

func (rowEngine) Layout(ctx context.Context, g graph.Graph, _ layout.Options) (graph.Graph, error) {
	out := layout.Prepare(g)
	x := 0.0
	for i := range out.Children {
		out.Children[i].X = x
		x += out.Children[i].Width + 50
	}
	out.Width, out.Height = x, 150
	routeEdges(&out)
	return out, nil
}

// routeEdges draws every edge as a straight section between the centers of
// its top-level endpoints. Nested endpoints route from the origin.
func routeEdges(g *graph.Graph) {
	centers := make(map[string]graph.Point, len(g.Children))
	for _, n := range g.Children {
		centers[n.ID] = graph.Point{X: n.X + n.Width/2, Y: n.Y + n.Height/2}
	}
	for i, e := range g.Edges {
		g.Edges[i].Sections = []graph.Section{{
			StartPoint: centers[e.Source()],
			EndPoint:   centers[e.Target()],
		}}
	}
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	return newTestServerWithEditor(t, cfg, editor.Config{
		EditDebounce:   10 * time.Millisecond,
		ResizeDebounce: time.Hour,
	})
}

func newTestServerWithEditor(t *testing.T, cfg Config, ecfg editor.Config) *Server {
	t.Helper()
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(nil, nil, rowEngine{}, logger)
	ecfg.Logger = logger
	editors, err := editor.NewManager(runner, ecfg, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(editors.Close)
	cfg.Logger = logger
	return New(runner, editors, cfg)
}

func do(t *testing.T, s *Server, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.Code {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestSample(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodGet, "/api/sample", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/yaml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != string(sample.Document()) {
		t.Error("body should be the sample document")
	}
}

func TestSampleFailure(t *testing.T) {
	s := newTestServer(t, Config{})
	s.loadSample = func() ([]byte, error) { return nil, errors.New("embedded file missing") }

	rec := do(t, s, http.MethodGet, "/api/sample", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), sampleErrorMessage) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestEditorPageReadsSplitCookie(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "flex-basis: 25%") {
		t.Errorf("default split missing: status %d", rec.Code)
	}

	cookie := &http.Cookie{Name: session.CookieName, Value: session.EncodeCookie(session.Split{40, 60})}
	rec = do(t, s, http.MethodGet, "/", "", cookie)
	body := rec.Body.String()
	if !strings.Contains(body, "flex-basis: 40%") || !strings.Contains(body, "flex-basis: 60%") {
		t.Error("split from cookie not applied")
	}
	if !strings.Contains(body, "Calculating layout...") {
		t.Error("placeholder message missing")
	}
}

func TestRender(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/render?format=svg", webServerDoc)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rec.Header().Get("X-Dropped-Relations"); got != "1" {
		t.Errorf("X-Dropped-Relations = %q", got)
	}
	if got := rec.Header().Get("X-Perspective"); got != "Data Flow" {
		t.Errorf("X-Perspective = %q", got)
	}
	if !strings.Contains(rec.Body.String(), `data-node-id="Web_Server"`) {
		t.Error("SVG missing Web_Server")
	}
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   apperrors.Code
	}{
		{"bad format", "/api/render?format=gif", webServerDoc, http.StatusBadRequest, apperrors.ErrCodeInvalidFormat},
		{"bad style", "/api/render?style=neon", webServerDoc, http.StatusBadRequest, apperrors.ErrCodeInvalidStyle},
		{"bad strict", "/api/render?strict=maybe", webServerDoc, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"bad yaml", "/api/render", "resources: [", http.StatusBadRequest, apperrors.ErrCodeInvalidYAML},
		{"bad nesting", "/api/project?nesting=deep", webServerDoc, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"oversized body", "/api/render", strings.Repeat("a", maxBodyBytes+1), http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{})
			rec := do(t, s, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if code := decodeError(t, rec); code != tt.code {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
		})
	}
}

func TestProject(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodPost, "/api/project?perspective=Ops", webServerDoc)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp projectResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Perspective != "Ops" || len(resp.Graph.Edges) != 0 || len(resp.Graph.Children) != 2 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Graph.Width != 0 {
		t.Error("projected graph should not be positioned")
	}
}

func TestLayout(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodPost, "/api/layout", webServerDoc)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	g, err := graph.UnmarshalGraph(rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if g.Width == 0 || len(g.Edges) != 1 {
		t.Errorf("positioned graph = %+v", g)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Config{RenderRate: 0.001, RenderBurst: 1})

	if rec := do(t, s, http.MethodPost, "/api/project", webServerDoc); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/api/render", webServerDoc)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if code := decodeError(t, rec); code != apperrors.ErrCodeRateLimited {
		t.Errorf("code = %s", code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	// Session endpoints are not rate limited.
	if rec := do(t, s, http.MethodGet, "/api/sample", ""); rec.Code != http.StatusOK {
		t.Errorf("sample status = %d", rec.Code)
	}
}

func createSession(t *testing.T, s *Server, body string) sessionResponse {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, Config{})
	created := createSession(t, s, webServerDoc)
	if created.Kind != editor.EventDiagram || created.Perspective != "Data Flow" {
		t.Errorf("created = %+v", created.Event.Perspective)
	}
	if created.Split != session.DefaultSplit {
		t.Errorf("split = %v", created.Split)
	}
	base := "/api/sessions/" + created.ID

	rec := do(t, s, http.MethodPut, base+"/perspective", `{"perspective":"Ops"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"perspective":"Ops"`) {
		t.Errorf("perspective: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPut, base+"/split", `[40,60]`)
	if rec.Code != http.StatusNoContent {
		t.Errorf("split status = %d", rec.Code)
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].Name != session.CookieName {
		t.Errorf("split cookie = %v", c)
	}
	if rec := do(t, s, http.MethodPut, base+"/split", `[40]`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid split status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, base+"/nodes/DB/toggle", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"expanded"`) {
		t.Errorf("toggle: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, http.MethodPost, base+"/nodes/Nope/toggle", ""); rec.Code != http.StatusNotFound {
		t.Errorf("toggle unknown status = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, base, "")
	var got sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Split != (session.Split{40, 60}) || got.Perspective != "Ops" {
		t.Errorf("session = split %v perspective %q", got.Split, got.Perspective)
	}

	if rec := do(t, s, http.MethodPut, base+"/source", "resources: []"); rec.Code != http.StatusAccepted {
		t.Errorf("source status = %d", rec.Code)
	}

	if rec := do(t, s, http.MethodDelete, base, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, base, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d", rec.Code)
	}
}

// countingStore records how often preferences are written.
type countingStore struct {
	*session.MemoryStore
	sets atomic.Int32
}

func (s *countingStore) Set(ctx context.Context, sess *session.Session) error {
	s.sets.Add(1)
	return s.MemoryStore.Set(ctx, sess)
}

func TestSplitWritesAreCoalesced(t *testing.T) {
	store := &countingStore{MemoryStore: session.NewMemoryStore()}
	s := newTestServerWithEditor(t, Config{}, editor.Config{
		EditDebounce:   10 * time.Millisecond,
		ResizeDebounce: 200 * time.Millisecond,
		Store:          store,
	})
	created := createSession(t, s, webServerDoc)
	base := "/api/sessions/" + created.ID

	for _, split := range []string{`[30,70]`, `[35,65]`, `[40,60]`, `[45,55]`} {
		if rec := do(t, s, http.MethodPut, base+"/split", split); rec.Code != http.StatusNoContent {
			t.Fatalf("split status = %d", rec.Code)
		}
	}
	if n := store.sets.Load(); n != 0 {
		t.Fatalf("store written %d times before the resize debounce elapsed", n)
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.sets.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	if n := store.sets.Load(); n != 1 {
		t.Fatalf("store written %d times, want 1", n)
	}
	rec, err := store.Get(context.Background(), created.ID)
	if err != nil || rec == nil {
		t.Fatalf("Get() = %v, %v", rec, err)
	}
	if rec.Split != (session.Split{45, 55}) {
		t.Errorf("saved split = %v, want [45 55]", rec.Split)
	}
}

func TestEditorPageSendsSplitOnce(t *testing.T) {
	s := newTestServer(t, Config{})
	page := do(t, s, http.MethodGet, "/", "").Body.String()
	if n := strings.Count(page, `"/split"`); n != 1 {
		t.Errorf("page sends the split from %d places, want 1", n)
	}
	move := page[strings.Index(page, "function move"):strings.Index(page, "function up")]
	if strings.Contains(move, "fetch(") {
		t.Error("split is sent on every mouse move")
	}
}

func TestSessionBadID(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodGet, "/api/sessions/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	rec = do(t, s, http.MethodGet, "/api/sessions/"+session.GenerateID(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d", rec.Code)
	}
}

func TestSessionCreateUsesSampleAndCookie(t *testing.T) {
	s := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: session.EncodeCookie(session.Split{30, 70})})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Perspective != "Request Flow" || resp.Split != (session.Split{30, 70}) {
		t.Errorf("resp = perspective %q split %v", resp.Perspective, resp.Split)
	}
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	created := createSession(t, s, webServerDoc)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sessions/"+created.ID+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, editor.Event) {
		t.Helper()
		kind, err := reader.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		data, err := reader.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		if _, err := reader.ReadString('\n'); err != nil {
			t.Fatal(err)
		}
		var ev editor.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(data), "data: ")), &ev); err != nil {
			t.Fatal(err)
		}
		return strings.TrimSpace(kind), ev
	}

	kind, ev := readEvent()
	if kind != "event: diagram" || ev.Perspective != "Data Flow" {
		t.Errorf("snapshot = %s %+v", kind, ev.Perspective)
	}

	put, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/sessions/"+created.ID+"/source", strings.NewReader("resources: ["))
	putResp, err := http.DefaultClient.Do(put)
	if err != nil {
		t.Fatal(err)
	}
	putResp.Body.Close()

	kind, ev = readEvent()
	if kind != "event: error" || ev.Err == "" {
		t.Errorf("after bad edit = %s %+v", kind, ev.Err)
	}
	if !strings.Contains(ev.SVG, `data-node-id="Web_Server"`) {
		t.Error("error event should carry the last good diagram")
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz: %d %s", rec.Code, rec.Body.String())
	}
}
