package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/archdiagram/internal/editor"
	"github.com/matzehuels/archdiagram/pkg/buildinfo"
	apperrors "github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/project"
	"github.com/matzehuels/archdiagram/pkg/render"
	"github.com/matzehuels/archdiagram/pkg/session"
)

//go:embed templates/editor.html
var editorHTML string

var editorPage = template.Must(template.New("editor").Parse(editorHTML))

// sampleErrorMessage is the body of a failed /api/sample response.
const sampleErrorMessage = "Error loading sample document"

var contentTypes = map[string]string{
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatPDF:  "application/pdf",
	pipeline.FormatJSON: "application/json",
	pipeline.FormatDOT:  "text/vnd.graphviz",
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	split := session.ReadCookie(r)
	data := struct {
		Editor, Diagram float64
		Placeholder     template.HTML
	}{
		Editor:      split.Editor(),
		Diagram:     split.Diagram(),
		Placeholder: template.HTML(render.RenderMessage(render.MsgCalculating)),
	}

	var buf bytes.Buffer
	if err := editorPage.Execute(&buf, data); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.ErrCodeInternal, err, "render editor page"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.editors.Len(),
		"build":    buildinfo.Get(),
	})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	doc, err := s.loadSample()
	if err != nil {
		s.logger.Error("failed to load sample document", "error", err)
		http.Error(w, sampleErrorMessage, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/yaml")
	_, _ = w.Write(doc)
}

// requestOptions builds pipeline options from the query string.
func (s *Server) requestOptions(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := s.cfg.Options
	opts.Source = "request"
	opts.Logger = s.logger
	opts.Perspective = q.Get("perspective")
	if v := q.Get("style"); v != "" {
		opts.Style = v
	}
	if v := q.Get("nesting"); v != "" {
		opts.Nesting = v
	}
	if v := q.Get("sizing"); v != "" {
		opts.Sizing = v
	}
	if v := q.Get("strict"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return opts, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "invalid strict flag")
		}
		opts.Strict = strict
	}
	format := q.Get("format")
	if format == "" {
		format = pipeline.FormatSVG
	}
	opts.Formats = []string{format}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, err
	}
	return opts, nil
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "read request body")
	}
	return data, nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.runner.Execute(r.Context(), body, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := opts.Formats[0]
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Perspective", result.Projection.Perspective)
	w.Header().Set("X-Dropped-Relations", strconv.Itoa(result.Stats.Dropped))
	_, _ = w.Write(result.Artifacts[format])
}

type projectResponse struct {
	Perspective string                     `json:"perspective"`
	Graph       graph.Graph                `json:"graph"`
	Dropped     []project.DanglingRelation `json:"dropped"`
	Duplicates  []string                   `json:"duplicates"`
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := pipeline.Parse(r.Context(), body, opts.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := pipeline.Project(r.Context(), m, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{
		Perspective: res.Perspective,
		Graph:       res.Graph,
		Dropped:     res.Dropped,
		Duplicates:  res.Duplicates,
	})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts.Formats = []string{pipeline.FormatJSON}
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.runner.Execute(r.Context(), body, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[pipeline.FormatJSON])
	_, _ = w.Write(result.Artifacts[pipeline.FormatJSON])
}

type sessionResponse struct {
	ID    string        `json:"id"`
	Split session.Split `json:"split"`
	editor.Event
}

func newSessionResponse(sess *editor.Session) sessionResponse {
	return sessionResponse{ID: sess.ID(), Split: sess.Split(), Event: sess.Snapshot()}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.editors.Create(r.Context(), body, session.ReadCookie(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

// lookup resolves the {id} URL parameter.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	id := chi.URLParam(r, "id")
	if err := apperrors.ValidateSessionID(id); err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	sess, err := s.editors.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := s.editors.Delete(sess.ID()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.Edit(body)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePerspective(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Perspective string `json:"perspective"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "invalid perspective request"))
		return
	}
	// A failed run is reported through the event, like an edit.
	if err := sess.SetPerspective(r.Context(), req.Perspective); err != nil && apperrors.HTTPStatus(err) == http.StatusBadRequest {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	split, err := session.ParseSplit(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.Resize(split); err != nil {
		s.writeError(w, r, err)
		return
	}
	session.WriteCookie(w, split)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	node := chi.URLParam(r, "node")
	state, err := sess.Toggle(r.Context(), node)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"node": node, "state": state.String()})
}

// handleEvents streams session events as server-sent events, starting with
// the current snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, apperrors.New(apperrors.ErrCodeUnsupported, "streaming not supported"))
		return
	}

	events, cancel := sess.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, sess.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, ev editor.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
