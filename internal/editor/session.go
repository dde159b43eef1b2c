// Package editor implements the server side of the two-pane diagram editor.
//
// A [Session] owns one document being edited. Text edits are debounced
// before the pipeline runs; panel resizes are debounced separately before the
// split preference is written to a [session.Store]. Every run ends in an
// [Event] delivered to subscribers: a rendered diagram, or an error that
// leaves the last good diagram in place.
//
// A [Manager] creates sessions, looks them up by id and evicts idle ones.
package editor

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/archdiagram/pkg/debounce"
	"github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/graph"
	"github.com/matzehuels/archdiagram/pkg/layout"
	"github.com/matzehuels/archdiagram/pkg/model"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/render"
	"github.com/matzehuels/archdiagram/pkg/session"
)

// Default quiet periods.
const (
	DefaultEditDebounce   = 500 * time.Millisecond
	DefaultResizeDebounce = 3 * time.Second
)

// Config configures sessions.
type Config struct {
	EditDebounce   time.Duration
	ResizeDebounce time.Duration

	// Options are the base pipeline options. Perspective, formats and
	// presentation state are managed by the session.
	Options pipeline.Options

	// Store keeps split and perspective preferences. Nil disables
	// persistence.
	Store         session.Store
	PreferenceTTL time.Duration

	Logger *log.Logger
}

func (c *Config) setDefaults() error {
	if c.EditDebounce <= 0 {
		c.EditDebounce = DefaultEditDebounce
	}
	if c.ResizeDebounce <= 0 {
		c.ResizeDebounce = DefaultResizeDebounce
	}
	if c.PreferenceTTL <= 0 {
		c.PreferenceTTL = session.DefaultTTL
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.Options.Logger == nil {
		c.Options.Logger = c.Logger
	}
	c.Options.Formats = []string{pipeline.FormatSVG}
	return c.Options.ValidateAndSetDefaults()
}

// Session is one document open in the editor.
type Session struct {
	id     string
	cfg    Config
	runner *pipeline.Runner
	engine layout.Engine
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	edits   *debounce.Debouncer[[]byte]
	resizes *debounce.Debouncer[session.Split]
	events  *broker
	tracker layout.Tracker

	mu           sync.Mutex
	source       []byte
	model        *model.ArchitectureModel
	perspectives []string
	perspective  string
	split        session.Split
	states       render.States
	last         Event
	published    layout.Ticket
	lastActive   time.Time
	closeOnce    sync.Once
}

// NewSession creates an empty session. Load a document with
// [Session.Load] or [Session.Edit].
func NewSession(id string, runner *pipeline.Runner, cfg Config) (*Session, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		cfg:        cfg,
		runner:     runner,
		engine:     runner.CachedEngine(cfg.Options),
		logger:     cfg.Logger.With("session", id),
		ctx:        ctx,
		cancel:     cancel,
		events:     newBroker(),
		split:      session.DefaultSplit,
		states:     render.States{},
		last:       Event{Kind: EventDiagram, SVG: string(render.RenderMessage(render.MsgCalculating))},
		lastActive: time.Now(),
	}
	s.edits = debounce.New(cfg.EditDebounce, func(src []byte) {
		_ = s.apply(s.ctx, src)
	})
	s.resizes = debounce.New(cfg.ResizeDebounce, func(session.Split) {
		if err := s.savePreferences(s.ctx); err != nil {
			s.logger.Warn("failed to save layout preference", "error", err)
		}
	})
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Load replaces the document and runs the pipeline immediately. Parse and
// layout failures are published as error events and also returned.
func (s *Session) Load(ctx context.Context, source []byte) error {
	s.touch()
	return s.apply(ctx, slices.Clone(source))
}

// Edit records a text edit. The pipeline runs once edits have been quiet
// for the edit debounce period.
func (s *Session) Edit(source []byte) {
	s.touch()
	s.edits.Push(slices.Clone(source))
}

// Flush runs a pending edit now.
func (s *Session) Flush() {
	s.edits.Flush()
}

// SetPerspective selects a perspective and re-renders without waiting for
// the debounce period. An unknown name falls back to the first perspective.
func (s *Session) SetPerspective(ctx context.Context, name string) error {
	if err := errors.ValidatePerspectiveName(name); err != nil {
		return err
	}
	s.touch()
	s.mu.Lock()
	if s.model == nil {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidInput, "no document loaded")
	}
	s.perspective = name
	s.mu.Unlock()

	if err := s.rerun(ctx); err != nil {
		return err
	}
	if err := s.savePreferences(ctx); err != nil {
		s.logger.Warn("failed to save perspective", "error", err)
	}
	return nil
}

// Resize records a new split. It takes effect immediately for
// [Session.Split]; the preference is persisted once resizing has been quiet
// for the resize debounce period.
func (s *Session) Resize(split session.Split) error {
	if err := split.Validate(); err != nil {
		return err
	}
	s.touch()
	s.mu.Lock()
	s.split = split
	s.mu.Unlock()
	s.resizes.Push(split)
	return nil
}

// Split returns the current split.
func (s *Session) Split() session.Split {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.split
}

// Toggle flips a node between collapsed and expanded and re-renders the
// current layout with the node animating to its new size.
func (s *Session) Toggle(ctx context.Context, nodeID string) (render.NodeState, error) {
	s.touch()
	g, ok := s.tracker.Current()
	if !ok {
		return render.Collapsed, errors.New(errors.ErrCodeNotFound, "no diagram has been laid out yet")
	}
	if _, found := graph.Find(g, nodeID); !found {
		return render.Collapsed, errors.New(errors.ErrCodeNotFound, "node %q not found", nodeID)
	}

	s.mu.Lock()
	state := s.states.Toggle(nodeID)
	opts := s.optionsLocked()
	s.mu.Unlock()
	opts.Toggled = nodeID

	artifacts, err := pipeline.Render(g, opts)
	if err != nil {
		return state, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.last
	ev.SVG = string(artifacts[pipeline.FormatSVG])
	s.last = ev
	s.events.publish(ev)
	return state, nil
}

// Snapshot returns the most recent event.
func (s *Session) Snapshot() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.last
	ev.Perspectives = slices.Clone(ev.Perspectives)
	return ev
}

// Source returns the document text of the last run.
func (s *Session) Source() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.source)
}

// Subscribe returns a channel of events and a function that cancels the
// subscription. The channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close persists a pending split, drops a pending edit and closes all
// subscriptions.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.resizes.Flush()
		s.resizes.Stop()
		s.edits.Stop()
		s.cancel()
		s.events.close()
	})
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// apply parses source and, on success, re-runs projection, layout and
// rendering. On parse failure the previous diagram stays in place.
func (s *Session) apply(ctx context.Context, source []byte) error {
	m, err := pipeline.Parse(ctx, source, s.id)

	s.mu.Lock()
	s.source = source
	if err != nil {
		ev := s.last
		ev.Kind = EventError
		ev.Err = errors.UserMessage(err)
		s.last = ev
		s.events.publish(ev)
		s.mu.Unlock()
		s.logger.Warn("document does not parse", "error", err)
		return err
	}
	s.model = m
	s.perspectives = m.PerspectiveNames()
	if !slices.Contains(s.perspectives, s.perspective) {
		s.perspective = ""
		if len(s.perspectives) > 0 {
			s.perspective = s.perspectives[0]
		}
	}
	s.mu.Unlock()

	return s.rerun(ctx)
}

// rerun projects and lays out the current model. Layout requests are
// ordered by the tracker: a run superseded by a newer one publishes nothing.
func (s *Session) rerun(ctx context.Context) error {
	s.mu.Lock()
	m := s.model
	opts := s.optionsLocked()
	perspectives := slices.Clone(s.perspectives)
	s.mu.Unlock()
	if m == nil {
		return nil
	}

	proj, err := pipeline.Project(ctx, m, opts)
	if err != nil {
		return err
	}
	ev := Event{
		Perspectives: perspectives,
		Perspective:  proj.Perspective,
		Dropped:      len(proj.Dropped),
	}

	tk := s.tracker.Begin()
	positioned := proj.Graph
	empty := len(proj.Graph.Children) == 0
	if !empty {
		positioned, err = s.engine.Layout(ctx, proj.Graph, opts.Layout)
	}
	if !s.tracker.Complete(tk, positioned, err) {
		s.logger.Debug("discarded superseded layout", "ticket", tk)
		return nil
	}
	if err != nil {
		s.logger.Error("layout failed", "error", err)
		ev.Kind = EventError
		ev.Err = render.MsgLayoutError
		ev.SVG = string(render.RenderMessage(render.MsgLayoutError))
		s.publish(tk, ev, false)
		return errors.Wrap(errors.ErrCodeLayoutFailed, err, "layout")
	}

	var svg []byte
	if empty {
		svg = render.RenderMessage(render.MsgEmpty)
	} else {
		artifacts, _, err := s.runner.RenderWithCacheInfo(ctx, positioned, opts)
		if err != nil {
			ev.Kind = EventError
			ev.Err = errors.UserMessage(err)
			s.publish(tk, ev, true)
			return err
		}
		svg = artifacts[pipeline.FormatSVG]
	}

	ev.Kind = EventDiagram
	ev.SVG = string(svg)
	s.publish(tk, ev, false)
	return nil
}

// publish records and delivers ev unless a newer run already published.
// keepSVG carries the last good diagram over into ev.
func (s *Session) publish(tk layout.Ticket, ev Event, keepSVG bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tk < s.published {
		return
	}
	s.published = tk
	if keepSVG {
		ev.SVG = s.last.SVG
	}
	if ev.Perspective != "" {
		s.perspective = ev.Perspective
	}
	s.last = ev
	s.events.publish(ev)
}

// optionsLocked returns the pipeline options for the current selection.
// s.mu must be held.
func (s *Session) optionsLocked() pipeline.Options {
	opts := s.cfg.Options
	opts.Perspective = s.perspective
	opts.States = s.states.Clone()
	opts.Logger = s.logger
	return opts
}

func (s *Session) savePreferences(ctx context.Context) error {
	store := s.cfg.Store
	if store == nil {
		return nil
	}
	s.mu.Lock()
	split, perspective := s.split, s.perspective
	s.mu.Unlock()

	rec, err := store.Get(ctx, s.id)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &session.Session{ID: s.id, CreatedAt: time.Now()}
	}
	rec.Split = split
	rec.Perspective = perspective
	rec.Touch(s.cfg.PreferenceTTL)
	return store.Set(ctx, rec)
}
