// ABOUTME: HTTP handler methods for the session, display-flag, and refinement endpoints.
// ABOUTME: Request bodies are YAML or JSON; refinements run on a copy and are checkpointed on success.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/2389-research/conceptgraph/concept"
	"github.com/2389-research/conceptgraph/dot"
	"github.com/2389-research/conceptgraph/graph"
	"github.com/2389-research/conceptgraph/logic"
	"github.com/2389-research/conceptgraph/problem"
	"github.com/2389-research/conceptgraph/render"
	"github.com/2389-research/conceptgraph/session"
)

const maxBodySize = 10 << 20

var (
	errBadRequest     = errors.New("bad request")
	errNoHistory      = errors.New("checkpoint history is not configured")
	errUnknownTag     = errors.New("unknown combination tag")
	errUnknownTruth   = errors.New("truth must be true, false, or unknown")
	errMissingConcept = errors.New("concept name is required")
)

type sessionView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Nodes       []string `json:"nodes"`
	Relations   []string `json:"relations"`
	State       []string `json:"state"`
	Constraints []string `json:"constraints"`
	CanUndo     bool     `json:"can_undo"`
	CanRedo     bool     `json:"can_redo"`
}

type recomputeResponse struct {
	Session    sessionView   `json:"session"`
	Checkpoint string        `json:"checkpoint,omitempty"`
	Elements   []dot.Element `json:"elements"`
}

type refineResponse struct {
	Session sessionView `json:"session"`
	Result  any         `json:"result,omitempty"`
}

type checkpointView struct {
	ID          string   `json:"id"`
	Action      string   `json:"action"`
	Constraints []string `json:"constraints"`
	CreatedAt   string   `json:"created_at"`
}

type formulasRequest struct {
	Formulas []problem.Formula `yaml:"formulas"`
}

type conceptRequest struct {
	Node    string          `yaml:"node"`
	Vars    []string        `yaml:"vars"`
	Formula problem.Formula `yaml:"formula"`
}

type splitValuesRequest struct {
	Node   string         `yaml:"node"`
	Term   problem.Term   `yaml:"term"`
	Values []problem.Term `yaml:"values"`
}

type nodeRequest struct {
	Node string `yaml:"node"`
}

type edgeRequest struct {
	Edge   string `yaml:"edge"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Truth  *bool  `yaml:"truth"`
}

type checkboxRequest struct {
	Concept string `yaml:"concept"`
	Index   int    `yaml:"index"`
	Value   bool   `yaml:"value"`
}

type overrideRequest struct {
	Tag      string   `yaml:"tag"`
	Combiner string   `yaml:"combiner"`
	Parts    []string `yaml:"parts"`
	Truth    string   `yaml:"truth"`
	Clear    bool     `yaml:"clear"`
}

// handleHealth returns a JSON health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListSessions returns every live session.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

// handleCreateSession builds a graph from a posted problem document.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := problem.Parse(data)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	compiled, err := p.Compile()
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts := append([]graph.Option{graph.WithLogger(s.log)}, s.graphOpts...)
	g, err := compiled.NewGraph(r.Context(), s.oracle, opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sess := s.sessions.Add(compiled.Name, graph.NewStack(g, s.undoDepth))
	s.log.WithFields(logrus.Fields{"session": sess.ID, "problem": compiled.Name}).Info("session created")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	writeJSON(w, http.StatusCreated, view(sess))
}

// handleGetSession describes one session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	writeJSON(w, http.StatusOK, view(sess))
}

// handleDeleteSession drops a session from memory. Stored history is kept.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRecompute refreshes the abstract value and renders it.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	g := sess.stack.Current()
	if err := g.Recompute(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	out, err := g.Render()
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := recomputeResponse{Session: view(sess), Elements: dot.Elements(out)}
	if s.history != nil {
		id, err := s.history.SaveCheckpoint(sess.ID, "recompute", formulaStrings(g.Constraints()), out)
		if err != nil {
			s.log.WithError(err).WithField("session", sess.ID).Warn("checkpoint not saved")
		} else {
			resp.Checkpoint = id.String()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRenderGraph returns the last abstraction as dot, json, svg, or png.
// Layouts are cached per display revision and carry an ETag.
func (s *Server) handleRenderGraph(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = render.FormatJSON
	}

	var (
		data []byte
		etag string
		err  error
	)
	sess.mu.Lock()
	g := sess.stack.Current()
	switch format {
	case render.FormatSVG, render.FormatPNG:
		var l render.Layout
		l, err = s.layouts.Layout(r.Context(), g.Revision(), format, g.Render)
		data, etag = l.Data, l.ETag
	default:
		var out *dot.Graph
		if out, err = g.Render(); err == nil {
			data, err = render.Render(r.Context(), out, format)
		}
	}
	sess.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleGetCheckboxes returns the display flags.
func (s *Server) handleGetCheckboxes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	boxes := sess.stack.Current().Checkboxes()
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"edges": boxes.Edges, "labels": boxes.Labels})
}

// handleSetCheckbox sets one display flag by index. Flags are not checkpointed.
func (s *Server) handleSetCheckbox(w http.ResponseWriter, r *http.Request) {
	var req checkboxRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Concept == "" {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, errMissingConcept))
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.stack.Current().SetCheckbox(req.Concept, req.Index, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// handleOverride records or clears a display override for one combination.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	key, err := req.key()
	if err != nil {
		s.writeError(w, err)
		return
	}
	truth, err := parseTruth(req.Truth)
	if err != nil && !req.Clear {
		s.writeError(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if req.Clear {
		sess.stack.Current().ClearOverride(key)
	} else {
		sess.stack.Current().Override(key, truth)
	}
	writeJSON(w, http.StatusOK, view(sess))
}

// handleHistory lists stored checkpoints of a session.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, errNoHistory)
		return
	}
	cps, err := s.history.ListCheckpoints(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]checkpointView, 0, len(cps))
	for _, cp := range cps {
		out = append(out, checkpointView{
			ID:          cp.ID.String(),
			Action:      cp.Action,
			Constraints: cp.Constraints,
			CreatedAt:   cp.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAddConstraints supposes additional closed formulas.
func (s *Server) handleAddConstraints(w http.ResponseWriter, r *http.Request) {
	var req formulasRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.refine(w, r, "add_constraints", func(ctx context.Context, g *graph.Graph) (any, error) {
		fs, err := resolveAll(g.Signature(), req.Formulas)
		if err != nil {
			return nil, err
		}
		return nil, g.AddConstraints(ctx, fs...)
	})
}

// handleSetState replaces the base state.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	var req formulasRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.refine(w, r, "set_state", func(ctx context.Context, g *graph.Graph) (any, error) {
		fs, err := resolveAll(g.Signature(), req.Formulas)
		if err != nil {
			return nil, err
		}
		return nil, g.SetState(ctx, fs)
	})
}

// handleNewRelation registers a user label or edge concept.
func (s *Server) handleNewRelation(w http.ResponseWriter, r *http.Request) {
	var req conceptRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.refine(w, r, "new_relation", func(ctx context.Context, g *graph.Graph) (any, error) {
		c, err := problem.ResolveConcept(g.Signature(), req.Vars, &req.Formula)
		if err != nil {
			return nil, err
		}
		if err := g.NewRelation(ctx, c); err != nil {
			return nil, err
		}
		return map[string]string{"concept": c.Name}, nil
	})
}

// handleSplit splits a node by a unary concept. Without vars the formula is
// over X of the node's sort.
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req conceptRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.refine(w, r, "split", func(ctx context.Context, g *graph.Graph) (any, error) {
		node, err := nodeConcept(g, req.Node)
		if err != nil {
			return nil, err
		}
		vars := req.Vars
		if len(vars) == 0 {
			vars = []string{node.Vars[0].Decl()}
		}
		by, err := problem.ResolveConcept(g.Signature(), vars, &req.Formula)
		if err != nil {
			return nil, err
		}
		pos, neg, err := g.Split(ctx, req.Node, by)
		if err != nil {
			return nil, err
		}
		return map[string][]string{"concepts": {pos.Name, neg.Name}}, nil
	})
}

// handleSplitValues splits a node by the values of a term over its variable.
func (s *Server) handleSplitValues(w http.ResponseWriter, r *http.Request) {
	var req splitValuesRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.refine(w, r, "split_values", func(ctx context.Context, g *graph.Graph) (any, error) {
		node, err := nodeConcept(g, req.Node)
		if err != nil {
			return nil, err
		}
		t, err := problem.ResolveTerm(g.Signature(), node.Vars, &req.Term)
		if err != nil {
			return nil, err
		}
		values := make([]logic.Term, len(req.Values))
		for i := range req.Values {
			if values[i], err = problem.ResolveTerm(g.Signature(), nil, &req.Values[i]); err != nil {
				return nil, err
			}
		}
		succ, err := g.SplitByValues(ctx, req.Node, t, values)
		if err != nil {
			return nil, err
		}
		return map[string][]string{"concepts": conceptNames(succ)}, nil
	})
}

// handleSplatter splits a node by every constant of its sort.
func (s *Server) handleSplatter(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if err := decodeNode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.refine(w, r, "splatter", func(ctx context.Context, g *graph.Graph) (any, error) {
		succ, err := g.Splatter(ctx, req.Node)
		if err != nil {
			return nil, err
		}
		return map[string][]string{"concepts": conceptNames(succ)}, nil
	})
}

// handleMaterialize introduces a witness for a node.
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if err := decodeNode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.refine(w, r, "materialize", func(ctx context.Context, g *graph.Graph) (any, error) {
		c, err := g.Materialize(ctx, req.Node)
		if err != nil {
			return nil, err
		}
		return map[string]string{"witness": c.Name}, nil
	})
}

// handleMaterializeEdge introduces witnesses for an edge's endpoints.
func (s *Server) handleMaterializeEdge(w http.ResponseWriter, r *http.Request) {
	var req edgeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	truth := req.Truth == nil || *req.Truth
	s.refine(w, r, "materialize_edge", func(ctx context.Context, g *graph.Graph) (any, error) {
		ws, wt, err := g.MaterializeEdge(ctx, req.Edge, req.Source, req.Target, truth)
		if err != nil {
			return nil, err
		}
		return map[string]string{"source_witness": ws.Name, "target_witness": wt.Name}, nil
	})
}

// handleEmpty supposes a node is empty.
func (s *Server) handleEmpty(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if err := decodeNode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.refine(w, r, "empty", func(ctx context.Context, g *graph.Graph) (any, error) {
		return nil, g.Empty(ctx, req.Node)
	})
}

// handleEmptyEdge supposes an edge triple relates nothing.
func (s *Server) handleEmptyEdge(w http.ResponseWriter, r *http.Request) {
	var req edgeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.refine(w, r, "empty_edge", func(ctx context.Context, g *graph.Graph) (any, error) {
		return nil, g.EmptyEdge(ctx, req.Edge, req.Source, req.Target)
	})
}

// handleUndo reverts the last refinement. Without history it returns the
// unchanged session.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.stack.Undo()
	writeJSON(w, http.StatusOK, view(sess))
}

// handleRedo reapplies an undone refinement, or returns the unchanged session.
func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.stack.Redo()
	writeJSON(w, http.StatusOK, view(sess))
}

// refine runs fn as one undoable step on the session named in the URL.
func (s *Server) refine(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, *graph.Graph) (any, error)) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	var result any
	err := sess.stack.Apply(func(g *graph.Graph) error {
		var err error
		result, err = fn(r.Context(), g)
		return err
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"session": sess.ID, "action": action}).Debug("refinement rejected")
		s.writeError(w, err)
		return
	}
	s.log.WithFields(logrus.Fields{"session": sess.ID, "action": action}).Info("refined")
	writeJSON(w, http.StatusOK, refineResponse{Session: view(sess), Result: result})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return sess, ok
}

// writeError maps err to a status code and writes it as JSON.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, graph.ErrUnknownConcept), errors.Is(err, concept.ErrUnknown):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrStale), errors.Is(err, session.ErrEmptyNode),
		errors.Is(err, session.ErrContradiction):
		return http.StatusConflict
	case errors.Is(err, graph.ErrCheckbox), errors.Is(err, graph.ErrNoConstants),
		errors.Is(err, concept.ErrArity), errors.Is(err, concept.ErrSortMismatch),
		errors.Is(err, concept.ErrNotANode), errors.Is(err, concept.ErrConflict),
		errors.Is(err, problem.ErrMalformed), errors.Is(err, problem.ErrUnknownName),
		errors.Is(err, problem.ErrIllSorted), errors.Is(err, logic.ErrDuplicate),
		errors.Is(err, logic.ErrUndeclaredSort), errors.Is(err, render.ErrUnsupportedFormat),
		errors.Is(err, errUnknownTag), errors.Is(err, errUnknownTruth):
		return http.StatusUnprocessableEntity
	case errors.Is(err, render.ErrNoGraphviz), errors.Is(err, errNoHistory):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return data, nil
}

// decodeBody reads a YAML body into v. JSON bodies decode the same way.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func decodeNode(w http.ResponseWriter, r *http.Request, req *nodeRequest) error {
	if err := decodeBody(w, r, req); err != nil {
		return err
	}
	if req.Node == "" {
		return fmt.Errorf("%w: %w", errBadRequest, errMissingConcept)
	}
	return nil
}

func view(sess *Session) sessionView {
	g := sess.stack.Current()
	return sessionView{
		ID:          sess.ID,
		Name:        sess.Name,
		Status:      g.Status().String(),
		Nodes:       g.NodeIDs(),
		Relations:   g.RelationIDs(),
		State:       formulaStrings(g.State()),
		Constraints: formulaStrings(g.Constraints()),
		CanUndo:     sess.stack.CanUndo(),
		CanRedo:     sess.stack.CanRedo(),
	}
}

func nodeConcept(g *graph.Graph, name string) (*concept.Concept, error) {
	kind, ok := g.Domain().KindOf(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, graph.ErrUnknownConcept)
	}
	if kind != concept.Nodes {
		return nil, fmt.Errorf("%s: %w", name, concept.ErrNotANode)
	}
	c, _ := g.Domain().Concept(name)
	return c, nil
}

func resolveAll(sig *logic.Signature, fs []problem.Formula) ([]logic.Formula, error) {
	out := make([]logic.Formula, len(fs))
	for i := range fs {
		f, err := problem.ResolveFormula(sig, &fs[i])
		if err != nil {
			return nil, fmt.Errorf("formulas[%d]: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

func (o overrideRequest) key() (concept.Key, error) {
	switch o.Tag {
	case concept.TagNodeInfo, concept.TagNodeLabel, concept.TagEdgeInfo, concept.TagEnum:
	default:
		return concept.Key{}, fmt.Errorf("%q: %w", o.Tag, errUnknownTag)
	}
	if len(o.Parts) == 0 || len(o.Parts) > 3 || o.Combiner == "" {
		return concept.Key{}, fmt.Errorf("%w: override needs a combiner and one to three concept names", errBadRequest)
	}
	k := concept.Key{Tag: o.Tag, Combiner: o.Combiner}
	ps := []*string{&k.A, &k.B, &k.C}
	for i, p := range o.Parts {
		*ps[i] = p
	}
	return k, nil
}

func parseTruth(s string) (concept.Truth, error) {
	switch s {
	case "true":
		return concept.True, nil
	case "false":
		return concept.False, nil
	case "unknown", "":
		return concept.Unknown, nil
	}
	return concept.Unknown, fmt.Errorf("%q: %w", s, errUnknownTruth)
}

func formulaStrings(fs []logic.Formula) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.String()
	}
	return out
}

func conceptNames(cs []*concept.Concept) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func contentType(format string) string {
	switch format {
	case render.FormatSVG:
		return "image/svg+xml"
	case render.FormatPNG:
		return "image/png"
	case render.FormatDOT:
		return "text/vnd.graphviz"
	default:
		return "application/json"
	}
}
