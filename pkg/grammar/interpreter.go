package grammar

import (
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knotview/pkg/errors"
)

// maxOperationDepth bounds how deep operation knots may reference each other.
const maxOperationDepth = 16

// Interpreter answers queries about a validated grammar. Visibility rules
// are compiled once at construction.
//
// Interpreter is safe for concurrent use; SetVariable may race with
// evaluation from the scene's monitor.
type Interpreter struct {
	grammar *Grammar
	rules   []map[string][]rule // per view, per knot
	logger  *log.Logger
	now     func() time.Time
	start   time.Time

	mu   sync.RWMutex
	vars map[string]any
}

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*Interpreter)

// WithLogger sets the logger used to report visibility evaluation errors.
func WithLogger(l *log.Logger) InterpreterOption {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithClock replaces the wall clock used for timeElapsed.
func WithClock(now func() time.Time) InterpreterOption {
	return func(i *Interpreter) {
		if now != nil {
			i.now = now
		}
	}
}

// NewInterpreter compiles g's visibility rules. g should already be
// validated; compile failures are reported as INVALID_GRAMMAR.
func NewInterpreter(g *Grammar, opts ...InterpreterOption) (*Interpreter, error) {
	if g == nil {
		return nil, errors.New(errors.ErrCodeInvalidGrammar, "grammar is nil")
	}
	in := &Interpreter{
		grammar: g,
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
		now:     time.Now,
		vars:    map[string]any{},
	}
	for _, opt := range opts {
		opt(in)
	}
	in.start = in.now()

	in.rules = make([]map[string][]rule, len(g.Views))
	for vi, v := range g.Views {
		in.rules[vi] = map[string][]rule{}
		for _, r := range v.Map.KnotVisibility {
			p, err := compileRule(r.Test)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidGrammar, err, "view %d knot %q", vi, r.Knot)
			}
			in.rules[vi][r.Knot] = append(in.rules[vi][r.Knot], rule{src: r.Test, program: p})
		}
	}
	return in, nil
}

// ProcessedGrammar returns the grammar the interpreter serves.
func (in *Interpreter) ProcessedGrammar() *Grammar { return in.grammar }

func (in *Interpreter) view(viewID int) (*View, bool) {
	if viewID < 0 || viewID >= len(in.grammar.Views) {
		return nil, false
	}
	return &in.grammar.Views[viewID], true
}

// Camera returns the camera specification of a view.
func (in *Interpreter) Camera(viewID int) (CameraSpec, error) {
	v, ok := in.view(viewID)
	if !ok {
		return CameraSpec{}, errors.New(errors.ErrCodeInvalidInput, "view %d does not exist", viewID)
	}
	return v.Map.Camera, nil
}

// Map returns the map specification of a view, or the zero value.
func (in *Interpreter) Map(viewID int) MapSpec {
	if v, ok := in.view(viewID); ok {
		return v.Map
	}
	return MapSpec{}
}

// Knots returns every knot in declaration order. Knots are shared by all
// views.
func (in *Interpreter) Knots(int) []*Knot {
	out := make([]*Knot, len(in.grammar.Knots))
	for i := range in.grammar.Knots {
		out[i] = &in.grammar.Knots[i]
	}
	return out
}

// KnotByID looks up a knot.
func (in *Interpreter) KnotByID(id string, _ int) (*Knot, bool) {
	return in.grammar.KnotByID(id)
}

// Plots returns the plots of a view.
func (in *Interpreter) Plots(viewID int) []Plot {
	if v, ok := in.view(viewID); ok {
		return v.Plots
	}
	return nil
}

// FilterKnots returns the spatial filter bbox of a view, or nil.
func (in *Interpreter) FilterKnots(viewID int) []float64 {
	if v, ok := in.view(viewID); ok && len(v.Map.Filter) == 4 {
		return slices.Clone(v.Map.Filter)
	}
	return nil
}

// KnotLastLink returns the link that determines where a knot's data ends
// up. For operation knots it is the last link of the knot the operation
// writes onto.
func (in *Interpreter) KnotLastLink(k *Knot, viewID int) Link {
	for depth := 0; k != nil && depth < maxOperationDepth; depth++ {
		last := k.LastLink()
		if !k.KnotOp {
			return last
		}
		k, _ = in.KnotByID(last.Out.Name, viewID)
	}
	return Link{}
}

// KnotOutputLayer returns the id of the layer a knot renders on.
func (in *Interpreter) KnotOutputLayer(k *Knot, viewID int) string {
	return in.KnotLastLink(k, viewID).Out.Name
}

// Mapped reports whether the knot is listed in the view's map knots.
func (in *Interpreter) Mapped(id string, viewID int) bool {
	v, ok := in.view(viewID)
	return ok && slices.Contains(v.Map.Knots, id)
}

// SetVariable binds a variable visible to visibility rules. It overrides a
// grammar variable of the same name.
func (in *Interpreter) SetVariable(name string, value any) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.vars[name] = value
}

// Variables returns the effective variable bindings.
func (in *Interpreter) Variables() map[string]any {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return environment(in.grammar.Variables, in.vars)
}

// EvaluateKnotVisibility decides whether a knot is drawn. Every rule for
// the knot must hold. Without rules, an explicit visible flag wins, then
// membership in the map knots. Evaluation errors count as hidden.
func (in *Interpreter) EvaluateKnotVisibility(k *Knot, viewID int) bool {
	if k == nil {
		return false
	}
	mapped := in.Mapped(k.ID, viewID)

	var rules []rule
	if viewID >= 0 && viewID < len(in.rules) {
		rules = in.rules[viewID][k.ID]
	}
	if len(rules) == 0 {
		if k.Visible != nil {
			return *k.Visible
		}
		return mapped
	}

	env := in.Variables()
	env[EnvTimeElapsed] = in.now().Sub(in.start).Milliseconds()
	env[EnvMapped] = mapped
	env[EnvKnot] = k.ID

	for _, r := range rules {
		ok, err := r.eval(env)
		if err != nil {
			in.logger.Debug("visibility test failed", "knot", k.ID, "test", r.src, "err", err)
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}
