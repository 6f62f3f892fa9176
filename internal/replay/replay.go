// Package replay executes recorded taint operation traces against the
// engine. Traces are the debugging format emitted by instrumented hosts: a
// flat list of steps operating on named variables. Replaying a trace
// reproduces the exact range bookkeeping of the original request, which
// makes provenance bugs inspectable offline.
package replay

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintflow/api/schemas"
	"github.com/xkilldash9x/taintflow/internal/taint"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Step is one recorded operation. Op selects the operation; the remaining
// fields are interpreted per op:
//
//	text    Var, Value            — define an untainted literal
//	taint   Var, Value, Source    — mark an input at the taint boundary
//	concat  Var, Left, Right      — Var = Left + Right
//	join    Var, Sep, Parts       — Var = Parts joined by the Sep variable
//	slice   Var, Of, Start, End   — Var = Of[Start:End]
//	format  Var, Format, Args     — Var = printf-style interpolation
//	report  Var                   — emit evidence for Var
//
// Operand fields (Left, Right, Sep, Of, Parts, Args) name prior variables.
type Step struct {
	Op     string          `json:"op"`
	Var    string          `json:"var,omitempty"`
	Value  string          `json:"value,omitempty"`
	Source *schemas.Source `json:"source,omitempty"`
	Left   string          `json:"left,omitempty"`
	Right  string          `json:"right,omitempty"`
	Sep    string          `json:"sep,omitempty"`
	Of     string          `json:"of,omitempty"`
	Parts  []string        `json:"parts,omitempty"`
	Start  int             `json:"start,omitempty"`
	End    int             `json:"end,omitempty"`
	Format string          `json:"format,omitempty"`
	Args   []string        `json:"args,omitempty"`
}

// Trace is a full recorded session.
type Trace struct {
	Steps []Step `json:"steps"`
}

// Result is the evidence emitted for one "report" step.
type Result struct {
	Var      string           `json:"var"`
	Value    string           `json:"value"`
	Tainted  bool             `json:"tainted"`
	Evidence schemas.Evidence `json:"evidence"`
}

// ParseTrace decodes a trace from JSON.
func ParseTrace(r io.Reader) (Trace, error) {
	var trace Trace
	if err := json.NewDecoder(r).Decode(&trace); err != nil {
		return Trace{}, fmt.Errorf("failed to decode trace: %w", err)
	}
	return trace, nil
}

// Runner replays traces through a taint engine.
type Runner struct {
	engine *taint.Engine
	logger *zap.Logger
}

// NewRunner creates a runner on top of an initialized engine.
func NewRunner(engine *taint.Engine, logger *zap.Logger) *Runner {
	return &Runner{engine: engine, logger: logger.Named("replay")}
}

// Run replays every step inside a single analysis scope and returns the
// results of the trace's report steps. The scope is always ended, releasing
// all registry entries, before Run returns.
func (r *Runner) Run(trace Trace) ([]Result, error) {
	scope := r.engine.NewScope()
	defer scope.End()

	vars := make(map[string]taint.Tracked)
	var results []Result

	resolve := func(name string) (taint.Tracked, error) {
		v, ok := vars[name]
		if !ok {
			return taint.Tracked{}, fmt.Errorf("undefined variable %q", name)
		}
		return v, nil
	}

	for i, step := range trace.Steps {
		if err := r.runStep(scope, step, vars, resolve, &results); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	r.logger.Debug("Trace replayed.",
		zap.Int("steps", len(trace.Steps)),
		zap.Int("reports", len(results)),
	)
	return results, nil
}

func (r *Runner) runStep(
	scope *taint.Scope,
	step Step,
	vars map[string]taint.Tracked,
	resolve func(string) (taint.Tracked, error),
	results *[]Result,
) error {
	switch step.Op {
	case "text":
		vars[step.Var] = taint.Text(step.Value)

	case "taint":
		vars[step.Var] = scope.Taint(taint.Text(step.Value), step.Source)

	case "concat":
		left, err := resolve(step.Left)
		if err != nil {
			return err
		}
		right, err := resolve(step.Right)
		if err != nil {
			return err
		}
		out, err := scope.Concat(left, right)
		if err != nil {
			return err
		}
		vars[step.Var] = out

	case "join":
		sep, err := resolve(step.Sep)
		if err != nil {
			return err
		}
		parts := make([]taint.Tracked, 0, len(step.Parts))
		for _, name := range step.Parts {
			p, err := resolve(name)
			if err != nil {
				return err
			}
			parts = append(parts, p)
		}
		out, err := scope.Join(sep, parts)
		if err != nil {
			return err
		}
		vars[step.Var] = out

	case "slice":
		of, err := resolve(step.Of)
		if err != nil {
			return err
		}
		out, err := scope.Slice(of, step.Start, step.End)
		if err != nil {
			return err
		}
		vars[step.Var] = out

	case "format":
		args := make([]any, 0, len(step.Args))
		for _, name := range step.Args {
			a, err := resolve(name)
			if err != nil {
				return err
			}
			args = append(args, a)
		}
		out, err := scope.Format(step.Format, args...)
		if err != nil {
			return err
		}
		vars[step.Var] = out

	case "report":
		v, err := resolve(step.Var)
		if err != nil {
			return err
		}
		*results = append(*results, Result{
			Var:      step.Var,
			Value:    v.String(),
			Tainted:  scope.IsTainted(v),
			Evidence: scope.Evidence(v),
		})

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// WriteResults renders replay results as indented JSON.
func WriteResults(w io.Writer, results []Result) error {
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
