package grammar

import (
	"fmt"
	"maps"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Names bound in every visibility environment.
const (
	EnvTimeElapsed = "timeElapsed"
	EnvMapped      = "mapped"
	EnvKnot        = "knot"
)

// compileRule compiles a visibility test. Variables unknown at compile time
// resolve at run time from the environment.
func compileRule(src string) (*vm.Program, error) {
	p, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return p, nil
}

// compileOperation compiles an operation-knot expression such as
// "shadow * 0.5 + sky". Knot ids are the variables.
func compileOperation(src string) (*vm.Program, error) {
	p, err := expr.Compile(src, expr.AsFloat64(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return p, nil
}

// Operation is a compiled operation-knot expression.
type Operation struct {
	src     string
	program *vm.Program
}

// CompileOperation compiles an operation-knot expression.
func CompileOperation(src string) (*Operation, error) {
	p, err := compileOperation(src)
	if err != nil {
		return nil, err
	}
	return &Operation{src: src, program: p}, nil
}

// Eval runs the expression with the given knot values bound by id.
func (o *Operation) Eval(values map[string]float64) (float64, error) {
	env := make(map[string]any, len(values))
	for k, v := range values {
		env[k] = v
	}
	out, err := expr.Run(o.program, env)
	if err != nil {
		return 0, fmt.Errorf("eval %q: %w", o.src, err)
	}
	f, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("eval %q: got %T, want number", o.src, out)
	}
	return f, nil
}

// rule is a compiled visibility rule.
type rule struct {
	src     string
	program *vm.Program
}

func (r rule) eval(env map[string]any) (bool, error) {
	out, err := expr.Run(r.program, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("visibility test %q returned %T", r.src, out)
	}
	return b, nil
}

// environment merges grammar variables with runtime overrides.
func environment(base, overrides map[string]any) map[string]any {
	env := make(map[string]any, len(base)+len(overrides)+3)
	maps.Copy(env, base)
	maps.Copy(env, overrides)
	return env
}
