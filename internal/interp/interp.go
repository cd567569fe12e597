// Package interp is the tree-walking back end. Interpreting a lambda does
// no up-front work: every call walks the tree again.
package interp

import (
	"fmt"

	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/expr"
)

// Interpreter evaluates expression trees directly.
type Interpreter struct{}

// New creates a tree-walking interpreter.
func New() *Interpreter {
	return &Interpreter{}
}

// Interpret returns a callable that evaluates l on every invocation. It
// never fails; errors in the tree surface when the callable runs.
func (in *Interpreter) Interpret(l *expr.Lambda) expr.Callable {
	return in.lambda(l, nil)
}

// environment maps variables to their cells for one activation.
type environment struct {
	vars  map[*expr.Parameter]closure.Cell
	outer *environment
}

func newEnclosedEnvironment(outer *environment, size int) *environment {
	return &environment{vars: make(map[*expr.Parameter]closure.Cell, size), outer: outer}
}

func (e *environment) get(p *expr.Parameter) (closure.Cell, bool) {
	for env := e; env != nil; env = env.outer {
		if c, ok := env.vars[p]; ok {
			return c, true
		}
	}
	return nil, false
}

func (in *Interpreter) lambda(l *expr.Lambda, outer *environment) expr.Callable {
	return func(args ...any) (any, error) {
		if len(args) != len(l.Params) {
			return nil, expr.ArityError(l.Name, len(l.Params), len(args))
		}
		env := newEnclosedEnvironment(outer, len(l.Params))
		for i, p := range l.Params {
			cell, err := closure.NewCellOf(p.Type(), args[i])
			if err != nil {
				return nil, fmt.Errorf("argument %d (%s): %w", i, p.Name, err)
			}
			env.vars[p] = cell
		}
		v, err := in.eval(l.Body, env)
		if err != nil {
			return nil, err
		}
		if l.IsAction() {
			return nil, nil
		}
		return v, nil
	}
}

func (in *Interpreter) eval(n expr.Node, env *environment) (any, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil

	case *expr.Constant:
		return n.Value, nil

	case *expr.Parameter:
		cell, ok := env.get(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", expr.ErrUnbound, n.Name)
		}
		return cell.Load(), nil

	case *expr.CellValue:
		return n.Cell.Load(), nil

	case *expr.Lambda:
		return in.lambda(n, env), nil

	case *expr.Block:
		inner := newEnclosedEnvironment(env, len(n.Vars))
		for _, v := range n.Vars {
			inner.vars[v] = closure.NewCell(v.Type())
		}
		var result any
		for _, stmt := range n.Body {
			v, err := in.eval(stmt, inner)
			if err != nil {
				return nil, err
			}
			result = v
		}
		return result, nil

	case *expr.Binary:
		l, err := in.eval(n.Left, env)
		if err != nil {
			return nil, err
		}
		r, err := in.eval(n.Right, env)
		if err != nil {
			return nil, err
		}
		return expr.Apply(n.Op, l, r)

	case *expr.Assign:
		v, err := in.eval(n.Value, env)
		if err != nil {
			return nil, err
		}
		if err := in.store(n.Target, v, env); err != nil {
			return nil, err
		}
		return v, nil

	case *expr.Conditional:
		t, err := in.eval(n.Test, env)
		if err != nil {
			return nil, err
		}
		ok, err := expr.Truth(t)
		if err != nil {
			return nil, err
		}
		if ok {
			return in.eval(n.Then, env)
		}
		return in.eval(n.Else, env)

	case *expr.Try:
		return in.try(n, env)

	case *expr.Throw:
		v, err := in.eval(n.Value, env)
		if err != nil {
			return nil, err
		}
		return nil, &expr.ThrownError{Value: v}

	case *expr.Invoke:
		target, err := in.eval(n.Target, env)
		if err != nil {
			return nil, err
		}
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = in.eval(a, env); err != nil {
				return nil, err
			}
		}
		return expr.Call(target, args...)

	case *expr.RuntimeVariables:
		cells := make(closure.Cells, len(n.Vars))
		for i, v := range n.Vars {
			cell, ok := env.get(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s", expr.ErrUnbound, v.Name)
			}
			cells[i] = cell
		}
		return closure.Variables(cells), nil

	case *expr.MergeVariables:
		local, err := in.eval(n.Local, env)
		if err != nil {
			return nil, err
		}
		return closure.Merge(local.(closure.Variables), n.Hoisted, n.Indexes)

	case *expr.Slot:
		vars, err := in.variables(n.Record, env)
		if err != nil {
			return nil, err
		}
		return vars.Get(n.Index)
	}
	return nil, fmt.Errorf("interp: unsupported node %T", n)
}

func (in *Interpreter) store(target expr.Node, v any, env *environment) error {
	switch t := target.(type) {
	case *expr.Parameter:
		cell, ok := env.get(t)
		if !ok {
			return fmt.Errorf("%w: %s", expr.ErrUnbound, t.Name)
		}
		return cell.Store(v)
	case *expr.CellValue:
		return t.Cell.Store(v)
	case *expr.Slot:
		vars, err := in.variables(t.Record, env)
		if err != nil {
			return err
		}
		return vars.Set(t.Index, v)
	}
	return fmt.Errorf("interp: cannot assign to %s", target.Kind())
}

func (in *Interpreter) variables(n expr.Node, env *environment) (closure.Variables, error) {
	rv, err := in.eval(n, env)
	if err != nil {
		return nil, err
	}
	vars, ok := rv.(closure.Variables)
	if !ok || vars == (*closure.Record)(nil) {
		return nil, fmt.Errorf("%w: %T", expr.ErrNotVariables, rv)
	}
	return vars, nil
}

func (in *Interpreter) try(n *expr.Try, env *environment) (result any, err error) {
	if n.Finally != nil {
		defer func() {
			if _, ferr := in.eval(n.Finally, env); ferr != nil {
				result, err = nil, ferr
			}
		}()
	}

	result, err = in.eval(n.Body, env)
	if err == nil || len(n.Handlers) == 0 {
		return result, err
	}

	h := n.Handlers[0]
	inner := newEnclosedEnvironment(env, 1)
	if h.Var != nil {
		cell, cerr := closure.NewCellOf(h.Var.Type(), err)
		if cerr != nil {
			return nil, cerr
		}
		inner.vars[h.Var] = cell
	}
	return in.eval(h.Body, inner)
}
