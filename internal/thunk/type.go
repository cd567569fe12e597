// Package thunk wraps expression trees in lazily compiled callables. A thunk
// starts out holding its tree; the first call lowers the tree according to
// the thunk's policy and installs the result as the permanent target.
package thunk

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/funvibe/thunkjit/internal/backend"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
)

// Env is what a thunk type needs from its surroundings.
type Env struct {
	Backends  backend.Set
	Threshold int // calls before a tiered thunk is compiled
	Logger    *slog.Logger
}

func (e Env) withDefaults() Env {
	if e.Backends.Native == nil && e.Backends.Interpreter == nil {
		e.Backends = backend.Default()
	}
	if e.Threshold == 0 {
		e.Threshold = config.DefaultTieredThreshold
	}
	if e.Logger == nil {
		e.Logger = config.DiscardLogger()
	}
	return e
}

// Type is a thunk template closed over a closure type and a policy. Every
// thunk it creates shares its shape and environment.
type Type struct {
	name    string
	shape   Shape
	closure reflect.Type
	policy  Policy
	env     Env
}

// NewType builds a thunk type for delegates of the given shape whose trees
// take a closure of closureType as their first parameter.
func NewType(name string, shape Shape, closureType reflect.Type, policy Policy, env Env) (*Type, error) {
	if closureType == nil {
		return nil, fmt.Errorf("%w: no closure type", ErrShape)
	}
	if err := shape.validate(); err != nil {
		return nil, err
	}
	if policy < Immediate || policy > Tiered {
		return nil, fmt.Errorf("thunk: invalid policy %s", policy)
	}
	env = env.withDefaults()
	if env.Threshold < 1 {
		return nil, fmt.Errorf("thunk: tiered threshold must be positive, got %d", env.Threshold)
	}
	return &Type{name: name, shape: shape, closure: closureType, policy: policy, env: env}, nil
}

func (t *Type) Name() string              { return t.name }
func (t *Type) Shape() Shape              { return t.shape }
func (t *Type) ClosureType() reflect.Type { return t.closure }
func (t *Type) Policy() Policy            { return t.policy }
func (t *Type) Threshold() int            { return t.env.Threshold }
func (t *Type) Backends() backend.Set     { return t.env.Backends }

func (t *Type) String() string {
	return fmt.Sprintf("%s[%s, %s](%s)", t.name, t.closure, t.shape.Key(), t.policy)
}

// New wraps tree in a pending thunk. The tree must take the closure as its
// first parameter followed by exactly the shape's parameters, and return
// the shape's result.
func (t *Type) New(tree *expr.Lambda) (*Thunk, error) {
	if err := t.check(tree); err != nil {
		return nil, err
	}
	th := &Thunk{typ: t}
	th.current.Store(&resolution{state: Pending, tree: tree, target: th.trampoline})
	return th, nil
}

func (t *Type) check(tree *expr.Lambda) error {
	closureType, shape, err := ShapeOf(tree)
	if err != nil {
		return err
	}
	if closureType != t.closure && closureType != expr.AnyType {
		return fmt.Errorf("%w: closure parameter is %s, want %s", ErrShape, closureType, t.closure)
	}
	if shape.Arity() != t.shape.Arity() {
		return fmt.Errorf("%w: tree takes %d parameters, want %d", ErrShape, shape.Arity(), t.shape.Arity())
	}
	for i, p := range shape.Params {
		if p != t.shape.Params[i] {
			return fmt.Errorf("%w: parameter %d is %s, want %s", ErrShape, i, p, t.shape.Params[i])
		}
	}
	if shape.Result != t.shape.Result {
		return fmt.Errorf("%w: tree returns %s, want %s", ErrShape, typeName(shape.Result), typeName(t.shape.Result))
	}
	return nil
}
