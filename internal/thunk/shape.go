package thunk

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/funvibe/thunkjit/internal/expr"
)

var (
	// ErrArity is returned when a delegate is called with the wrong number
	// of arguments.
	ErrArity = errors.New("thunk: wrong number of arguments")
	// ErrArgumentType is returned when an argument does not fit its
	// declared parameter type.
	ErrArgumentType = errors.New("thunk: argument type mismatch")
	// ErrShape is returned when a tree does not match the thunk type.
	ErrShape = errors.New("thunk: tree does not match shape")
)

// Shape is the user-visible signature of a delegate: its parameter types,
// not counting the closure, and its result type. A nil Result is an action.
type Shape struct {
	Params []reflect.Type
	Result reflect.Type
}

// FuncShape describes a delegate producing a value.
func FuncShape(result reflect.Type, params ...reflect.Type) Shape {
	return Shape{Params: params, Result: result}
}

// ActionShape describes a delegate producing nothing.
func ActionShape(params ...reflect.Type) Shape {
	return Shape{Params: params}
}

// ShapeOf splits a lambda's signature into its closure parameter type and
// the delegate shape formed by the remaining parameters.
func ShapeOf(l *expr.Lambda) (reflect.Type, Shape, error) {
	if l == nil || len(l.Params) == 0 {
		return nil, Shape{}, fmt.Errorf("%w: lambda has no closure parameter", ErrShape)
	}
	types := l.ParamTypes()
	return types[0], Shape{Params: types[1:], Result: l.Result}, nil
}

func (s Shape) Arity() int     { return len(s.Params) }
func (s Shape) IsAction() bool { return s.Result == nil }

// Key identifies the shape, e.g. "func(int, string) bool" or "action(int)".
func (s Shape) Key() string {
	var sb strings.Builder
	if s.IsAction() {
		sb.WriteString("action(")
	} else {
		sb.WriteString("func(")
	}
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(typeName(p))
	}
	sb.WriteByte(')')
	if !s.IsAction() {
		sb.WriteByte(' ')
		sb.WriteString(s.Result.String())
	}
	return sb.String()
}

func (s Shape) String() string { return s.Key() }

func (s Shape) validate() error {
	for i, p := range s.Params {
		if p == nil {
			return fmt.Errorf("%w: parameter %d has no type", ErrShape, i)
		}
	}
	return nil
}

// checkArgs validates a call at the delegate boundary.
func (s Shape) checkArgs(args []any) error {
	if len(args) != len(s.Params) {
		return fmt.Errorf("%w: want %d, got %d", ErrArity, len(s.Params), len(args))
	}
	for i, a := range args {
		if !fits(a, s.Params[i]) {
			return fmt.Errorf("%w: argument %d is %T, want %s", ErrArgumentType, i, a, s.Params[i])
		}
	}
	return nil
}

func fits(v any, typ reflect.Type) bool {
	if v == nil {
		switch typ.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return true
		}
		return false
	}
	return reflect.TypeOf(v).AssignableTo(typ)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}
