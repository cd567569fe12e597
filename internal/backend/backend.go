// Package backend provides an interface for the execution back ends a thunk
// lowers its tree with. This allows switching between the tree-walk
// interpreter and the native compiler.
package backend

import (
	"fmt"

	"github.com/funvibe/thunkjit/internal/expr"
)

// Backend is the interface for execution back ends
type Backend interface {
	// Compile lowers the lambda to a callable
	Compile(l *expr.Lambda) (expr.Callable, error)

	// Name returns the back end name for display
	Name() string
}

// Set pairs the two back ends a thunk may use.
type Set struct {
	Native      Backend
	Interpreter Backend
}

// Default returns the native compiler and the tree-walk interpreter.
func Default() Set {
	return Set{Native: NewNative(), Interpreter: NewTreeWalk()}
}

// Lower compiles l with the interpreter when preferInterpretation is set and
// with the native compiler otherwise.
func (s Set) Lower(l *expr.Lambda, preferInterpretation bool) (expr.Callable, error) {
	b := s.Native
	if preferInterpretation {
		b = s.Interpreter
	}
	if b == nil {
		return nil, fmt.Errorf("backend: no back end configured (interpret=%v)", preferInterpretation)
	}
	return b.Compile(l)
}
