package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrArity is reported when a callable receives the wrong number of
	// arguments.
	ErrArity = errors.New("wrong number of arguments")
	// ErrUnbound is reported for a variable with no binding in scope.
	ErrUnbound = errors.New("unbound variable")
	// ErrNotCallable is reported when an Invoke target is not callable.
	ErrNotCallable = errors.New("value is not callable")
	// ErrNotBool is reported when a condition is not a bool.
	ErrNotBool = errors.New("condition is not a bool")
	// ErrNotVariables is reported when a slot is read from a value that is
	// not a closure record or variable list.
	ErrNotVariables = errors.New("value has no ordinal slots")
)

// ArityError reports a call with the wrong number of arguments.
func ArityError(name string, want, got int) error {
	if name == "" {
		name = "lambda"
	}
	return fmt.Errorf("%s: %w: want %d, got %d", name, ErrArity, want, got)
}

// Call invokes a Callable, an Invoker or a plain Go function of the same
// shape.
func Call(target any, args ...any) (any, error) {
	switch fn := target.(type) {
	case Callable:
		return fn(args...)
	case func(...any) (any, error):
		return fn(args...)
	case Invoker:
		return fn.Invoke(args...)
	}
	return nil, fmt.Errorf("%w: %T", ErrNotCallable, target)
}

// Truth interprets a condition value.
func Truth(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %T", ErrNotBool, v)
	}
	return b, nil
}

// ThrownError carries a value raised by a Throw node.
type ThrownError struct {
	Value any
}

func (e *ThrownError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("thrown: %v", e.Value)
}

func (e *ThrownError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
