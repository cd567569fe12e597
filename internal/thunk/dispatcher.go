package thunk

import (
	"reflect"

	"github.com/funvibe/thunkjit/internal/closure"
)

// Dispatcher binds a thunk to one closure and is called with the delegate's
// own arguments. It reads the thunk's current target on every call, so it
// is unaffected by the thunk's transitions.
type Dispatcher struct {
	thunk   *Thunk
	closure any
}

// Invoke checks args against the delegate shape and calls the target with
// the closure prepended. Errors from the target are returned unchanged.
func (d *Dispatcher) Invoke(args ...any) (any, error) {
	if err := d.thunk.typ.shape.checkArgs(args); err != nil {
		return nil, err
	}
	return d.thunk.Invoke(d.closure, args...)
}

func (d *Dispatcher) Arity() int    { return d.thunk.typ.shape.Arity() }
func (d *Dispatcher) Thunk() *Thunk { return d.thunk }
func (d *Dispatcher) Closure() any  { return d.closure }

// Func adapts a value-producing dispatcher to a typed Go function.
func Func[R any](d *Dispatcher) func(args ...any) (R, error) {
	want := reflect.TypeFor[R]()
	return func(args ...any) (R, error) {
		var zero R
		v, err := d.Invoke(args...)
		if err != nil || v == nil {
			return zero, err
		}
		r, ok := v.(R)
		if !ok {
			return zero, &closure.ConversionError{Want: want, Got: reflect.TypeOf(v)}
		}
		return r, nil
	}
}

// Action adapts a dispatcher to a Go function that reports only errors.
func Action(d *Dispatcher) func(args ...any) error {
	return func(args ...any) error {
		_, err := d.Invoke(args...)
		return err
	}
}
