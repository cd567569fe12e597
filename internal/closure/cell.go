package closure

import (
	"fmt"
	"reflect"
)

// Cell is a shared, mutable single-value storage location. A captured
// variable lives in exactly one cell; every reader and writer, compiled or
// interpreted, goes through the same cell.
type Cell interface {
	Load() any
	Store(v any) error
	Type() reflect.Type
}

// Slot is a statically typed cell. Go code that knows T reads and writes
// Value directly; everyone else uses Load and Store.
type Slot[T any] struct {
	Value T
}

// NewSlot returns a slot holding v.
func NewSlot[T any](v T) *Slot[T] {
	return &Slot[T]{Value: v}
}

func (s *Slot[T]) Load() any { return s.Value }

func (s *Slot[T]) Store(v any) error {
	x, err := convertTo[T](v)
	if err != nil {
		return err
	}
	s.Value = x
	return nil
}

func (s *Slot[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

func (s *Slot[T]) String() string { return fmt.Sprintf("slot(%v)", s.Value) }

// dynamicCell is a cell whose type is only known at run time.
type dynamicCell struct {
	typ   reflect.Type
	value reflect.Value
}

// NewCell returns a zero-valued cell of the given type.
func NewCell(typ reflect.Type) Cell {
	return &dynamicCell{typ: typ, value: reflect.New(typ).Elem()}
}

// NewCellOf returns a cell of the given type holding v.
func NewCellOf(typ reflect.Type, v any) (Cell, error) {
	c := NewCell(typ)
	if err := c.Store(v); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *dynamicCell) Load() any { return c.value.Interface() }

func (c *dynamicCell) Store(v any) error {
	rv, err := coerce(c.typ, v)
	if err != nil {
		return err
	}
	c.value.Set(rv)
	return nil
}

func (c *dynamicCell) Type() reflect.Type { return c.typ }

func (c *dynamicCell) String() string { return fmt.Sprintf("cell(%v)", c.Load()) }

func convertTo[T any](v any) (T, error) {
	if x, ok := v.(T); ok {
		return x, nil
	}
	var zero T
	rv, err := coerce(reflect.TypeFor[T](), v)
	if err != nil {
		return zero, err
	}
	x, _ := rv.Interface().(T)
	return x, nil
}

// coerce converts v to a value of type typ. Only assignable values and an
// untyped nil for nilable types are accepted.
func coerce(typ reflect.Type, v any) (reflect.Value, error) {
	if v == nil {
		if nilable(typ) {
			return reflect.Zero(typ), nil
		}
		return reflect.Value{}, &ConversionError{Want: typ}
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(typ) {
		return reflect.Value{}, &ConversionError{Want: typ, Got: rv.Type()}
	}
	out := reflect.New(typ).Elem()
	out.Set(rv)
	return out, nil
}

func nilable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
