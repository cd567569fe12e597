package closure

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrOutOfRange is reported by ordinal access outside [0, Count).
	ErrOutOfRange = errors.New("closure: slot index out of range")
	// ErrConversion is reported when a value cannot be stored in a slot.
	ErrConversion = errors.New("closure: value not convertible to slot type")
)

// RangeError describes an ordinal access outside the record bounds.
type RangeError struct {
	Index int
	Count int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("closure: slot index %d out of range [0, %d)", e.Index, e.Count)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// ConversionError describes a value whose runtime type does not fit a slot.
type ConversionError struct {
	Want reflect.Type
	Got  reflect.Type // nil for an untyped nil
}

func (e *ConversionError) Error() string {
	got := "nil"
	if e.Got != nil {
		got = e.Got.String()
	}
	return fmt.Sprintf("closure: cannot convert %s to %s", got, e.Want)
}

func (e *ConversionError) Unwrap() error { return ErrConversion }

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return &RangeError{Index: i, Count: n}
	}
	return nil
}
